package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseVisibility(t *testing.T) {
	tests := []struct {
		in      string
		want    Visibility
		wantErr bool
	}{
		{"public", VisibilityPublic, false},
		{" Unlisted ", VisibilityUnlisted, false},
		{"", VisibilityPrivate, false},
		{"friends", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVisibility(tt.in)
			if tt.wantErr {
				assert.True(t, IsCode(err, ErrValidation))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestViewScope_Allows(t *testing.T) {
	scope := &ViewScope{ViewerID: "viewer", GrantedIDs: []string{"granted"}}

	assert.True(t, scope.Allows(&File{ID: "p", OwnerID: "o", Visibility: VisibilityPublic}))
	assert.True(t, scope.Allows(&File{ID: "u", OwnerID: "o", Visibility: VisibilityUnlisted}))
	assert.True(t, scope.Allows(&File{ID: "mine", OwnerID: "viewer", Visibility: VisibilityPrivate}))
	assert.True(t, scope.Allows(&File{ID: "granted", OwnerID: "o", Visibility: VisibilityPrivate}))
	assert.False(t, scope.Allows(&File{ID: "secret", OwnerID: "o", Visibility: VisibilityPrivate}))
}

func TestFile_DueForDeletion(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&File{}).DueForDeletion(now))
	assert.False(t, (&File{DeletionScheduledAt: &past}).DueForDeletion(now))
	assert.True(t, (&File{MarkedForDeletion: true, DeletionScheduledAt: &past}).DueForDeletion(now))
	assert.True(t, (&File{MarkedForDeletion: true, DeletionScheduledAt: &now}).DueForDeletion(now))
	assert.False(t, (&File{MarkedForDeletion: true, DeletionScheduledAt: &future}).DueForDeletion(now))
}

func TestFileQuery_Apply(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	files := []*File{
		{ID: "a", OwnerID: "x", Title: "Beach", CreatedAt: base},
		{ID: "b", OwnerID: "y", Title: "beach party", CreatedAt: base.Add(time.Hour)},
		{ID: "c", OwnerID: "y", Title: "Taxes", CreatedAt: base.Add(time.Hour)},
		{ID: "d", OwnerID: "z", Title: "beach", CreatedAt: base.Add(2 * time.Hour)},
	}

	q := &FileQuery{TitleContains: "BEACH", ExcludeOwners: []string{"z"}}
	got := q.Apply(files)
	assert.Equal(t, []string{"b", "a"}, ids(got))

	// Equal timestamps break ties by descending ID.
	q = &FileQuery{OwnerIn: []string{"y"}}
	assert.Equal(t, []string{"c", "b"}, ids(q.Apply(files)))

	q = &FileQuery{OwnerIn: []string{}}
	assert.Empty(t, q.Apply(files))

	q = &FileQuery{Limit: 1}
	assert.Equal(t, []string{"d"}, ids(q.Apply(files)))
}

func TestUserQuery_Matches(t *testing.T) {
	u := &User{ID: "1", Username: "alice", DisplayName: "Alice Liddell"}

	assert.True(t, (&UserQuery{Text: "lid"}).Matches(u))
	assert.True(t, (&UserQuery{Text: "ALICE", Exact: true}).Matches(u))
	assert.False(t, (&UserQuery{Text: "ali", Exact: true}).Matches(u))
	assert.True(t, (&UserQuery{Text: "alice liddell", Exact: true}).Matches(u))
	assert.False(t, (&UserQuery{Text: "liddell", Exact: true}).Matches(u))
	assert.False(t, (&UserQuery{ExcludeIDs: []string{"1"}}).Matches(u))
}

func ids(files []*File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.ID
	}
	return out
}
