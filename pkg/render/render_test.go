package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"None", "hello world", nil},
		{"Single", "hi @alice!", []string{"alice"}},
		{"Unique", "@bob and @alice and @bob", []string{"bob", "alice"}},
		{"Underscore", "cc @john_doe2", []string{"john_doe2"}},
		{"StopsAtPunctuation", "@carol, @dave.", []string{"carol", "dave"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mentions(tt.text))
		})
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := NewMarkdown()

	out := r.Render("**bold** text")
	assert.Contains(t, out, "<strong>bold</strong>")

	out = r.Render("line one\nline two")
	assert.Contains(t, out, "<br")
}

func TestRenderLinksMentions(t *testing.T) {
	r := NewMarkdown()
	out := r.Render("thanks @alice")
	assert.Contains(t, out, `href="/users/alice"`)
	assert.Contains(t, out, "@alice</a>")
}

func TestRenderSanitizes(t *testing.T) {
	r := NewMarkdown()

	out := r.Render("<script>alert(1)</script>hi")
	assert.NotContains(t, out, "<script")

	out = r.Render("[x](javascript:alert(1))")
	assert.NotContains(t, out, "javascript:")

	out = r.Render(`<img src="x" onerror="alert(1)">`)
	assert.NotContains(t, out, "onerror")
}

func TestRenderStrikethrough(t *testing.T) {
	out := NewMarkdown().Render("~~gone~~")
	assert.Contains(t, out, "<del>gone</del>")
}
