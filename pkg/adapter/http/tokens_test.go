package httpadapter

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/mozaichub/pkg/metadata"
)

func newTestTokens(now time.Time) *tokens {
	tk := newTokens(TokenConfig{Secret: []byte(testSecret), TTL: time.Hour})
	tk.now = func() time.Time { return now }
	return tk
}

func TestTokens_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tk := newTestTokens(now)

	raw, exp, err := tk.Issue(&metadata.User{ID: "u1", Role: metadata.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), exp)

	claims, err := tk.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, metadata.RoleAdmin, claims.Role)
}

func TestTokens_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tk := newTestTokens(now)

	raw, _, err := tk.Issue(&metadata.User{ID: "u1", Role: metadata.RoleUser})
	require.NoError(t, err)

	tk.now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = tk.Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokens_WrongSecret(t *testing.T) {
	now := time.Now()
	raw, _, err := newTestTokens(now).Issue(&metadata.User{ID: "u1"})
	require.NoError(t, err)

	other := newTokens(TokenConfig{Secret: []byte("ffffffffffffffffffffffffffffffff"), TTL: time.Hour})
	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestTokens_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTokens(TokenConfig{Secret: []byte(testSecret), TTL: time.Hour}).Verify(raw)
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer   abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bearerToken(tt.header), "header %q", tt.header)
	}
}
