package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123"

func TestMintAndVerify(t *testing.T) {
	a := NewAuthenticator(secret, "dock-relay")

	token, err := a.Mint("operator-1", time.Hour)
	require.NoError(t, err)

	sub, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", sub)
}

func TestVerifyRejects(t *testing.T) {
	a := NewAuthenticator(secret, "dock-relay")

	other, err := NewAuthenticator("another-secret-value", "dock-relay").Mint("x", time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewAuthenticator(secret, "someone-else").Mint("x", time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	past := NewAuthenticator(secret, "dock-relay")
	past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := past.Mint("x", time.Hour)
	require.NoError(t, err)
	_, err = a.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Mint("", time.Hour)
	assert.Error(t, err)
}

func TestFromHeader(t *testing.T) {
	tok, err := FromHeader("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	tok, err = FromHeader("bearer   abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	for _, h := range []string{"", "abc", "Basic abc", "Bearer "} {
		_, err := FromHeader(h)
		assert.ErrorIs(t, err, ErrMissingToken, h)
	}
}
