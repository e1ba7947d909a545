package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", "careslot", time.Hour)

	want := Identity{
		ID:    uuid.New(),
		Name:  "Pat Example",
		Email: "pat@example.com",
		Role:  "patient",
	}

	token, err := tm.Issue(want)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", "careslot", time.Hour)
	verifier := NewTokenManager("secret-b", "careslot", time.Hour)

	token, err := issuer.Issue(Identity{ID: uuid.New(), Role: "patient"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	issuer := NewTokenManager("test-secret", "someone-else", time.Hour)
	verifier := NewTokenManager("test-secret", "careslot", time.Hour)

	token, err := issuer.Issue(Identity{ID: uuid.New(), Role: "provider"})
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager("test-secret", "careslot", -time.Minute)

	token, err := tm.Issue(Identity{ID: uuid.New(), Role: "patient"})
	require.NoError(t, err)

	_, err = tm.Verify(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", "careslot", time.Hour)

	_, err := tm.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
