package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	tk := Tokens{Secret: []byte("test-secret")}
	token := tk.Sign("athlete-123", time.Now().Add(time.Hour))

	subject, err := tk.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "athlete-123", subject)
}

func TestVerifyExpired(t *testing.T) {
	tk := Tokens{Secret: []byte("test-secret")}
	token := tk.Sign("athlete-123", time.Now().Add(-time.Minute))

	_, err := tk.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	tk := Tokens{Secret: []byte("test-secret")}
	token := tk.Sign("athlete-123", time.Now().Add(time.Hour))

	other := Tokens{Secret: []byte("other-secret")}
	_, err := other.Verify(token)
	require.ErrorIs(t, err, ErrBadSig)
}

func TestVerifyMalformed(t *testing.T) {
	tk := Tokens{Secret: []byte("test-secret")}
	for _, tok := range []string{"", "one-part", "a.b.c", "!!!.###"} {
		_, err := tk.Verify(tok)
		require.Error(t, err, tok)
	}
}
