// Package auth issues and verifies API bearer tokens. Tokens are
// HMAC-signed payload.sig pairs carrying the athlete id and an expiry;
// there is no server-side session state.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

type Tokens struct {
	Secret []byte
}

var (
	ErrBadToken   = errors.New("bad token")
	ErrBadSig     = errors.New("invalid signature")
	ErrExpired    = errors.New("expired")
	ErrBadPayload = errors.New("bad payload")
)

// Sign produces a bearer token for the subject, valid until exp.
func (t Tokens) Sign(subject string, exp time.Time) string {
	msg := subject + "|" + strconv.FormatInt(exp.Unix(), 10)
	mac := hmac.New(sha256.New, t.Secret)
	mac.Write([]byte(msg))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	payload := base64.URLEncoding.EncodeToString([]byte(msg))
	return payload + "." + sig
}

// decodeURLB64 tries raw (no padding) then padded
func decodeURLB64(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}

// Verify checks signature and expiry and returns the subject.
func (t Tokens) Verify(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return "", ErrBadToken
	}
	payload, sig := parts[0], parts[1]

	raw, err := decodeURLB64(payload)
	if err != nil {
		return "", ErrBadToken
	}

	mac := hmac.New(sha256.New, t.Secret)
	mac.Write(raw)
	expectedRaw := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	expectedPad := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(sig), []byte(expectedRaw)) && !hmac.Equal([]byte(sig), []byte(expectedPad)) {
		return "", ErrBadSig
	}

	fields := strings.SplitN(string(raw), "|", 2)
	if len(fields) != 2 {
		return "", ErrBadPayload
	}
	subject := strings.TrimSpace(fields[0])
	ts, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || subject == "" {
		return "", ErrBadPayload
	}
	if time.Now().After(time.Unix(ts, 0)) {
		return "", ErrExpired
	}
	return subject, nil
}
