// Package authgateway implements C8: the OAuth 2.0 authorization-code login
// flow and the signed, opaque session cookie that carries the resulting
// principal across requests.
//
// Grounded on the original FastAPI+authlib Google OAuth flow, reimplemented
// on golang.org/x/oauth2: the authorization URL, the code-for-token exchange
// and the userinfo fetch all go through oauth2.Config (see oauth.go).
package authgateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// signer HMAC-signs opaque session ids for the cookie value, so a cookie can
// be verified without a store lookup before the store lookup even happens
// (cheap rejection of forged ids). The store lookup still governs whether
// the session is live; the signature only proves the id wasn't tampered with.
type signer struct {
	secret []byte
}

func newSigner(secret string) *signer {
	return &signer{secret: []byte(secret)}
}

// sign returns "<sessionID>.<hexHMAC>" for use as the cookie value.
func (s *signer) sign(sessionID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sessionID))
	return sessionID + "." + hex.EncodeToString(mac.Sum(nil))
}

// verify extracts and validates a signed cookie value, returning the
// session id if the signature matches.
func (s *signer) verify(cookieValue string) (string, error) {
	idx := lastIndexByte(cookieValue, '.')
	if idx < 0 {
		return "", errors.New("malformed session cookie")
	}
	sessionID, sig := cookieValue[:idx], cookieValue[idx+1:]

	expectedMAC := hmac.New(sha256.New, s.secret)
	expectedMAC.Write([]byte(sessionID))
	expected := hex.EncodeToString(expectedMAC.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", errors.New("session cookie signature mismatch")
	}
	return sessionID, nil
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// randomToken returns a URL-safe, cryptographically random token of n raw
// bytes, used for both session ids and OAuth state values.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
