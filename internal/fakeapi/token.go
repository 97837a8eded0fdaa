package fakeapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	errInvalidToken = errors.New("fakeapi: invalid token")
	errExpiredToken = errors.New("fakeapi: token is expired")
)

// claims carried by issued access tokens. Generation lets the server revoke
// every token issued so far.
type claims struct {
	Subject    string `json:"sub"`
	ExpiresAt  int64  `json:"exp"`
	IssuedAt   int64  `json:"iat"`
	Generation int    `json:"gen"`
}

// signer issues and verifies HS256 tokens.
type signer struct {
	key []byte
}

var tokenHeader = b64(mustJSON(map[string]string{"typ": "JWT", "alg": "HS256"}))

func (s signer) issue(c claims) string {
	payload := tokenHeader + "." + b64(mustJSON(c))
	return payload + "." + s.sign(payload)
}

func (s signer) verify(token string, now time.Time) (claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != tokenHeader {
		return claims{}, errInvalidToken
	}
	expected := s.sign(parts[0] + "." + parts[1])
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return claims{}, errInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return claims{}, errInvalidToken
	}
	var c claims
	if err := json.Unmarshal(raw, &c); err != nil {
		return claims{}, errInvalidToken
	}
	if c.ExpiresAt > 0 && now.Unix() > c.ExpiresAt {
		return claims{}, errExpiredToken
	}
	return c, nil
}

func (s signer) sign(payload string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(payload))
	return b64(h.Sum(nil))
}

func b64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
