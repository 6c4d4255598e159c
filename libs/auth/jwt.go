package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// Claims is the subset of registered claims the poll service reads. Sub is the
// user id patterns are stored under.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name,omitempty"`
	Exp  int64  `json:"exp,omitempty"`
	Iat  int64  `json:"iat,omitempty"`
}

type Header struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	Kid string `json:"kid,omitempty"`
}

type segments struct {
	header, payload, signature string
}

func (s segments) signed() string { return s.header + "." + s.payload }

func split(token string) (segments, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return segments{}, ErrInvalidToken
	}
	return segments{parts[0], parts[1], parts[2]}, nil
}

func ParseHeader(token string) (*Header, error) {
	seg, err := split(token)
	if err != nil {
		return nil, err
	}
	var h Header
	if err := decodeSegment(seg.header, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func SignHS256(claims Claims, secret string) (string, error) {
	header, err := encodeSegment(Header{Alg: "HS256", Typ: "JWT"})
	if err != nil {
		return "", err
	}
	payload, err := encodeSegment(claims)
	if err != nil {
		return "", err
	}
	seg := segments{header: header, payload: payload}
	return seg.signed() + "." + hmacSHA256(seg.signed(), secret), nil
}

// VerifyHS256 checks the HMAC signature and expiry relative to now.
func VerifyHS256(token, secret string, now time.Time) (*Claims, error) {
	seg, err := split(token)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(seg.signature), []byte(hmacSHA256(seg.signed(), secret))) {
		return nil, ErrInvalidToken
	}
	return claimsFrom(seg, now)
}

func VerifyRS256(token string, key *rsa.PublicKey, now time.Time) (*Claims, error) {
	seg, err := split(token)
	if err != nil {
		return nil, err
	}
	sig, err := base64.RawURLEncoding.DecodeString(seg.signature)
	if err != nil {
		return nil, ErrInvalidToken
	}
	sum := sha256.Sum256([]byte(seg.signed()))
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA256, sum[:], sig); err != nil {
		return nil, ErrInvalidToken
	}
	return claimsFrom(seg, now)
}

func claimsFrom(seg segments, now time.Time) (*Claims, error) {
	var c Claims
	if err := decodeSegment(seg.payload, &c); err != nil {
		return nil, err
	}
	if c.Sub == "" {
		return nil, ErrInvalidToken
	}
	if c.Exp > 0 && now.Unix() > c.Exp {
		return nil, ErrTokenExpired
	}
	return &c, nil
}

func hmacSHA256(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func encodeSegment(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeSegment(seg string, dst any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return ErrInvalidToken
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrInvalidToken
	}
	return nil
}
