package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrMissingSecret = errors.New("grant secret is not configured")
)

const (
	payloadSize   = 16 // 8 bytes expiry + 8 random bytes
	signatureSize = 16
)

// TokenSigner issues short-lived grant tokens proving that a requester passed
// the gate for one record. Tokens are bound to a scope such as "list:ab12cd".
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner returns a signer that issues compact HMAC tokens.
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: secret, ttl: ttl, now: time.Now}
}

// Scope renders the binding for a record kind and short code.
func Scope(kind, code string) string {
	return kind + ":" + code
}

// Issue mints a token for scope.
func (s *TokenSigner) Issue(scope string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrMissingSecret
	}

	payload := make([]byte, payloadSize)
	binary.BigEndian.PutUint64(payload[:8], uint64(s.now().Add(s.ttl).Unix()))
	if _, err := rand.Read(payload[8:]); err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	return enc.EncodeToString(payload) + "." + enc.EncodeToString(s.sign(scope, payload)), nil
}

// Validate checks the signature, scope and expiry of token.
func (s *TokenSigner) Validate(scope, token string) error {
	if len(s.secret) == 0 {
		return ErrMissingSecret
	}

	encPayload, encSig, ok := strings.Cut(token, ".")
	if !ok {
		return ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil || len(payload) != payloadSize {
		return ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil || !hmac.Equal(sig, s.sign(scope, payload)) {
		return ErrInvalidToken
	}

	expires := int64(binary.BigEndian.Uint64(payload[:8]))
	if s.now().Unix() > expires {
		return ErrInvalidToken
	}
	return nil
}

func (s *TokenSigner) sign(scope string, payload []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(scope))
	mac.Write([]byte{0})
	mac.Write(payload)
	return mac.Sum(nil)[:signatureSize]
}
