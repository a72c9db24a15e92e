package sandbox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenLength is the number of hex characters in a Token.
const TokenLength = 32

// Token is the per-instance namespace secret: 128 bits of entropy as
// lowercase hex. Every placeholder an instance defines or references
// embeds its token, so holding the token is what ties generated runtime
// code to transformed application code.
type Token string

// NewToken draws fresh entropy from the platform CSPRNG. It is total:
// an unreadable entropy source is unrecoverable and panics.
func NewToken() Token {
	buf := make([]byte, TokenLength/2)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("sandbox: entropy source unavailable: %v", err))
	}
	return Token(hex.EncodeToString(buf))
}

// ParseToken validates an externally supplied token string.
func ParseToken(s string) (Token, error) {
	if !isTokenString(s) {
		return "", fmt.Errorf("%w: got %q", ErrInvalidToken, s)
	}
	return Token(s), nil
}

func isTokenString(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func (t Token) String() string { return string(t) }

// Short returns an 8-character prefix for log fields. Full tokens stay
// out of logs: the value is the isolation secret.
func (t Token) Short() string {
	if len(t) < 8 {
		return string(t)
	}
	return string(t[:8])
}

// Valid reports whether t has the generated shape (32 lowercase hex).
func (t Token) Valid() bool { return isTokenString(string(t)) }
