// Package tokengen produces opaque refresh token values: 32 bytes from a
// cryptographically secure source rendered as 64 lowercase hex characters.
package tokengen

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const (
	// ByteLength is the amount of entropy in every token.
	ByteLength = 32
	// TokenLength is the encoded length of every token.
	TokenLength = ByteLength * 2
)

var ErrTokenGenerationFailed = errors.New("failed to generate secure token")

type Generator struct {
	reader io.Reader
}

func New() *Generator {
	return &Generator{reader: rand.Reader}
}

// NewWithReader is used by tests to inject a failing or deterministic source.
func NewWithReader(r io.Reader) *Generator {
	return &Generator{reader: r}
}

func (g *Generator) Generate() (string, error) {
	buf := make([]byte, ByteLength)
	if _, err := io.ReadFull(g.reader, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGenerationFailed, err)
	}
	return hex.EncodeToString(buf), nil
}

// MustGenerate panics if the random source fails.
func (g *Generator) MustGenerate() string {
	token, err := g.Generate()
	if err != nil {
		panic(err)
	}
	return token
}

// IsWellFormed reports whether s has the shape of a generated token. It lets
// callers reject garbage without a store round trip.
func IsWellFormed(s string) bool {
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
