// Package ids generates identifiers and bearer secrets.
//
// Short IDs are human-shareable object identifiers; their uniqueness is
// enforced by the metadata store, so callers must regenerate on collision.
// Secrets (deletion keys, upload tokens) are longer hex strings.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/segmentio/ksuid"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// largest multiple of len(alphabet) that fits in a byte; bytes at or above it are rejected.
const rejectAbove = 256 - 256%len(alphabet)

var ErrInvalidLength = errors.New("ids: length must be positive")

// New returns a time-ordered unique identifier for internal records such as purge jobs.
func New() string {
	return ksuid.New().String()
}

// ShortID returns length base62 characters read from crypto/rand.
func ShortID(length int) (string, error) {
	return shortID(rand.Reader, length)
}

// Secret returns n random bytes hex-encoded, 2n characters wide.
func Secret(n int) (string, error) {
	return secret(rand.Reader, n)
}

func shortID(src io.Reader, length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(out) < length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= rejectAbove {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

func secret(src io.Reader, n int) (string, error) {
	if n <= 0 {
		return "", ErrInvalidLength
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Generator produces short IDs and secrets with fixed configured lengths.
type Generator struct {
	ShortIDLength int
	SecretBytes   int
}

func NewGenerator(shortIDLength, secretBytes int) Generator {
	return Generator{ShortIDLength: shortIDLength, SecretBytes: secretBytes}
}

func (g Generator) ShortID() (string, error) {
	return ShortID(g.ShortIDLength)
}

func (g Generator) Secret() (string, error) {
	return Secret(g.SecretBytes)
}
