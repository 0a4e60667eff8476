package entropy

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
)

// StreamVersion names the deterministic byte-expansion algorithm:
// ChaCha20 keyed by a 32-byte seed with an all-zero 12-byte nonce, the
// keystream read as-is. Identity recovery depends on this exact stream,
// so the algorithm must never change under the same version string.
const StreamVersion = "nonmsg/keygen/v1"

var ErrSeedSize = errors.New("stream seed must be 32 bytes")

// Source yields random or deterministically expanded bytes. Components
// take it as an explicit handle so tests can substitute a fixed-seed
// stream while production paths keep the system CSPRNG.
type Source interface {
	io.Reader
}

type systemSource struct{}

// System returns the process-wide CSPRNG. A failed read surfaces as an
// error; there is never a fallback to a weaker source.
func System() Source {
	return systemSource{}
}

func (systemSource) Read(p []byte) (int, error) {
	if _, err := io.ReadFull(rand.Reader, p); err != nil {
		return 0, fmt.Errorf("system entropy unavailable: %w", err)
	}
	return len(p), nil
}

// Bytes reads exactly n fresh bytes from src.
func Bytes(src Source, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(src, out); err != nil {
		return nil, err
	}
	return out, nil
}

type stream struct {
	cipher *chacha20.Cipher
}

// NewStream returns the versioned deterministic expansion stream for a
// 32-byte seed. Same seed, same byte sequence, forever.
func NewStream(seed []byte) (Source, error) {
	if len(seed) != chacha20.KeySize {
		return nil, ErrSeedSize
	}
	c, err := chacha20.NewUnauthenticatedCipher(seed, make([]byte, chacha20.NonceSize))
	if err != nil {
		return nil, err
	}
	return &stream{cipher: c}, nil
}

func (s *stream) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	s.cipher.XORKeyStream(p, p)
	return len(p), nil
}
