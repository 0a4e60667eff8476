// Package identity produces the RSA key pairs behind every account:
// randomly for the baseline device identity, deterministically from word
// phrases for recoverable and shareable identities.
package identity

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/wordphrase"
	"nonmessenger/go-backend/pkg/models"
)

const (
	// RandomKeyBits is the strength of a freshly generated device identity.
	RandomKeyBits = 4096
	// ContactKeyBits is the 8-word tier. Weaker on purpose: contact keys
	// cover the initial exchange only, never long-term secrecy.
	ContactKeyBits = 2048
	// FullKeyBits is the 16-word tier, full strength reproducible from
	// memorized words alone.
	FullKeyBits = 4096
)

var ErrInvalidWordCount = errors.New("wrong number of words for key tier")

// GenerateRandom produces a 4096-bit key pair from src. This is the most
// expensive operation in the core; keep it off latency-sensitive paths.
func GenerateRandom(src entropy.Source) (models.KeyPair, error) {
	priv, err := rsa.GenerateKey(src, RandomKeyBits)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("generate identity key: %w", err)
	}
	return EncodeKeyPair(priv)
}

// FromContactPhrase derives the 2048-bit contact-tier key pair from an
// 8-word code. Same words in, same key out.
func FromContactPhrase(words []string) (models.KeyPair, error) {
	if len(words) != wordphrase.ContactWordCount {
		return models.KeyPair{}, fmt.Errorf("%w: contact code needs %d words, got %d",
			ErrInvalidWordCount, wordphrase.ContactWordCount, len(words))
	}
	return fromPhrase(words, ContactKeyBits)
}

// FromFullPhrase derives the 4096-bit key pair from the full 16-word
// phrase.
func FromFullPhrase(words []string) (models.KeyPair, error) {
	if len(words) != wordphrase.FullWordCount {
		return models.KeyPair{}, fmt.Errorf("%w: full recovery needs %d words, got %d",
			ErrInvalidWordCount, wordphrase.FullWordCount, len(words))
	}
	return fromPhrase(words, FullKeyBits)
}

func fromPhrase(words []string, bits int) (models.KeyPair, error) {
	seed, err := wordphrase.DeriveSeed(words)
	if err != nil {
		return models.KeyPair{}, err
	}
	defer zeroBytes(seed)

	stream, err := entropy.NewStream(seed)
	if err != nil {
		return models.KeyPair{}, err
	}
	priv, err := generateDeterministicKey(stream, bits)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("deterministic key generation: %w", err)
	}
	return EncodeKeyPair(priv)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
