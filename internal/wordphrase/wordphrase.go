// Package wordphrase generates and parses the word codes used for
// contact sharing and identity recovery, and derives the 32-byte seed
// that deterministic key generation is built on.
//
// Phrase encoding "nonmsg/phrase/v1": every 8-word group packs 10 bytes
// of entropy followed by the first 8 bits of SHA-256 over that entropy,
// big-endian, into 11-bit indices into the BIP39 English wordlist. A
// 16-word phrase is two such groups back to back, each carrying its own
// checksum, so the contact code and the secret code concatenate into a
// valid full-recovery phrase. The derived seed is the standard BIP39
// seed of the joined phrase (empty passphrase) stretched with
// PBKDF2-HMAC-SHA256 under a fixed application salt.
package wordphrase

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"nonmessenger/go-backend/internal/entropy"
)

const (
	// ContactWordCount is the public contact-code tier.
	ContactWordCount = 8
	// FullWordCount is the full recoverable-identity tier.
	FullWordCount = 16

	// DerivedSeedSize is the fixed output size of DeriveSeed.
	DerivedSeedSize = 32

	wordBits     = 11
	checksumBits = 8

	// groupEntropyBytes is the entropy behind one 8-word group.
	groupEntropyBytes = (ContactWordCount*wordBits - checksumBits) / 8

	// The salt and iteration count are part of the recovery contract.
	// Changing either orphans every identity derived so far.
	seedSalt       = "nonmessenger-salt"
	seedIterations = 100_000
)

var (
	ErrInvalidWordCount = errors.New("phrase must be exactly 8 or 16 words")
	ErrInvalidPhrase    = errors.New("invalid phrase")
)

var (
	dictionary = bip39.GetWordList()
	wordIndex  = buildWordIndex()
)

func buildWordIndex() map[string]int {
	idx := make(map[string]int, len(dictionary))
	for i, w := range dictionary {
		idx[w] = i
	}
	return idx
}

// Generate draws fresh entropy from src and encodes it as wordCount
// dictionary words. Each call draws independently; no state is carried
// between calls.
func Generate(src entropy.Source, wordCount int) ([]string, error) {
	entropyLen, err := entropyLenFor(wordCount)
	if err != nil {
		return nil, err
	}
	raw, err := entropy.Bytes(src, entropyLen)
	if err != nil {
		return nil, fmt.Errorf("draw phrase entropy: %w", err)
	}
	defer zeroBytes(raw)

	words := make([]string, 0, wordCount)
	for off := 0; off < len(raw); off += groupEntropyBytes {
		words = append(words, encodeGroup(raw[off:off+groupEntropyBytes])...)
	}
	return words, nil
}

// Validate checks that every word is in the dictionary and each 8-word
// group's trailing checksum matches its entropy. Words are compared
// case- and whitespace-insensitively; the input is not modified.
func Validate(words []string) error {
	raw, err := parseEntropy(normalizeWords(words))
	if err != nil {
		return err
	}
	zeroBytes(raw)
	return nil
}

// DeriveSeed turns a valid phrase into the 32-byte deterministic seed.
// Same words, same output, forever.
func DeriveSeed(words []string) ([]byte, error) {
	normalized := normalizeWords(words)
	raw, err := parseEntropy(normalized)
	if err != nil {
		return nil, err
	}
	zeroBytes(raw)

	intermediate := bip39.NewSeed(strings.Join(normalized, " "), "")
	defer zeroBytes(intermediate)
	return pbkdf2.Key(intermediate, []byte(seedSalt), seedIterations, DerivedSeedSize, sha256.New), nil
}

func entropyLenFor(wordCount int) (int, error) {
	switch wordCount {
	case ContactWordCount, FullWordCount:
		return wordCount / ContactWordCount * groupEntropyBytes, nil
	default:
		return 0, ErrInvalidWordCount
	}
}

func normalizeWords(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(strings.TrimSpace(w))
	}
	return out
}

func encodeGroup(raw []byte) []string {
	sum := sha256.Sum256(raw)
	acc := new(big.Int).SetBytes(raw)
	acc.Lsh(acc, checksumBits)
	acc.Or(acc, big.NewInt(int64(sum[0])))

	mask := big.NewInt(1<<wordBits - 1)
	idx := new(big.Int)

	words := make([]string, ContactWordCount)
	for i := ContactWordCount - 1; i >= 0; i-- {
		idx.And(acc, mask)
		words[i] = dictionary[idx.Int64()]
		acc.Rsh(acc, wordBits)
	}
	return words
}

// parseEntropy expects normalized words and returns the concatenated
// group entropies.
func parseEntropy(words []string) ([]byte, error) {
	entropyLen, err := entropyLenFor(len(words))
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, entropyLen)
	for off := 0; off < len(words); off += ContactWordCount {
		group, err := parseGroup(words[off:off+ContactWordCount], off)
		if err != nil {
			zeroBytes(raw)
			return nil, err
		}
		raw = append(raw, group...)
	}
	return raw, nil
}

func parseGroup(words []string, base int) ([]byte, error) {
	acc := new(big.Int)
	for i, w := range words {
		idx, ok := wordIndex[w]
		if !ok {
			return nil, fmt.Errorf("%w: word %d is not in the dictionary", ErrInvalidPhrase, base+i+1)
		}
		acc.Lsh(acc, wordBits)
		acc.Or(acc, big.NewInt(int64(idx)))
	}

	checksum := byte(new(big.Int).And(acc, big.NewInt(0xff)).Int64())
	acc.Rsh(acc, checksumBits)
	raw := make([]byte, groupEntropyBytes)
	acc.FillBytes(raw)

	sum := sha256.Sum256(raw)
	if sum[0] != checksum {
		zeroBytes(raw)
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidPhrase)
	}
	return raw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
