// Package crypto implements the hybrid message cipher: each message is
// sealed under a fresh AES-256-GCM key, and that key travels wrapped
// under the recipient's RSA public key with OAEP/SHA-256.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/identity"
	"nonmessenger/go-backend/pkg/models"
)

const (
	// SessionKeySize is the symmetric key size for messages and voice
	// session bootstrap alike.
	SessionKeySize = 32

	nonceSize = 12
	tagSize   = 16
)

var (
	// ErrDecryptionFailed covers both key-unwrap failure and auth-tag
	// mismatch. The two are intentionally indistinguishable so a caller
	// relaying attacker-controlled ciphertext cannot be used as an
	// oracle.
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidEncoding  = errors.New("decrypted payload is not valid text")
	ErrCryptoFailure    = errors.New("crypto operation failed")
)

// Encrypt seals plaintext for the holder of recipientPublicKeyPEM. The
// symmetric key and nonce are drawn fresh on every call; neither can be
// supplied by the caller. On the wire the GCM tag travels separately
// from the ciphertext; the two fields are one cipherText‖tag buffer
// split at the last 16 bytes.
func Encrypt(src entropy.Source, plaintext, recipientPublicKeyPEM string) (models.EncryptedMessage, error) {
	pub, err := identity.ParsePublicKey(recipientPublicKeyPEM)
	if err != nil {
		return models.EncryptedMessage{}, err
	}

	key, err := entropy.Bytes(src, SessionKeySize)
	if err != nil {
		return models.EncryptedMessage{}, fmt.Errorf("draw message key: %w", err)
	}
	defer zeroBytes(key)
	nonce, err := entropy.Bytes(src, nonceSize)
	if err != nil {
		return models.EncryptedMessage{}, fmt.Errorf("draw nonce: %w", err)
	}

	aead, err := newGCM(key)
	if err != nil {
		return models.EncryptedMessage{}, err
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)

	wrapped, err := wrapWithKey(src, key, pub)
	if err != nil {
		return models.EncryptedMessage{}, err
	}

	split := len(sealed) - tagSize
	return models.EncryptedMessage{
		EncryptedMessage: base64.StdEncoding.EncodeToString(sealed[:split]),
		EncryptedKey:     base64.StdEncoding.EncodeToString(wrapped),
		IV:               base64.StdEncoding.EncodeToString(nonce),
		AuthTag:          base64.StdEncoding.EncodeToString(sealed[split:]),
	}, nil
}

// Decrypt reverses Encrypt. The tag is re-appended to the ciphertext
// before the AEAD open, and no plaintext is released unless the tag
// verifies. Valid decryption with a non-text payload is reported as
// ErrInvalidEncoding, distinct from ErrDecryptionFailed.
func Decrypt(msg models.EncryptedMessage, privateKeyPEM string) (string, error) {
	priv, err := identity.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}

	ciphertext, err := decodeField("encryptedMessage", msg.EncryptedMessage)
	if err != nil {
		return "", err
	}
	wrapped, err := decodeField("encryptedKey", msg.EncryptedKey)
	if err != nil {
		return "", err
	}
	nonce, err := decodeField("iv", msg.IV)
	if err != nil {
		return "", err
	}
	tag, err := decodeField("authTag", msg.AuthTag)
	if err != nil {
		return "", err
	}
	if len(nonce) != nonceSize || len(tag) != tagSize {
		return "", ErrDecryptionFailed
	}

	key, err := unwrapWithKey(wrapped, priv)
	if err != nil {
		return "", err
	}
	defer zeroBytes(key)

	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}
	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	if !utf8.Valid(plaintext) {
		zeroBytes(plaintext)
		return "", ErrInvalidEncoding
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return aead, nil
}

func decodeField(name, value string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: field %s is not valid base64", ErrCryptoFailure, name)
	}
	return raw, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
