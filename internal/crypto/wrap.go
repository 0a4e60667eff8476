package crypto

import (
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/identity"
)

// The standalone wrap primitives exist so the voice-session bootstrap
// can exchange a per-call key without going through the message cipher.
// They are the exact OAEP/SHA-256 operation Encrypt and Decrypt use.

// NewSessionKey draws a fresh 256-bit symmetric key.
func NewSessionKey(src entropy.Source) ([]byte, error) {
	key, err := entropy.Bytes(src, SessionKeySize)
	if err != nil {
		return nil, fmt.Errorf("draw session key: %w", err)
	}
	return key, nil
}

// WrapKey protects a symmetric key under the recipient's public key.
func WrapKey(src entropy.Source, key []byte, recipientPublicKeyPEM string) ([]byte, error) {
	pub, err := identity.ParsePublicKey(recipientPublicKeyPEM)
	if err != nil {
		return nil, err
	}
	return wrapWithKey(src, key, pub)
}

// UnwrapKey recovers a wrapped symmetric key with the private key. Any
// failure is ErrDecryptionFailed; the caller learns nothing about why.
func UnwrapKey(wrapped []byte, privateKeyPEM string) ([]byte, error) {
	priv, err := identity.ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return unwrapWithKey(wrapped, priv)
}

func wrapWithKey(src entropy.Source, key []byte, pub *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), src, pub, key, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoFailure, err)
	}
	return wrapped, nil
}

func unwrapWithKey(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), nil, priv, wrapped, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(key) != SessionKeySize {
		zeroBytes(key)
		return nil, ErrDecryptionFailed
	}
	return key, nil
}
