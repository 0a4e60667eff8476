package identity

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"nonmessenger/go-backend/pkg/models"
)

const (
	publicPEMType  = "PUBLIC KEY"
	privatePEMType = "PRIVATE KEY"
)

var ErrInvalidKeyPEM = errors.New("invalid key PEM")

// EncodeKeyPair renders a private key as the wire KeyPair: SPKI PEM for
// the public half, PKCS#8 PEM for the private half.
func EncodeKeyPair(priv *rsa.PrivateKey) (models.KeyPair, error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("marshal public key: %w", err)
	}
	return models.KeyPair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: privDER})),
	}, nil
}

// ParsePublicKey decodes an SPKI PEM string into an RSA public key.
func ParsePublicKey(pemText string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil || block.Type != publicPEMType {
		return nil, ErrInvalidKeyPEM
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyPEM, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKeyPEM)
	}
	return pub, nil
}

// ParsePrivateKey decodes a PKCS#8 PEM string into an RSA private key.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemText))
	if block == nil || block.Type != privatePEMType {
		return nil, ErrInvalidKeyPEM
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyPEM, err)
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKeyPEM)
	}
	return priv, nil
}
