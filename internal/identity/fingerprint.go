package identity

import (
	"encoding/pem"

	"github.com/mr-tron/base58/base58"
	"golang.org/x/crypto/blake2b"
)

const contactIDPrefix = "nm1"

// BuildContactID derives the short shareable fingerprint of a public
// key: blake2b-256 over the SPKI DER, base58 encoded with a fixed
// prefix. Stable for the lifetime of the key.
func BuildContactID(publicKeyPEM string) (string, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil || block.Type != publicPEMType {
		return "", ErrInvalidKeyPEM
	}
	h := blake2b.Sum256(block.Bytes)
	return contactIDPrefix + base58.Encode(h[:]), nil
}

// VerifyContactID reports whether id is the fingerprint of the key.
func VerifyContactID(id, publicKeyPEM string) (bool, error) {
	expected, err := BuildContactID(publicKeyPEM)
	if err != nil {
		return false, err
	}
	return id == expected, nil
}
