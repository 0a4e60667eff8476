// Package securestore packs the local key profile (word codes, key pair,
// device id) into a passphrase-protected envelope so key material only
// leaves the device encrypted. The envelope is a value; nothing here
// touches disk.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "NMKEY1\n"
)

var (
	ErrAuthFailed         = errors.New("export authentication failed")
	ErrInvalid            = errors.New("export envelope is invalid")
	ErrPassphraseRequired = errors.New("passphrase is required")
)

// Profile is the exported shape of one local identity, mirroring what
// the application keeps for the account owner.
type Profile struct {
	Version     string   `json:"version"`
	ContactCode []string `json:"contact_code"`
	SecretWords []string `json:"secret_words"`
	PublicKey   string   `json:"public_key"`
	PrivateKey  string   `json:"private_key"`
	DeviceID    string   `json:"device_id"`
	CreatedAt   int64    `json:"created_at"`
}

type envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// ExportProfile seals the profile under the passphrase.
func ExportProfile(passphrase string, p Profile) ([]byte, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	plaintext, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(plaintext)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	env := envelope{
		Version:     envelopeVersion,
		KDF:         "argon2id",
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

// ImportProfile opens a sealed export. A wrong passphrase and a damaged
// envelope both surface as ErrAuthFailed.
func ImportProfile(passphrase string, data []byte) (Profile, error) {
	if strings.TrimSpace(passphrase) == "" {
		return Profile{}, ErrPassphraseRequired
	}
	if !strings.HasPrefix(string(data), filePrefix) {
		return Profile{}, ErrInvalid
	}
	var env envelope
	if err := json.Unmarshal(data[len(filePrefix):], &env); err != nil {
		return Profile{}, ErrInvalid
	}
	if env.Version != envelopeVersion || env.KDF != "argon2id" {
		return Profile{}, ErrInvalid
	}

	key := deriveKey(passphrase, env.Salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return Profile{}, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return Profile{}, ErrAuthFailed
	}
	defer zeroBytes(plaintext)

	var p Profile
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return Profile{}, ErrInvalid
	}
	return p, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 2, 64*1024, 1, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
