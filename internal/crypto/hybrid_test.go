package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/identity"
	"nonmessenger/go-backend/pkg/models"
)

var (
	pairOnce sync.Once
	pairA    models.KeyPair
	pairB    models.KeyPair
	pairErr  error
)

func testPairs(t *testing.T) (models.KeyPair, models.KeyPair) {
	t.Helper()
	pairOnce.Do(func() {
		for _, target := range []*models.KeyPair{&pairA, &pairB} {
			priv, err := rsa.GenerateKey(rand.Reader, 2048)
			if err != nil {
				pairErr = err
				return
			}
			*target, pairErr = identity.EncodeKeyPair(priv)
			if pairErr != nil {
				return
			}
		}
	})
	if pairErr != nil {
		t.Fatalf("test key pairs failed: %v", pairErr)
	}
	return pairA, pairB
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	_, b := testPairs(t)
	src := entropy.System()

	for _, plaintext := range []string{"hello", "", "多字节 ✓ payload", "line\nbreaks\tand spaces"} {
		msg, err := Encrypt(src, plaintext, b.PublicKey)
		if err != nil {
			t.Fatalf("encrypt %q failed: %v", plaintext, err)
		}
		got, err := Decrypt(msg, b.PrivateKey)
		if err != nil {
			t.Fatalf("decrypt %q failed: %v", plaintext, err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: %q != %q", got, plaintext)
		}
	}
}

func TestEncryptedMessageJSONFieldNames(t *testing.T) {
	_, b := testPairs(t)
	msg, err := Encrypt(entropy.System(), "wire check", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, name := range []string{"encryptedMessage", "encryptedKey", "iv", "authTag"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("wire field %q missing from %s", name, raw)
		}
	}
	if len(fields) != 4 {
		t.Fatalf("unexpected extra wire fields in %s", raw)
	}
}

func TestEncryptUsesFreshKeyAndNonce(t *testing.T) {
	_, b := testPairs(t)
	src := entropy.System()

	first, err := Encrypt(src, "same plaintext", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := Encrypt(src, "same plaintext", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if first.IV == second.IV {
		t.Fatal("nonce must be fresh per call")
	}
	if first.EncryptedKey == second.EncryptedKey {
		t.Fatal("symmetric key must be fresh per call")
	}
	if first.EncryptedMessage == second.EncryptedMessage {
		t.Fatal("ciphertext must differ under fresh keys")
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	_, b := testPairs(t)
	msg, err := Encrypt(entropy.System(), "tamper target", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	fields := []struct {
		name string
		get  func(m *models.EncryptedMessage) *string
	}{
		{"ciphertext", func(m *models.EncryptedMessage) *string { return &m.EncryptedMessage }},
		{"authTag", func(m *models.EncryptedMessage) *string { return &m.AuthTag }},
		{"iv", func(m *models.EncryptedMessage) *string { return &m.IV }},
	}
	for _, f := range fields {
		mutated := msg
		field := f.get(&mutated)
		raw, err := base64.StdEncoding.DecodeString(*field)
		if err != nil {
			t.Fatalf("decode %s failed: %v", f.name, err)
		}
		raw[0] ^= 0x01
		*field = base64.StdEncoding.EncodeToString(raw)

		if _, err := Decrypt(mutated, b.PrivateKey); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("%s bit flip: expected ErrDecryptionFailed, got %v", f.name, err)
		}
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	a, b := testPairs(t)
	msg, err := Encrypt(entropy.System(), "hello", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(msg, a.PrivateKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestDecryptRejectsMalformedBase64(t *testing.T) {
	_, b := testPairs(t)
	msg, err := Encrypt(entropy.System(), "hello", b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	msg.EncryptedKey = "%%% not base64 %%%"
	if _, err := Decrypt(msg, b.PrivateKey); !errors.Is(err, ErrCryptoFailure) {
		t.Fatalf("expected ErrCryptoFailure, got %v", err)
	}
}

func TestDecryptFlagsNonTextPlaintext(t *testing.T) {
	_, b := testPairs(t)
	binary := string([]byte{0xff, 0xfe, 0x00, 0x80})
	msg, err := Encrypt(entropy.System(), binary, b.PublicKey)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(msg, b.PrivateKey); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
}

func TestSessionKeyWrapUnwrap(t *testing.T) {
	a, b := testPairs(t)
	src := entropy.System()

	key, err := NewSessionKey(src)
	if err != nil {
		t.Fatalf("new session key failed: %v", err)
	}
	if len(key) != SessionKeySize {
		t.Fatalf("expected %d-byte key, got %d", SessionKeySize, len(key))
	}

	wrapped, err := WrapKey(src, key, b.PublicKey)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	unwrapped, err := UnwrapKey(wrapped, b.PrivateKey)
	if err != nil {
		t.Fatalf("unwrap failed: %v", err)
	}
	if !bytes.Equal(key, unwrapped) {
		t.Fatal("unwrap must recover the exact key")
	}

	if _, err := UnwrapKey(wrapped, a.PrivateKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong private key: expected ErrDecryptionFailed, got %v", err)
	}

	short, err := WrapKey(src, []byte("short"), b.PublicKey)
	if err != nil {
		t.Fatalf("wrap failed: %v", err)
	}
	if _, err := UnwrapKey(short, b.PrivateKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("non-32-byte unwrap: expected ErrDecryptionFailed, got %v", err)
	}
}
