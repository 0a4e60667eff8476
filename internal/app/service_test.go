package app

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"nonmessenger/go-backend/internal/crypto"
	"nonmessenger/go-backend/internal/identity"
	"nonmessenger/go-backend/internal/pairing"
	"nonmessenger/go-backend/internal/securestore"
	"nonmessenger/go-backend/internal/wordphrase"
	"nonmessenger/go-backend/pkg/models"
)

var (
	fixtureOnce sync.Once
	fixturePair models.KeyPair
	fixtureErr  error
)

func fixtureKeyPair(t *testing.T) models.KeyPair {
	t.Helper()
	fixtureOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			fixtureErr = err
			return
		}
		fixturePair, fixtureErr = identity.EncodeKeyPair(key)
	})
	if fixtureErr != nil {
		t.Fatalf("fixture key pair: %v", fixtureErr)
	}
	return fixturePair
}

func newTestService() (*Service, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewService(log, rand.Reader, nil), &buf
}

func TestGenerateCodesHaveEightWords(t *testing.T) {
	svc, _ := newTestService()

	contact, err := svc.GenerateContactCode()
	if err != nil {
		t.Fatalf("contact code: %v", err)
	}
	secret, err := svc.GenerateSecretCode()
	if err != nil {
		t.Fatalf("secret code: %v", err)
	}
	if len(contact) != wordphrase.ContactWordCount || len(secret) != wordphrase.ContactWordCount {
		t.Fatalf("expected 8-word codes, got %d and %d", len(contact), len(secret))
	}
	if err := wordphrase.Validate(contact); err != nil {
		t.Fatalf("contact code must validate: %v", err)
	}
}

func TestFullKeyPairFromCodesMatchesCombinedPhrase(t *testing.T) {
	if testing.Short() {
		t.Skip("full-tier derivation is slow")
	}
	svc, _ := newTestService()

	contact, err := svc.GenerateContactCode()
	if err != nil {
		t.Fatalf("contact code: %v", err)
	}
	secret, err := svc.GenerateSecretCode()
	if err != nil {
		t.Fatalf("secret code: %v", err)
	}

	fromCodes, err := svc.FullKeyPairFromCodes(contact, secret)
	if err != nil {
		t.Fatalf("derive from codes: %v", err)
	}
	combined := append(append([]string(nil), contact...), secret...)
	fromPhrase, err := svc.FullKeyPair(combined)
	if err != nil {
		t.Fatalf("derive from phrase: %v", err)
	}
	if fromCodes.PrivateKey != fromPhrase.PrivateKey {
		t.Fatal("code-pair and combined-phrase derivations must agree")
	}
}

func TestFullKeyPairFromCodesRejectsBadLengths(t *testing.T) {
	svc, _ := newTestService()
	words := make([]string, 7)
	if _, err := svc.FullKeyPairFromCodes(words, words); !errors.Is(err, identity.ErrInvalidWordCount) {
		t.Fatalf("expected ErrInvalidWordCount, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	pair := fixtureKeyPair(t)

	msg, err := svc.EncryptMessage("hello over the wire", pair.PublicKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	plain, err := svc.DecryptMessage(msg, pair.PrivateKey)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if plain != "hello over the wire" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestDecryptFailurePropagatesSentinel(t *testing.T) {
	svc, _ := newTestService()
	pair := fixtureKeyPair(t)

	msg, err := svc.EncryptMessage("payload", pair.PublicKey)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	msg.AuthTag = msg.IV // structurally valid base64, wrong content
	if _, err := svc.DecryptMessage(msg, pair.PrivateKey); !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestPairingQRRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	pair := fixtureKeyPair(t)

	deviceID, err := svc.NewDeviceID()
	if err != nil {
		t.Fatalf("device id: %v", err)
	}
	raw, err := svc.BuildPairingQR(pair.PublicKey, deviceID)
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	payload, err := svc.ParsePairingQR(raw)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.DeviceID != deviceID || payload.PublicKey != pair.PublicKey {
		t.Fatal("parsed payload must carry the original key and device id")
	}
}

func TestParsePairingQRRejectsForeignPayload(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.ParsePairingQR(`{"version":"1.0","type":"other_app"}`); !errors.Is(err, pairing.ErrWrongPayloadType) {
		t.Fatalf("expected ErrWrongPayloadType, got %v", err)
	}
}

func TestVoiceSessionKeyExchange(t *testing.T) {
	svc, _ := newTestService()
	pair := fixtureKeyPair(t)

	key, wrapped, err := svc.NewVoiceSessionKey(pair.PublicKey)
	if err != nil {
		t.Fatalf("issue session key: %v", err)
	}
	got, err := svc.AcceptVoiceSessionKey(wrapped, pair.PrivateKey)
	if err != nil {
		t.Fatalf("accept session key: %v", err)
	}
	if !bytes.Equal(key, got) {
		t.Fatal("peer must recover the issued session key")
	}
}

func TestProfileExportImportRoundTrip(t *testing.T) {
	svc, _ := newTestService()
	pair := fixtureKeyPair(t)

	profile := securestore.Profile{
		Version:     "1.0",
		ContactCode: []string{"alpha", "bravo"},
		PublicKey:   pair.PublicKey,
		PrivateKey:  pair.PrivateKey,
		DeviceID:    "00112233445566778899aabbccddeeff",
	}
	sealed, err := svc.ExportProfile("correct horse", profile)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := svc.ImportProfile("correct horse", sealed)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got.PrivateKey != profile.PrivateKey || got.DeviceID != profile.DeviceID {
		t.Fatal("imported profile must match exported one")
	}
	if _, err := svc.ImportProfile("wrong", sealed); !errors.Is(err, securestore.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestLogsNeverContainPrivateKey(t *testing.T) {
	svc, buf := newTestService()
	pair := fixtureKeyPair(t)

	if _, err := svc.EncryptMessage("hi", pair.PublicKey); err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(buf.Bytes(), []byte("BEGIN PRIVATE KEY")) {
		t.Fatal("log output must never carry key material")
	}
}
