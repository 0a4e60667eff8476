// Package app is the crypto core behind the command surface: one
// facade tying identity generation, the word-phrase engine, the hybrid
// cipher and the pairing codec together with logging and metrics.
package app

import (
	"errors"
	"log/slog"
	"time"

	"nonmessenger/go-backend/internal/crypto"
	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/internal/identity"
	"nonmessenger/go-backend/internal/pairing"
	"nonmessenger/go-backend/internal/platform/cryptometrics"
	"nonmessenger/go-backend/internal/securestore"
	"nonmessenger/go-backend/internal/wordphrase"
	"nonmessenger/go-backend/pkg/models"
)

const (
	TierRandom  = "random"
	TierContact = "contact"
	TierFull    = "full"
)

type Service struct {
	log      *slog.Logger
	src      entropy.Source
	metrics  *cryptometrics.Set
	verifier *pairing.Verifier
	now      func() time.Time
}

// NewService wires the facade. src must be the system CSPRNG in
// production; tests may pass a fixed-seed stream.
func NewService(log *slog.Logger, src entropy.Source, metrics *cryptometrics.Set) *Service {
	return NewServiceWithVerifier(log, src, metrics, pairing.NewVerifier())
}

// NewServiceWithVerifier allows a custom verification throttle policy.
func NewServiceWithVerifier(log *slog.Logger, src entropy.Source, metrics *cryptometrics.Set, verifier *pairing.Verifier) *Service {
	if log == nil {
		log = slog.Default()
	}
	if verifier == nil {
		verifier = pairing.NewVerifier()
	}
	return &Service{
		log:      log,
		src:      src,
		metrics:  metrics,
		verifier: verifier,
		now:      time.Now,
	}
}

// GenerateIdentity produces the baseline 4096-bit device identity.
func (s *Service) GenerateIdentity() (models.KeyPair, error) {
	started := s.now()
	pair, err := identity.GenerateRandom(s.src)
	if err != nil {
		s.log.Error("identity generation failed", "error", err)
		return models.KeyPair{}, err
	}
	s.metrics.KeyGenerated(TierRandom)
	s.log.Info("identity generated",
		"tier", TierRandom,
		"elapsed", s.now().Sub(started),
	)
	return pair, nil
}

// GenerateContactCode draws a fresh 8-word public contact code.
func (s *Service) GenerateContactCode() ([]string, error) {
	return wordphrase.Generate(s.src, wordphrase.ContactWordCount)
}

// GenerateSecretCode draws a fresh 8-word private verification code.
// Same encoding as the contact code; the roles differ only in handling.
func (s *Service) GenerateSecretCode() ([]string, error) {
	return wordphrase.Generate(s.src, wordphrase.ContactWordCount)
}

// ContactKeyPair derives the shareable contact-tier key pair.
func (s *Service) ContactKeyPair(words []string) (models.KeyPair, error) {
	pair, err := identity.FromContactPhrase(words)
	if err != nil {
		return models.KeyPair{}, err
	}
	s.metrics.KeyGenerated(TierContact)
	s.log.Info("key pair derived", "tier", TierContact)
	return pair, nil
}

// FullKeyPair derives the full-strength key pair from 16 words.
func (s *Service) FullKeyPair(words []string) (models.KeyPair, error) {
	pair, err := identity.FromFullPhrase(words)
	if err != nil {
		return models.KeyPair{}, err
	}
	s.metrics.KeyGenerated(TierFull)
	s.log.Info("key pair derived", "tier", TierFull)
	return pair, nil
}

// FullKeyPairFromCodes recovers the full identity from the contact and
// secret codes together, in that order.
func (s *Service) FullKeyPairFromCodes(contactCode, secretCode []string) (models.KeyPair, error) {
	if len(contactCode) != wordphrase.ContactWordCount || len(secretCode) != wordphrase.ContactWordCount {
		return models.KeyPair{}, identity.ErrInvalidWordCount
	}
	combined := make([]string, 0, wordphrase.FullWordCount)
	combined = append(combined, contactCode...)
	combined = append(combined, secretCode...)
	return s.FullKeyPair(combined)
}

// EncryptMessage seals plaintext for a recipient key.
func (s *Service) EncryptMessage(plaintext, recipientPublicKeyPEM string) (models.EncryptedMessage, error) {
	msg, err := crypto.Encrypt(s.src, plaintext, recipientPublicKeyPEM)
	if err != nil {
		s.log.Error("encrypt failed", "error", err)
		return models.EncryptedMessage{}, err
	}
	s.metrics.MessageEncrypted()
	s.log.Debug("message encrypted", "plaintext_bytes", len(plaintext))
	return msg, nil
}

// DecryptMessage opens a sealed message with the local private key.
func (s *Service) DecryptMessage(msg models.EncryptedMessage, privateKeyPEM string) (string, error) {
	plaintext, err := crypto.Decrypt(msg, privateKeyPEM)
	if err != nil {
		s.metrics.MessageDecrypted(false)
		if errors.Is(err, crypto.ErrDecryptionFailed) {
			s.log.Warn("decrypt rejected", "error", err)
		} else {
			s.log.Error("decrypt failed", "error", err)
		}
		return "", err
	}
	s.metrics.MessageDecrypted(true)
	return plaintext, nil
}

// NewDeviceID draws a fresh device identifier.
func (s *Service) NewDeviceID() (string, error) {
	return pairing.NewDeviceID(s.src)
}

// BuildPairingQR assembles and encodes the QR payload for out-of-band
// sharing.
func (s *Service) BuildPairingQR(publicKeyPEM, deviceID string) (string, error) {
	payload := pairing.BuildPayload(publicKeyPEM, deviceID, s.now())
	raw, err := pairing.EncodePayload(payload)
	if err != nil {
		return "", err
	}
	s.log.Info("pairing payload built", "device_id", deviceID)
	return raw, nil
}

// ParsePairingQR decodes and checks a scanned payload.
func (s *Service) ParsePairingQR(raw string) (models.PairingPayload, error) {
	payload, err := pairing.ParsePayload(raw)
	if err != nil {
		s.metrics.PayloadParsed(false)
		s.log.Warn("pairing payload rejected", "error", err)
		return models.PairingPayload{}, err
	}
	s.metrics.PayloadParsed(true)
	s.log.Info("pairing payload parsed", "device_id", payload.DeviceID)
	return payload, nil
}

// ContactID computes the short fingerprint of a public key.
func (s *Service) ContactID(publicKeyPEM string) (string, error) {
	return identity.BuildContactID(publicKeyPEM)
}

// ConfirmVerification checks the verification-message exchange for a
// device, throttled and constant time.
func (s *Service) ConfirmVerification(deviceID, local, remote string) error {
	if err := s.verifier.Confirm(deviceID, local, remote); err != nil {
		s.log.Warn("verification rejected", "device_id", deviceID, "error", err)
		return err
	}
	s.log.Info("verification confirmed", "device_id", deviceID)
	return nil
}

// NewVoiceSessionKey draws a fresh session key and wraps it for the
// peer; the caller streams audio with the clear key and sends the
// wrapped one.
func (s *Service) NewVoiceSessionKey(peerPublicKeyPEM string) (key, wrapped []byte, err error) {
	key, err = crypto.NewSessionKey(s.src)
	if err != nil {
		return nil, nil, err
	}
	wrapped, err = crypto.WrapKey(s.src, key, peerPublicKeyPEM)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("voice session key issued")
	return key, wrapped, nil
}

// AcceptVoiceSessionKey unwraps a session key sent by the peer.
func (s *Service) AcceptVoiceSessionKey(wrapped []byte, privateKeyPEM string) ([]byte, error) {
	key, err := crypto.UnwrapKey(wrapped, privateKeyPEM)
	if err != nil {
		s.log.Warn("voice session key rejected", "error", err)
		return nil, err
	}
	s.log.Info("voice session key accepted")
	return key, nil
}

// ExportProfile seals the local key profile under a passphrase.
func (s *Service) ExportProfile(passphrase string, profile securestore.Profile) ([]byte, error) {
	sealed, err := securestore.ExportProfile(passphrase, profile)
	if err != nil {
		s.log.Error("profile export failed", "error", err)
		return nil, err
	}
	s.log.Info("profile exported", "device_id", profile.DeviceID)
	return sealed, nil
}

// ImportProfile opens a sealed key profile.
func (s *Service) ImportProfile(passphrase string, data []byte) (securestore.Profile, error) {
	profile, err := securestore.ImportProfile(passphrase, data)
	if err != nil {
		s.log.Warn("profile import rejected", "error", err)
		return securestore.Profile{}, err
	}
	s.log.Info("profile imported", "device_id", profile.DeviceID)
	return profile, nil
}
