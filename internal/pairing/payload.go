// Package pairing builds and parses the out-of-band payloads two peers
// exchange to become contacts: the QR payload, the contact request and
// response messages, and the verification-message exchange that marks a
// contact verified.
package pairing

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/pkg/models"
)

const (
	// PayloadVersion is the pairing protocol version string.
	PayloadVersion = "1.0"
	// PayloadType is the fixed marker a QR payload must carry. Anything
	// else is another protocol, not a damaged payload.
	PayloadType = "nonmessenger_contact"

	// VerificationMessageLength is the exact byte length every
	// verification message must have. Fixed length keeps truncated or
	// padded strings off the wire; the content itself carries no
	// structure.
	VerificationMessageLength = 256

	deviceIDBytes = 16
)

var (
	ErrMalformedPayload = errors.New("malformed pairing payload")
	ErrWrongPayloadType = errors.New("wrong payload type")
)

// NewDeviceID draws a fresh 128-bit device identifier, hex encoded.
func NewDeviceID(src entropy.Source) (string, error) {
	raw, err := entropy.Bytes(src, deviceIDBytes)
	if err != nil {
		return "", fmt.Errorf("draw device id: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// BuildPayload assembles a QR payload for a public key and device. The
// word list stays empty; the caller attaches the words chosen for the
// exchange before handing the payload out.
func BuildPayload(publicKeyPEM, deviceID string, now time.Time) models.PairingPayload {
	return models.PairingPayload{
		Version:      PayloadVersion,
		Type:         PayloadType,
		PublicKey:    publicKeyPEM,
		DeviceID:     deviceID,
		ContactWords: []string{},
		Timestamp:    uint64(now.Unix()),
	}
}

// EncodePayload renders the payload as its JSON wire form.
func EncodePayload(p models.PairingPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pairing payload: %w", err)
	}
	return string(raw), nil
}

// ParsePayload decodes and checks a raw QR payload. A payload of another
// type fails with ErrWrongPayloadType so callers can tell "valid JSON,
// wrong protocol" apart from damage.
func ParsePayload(raw string) (models.PairingPayload, error) {
	var p models.PairingPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.PairingPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.Type != PayloadType {
		return models.PairingPayload{}, fmt.Errorf("%w: %q", ErrWrongPayloadType, p.Type)
	}
	if strings.TrimSpace(p.PublicKey) == "" || strings.TrimSpace(p.DeviceID) == "" {
		return models.PairingPayload{}, fmt.Errorf("%w: missing public key or device id", ErrMalformedPayload)
	}
	if p.ContactWords == nil {
		p.ContactWords = []string{}
	}
	return p, nil
}

// ValidateVerificationMessage is a pure length gate: true iff the
// message is exactly 256 bytes.
func ValidateVerificationMessage(msg string) bool {
	return len(msg) == VerificationMessageLength
}
