package pairing

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nonmessenger/go-backend/internal/entropy"
	"nonmessenger/go-backend/pkg/models"
)

const (
	// ContactRequestType and ContactResponseType are the markers of the
	// in-band contact exchange messages.
	ContactRequestType  = "contact_request"
	ContactResponseType = "contact_response"

	messageIDBytes = 8
)

// BuildContactRequest assembles the message that asks a peer to become
// a contact. The verification message must already have its fixed
// length; request building is the last gate before it leaves the device.
func BuildContactRequest(src entropy.Source, senderID, senderName string, publicWords []string, verificationMessage, senderPublicKeyPEM string, now time.Time) (models.ContactRequestMessage, error) {
	if !ValidateVerificationMessage(verificationMessage) {
		return models.ContactRequestMessage{}, fmt.Errorf("%w: verification message must be %d bytes",
			ErrMalformedPayload, VerificationMessageLength)
	}
	id, err := newMessageID(src)
	if err != nil {
		return models.ContactRequestMessage{}, err
	}
	return models.ContactRequestMessage{
		Type:                ContactRequestType,
		ID:                  id,
		Timestamp:           uint64(now.Unix()),
		SenderID:            senderID,
		SenderName:          senderName,
		PublicWords:         append([]string(nil), publicWords...),
		VerificationMessage: verificationMessage,
		SenderPublicKey:     senderPublicKeyPEM,
		Version:             PayloadVersion,
	}, nil
}

// ParseContactRequest decodes and checks a raw contact request.
func ParseContactRequest(raw string) (models.ContactRequestMessage, error) {
	var m models.ContactRequestMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.ContactRequestMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m.Type != ContactRequestType {
		return models.ContactRequestMessage{}, fmt.Errorf("%w: %q", ErrWrongPayloadType, m.Type)
	}
	if strings.TrimSpace(m.SenderPublicKey) == "" || strings.TrimSpace(m.ID) == "" {
		return models.ContactRequestMessage{}, fmt.Errorf("%w: missing id or sender key", ErrMalformedPayload)
	}
	if !ValidateVerificationMessage(m.VerificationMessage) {
		return models.ContactRequestMessage{}, fmt.Errorf("%w: bad verification message length", ErrMalformedPayload)
	}
	return m, nil
}

// BuildContactResponse answers a contact request. Secret words and the
// recipient key are attached only on acceptance.
func BuildContactResponse(src entropy.Source, originalRequestID string, accepted bool, secretWords []string, recipientPublicKeyPEM string, now time.Time) (models.ContactResponseMessage, error) {
	id, err := newMessageID(src)
	if err != nil {
		return models.ContactResponseMessage{}, err
	}
	resp := models.ContactResponseMessage{
		Type:              ContactResponseType,
		ID:                id,
		Timestamp:         uint64(now.Unix()),
		OriginalRequestID: originalRequestID,
		Accepted:          accepted,
		Version:           PayloadVersion,
	}
	if accepted {
		resp.SecretWords = append([]string(nil), secretWords...)
		resp.RecipientPublicKey = recipientPublicKeyPEM
	}
	return resp, nil
}

// ParseContactResponse decodes and checks a raw contact response.
func ParseContactResponse(raw string) (models.ContactResponseMessage, error) {
	var m models.ContactResponseMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return models.ContactResponseMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if m.Type != ContactResponseType {
		return models.ContactResponseMessage{}, fmt.Errorf("%w: %q", ErrWrongPayloadType, m.Type)
	}
	if strings.TrimSpace(m.OriginalRequestID) == "" {
		return models.ContactResponseMessage{}, fmt.Errorf("%w: missing original request id", ErrMalformedPayload)
	}
	if m.Accepted && strings.TrimSpace(m.RecipientPublicKey) == "" {
		return models.ContactResponseMessage{}, fmt.Errorf("%w: accepted response without key", ErrMalformedPayload)
	}
	return m, nil
}

func newMessageID(src entropy.Source) (string, error) {
	raw, err := entropy.Bytes(src, messageIDBytes)
	if err != nil {
		return "", fmt.Errorf("draw message id: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
