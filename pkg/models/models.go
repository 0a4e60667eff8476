package models

// KeyPair holds one RSA identity as PEM text: SPKI for the public half,
// PKCS#8 for the private half. Values are immutable once produced; the
// crypto core never retains a copy.
type KeyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// EncryptedMessage is the wire form of one hybrid-encrypted message.
// All four fields are standard base64. The auth tag travels separately
// from the ciphertext and must be re-appended before AEAD open.
type EncryptedMessage struct {
	EncryptedMessage string `json:"encryptedMessage"`
	EncryptedKey     string `json:"encryptedKey"`
	IV               string `json:"iv"`
	AuthTag          string `json:"authTag"`
}

// PairingPayload is the QR/contact-code payload exchanged out of band.
// ContactWords stays empty at build time and is attached by the caller
// once the words for the exchange are chosen.
type PairingPayload struct {
	Version      string   `json:"version"`
	Type         string   `json:"type"`
	PublicKey    string   `json:"publicKey"`
	DeviceID     string   `json:"deviceId"`
	ContactWords []string `json:"contactWords"`
	Timestamp    uint64   `json:"timestamp"`
}

// ContactRequestMessage asks a peer to become a contact. The sender's
// public word code and a fixed-length verification message ride along so
// the recipient can confirm the exchange before trusting the key.
type ContactRequestMessage struct {
	Type                string   `json:"type"`
	ID                  string   `json:"id"`
	Timestamp           uint64   `json:"timestamp"`
	SenderID            string   `json:"sender_id"`
	SenderName          string   `json:"sender_name"`
	PublicWords         []string `json:"public_words"`
	VerificationMessage string   `json:"verification_message"`
	SenderPublicKey     string   `json:"sender_public_key"`
	Version             string   `json:"version"`
}

// ContactResponseMessage answers a ContactRequestMessage. SecretWords and
// RecipientPublicKey are only present when the request was accepted.
type ContactResponseMessage struct {
	Type               string   `json:"type"`
	ID                 string   `json:"id"`
	Timestamp          uint64   `json:"timestamp"`
	OriginalRequestID  string   `json:"original_request_id"`
	Accepted           bool     `json:"accepted"`
	SecretWords        []string `json:"secret_words,omitempty"`
	RecipientPublicKey string   `json:"recipient_public_key,omitempty"`
	Version            string   `json:"version"`
}
