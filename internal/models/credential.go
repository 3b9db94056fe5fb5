package models

import "time"

// Credential holds a user's linked GET device credentials. Both secret
// fields are cipher envelopes, never plaintext.
type Credential struct {
	UserID            string
	EncryptedDeviceID string
	EncryptedPIN      string
	LastValidatedAt   time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CredentialStatus is the connection summary returned to the account owner.
type CredentialStatus struct {
	Connected              bool
	DefaultFulfillmentMode FulfillmentMode
	LastValidatedAt        *time.Time
}
