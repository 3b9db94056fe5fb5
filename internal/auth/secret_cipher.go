package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/pointshare/redeem/internal/models"
)

const (
	envelopeVersion = "v1"
	gcmTagSize      = 16
	gcmNonceSize    = 12
	secretKeySize   = 32
)

// SecretCipher encrypts small secrets (GET device ids and PINs) with
// AES-256-GCM. Envelopes have the form v1:nonce:tag:ciphertext with each
// part base64 encoded.
//
// A cipher built from a missing or malformed key is still usable as a value;
// every Encrypt and Decrypt call then fails with ErrCipherNotConfigured.
type SecretCipher struct {
	aead      cipher.AEAD
	configErr error
}

// NewSecretCipher builds a cipher from a base64 encoded 32-byte key.
func NewSecretCipher(encodedKey string) *SecretCipher {
	if encodedKey == "" {
		return &SecretCipher{configErr: fmt.Errorf("%w: GET_CREDENTIALS_ENCRYPTION_KEY is empty", models.ErrCipherNotConfigured)}
	}

	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return &SecretCipher{configErr: fmt.Errorf("%w: GET_CREDENTIALS_ENCRYPTION_KEY is not valid base64", models.ErrCipherNotConfigured)}
	}
	if len(key) != secretKeySize {
		return &SecretCipher{configErr: fmt.Errorf("%w: GET_CREDENTIALS_ENCRYPTION_KEY must decode to %d bytes, got %d",
			models.ErrCipherNotConfigured, secretKeySize, len(key))}
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return &SecretCipher{configErr: fmt.Errorf("%w: %v", models.ErrCipherNotConfigured, err)}
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return &SecretCipher{configErr: fmt.Errorf("%w: %v", models.ErrCipherNotConfigured, err)}
	}

	return &SecretCipher{aead: aead}
}

// Err returns the configuration error, if any. Used at startup to warn early.
func (c *SecretCipher) Err() error {
	return c.configErr
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	if c.configErr != nil {
		return "", c.configErr
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-gcmTagSize], sealed[len(sealed)-gcmTagSize:]

	return strings.Join([]string{
		envelopeVersion,
		base64.StdEncoding.EncodeToString(nonce),
		base64.StdEncoding.EncodeToString(tag),
		base64.StdEncoding.EncodeToString(ciphertext),
	}, ":"), nil
}

// Decrypt opens an envelope produced by Encrypt. Structural problems return
// ErrMalformedEnvelope; a tag that does not verify returns
// ErrEnvelopeAuthentication.
func (c *SecretCipher) Decrypt(envelope string) (string, error) {
	if c.configErr != nil {
		return "", c.configErr
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 4 || parts[0] != envelopeVersion {
		return "", models.ErrMalformedEnvelope
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != gcmNonceSize {
		return "", models.ErrMalformedEnvelope
	}
	tag, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return "", models.ErrMalformedEnvelope
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return "", models.ErrMalformedEnvelope
	}
	if len(tag) != gcmTagSize {
		return "", models.ErrEnvelopeAuthentication
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", models.ErrEnvelopeAuthentication
	}

	return string(plaintext), nil
}
