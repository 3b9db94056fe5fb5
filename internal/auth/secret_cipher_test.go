package auth

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pointshare/redeem/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T) *SecretCipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	c := NewSecretCipher(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, c.Err())
	return c
}

func TestSecretCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, plaintext := range []string{"", "0420", "9f3a6b1c2d4e5f60", "ünïcødé ✓", strings.Repeat("x", 4096)} {
		envelope, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(envelope, "v1:"))
		assert.Len(t, strings.Split(envelope, ":"), 4)

		decrypted, err := c.Decrypt(envelope)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestSecretCipher_FreshNoncePerCall(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("1234")
	require.NoError(t, err)
	b, err := c.Encrypt("1234")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, strings.Split(a, ":")[1], strings.Split(b, ":")[1])
}

func TestSecretCipher_TamperedCiphertextOrTag(t *testing.T) {
	c := newTestCipher(t)

	envelope, err := c.Encrypt("device-secret")
	require.NoError(t, err)
	parts := strings.Split(envelope, ":")

	for _, field := range []int{2, 3} {
		raw, err := base64.StdEncoding.DecodeString(parts[field])
		require.NoError(t, err)

		for i := range raw {
			flipped := append([]byte(nil), raw...)
			flipped[i] ^= 0x01

			tampered := append([]string(nil), parts...)
			tampered[field] = base64.StdEncoding.EncodeToString(flipped)

			plaintext, err := c.Decrypt(strings.Join(tampered, ":"))
			assert.ErrorIs(t, err, models.ErrEnvelopeAuthentication, "field %d byte %d", field, i)
			assert.Empty(t, plaintext)
		}
	}
}

func TestSecretCipher_WrongKey(t *testing.T) {
	envelope, err := newTestCipher(t).Encrypt("1234")
	require.NoError(t, err)

	_, err = newTestCipher(t).Decrypt(envelope)
	assert.ErrorIs(t, err, models.ErrEnvelopeAuthentication)
}

func TestSecretCipher_MalformedEnvelope(t *testing.T) {
	c := newTestCipher(t)
	valid, err := c.Encrypt("1234")
	require.NoError(t, err)
	parts := strings.Split(valid, ":")

	tests := []struct {
		name     string
		envelope string
	}{
		{"empty", ""},
		{"plaintext", "1234"},
		{"three fields", strings.Join(parts[:3], ":")},
		{"five fields", valid + ":extra"},
		{"wrong version", "v2:" + strings.Join(parts[1:], ":")},
		{"bad nonce encoding", "v1:!!!:" + parts[2] + ":" + parts[3]},
		{"short nonce", "v1:" + base64.StdEncoding.EncodeToString([]byte("short")) + ":" + parts[2] + ":" + parts[3]},
		{"bad ciphertext encoding", "v1:" + parts[1] + ":" + parts[2] + ":%%%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.envelope)
			assert.ErrorIs(t, err, models.ErrMalformedEnvelope)
		})
	}
}

func TestSecretCipher_ConfigGuard(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"absent", ""},
		{"not base64", "not-base64-at-all!"},
		{"16 bytes", base64.StdEncoding.EncodeToString(make([]byte, 16))},
		{"31 bytes", base64.StdEncoding.EncodeToString(make([]byte, 31))},
		{"33 bytes", base64.StdEncoding.EncodeToString(make([]byte, 33))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewSecretCipher(tt.key)
			assert.ErrorIs(t, c.Err(), models.ErrCipherNotConfigured)

			_, err := c.Encrypt("1234")
			assert.ErrorIs(t, err, models.ErrCipherNotConfigured)

			_, err = c.Decrypt("v1:a:b:c")
			assert.ErrorIs(t, err, models.ErrCipherNotConfigured)
		})
	}
}
