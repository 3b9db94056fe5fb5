package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("3f1c2a9e-1111-2222-3333-444455556666")
	b := Fingerprint("3f1c2a9e-1111-2222-3333-444455556666")
	c := Fingerprint("another-session")

	assert.Len(t, a, 8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "3f1c2a9e")
	assert.Empty(t, Fingerprint(""))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.True(t, SanitizeQueryString("sessionId=abc"))
	assert.True(t, SanitizeQueryString("foo=1&PIN=1234"))
	assert.True(t, SanitizeQueryString("validatedUrl=https%3A%2F%2Fget"))
	assert.False(t, SanitizeQueryString("role=open&limit=10"))
	assert.False(t, SanitizeQueryString(""))
}

func TestAuditLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(context.Background(), AuditEvent{
		EventType: AuditRequestAccepted,
		UserID:    "user-1",
		RequestID: "req-1",
		Success:   true,
		Metadata:  map[string]string{"fulfillment_mode": "CODE_ONLY"},
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "audit", record["msg"])
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "request_accepted", record["event_type"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "CODE_ONLY", record["fulfillment_mode"])
}

func TestAuditLogger_FailureIsWarn(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(context.Background(), AuditEvent{EventType: AuditCredentialLinked, UserID: "user-1", FailureReason: "create_pin_rejected"})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "create_pin_rejected", record["failure_reason"])
}
