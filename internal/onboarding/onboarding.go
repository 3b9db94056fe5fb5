// Package onboarding holds the helpers used when a user links their GET account.
package onboarding

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// sessionParams are checked in order when the session id is not found
// directly in the pasted text.
var sessionParams = []string{"sessionId", "sid", "token"}

// ExtractValidatedSessionID finds the GET session id in the URL a user copied
// after signing in to GET. It accepts either the bare id or any URL carrying
// it.
func ExtractValidatedSessionID(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", false
	}

	if id, ok := findUUID(trimmed); ok {
		return id, true
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}

	query := parsed.Query()
	for _, param := range sessionParams {
		if id, ok := findUUID(query.Get(param)); ok {
			return id, true
		}
	}

	return "", false
}

func findUUID(s string) (string, bool) {
	match := uuidPattern.FindString(s)
	if match == "" || uuid.Validate(match) != nil {
		return "", false
	}
	return match, true
}

// GenerateDeviceID returns a random 16 character lowercase hex device id.
func GenerateDeviceID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate device id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GeneratePIN returns a random zero-padded 4 digit PIN.
func GeneratePIN() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
