package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a short, stable digest of a secret so log lines about
// the same GET session can be correlated without exposing it.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:4])
}

var sensitiveParams = []string{
	"sessionid",
	"sid",
	"token",
	"pin",
	"deviceid",
	"validatedurl",
	"payload",
	"secret",
	"password",
}

// SanitizeQueryString reports whether a raw query string mentions a
// sensitive parameter and should be redacted as a whole.
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
