package randutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const APIKeyPrefix = "bgr_"

// RandomString returns n random bytes encoded as unpadded URL-safe base64.
func RandomString(n int) (string, error) {
	key := make([]byte, n)

	if _, err := rand.Read(key); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(key), nil
}

// NewAPIKey returns a prefixed key with 32 bytes of entropy.
func NewAPIKey() (string, error) {
	secret, err := RandomString(32)
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}

	return APIKeyPrefix + secret, nil
}

// MaskString keeps the first visibleStart and last visibleEnd runes of s and
// replaces the rest with asterisks. Strings too short to mask are returned as is.
func MaskString(s string, visibleStart, visibleEnd int) string {
	runes := []rune(s)
	if len(runes) <= visibleStart+visibleEnd {
		return s
	}

	hidden := len(runes) - visibleStart - visibleEnd
	return string(runes[:visibleStart]) + strings.Repeat("*", hidden) + string(runes[len(runes)-visibleEnd:])
}
