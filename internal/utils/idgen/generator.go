package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateSecureID generates a cryptographically secure ID with the given prefix and length.
// Uses only alphanumeric characters (0-9, a-z).
func GenerateSecureID(prefix string, length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	const charset = "0123456789abcdefghijklmnopqrstuvwxyz"
	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		encoded[i] = charset[bytes[i]%byte(len(charset))]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// ConversationID returns a fresh conversation id: "chat_" followed by 32 hex digits.
func ConversationID() string {
	return "chat_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SessionID returns an opaque session identifier suitable for a cookie value.
func SessionID() (string, error) {
	return GenerateSecureID("sess", 40)
}
