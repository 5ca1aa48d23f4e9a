package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Level defines how much personal data reaches log output.
type Level string

const (
	// LevelNone redacts personal data entirely
	LevelNone Level = "none"
	// LevelHashed replaces personal data with a salted hash prefix
	LevelHashed Level = "hashed"
	// LevelFull logs personal data as-is
	LevelFull Level = "full"
)

// ParseLevel maps a configuration string to a Level, defaulting to hashed.
func ParseLevel(value string) Level {
	switch Level(strings.ToLower(strings.TrimSpace(value))) {
	case LevelNone:
		return LevelNone
	case LevelFull:
		return LevelFull
	default:
		return LevelHashed
	}
}

// Sanitizer scrubs visitor emails and free text before they are logged.
type Sanitizer struct {
	level        Level
	salt         string
	emailPattern *regexp.Regexp
	phonePattern *regexp.Regexp
}

// NewSanitizer creates a sanitizer; the salt keeps hashes stable per deployment.
func NewSanitizer(level Level, salt string) *Sanitizer {
	return &Sanitizer{
		level:        level,
		salt:         salt,
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
		phonePattern: regexp.MustCompile(`\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`),
	}
}

// Email sanitizes a single address.
func (s *Sanitizer) Email(email string) string {
	if email == "" {
		return ""
	}
	switch s.level {
	case LevelNone:
		return "[REDACTED]"
	case LevelFull:
		return email
	default:
		return fmt.Sprintf("[EMAIL:%s]", s.hash(strings.ToLower(email)))
	}
}

// Text sanitizes free text, replacing any embedded emails or phone numbers.
func (s *Sanitizer) Text(input string) string {
	switch s.level {
	case LevelNone:
		return "[REDACTED]"
	case LevelFull:
		return input
	}

	result := s.emailPattern.ReplaceAllStringFunc(input, func(match string) string {
		return fmt.Sprintf("[EMAIL:%s]", s.hash(strings.ToLower(match)))
	})
	return s.phonePattern.ReplaceAllStringFunc(result, func(match string) string {
		return fmt.Sprintf("[PHONE:%s]", s.hash(match))
	})
}

func (s *Sanitizer) hash(data string) string {
	h := sha256.New()
	h.Write([]byte(data + s.salt))
	return hex.EncodeToString(h.Sum(nil))[:8]
}
