// Package validation checks untrusted input at the REST and WebSocket
// boundary before it reaches the rules engine. Trimmed from the teacher's
// internal/validation/validator.go down to the generic helpers plus the
// card-game-specific checks this server needs; the poker-only validators
// (blinds, buy-ins, tournament player counts) have no equivalent here.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrInvalidUUID        = errors.New("invalid UUID format")
	ErrInvalidEnum        = errors.New("invalid enum value")
	ErrStringTooLong      = errors.New("string exceeds maximum length")
	ErrStringTooShort     = errors.New("string below minimum length")
	ErrContainsSQLPattern = errors.New("input contains suspicious SQL patterns")
	ErrContainsXSSPattern = errors.New("input contains suspicious XSS patterns")
)

var uuidRegex = regexp.MustCompile(`^[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}$`)

var sqlPatterns = []string{
	"'", "\"", ";", "--", "/*", "*/", "xp_", "sp_",
	"exec", "execute", "select", "insert", "update", "delete",
	"drop", "create", "alter", "union", "script",
}

var xssPatterns = []string{
	"<script", "</script", "javascript:", "onerror=", "onload=",
	"<iframe", "</iframe", "<object", "</object", "eval(",
}

// ValidateUUID checks that a value looks like a table or user id.
func ValidateUUID(uuid string) error {
	if uuid == "" {
		return errors.New("UUID is required")
	}
	if !uuidRegex.MatchString(uuid) {
		return ErrInvalidUUID
	}
	return nil
}

// ValidateEnum checks that value is one of allowed, used for the inbound
// "event" field (request_initial_state / pass_cards / play_card).
func ValidateEnum(value string, allowed []string, fieldName string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be one of %v", ErrInvalidEnum, fieldName, allowed)
}

func ValidateStringLength(value string, minLen, maxLen int, fieldName string) error {
	if len(value) < minLen {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrStringTooShort, fieldName, minLen)
	}
	if len(value) > maxLen {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrStringTooLong, fieldName, maxLen)
	}
	return nil
}

// SanitizeString is defense-in-depth only; parameterized queries via gorm
// are the primary defense against injection.
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}

func CheckSQLInjection(input string) error {
	lower := strings.ToLower(input)
	for _, pattern := range sqlPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return fmt.Errorf("%w: contains '%s'", ErrContainsSQLPattern, pattern)
		}
	}
	return nil
}

func CheckXSS(input string) error {
	lower := strings.ToLower(input)
	for _, pattern := range xssPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return fmt.Errorf("%w: contains '%s'", ErrContainsXSSPattern, pattern)
		}
	}
	return nil
}

// ValidateSafeString sanitizes and bounds a general string input, e.g. a
// username surfaced in snapshots.
func ValidateSafeString(input string, minLen, maxLen int, fieldName string) (string, error) {
	sanitized := SanitizeString(input)
	if err := ValidateStringLength(sanitized, minLen, maxLen, fieldName); err != nil {
		return "", err
	}
	if err := CheckSQLInjection(sanitized); err != nil {
		return "", fmt.Errorf("%s: %w", fieldName, err)
	}
	if err := CheckXSS(sanitized); err != nil {
		return "", fmt.Errorf("%s: %w", fieldName, err)
	}
	return sanitized, nil
}

// ValidInboundEvents lists the event names a client may send over the
// game WebSocket.
var ValidInboundEvents = []string{"request_initial_state", "pass_cards", "play_card"}

// ValidateInboundEvent checks the "event" field of an inbound WS frame.
func ValidateInboundEvent(event string) error {
	return ValidateEnum(event, ValidInboundEvents, "event")
}

// ValidateCardString bounds-checks a raw card token ("10♠", "AH", ...)
// before it reaches models.ParseCard, rejecting anything wildly malformed
// early.
func ValidateCardString(card string) error {
	return ValidateStringLength(card, 2, 5, "card")
}
