package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/language"

	"resume-pricing-api/internal/models"
	"resume-pricing-api/internal/pricing"
)

// MaxHistoryLimit caps the history page size.
const MaxHistoryLimit = 200

var currencyRegex = regexp.MustCompile(`^[A-Za-z]{3}$`)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

// ValidateCurrency accepts a supported ISO code in any case.
func ValidateCurrency(code, fieldName string) (models.Currency, error) {
	code = SanitizeString(code)
	if code == "" {
		return "", &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	if !currencyRegex.MatchString(code) {
		return "", &ValidationError{
			Field:   fieldName,
			Message: "must be a 3-letter ISO 4217 code",
		}
	}

	cur, ok := pricing.NormalizeCurrency(code)
	if !ok {
		return "", &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("unsupported currency %q", strings.ToUpper(code)),
		}
	}

	return cur, nil
}

// ValidateLocale returns the canonical BCP 47 form of locale. An empty
// locale is allowed and left empty.
func ValidateLocale(locale, fieldName string) (string, error) {
	locale = SanitizeString(locale)
	if locale == "" {
		return "", nil
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", &ValidationError{
			Field:   fieldName,
			Message: "must be a valid BCP 47 language tag",
		}
	}

	return tag.String(), nil
}

func ValidateTimeString(timeStr, fieldName string) (time.Time, error) {
	if timeStr == "" {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	timeStr = SanitizeString(timeStr)

	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   fieldName,
			Message: "must be in RFC3339 format (e.g., 2025-10-21T10:00:00Z)",
		}
	}

	return t, nil
}

// ValidateLimit parses an optional page size. Empty yields def.
func ValidateLimit(raw, fieldName string, def int) (int, error) {
	raw = SanitizeString(raw)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, &ValidationError{
			Field:   fieldName,
			Message: "must be a positive integer",
		}
	}

	if n > MaxHistoryLimit {
		return 0, &ValidationError{
			Field:   fieldName,
			Message: fmt.Sprintf("cannot exceed %d", MaxHistoryLimit),
		}
	}

	return n, nil
}
