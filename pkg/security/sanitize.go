package security

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlTagsRegex = regexp.MustCompile(`<[^>]*>`)

	// JSON string fields whose values never reach the logs.
	sensitiveFieldRegex = regexp.MustCompile(`(?i)"(password|otp|code|cvv|cvc|card_number|cardNumber|token)"\s*:\s*"[^"]*"`)

	// 13 to 19 digit runs, optionally grouped by spaces or dashes.
	panRegex = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
)

// SanitizeString trims input and removes null bytes and control characters.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return removeControlCharacters(input)
}

// StripHTMLTags removes all HTML tags from input
func StripHTMLTags(input string) string {
	return htmlTagsRegex.ReplaceAllString(input, "")
}

// RedactSecrets masks credential fields and anything shaped like a card number.
func RedactSecrets(input string) string {
	input = sensitiveFieldRegex.ReplaceAllStringFunc(input, func(m string) string {
		idx := strings.Index(m, ":")
		return m[:idx+1] + `"[REDACTED]"`
	})
	return panRegex.ReplaceAllString(input, "[PAN]")
}

// TruncateString limits input to maxLength bytes.
func TruncateString(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	return input[:maxLength]
}

func removeControlCharacters(input string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, input)
}
