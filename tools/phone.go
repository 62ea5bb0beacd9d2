package tools

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeWhatsAppTo leaves only digits in international form, without '+'.
//
// Brasil:
// - 10/11 dígitos (DDD + número) recebem o DDI 55
// - números com DDI (12+ dígitos) ficam como estão
func NormalizeWhatsAppTo(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty phone")
	}

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	digits = strings.TrimLeft(digits, "0")

	switch {
	case len(digits) == 10 || len(digits) == 11:
		digits = "55" + digits
	case len(digits) < 12:
		return "", fmt.Errorf("invalid phone length: %d", len(digits))
	case len(digits) > 15:
		return "", fmt.Errorf("phone too long: %d digits", len(digits))
	}
	return digits, nil
}
