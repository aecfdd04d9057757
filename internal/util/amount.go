package util

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	amountPattern     = regexp.MustCompile(`^(?:\d{1,3}(?:[ .,]\d{3})+(?:[.,]\d+)?|\d+(?:[.,]\d+)?)$`)
	groupedDotPattern = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	groupedComma      = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	currencyMarkers   = []string{"us$", "r$", "brl", "usd", "eur", "$", "€"}
)

// ParseNumber parses a plain machine-formatted number. Locale grouping is
// rejected so that "1.234,56" stays text when a column is typed.
func ParseNumber(input string) (float64, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParseAmount coerces a whole cell to a monetary amount. It accepts currency
// markers, signs, accounting parentheses and either decimal mark. Cells that
// carry any other text do not parse.
func ParseAmount(input string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(input, "\u00a0", " ")))
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	s, negative = stripSign(s, negative)
	s = stripCurrency(s)
	s, negative = stripSign(s, negative)

	if !amountPattern.MatchString(s) {
		// exponent and other machine forms
		return ParseNumber(input)
	}

	v, err := strconv.ParseFloat(normalizeNumericToken(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

func stripSign(s string, negative bool) (string, bool) {
	switch {
	case strings.HasPrefix(s, "-"):
		return strings.TrimSpace(s[1:]), !negative
	case strings.HasSuffix(s, "-"):
		return strings.TrimSpace(s[:len(s)-1]), !negative
	case strings.HasPrefix(s, "+"):
		return strings.TrimSpace(s[1:]), negative
	}
	return s, negative
}

func stripCurrency(s string) string {
	for _, marker := range currencyMarkers {
		if strings.HasPrefix(s, marker) {
			return strings.TrimSpace(s[len(marker):])
		}
		if strings.HasSuffix(s, marker) {
			return strings.TrimSpace(s[:len(s)-len(marker)])
		}
	}
	return s
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	hasDot := strings.Contains(compact, ".")
	hasComma := strings.Contains(compact, ",")

	switch {
	case hasDot && hasComma:
		// the right-most mark is the decimal separator
		if strings.LastIndex(compact, ",") > strings.LastIndex(compact, ".") {
			compact = strings.ReplaceAll(compact, ".", "")
			return strings.ReplaceAll(compact, ",", ".")
		}
		return strings.ReplaceAll(compact, ",", "")
	case hasDot:
		if groupedDotPattern.MatchString(compact) {
			return strings.ReplaceAll(compact, ".", "")
		}
		return compact
	case hasComma:
		if groupedComma.MatchString(compact) {
			return strings.ReplaceAll(compact, ",", "")
		}
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }

func IntPtr(v int) *int { return &v }
