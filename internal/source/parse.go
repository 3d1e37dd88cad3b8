package source

import (
	"regexp"
	"strconv"
	"strings"

	"carwatch/internal/model"
)

var (
	digitsRe   = regexp.MustCompile(`[^\d]`)
	yearRe     = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	mileageRe  = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(k|rb)?\s*(?:km|kilometer)\b`)
	rupiahRe   = regexp.MustCompile(`(?i)rp\.?\s*([\d.,]+)\s*(jt|juta|m\b|miliar|milyar)?`)
	bareJutaRe = regexp.MustCompile(`(?i)\b(\d[\d.,]*)\s*(jt|juta|miliar|milyar)\b`)
	manualRe   = regexp.MustCompile(`(?i)\b(manual|mt|m/t)\b`)
	maticRe    = regexp.MustCompile(`(?i)\b(matic|automatic|otomatis|at|a/t|cvt)\b`)
)

// digitsOnly strips everything but digits and parses the remainder.
// Returns 0 when nothing numeric is present or the value overflows.
func digitsOnly(s string) int64 {
	digits := digitsRe.ReplaceAllString(s, "")
	if digits == "" {
		return 0
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parsePrice extracts an integer rupiah amount from a display string such
// as "Rp 150.000.000", "Rp150,000,000" or "150 jt". When no explicit
// rupiah/juta token is present, the whole string is treated as one number
// (the form price widgets render).
func parsePrice(s string) int64 {
	if m := rupiahRe.FindStringSubmatch(s); m != nil {
		return applyMultiplier(digitsOnly(m[1]), m[2])
	}
	if m := bareJutaRe.FindStringSubmatch(s); m != nil {
		return applyMultiplier(digitsOnly(m[1]), m[2])
	}
	return digitsOnly(s)
}

func applyMultiplier(v int64, unit string) int64 {
	switch strings.ToLower(unit) {
	case "jt", "juta":
		v *= 1_000_000
	case "m", "miliar", "milyar":
		v *= 1_000_000_000
	}
	return v
}

// priceFromText extracts a rupiah amount from free prose. Unlike parsePrice
// it never falls back to digit-stripping, since prose is full of unrelated
// numbers (years, mileage, phone numbers).
func priceFromText(s string) int64 {
	if rupiahRe.MatchString(s) || bareJutaRe.MatchString(s) {
		return parsePrice(s)
	}
	return 0
}

// parseYear finds a plausible model year token in free text. Returns 0 when
// none is present.
func parseYear(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}

// parseMileage extracts a kilometer reading from free text such as
// "45.000 km" or "40 rb KM". For ranges ("40-45.000 km") the matched number
// is the upper bound as written. Returns 0 when absent or unparseable.
func parseMileage(s string) int {
	m := mileageRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	digits := digitsRe.ReplaceAllString(m[1], "")
	if digits == "" {
		return 0
	}
	km, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	// "40 rb km" and "40k km" mean thousands.
	if m[2] != "" {
		km *= 1000
	}
	return km
}

// parseTransmission detects the gearbox type from free text. Manual wins
// over automatic when both words appear (dealer boilerplate often lists
// every variant).
func parseTransmission(s string) model.Transmission {
	switch {
	case manualRe.MatchString(s):
		return model.TransmissionManual
	case maticRe.MatchString(s):
		return model.TransmissionAutomatic
	default:
		return model.TransmissionUnknown
	}
}

// absoluteURL resolves href against base when href is site-relative.
func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}
