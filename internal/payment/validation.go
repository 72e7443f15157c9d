// Package payment validates the checkout card form the same way the web client does.
package payment

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var (
	expiryPattern = regexp.MustCompile(`^(\d{2})/(\d{2})$`)
	cvcPattern    = regexp.MustCompile(`^\d{3,4}$`)
	namePattern   = regexp.MustCompile(`^[A-Za-z\s]{2,26}$`)
)

// ValidCardNumber applies the Luhn check to 13..19 digits. Whitespace is ignored.
func ValidCardNumber(number string) bool {
	digits := strings.Join(strings.Fields(number), "")
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		c := digits[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ExpiryStatus is the outcome of checking an MM/YY expiry.
type ExpiryStatus int

const (
	ExpiryValid ExpiryStatus = iota
	ExpiryMalformed
	ExpiryPast
)

// CheckExpiry parses MM/YY and compares it with now. The card is valid through its expiry month.
func CheckExpiry(expiry string, now time.Time) ExpiryStatus {
	m := expiryPattern.FindStringSubmatch(expiry)
	if m == nil {
		return ExpiryMalformed
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	year += 2000
	if month < 1 || month > 12 {
		return ExpiryMalformed
	}
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		return ExpiryPast
	}
	return ExpiryValid
}

// ValidExpiry reports whether expiry is well formed and not in the past.
func ValidExpiry(expiry string, now time.Time) bool {
	return CheckExpiry(expiry, now) == ExpiryValid
}

// ValidCVC accepts 3 or 4 digits.
func ValidCVC(cvc string) bool {
	return cvcPattern.MatchString(cvc)
}

// ValidCardholderName accepts 2..26 Latin letters and spaces.
func ValidCardholderName(name string) bool {
	return namePattern.MatchString(strings.TrimSpace(name))
}

// FormatCardNumber keeps the first 16 digits and groups them by four.
func FormatCardNumber(value string) string {
	digits := onlyDigits(value, 16)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatExpiry turns up to four digits into MM/YY.
func FormatExpiry(value string) string {
	digits := onlyDigits(value, 4)
	if len(digits) >= 2 {
		return digits[:2] + "/" + digits[2:]
	}
	return digits
}

func onlyDigits(value string, max int) string {
	var b strings.Builder
	for _, r := range value {
		if b.Len() == max {
			break
		}
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
