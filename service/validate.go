package service

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"mileage/trip"
)

const (
	maxTextLength = 200
	maxWaypoints  = 20
)

// symbols allowed in free text on top of letters, digits and spaces
var allowedSafeSymbols = map[rune]bool{
	'_':  true,
	'-':  true,
	'.':  true,
	',':  true,
	'@':  true,
	'#':  true,
	'(':  true,
	')':  true,
	'/':  true,
	'&':  true,
	'\'': true,
	' ':  true,
}

func isSecureString(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if !allowedSafeSymbols[r] {
			return false
		}
	}
	return true
}

// verifyText trims s and checks it is non-empty and reasonably short. Any
// characters are kept: addresses come back from the map search as is.
func verifyText(field, s string) (string, error) {
	s, err := verifyOptionalText(field, s)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", invalid(field, "is required")
	}
	return s, nil
}

func verifyOptionalText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxTextLength {
		return "", invalid(field, "must be at most %d characters", maxTextLength)
	}
	return s, nil
}

// verifyName is verifyText restricted to letters, digits and a few symbols.
// Employees log in with their name.
func verifyName(field, s string) (string, error) {
	s, err := verifyText(field, s)
	if err != nil {
		return "", err
	}
	if !isSecureString(s) {
		return "", invalid(field, "contains unsupported characters")
	}
	return s, nil
}

func verifyTextList(field string, list []string) ([]string, error) {
	if len(list) > maxWaypoints {
		return nil, invalid(field, "at most %d entries allowed", maxWaypoints)
	}
	ret := make([]string, 0, len(list))
	for _, s := range list {
		v, err := verifyText(field, s)
		if err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return ret, nil
}

func isPIN(s string) bool {
	if len(s) != 4 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func verifyPeriod(year, month int) error {
	if !trip.ValidPeriod(year, month) {
		return invalid("period", "%04d-%02d is not a valid settlement month", year, month)
	}
	return nil
}
