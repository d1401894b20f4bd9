package normalize

import (
	"fmt"
	"strings"
	"unicode"
)

// maxMoneyDigits keeps minor units within int64
const maxMoneyDigits = 17

// symbolCodes maps common currency symbols to ISO 4217 codes. Symbols not
// listed are kept verbatim as the currency.
var symbolCodes = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
	"₹": "INR",
	"₩": "KRW",
	"₽": "RUB",
	"₺": "TRY",
	"₪": "ILS",
	"₫": "VND",
	"₴": "UAH",
	"₦": "NGN",
	"₱": "PHP",
}

// Amount is a parsed monetary value
type Amount struct {
	Minor    int64
	Currency string // ISO code or unmapped symbol; empty when none given
}

// String renders the canonical form: "-?D.DD" or "CUR -?D.DD"
func (a Amount) String() string {
	if a.Currency == "" {
		return FormatMinor(a.Minor)
	}
	return a.Currency + " " + FormatMinor(a.Minor)
}

// Money parses a monetary amount to canonical "-?D.DD" form, prefixed by
// the currency code when the input names one. Currency symbols, three-letter
// codes, thousands separators, and accounting parentheses are accepted.
// Amounts with sub-cent precision are rejected rather than rounded.
func Money(raw string) (string, bool) {
	amt, ok := ParseAmount(raw)
	if !ok {
		return "", false
	}
	return amt.String(), true
}

// MinorUnits parses raw into an integer count of minor currency units
func MinorUnits(raw string) (int64, bool) {
	amt, ok := ParseAmount(raw)
	return amt.Minor, ok
}

// ParseAmount splits raw into minor units and currency. Inputs naming two
// different currencies are rejected.
func ParseAmount(raw string) (Amount, bool) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var cur currencySet
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) {
			sym := string(r)
			if code, ok := symbolCodes[sym]; ok {
				sym = code
			}
			cur.add(sym)
			return -1
		}
		return r
	}, s)
	s = cur.cutCode(strings.TrimSpace(s))

	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	} else if strings.HasSuffix(s, "-") {
		negative = !negative
		s = s[:len(s)-1]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	s = cur.cutCode(strings.TrimSpace(s))
	if cur.mixed {
		return Amount{}, false
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', '_', '\'', ' ', '\u00a0':
			return -1
		}
		return r
	}, s)

	whole, frac, _ := strings.Cut(s, ".")
	if !digitsOnly(whole) || !digitsOnly(frac) || (whole == "" && frac == "") {
		return Amount{}, false
	}
	if len(frac) > 2 {
		if strings.Trim(frac[2:], "0") != "" {
			return Amount{}, false
		}
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	whole = strings.TrimLeft(whole, "0")
	if len(whole)+2 > maxMoneyDigits {
		return Amount{}, false
	}

	var minor int64
	for _, r := range whole + frac {
		minor = minor*10 + int64(r-'0')
	}
	if negative {
		minor = -minor
	}
	return Amount{Minor: minor, Currency: cur.code}, true
}

// FormatMinor renders minor units as "-?D.DD"
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// currencySet records the currency named by an amount and whether the
// input named more than one
type currencySet struct {
	code  string
	mixed bool
}

func (c *currencySet) add(code string) {
	switch {
	case c.code == "":
		c.code = code
	case c.code != code:
		c.mixed = true
	}
}

// cutCode strips a leading or trailing three-letter code from s
func (c *currencySet) cutCode(s string) string {
	if len(s) >= 3 && isLetters(s[:3]) && (len(s) == 3 || !unicode.IsLetter(rune(s[3]))) {
		c.add(strings.ToUpper(s[:3]))
		s = strings.TrimSpace(s[3:])
	}
	if n := len(s); n >= 3 && isLetters(s[n-3:]) && (n == 3 || !unicode.IsLetter(rune(s[n-4]))) {
		c.add(strings.ToUpper(s[n-3:]))
		s = strings.TrimSpace(s[:n-3])
	}
	return s
}

func isLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
