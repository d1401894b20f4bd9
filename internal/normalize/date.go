package normalize

import (
	"strings"
	"time"
)

// ISODate is the canonical date layout
const ISODate = "2006-01-02"

// dateLayouts are tried in order. Slashed and dashed numeric dates are
// month-first; dotted numeric dates are day-first.
var dateLayouts = []string{
	ISODate,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"20060102",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"02.01.2006",
	"2.1.2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Monday, January 2, 2006",
}

// Date parses raw into a canonical YYYY-MM-DD calendar date.
// Timestamps keep the calendar date in their own offset.
func Date(raw string) (string, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISODate), true
		}
	}
	return "", false
}
