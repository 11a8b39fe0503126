package constants

import (
	"strings"
	"time"
)

// spanishMonths maps the month names that appear in long-form dates on the
// provider portals. The portals target a single locale, so the table is fixed.
var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// SpanishMonth resolves a localized month name to its calendar month.
func SpanishMonth(name string) (time.Month, bool) {
	m, ok := spanishMonths[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}
