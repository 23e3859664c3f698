// Package format turns numbers and dates into display strings for the
// configured locale. Malformed input never fails: it degrades to a sentinel.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/aiki-no/aiki-cli/internal/rng"
)

// Locale describes the single supported display locale.
type Locale struct {
	Tag        string
	Currency   string
	DateFormat string
}

// DefaultLocale is nb-NO with NOK and dd.mm.yyyy dates.
func DefaultLocale() Locale {
	return Locale{Tag: "nb-NO", Currency: "NOK", DateFormat: "dd.mm.yyyy"}
}

// Formatter formats values for one locale. It is safe for concurrent use.
type Formatter struct {
	tag      language.Tag
	printer  *message.Printer
	currency string
	layout   string
	clock    clockwork.Clock
	rand     rng.Source
}

// New creates a Formatter. A nil clock or random source falls back to the
// real clock and a time-seeded source.
func New(loc Locale, clock clockwork.Clock, src rng.Source) *Formatter {
	def := DefaultLocale()
	if loc.Currency == "" {
		loc.Currency = def.Currency
	}
	if loc.DateFormat == "" {
		loc.DateFormat = def.DateFormat
	}

	tag, err := language.Parse(loc.Tag)
	if err != nil {
		zap.L().Debug("format: unknown locale, using nb-NO", zap.String("locale", loc.Tag))
		tag = language.MustParse(def.Tag)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if src == nil {
		src = rng.Default()
	}

	return &Formatter{
		tag:      tag,
		printer:  message.NewPrinter(tag),
		currency: loc.Currency,
		layout:   DateLayout(loc.DateFormat),
		clock:    clock,
		rand:     src,
	}
}

// Currency returns the configured currency code.
func (f *Formatter) Currency() string { return f.currency }

// Now returns the current time from the injected clock.
func (f *Formatter) Now() time.Time { return f.clock.Now() }

// FormatCurrency renders amount with locale grouping, no decimals and the
// currency suffix, e.g. "50 000 NOK". Non-finite input yields "0 NOK".
func (f *Formatter) FormatCurrency(amount float64) string {
	if !finite(amount) {
		zap.L().Debug("format: degraded currency value", zap.Float64("amount", amount))
		return "0 " + f.currency
	}
	return f.printer.Sprintf("%d", int64(math.Round(amount))) + " " + f.currency
}

// FormatNumber renders n with locale grouping. Non-finite input yields "0".
func (f *Formatter) FormatNumber(n float64) string {
	if !finite(n) {
		zap.L().Debug("format: degraded number value", zap.Float64("value", n))
		return "0"
	}
	if n == math.Trunc(n) {
		return f.printer.Sprintf("%d", int64(n))
	}
	return f.printer.Sprintf("%.2f", n)
}

// FormatPercent renders value with a fixed number of decimals and a "%"
// suffix. Non-finite input yields "0%".
func (f *Formatter) FormatPercent(value float64, decimals int) string {
	if !finite(value) {
		zap.L().Debug("format: degraded percent value", zap.Float64("value", value))
		return "0%"
	}
	if decimals < 0 {
		decimals = 0
	}
	return strconv.FormatFloat(value, 'f', decimals, 64) + "%"
}

// FormatDate renders t in the configured date format.
func (f *Formatter) FormatDate(t time.Time) string {
	return t.Format(f.layout)
}

// FormatDateTime renders t as date plus hours and minutes.
func (f *Formatter) FormatDateTime(t time.Time) string {
	return t.Format(f.layout + " 15:04")
}

// ExpiryDate returns today plus days calendar days.
func (f *Formatter) ExpiryDate(days int) string {
	return f.FormatDate(f.clock.Now().AddDate(0, 0, days))
}

// Upper upper-cases s using the locale's casing rules.
func (f *Formatter) Upper(s string) string {
	return cases.Upper(f.tag).String(s)
}

// DateLayout converts a dd.mm.yyyy style pattern into a Go time layout.
func DateLayout(pattern string) string {
	r := strings.NewReplacer("yyyy", "2006", "yy", "06", "dd", "02", "mm", "01")
	return r.Replace(strings.ToLower(pattern))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
