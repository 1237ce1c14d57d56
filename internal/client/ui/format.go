package ui

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var idr = message.NewPrinter(language.Indonesian)

// Rupiah formats an amount with Indonesian digit grouping, e.g. "Rp 1.250.000"
// or "Rp 2,5".
func Rupiah(d decimal.Decimal) string {
	if d.IsInteger() {
		return idr.Sprintf("Rp %d", d.IntPart())
	}
	f, _ := d.Float64()
	return idr.Sprintf("Rp %v", number.Decimal(f, number.MaxFractionDigits(3)))
}

// ImageURL resolves an image reference against origin. Absolute URLs and
// empty references are returned unchanged.
func ImageURL(origin, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if origin == "" {
		return ref
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(ref, "/")
}

// Date formats t as a day, or "-" for the zero time.
func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}
