package filter

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyPrefix = regexp.MustCompile(`(?i)^R\$?`)
	whitespace     = regexp.MustCompile(`\s+`)
	plainDecimal   = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// ParseMoney reads a pt-BR formatted amount such as "R$ 1.234,56". Dots are
// thousands separators and the comma is the decimal point. Empty or malformed
// input reports ok=false.
func ParseMoney(s string) (float64, bool) {
	v := NormalizeMoney(s)
	if !plainDecimal.MatchString(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NormalizeMoney returns the dotted-decimal text ParseMoney would read. The
// Postgres compiler mirrors these steps in SQL.
func NormalizeMoney(s string) string {
	v := whitespace.ReplaceAllString(s, "")
	v = currencyPrefix.ReplaceAllString(v, "")
	v = strings.ReplaceAll(v, ".", "")
	return strings.Replace(v, ",", ".", 1)
}
