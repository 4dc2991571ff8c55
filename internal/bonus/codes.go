// Package bonus provides the static bonus code table.
// A bonus code grants a fixed point/dollar award, redeemable either once
// per account per day or once per account ever.
package bonus

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OnceEverKey is the period key recorded for non-daily codes.
const OnceEverKey = "used"

// Code holds the configuration for one bonus code.
type Code struct {
	Code    string
	Points  int64
	Dollars decimal.Decimal
	Daily   bool // true: once per calendar day; false: once ever
}

// Table maps normalized codes to their configuration.
type Table struct {
	codes map[string]Code
}

// NewTable builds a Table, normalizing each code to upper case.
func NewTable(codes []Code) *Table {
	m := make(map[string]Code, len(codes))
	for _, c := range codes {
		c.Code = Normalize(c.Code)
		m[c.Code] = c
	}
	return &Table{codes: m}
}

// Default returns the production bonus code table.
func Default() *Table {
	return NewTable([]Code{
		{Code: "BASER", Points: 2000, Dollars: decimal.Zero, Daily: true},
		{Code: "BOTYZEMAN", Points: 100000, Dollars: decimal.Zero, Daily: true},
		{Code: "EARNSBOTT", Points: 0, Dollars: decimal.NewFromInt(15), Daily: true},
		{Code: "BONUSBOTTER", Points: 0, Dollars: decimal.NewFromInt(100), Daily: true},
		{Code: "GAINMASTER", Points: 50000, Dollars: decimal.NewFromInt(100), Daily: true},
	})
}

// Normalize trims whitespace and upper-cases a raw code string.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Lookup resolves a raw code string. The lookup is case-insensitive.
func (t *Table) Lookup(raw string) (Code, bool) {
	c, ok := t.codes[Normalize(raw)]
	return c, ok
}

// PeriodKey returns the redemption key an account records for this code:
// the UTC calendar date for daily codes, a fixed sentinel otherwise.
func (c Code) PeriodKey(now time.Time) string {
	if c.Daily {
		return now.UTC().Format("2006-01-02")
	}
	return OnceEverKey
}
