package models

import (
	"fmt"
	"strconv"
	"strings"
)

// QuoteItem is a single line of a mechanic's price proposal. Price stays a
// string on the wire; ParsePrice gives the exact value.
type QuoteItem struct {
	Name  string `json:"item"`
	Price string `json:"price"`
}

type Quote struct {
	Items    []QuoteItem `json:"quoted_items"`
	Note     string      `json:"providers_note,omitempty"`
	Accepted bool        `json:"accepted,omitempty"`
}

// ParsePrice converts a decimal price string into exact cents. Accepts at
// most two fractional digits, rejects negatives and anything unparseable.
func ParsePrice(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "." {
		return 0, ErrInvalidPrice
	}

	whole := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if len(frac) > 2 {
			return 0, ErrInvalidPrice
		}
	}
	if whole == "" {
		whole = "0"
	}
	// Both parts must be bare digits; this rejects signs anywhere, including
	// inside the fraction ("0.-5").
	if !allDigits(whole) || !allDigits(frac) {
		return 0, ErrInvalidPrice
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidPrice
	}
	cents64 := int64(0)
	if frac != "00" {
		cents64, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrInvalidPrice
		}
	}
	return units*100 + cents64, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// FormatCents renders cents back to a two-decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ValidItems filters line items to those with a non-empty name and a
// parseable non-negative price.
func (q Quote) ValidItems() []QuoteItem {
	var valid []QuoteItem
	for _, item := range q.Items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		if _, err := ParsePrice(item.Price); err != nil {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

// TotalCents sums the valid line items in exact cents.
func (q Quote) TotalCents() int64 {
	var total int64
	for _, item := range q.ValidItems() {
		cents, _ := ParsePrice(item.Price)
		total += cents
	}
	return total
}

// Total renders the sum as a two-decimal string, e.g. "1300.00".
func (q Quote) Total() string {
	return FormatCents(q.TotalCents())
}
