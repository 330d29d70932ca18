package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var amountCleaner = strings.NewReplacer("$", "", ",", "")

// ParseAmount reads a financial amount, dropping currency symbols and
// thousands separators.
func ParseAmount(s string) (float64, error) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return amount, nil
}

// Dates appear both slash and dash separated, with two or four digit years.
var dateLayouts = []string{"1/2/2006", "1/2/06", "1-2-2006", "1-2-06"}

// ParseDate reads a statement or transaction date in month-day-year order.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
