package execute

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/roach88/climq/internal/vocab"
)

// Display renders a metric value with its column's template. The value is
// rounded to the column precision and substituted for {value}. Without a
// template the unit is appended.
func Display(c vocab.Column, unit string, n decimal.Decimal) string {
	value := n.String()
	if c.Precision >= 0 {
		value = n.StringFixed(int32(c.Precision))
	}

	tmpl := c.Display
	if tmpl == "" {
		if unit == "" {
			return value
		}
		return value + " " + unit
	}
	return strings.ReplaceAll(tmpl, "{value}", value)
}

// number reads a record value as a decimal.
func number(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case int64:
		return decimal.NewFromInt(val), true
	case int:
		return decimal.NewFromInt(int64(val)), true
	case float64:
		return decimal.NewFromFloat(val), true
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(val), ",", ""))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}
