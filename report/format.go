package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RupeeSign prefixes every formatted currency amount.
const RupeeSign = "₹"

var currencyStripper = strings.NewReplacer(RupeeSign, "", ",", "", ";", "")

// FormatCurrency renders an amount with Indian digit grouping, e.g.
// 1234567.5 -> "₹12,34,567.50". Input that does not parse as a number is
// returned unchanged.
func FormatCurrency(amount any) string {
	f, ok := parseNumber(currencyStripper.Replace(toText(amount)))
	if !ok {
		return original(amount)
	}

	d := decimal.NewFromFloat(f).Round(2)
	neg := d.IsNegative()
	d = d.Abs()
	whole := d.Truncate(0)
	frac := d.Sub(whole)

	out := groupIndian(whole.String())
	if !frac.IsZero() {
		out += fmt.Sprintf(".%02d", frac.Shift(2).IntPart())
	}
	if neg {
		out = "-" + out
	}
	return RupeeSign + out
}

// FormatPercentage renders a ratio with one decimal digit, e.g. 12.3456 -> "12.3%".
// Input that does not parse as a number is returned unchanged.
func FormatPercentage(value any) string {
	f, ok := parseNumber(strings.ReplaceAll(toText(value), "%", ""))
	if !ok {
		return original(value)
	}
	return strconv.FormatFloat(f, 'f', 1, 64) + "%"
}

// FormatData returns a copy of d with currency and percentage fields
// replaced by their display strings. Nil values are left alone.
func FormatData(d Data) Data {
	out := d.Clone()
	for _, field := range CurrencyFields {
		if v, ok := out[field]; ok && v != nil {
			out[field] = FormatCurrency(v)
		}
	}
	for _, field := range PercentageFields {
		if v, ok := out[field]; ok && v != nil {
			out[field] = FormatPercentage(v)
		}
	}
	return out
}

// groupIndian inserts separators into a string of digits: the last three
// digits form one group, every group to their left has two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return strings.Join(append(groups, tail), ",")
}

func toText(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case decimal.Decimal:
		return n.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func original(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
