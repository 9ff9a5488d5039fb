package report

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Tolerance is the largest difference two totals may have and still be
// considered equal.
const Tolerance = 0.01

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
)

type requiredField struct {
	name string
	kind fieldKind
}

// requiredFields is ordered; MissingFieldError reports in this order.
var requiredFields = []requiredField{
	{FieldInvestorName, kindString},
	{FieldTotalCommitted, kindNumber},
	{FieldTotalDrawdownCalled, kindNumber},
	{FieldTotalDrawdownReceived, kindNumber},
	{FieldTotalUndrawn, kindNumber},
	{FieldGrossIRR, kindNumber},
	{FieldNetIRR, kindNumber},
	{FieldNAV, kindNumber},
	{FieldCapitalReturned, kindNumber},
	{FieldBalanceCapital, kindNumber},
	{FieldTotalReturned, kindNumber},
}

// RequiredFields returns the names of the fields ValidateData insists on.
func RequiredFields() []string {
	names := make([]string, len(requiredFields))
	for i, f := range requiredFields {
		names[i] = f.name
	}
	return names
}

// ValidateData checks that every required field is present and returns a
// copy with values coerced to their expected types: the name to string,
// financial fields to float64. A present but nil numeric field becomes 0.
// The input map is not modified.
func ValidateData(d Data) (Data, error) {
	var missing []string
	for _, f := range requiredFields {
		if _, ok := d[f.name]; !ok {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldError{Fields: missing}
	}

	out := d.Clone()
	for _, f := range requiredFields {
		v := out[f.name]
		switch f.kind {
		case kindString:
			switch s := v.(type) {
			case string:
			case nil:
				out[f.name] = ""
			default:
				out[f.name] = fmt.Sprint(s)
			}
		case kindNumber:
			if v == nil {
				out[f.name] = 0.0
				continue
			}
			n, err := toFloat(v)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, &TypeMismatchError{Field: f.name, Want: "number", Type: fmt.Sprintf("%T", v)}
			}
			out[f.name] = n
		}
	}
	return out, nil
}

// ValidateConsistency cross-checks the totals of validated data. Committed
// capital must reconcile with undrawn plus called capital; the drawdown and
// NAV checks only log a warning.
func ValidateConsistency(d Data, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	num := func(field string) float64 {
		f, _ := d[field].(float64)
		return f
	}

	committed := num(FieldTotalCommitted)
	called := num(FieldTotalDrawdownCalled)
	if sum := num(FieldTotalUndrawn) + called; math.Abs(sum-committed) > Tolerance {
		return &DataConsistencyError{
			Rule:     "total_undrawn + total_drawdown_called != total_committed",
			Expected: committed,
			Actual:   sum,
		}
	}

	if received := num(FieldTotalDrawdownReceived); math.Abs(called-received) > Tolerance {
		log.Warn("mismatch in drawdown amounts",
			zap.String("investor", d.Name()),
			zap.Float64("called", called),
			zap.Float64("received", received))
	}

	nav := num(FieldNAV)
	if sum := num(FieldBalanceCapital) + num(FieldCapitalReturned); math.Abs(sum-nav) > Tolerance {
		log.Warn("nav does not match balance_capital + capital_returned",
			zap.String("investor", d.Name()),
			zap.Float64("nav", nav),
			zap.Float64("sum", sum))
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case decimal.Decimal:
		return n.InexactFloat64(), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
