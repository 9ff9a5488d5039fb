/*
Package report implements investor report generation.

PURPOSE:
  Turns one investor's financial summary into an HTML report and, when a
  PDF engine is available, a PDF rendition of it. The package owns the
  whole pipeline: validation, display formatting, report id sequencing,
  template rendering, PDF conversion and the transactional write-back.

KEY CONCEPTS IN THIS FILE (investor.go):
  - Investor: the persisted investor row, as read from the store
  - Data:     loosely typed field map the pipeline consumes
  - Field names shared by the validator, formatter and template

DATA FLOW:
  Investor.Data() -> Normalize -> ValidateData -> ValidateConsistency
    -> FormatData -> Sequencer -> Renderer -> Converter -> Store.SaveReport

SEE ALSO:
  - generator.go: Orchestrates the pipeline
  - store.go: Persistence contract
*/
package report

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FIELD NAMES
// =============================================================================

const (
	FieldID                    = "id"
	FieldInvestorName          = "investor_name"
	FieldEmail                 = "email"
	FieldTotalCommitted        = "total_committed"
	FieldTotalDrawdownCalled   = "total_drawdown_called"
	FieldTotalDrawdownReceived = "total_drawdown_received"
	FieldTotalUndrawn          = "total_undrawn"
	FieldGrossIRR              = "gross_irr"
	FieldNetIRR                = "net_irr"
	FieldNAV                   = "nav"
	FieldCapitalReturned       = "capital_returned"
	FieldBalanceCapital        = "balance_capital"
	FieldTotalReturned         = "total_returned"

	FieldGeneratedDate = "generated_date"
	FieldReportPeriod  = "report_period"
	FieldReportID      = "report_id"
)

// CurrencyFields are rendered with FormatCurrency.
var CurrencyFields = []string{
	FieldTotalCommitted,
	FieldTotalDrawdownCalled,
	FieldTotalDrawdownReceived,
	FieldTotalUndrawn,
	FieldNAV,
	FieldCapitalReturned,
	FieldBalanceCapital,
	FieldTotalReturned,
}

// PercentageFields are rendered with FormatPercentage.
var PercentageFields = []string{
	FieldGrossIRR,
	FieldNetIRR,
}

// =============================================================================
// DATA - Field map flowing through the pipeline
// =============================================================================

// Data holds investor fields keyed by column name.
type Data map[string]any

// Clone returns a shallow copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Name returns the investor name for log lines, or "Unknown".
func (d Data) Name() string {
	if s, ok := d[FieldInvestorName].(string); ok && s != "" {
		return s
	}
	return "Unknown"
}

// InvestorID returns the "id" field as an int64.
func (d Data) InvestorID() (int64, bool) {
	switch v := d[FieldID].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// Normalize returns a copy where decimal and integer typed values have been
// converted to float64. Other values are kept as they are.
func Normalize(d Data) Data {
	out := d.Clone()
	for k, v := range out {
		if k == FieldID {
			continue
		}
		switch n := v.(type) {
		case decimal.Decimal:
			out[k] = n.InexactFloat64()
		case *decimal.Decimal:
			if n == nil {
				out[k] = nil
			} else {
				out[k] = n.InexactFloat64()
			}
		case decimal.NullDecimal:
			if n.Valid {
				out[k] = n.Decimal.InexactFloat64()
			} else {
				out[k] = nil
			}
		case int:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		case float32:
			out[k] = float64(n)
		}
	}
	return out
}

// =============================================================================
// INVESTOR - Persisted row
// =============================================================================

// Investor is one row of the investors relation.
type Investor struct {
	ID    int64
	Name  string
	Email string

	TotalCommitted        decimal.NullDecimal
	TotalDrawdownCalled   decimal.NullDecimal
	TotalDrawdownReceived decimal.NullDecimal
	TotalUndrawn          decimal.NullDecimal
	GrossIRR              decimal.NullDecimal
	NetIRR                decimal.NullDecimal
	NAV                   decimal.NullDecimal
	CapitalReturned       decimal.NullDecimal
	BalanceCapital        decimal.NullDecimal
	TotalReturned         decimal.NullDecimal

	// Report artifacts, written only by the generator.
	ReportID          string
	HTMLReport        string
	PDFReport         []byte
	ReportGeneratedAt *time.Time
}

// Data returns the investor's fields as pipeline input. NULL numeric
// columns map to nil.
func (inv Investor) Data() Data {
	return Data{
		FieldID:                    inv.ID,
		FieldInvestorName:          inv.Name,
		FieldEmail:                 inv.Email,
		FieldTotalCommitted:        nullable(inv.TotalCommitted),
		FieldTotalDrawdownCalled:   nullable(inv.TotalDrawdownCalled),
		FieldTotalDrawdownReceived: nullable(inv.TotalDrawdownReceived),
		FieldTotalUndrawn:          nullable(inv.TotalUndrawn),
		FieldGrossIRR:              nullable(inv.GrossIRR),
		FieldNetIRR:                nullable(inv.NetIRR),
		FieldNAV:                   nullable(inv.NAV),
		FieldCapitalReturned:       nullable(inv.CapitalReturned),
		FieldBalanceCapital:        nullable(inv.BalanceCapital),
		FieldTotalReturned:         nullable(inv.TotalReturned),
	}
}

func nullable(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}

// Amount builds a valid NullDecimal from a float, for seeding rows.
func Amount(v float64) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(v), Valid: true}
}
