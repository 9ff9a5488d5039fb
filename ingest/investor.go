package ingest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/report-engine/report"
)

// ToInvestor converts a loaded row into an investor record for seeding the
// store. Empty numeric cells become NULL columns; a cell that is not a
// number is an error.
func ToInvestor(d report.Data) (report.Investor, error) {
	inv := report.Investor{}
	if id, ok := d.InvestorID(); ok {
		inv.ID = id
	}
	if name, ok := d[report.FieldInvestorName].(string); ok {
		inv.Name = name
	}
	if email, ok := d[report.FieldEmail].(string); ok {
		inv.Email = email
	}

	columns := map[string]*decimal.NullDecimal{
		report.FieldTotalCommitted:        &inv.TotalCommitted,
		report.FieldTotalDrawdownCalled:   &inv.TotalDrawdownCalled,
		report.FieldTotalDrawdownReceived: &inv.TotalDrawdownReceived,
		report.FieldTotalUndrawn:          &inv.TotalUndrawn,
		report.FieldGrossIRR:              &inv.GrossIRR,
		report.FieldNetIRR:                &inv.NetIRR,
		report.FieldNAV:                   &inv.NAV,
		report.FieldCapitalReturned:       &inv.CapitalReturned,
		report.FieldBalanceCapital:        &inv.BalanceCapital,
		report.FieldTotalReturned:         &inv.TotalReturned,
	}
	for field, dst := range columns {
		v, ok := d[field]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(v))
		if s == "" {
			continue
		}
		dec, err := decimal.NewFromString(s)
		if err != nil {
			return report.Investor{}, fmt.Errorf("%s: %w", field, &report.TypeMismatchError{
				Field: field, Want: "number", Type: fmt.Sprintf("%T", v),
			})
		}
		*dst = decimal.NullDecimal{Decimal: dec, Valid: true}
	}
	return inv, nil
}
