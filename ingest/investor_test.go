package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/report"
)

func TestToInvestor(t *testing.T) {
	inv, err := ToInvestor(report.Data{
		report.FieldID:             int64(3),
		report.FieldInvestorName:   "Asha Rao",
		report.FieldEmail:          "asha@example.com",
		report.FieldTotalCommitted: "1000000.50",
		report.FieldNAV:            nil,
		report.FieldGrossIRR:       " 12.5 ",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(3), inv.ID)
	assert.Equal(t, "Asha Rao", inv.Name)
	assert.Equal(t, "asha@example.com", inv.Email)
	assert.True(t, inv.TotalCommitted.Valid)
	assert.Equal(t, "1000000.5", inv.TotalCommitted.Decimal.String())
	assert.Equal(t, "12.5", inv.GrossIRR.Decimal.String())
	assert.False(t, inv.NAV.Valid)
	assert.False(t, inv.TotalReturned.Valid)
}

func TestToInvestor_NotANumber(t *testing.T) {
	_, err := ToInvestor(report.Data{
		report.FieldInvestorName: "Asha Rao",
		report.FieldNAV:          "n/a",
	})

	var mismatch *report.TypeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, report.FieldNAV, mismatch.Field)
	assert.True(t, report.IsValidationError(err))
}
