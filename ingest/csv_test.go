package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/report"
)

const sampleCSV = "\ufeffid, investor_name ,total_committed,total_drawdown_called,total_drawdown_received,total_undrawn,gross_irr,net_irr,nav,capital_returned,balance_capital,total_returned\n" +
	"7,Asha Rao,1000000,600000,600000,400000,12.5%,10.2,750000,250000,500000,300000\n" +
	"\n" +
	"8,\"Mehta, Family Trust\",2000000,,,2000000,,,,,,\n"

func TestLoadCSV(t *testing.T) {
	rows, err := LoadCSV(strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, int64(7), first[report.FieldID])
	assert.Equal(t, "Asha Rao", first[report.FieldInvestorName])
	assert.Equal(t, "1000000", first[report.FieldTotalCommitted])
	assert.Equal(t, "12.5%", first[report.FieldGrossIRR])

	second := rows[1]
	assert.Equal(t, "Mehta, Family Trust", second[report.FieldInvestorName])
	assert.Contains(t, second, report.FieldTotalDrawdownCalled, "empty cells are present as nil")
	assert.Nil(t, second[report.FieldTotalDrawdownCalled])
}

func TestLoadCSV_RowsValidate(t *testing.T) {
	rows, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// Empty numeric cells behave like NULL columns
	validated, err := report.ValidateData(rows[1])
	require.NoError(t, err)
	assert.Equal(t, 0.0, validated[report.FieldNAV])
	assert.Equal(t, 2000000.0, validated[report.FieldTotalCommitted])
}

func TestLoadCSV_MissingColumnFailsValidation(t *testing.T) {
	rows, err := LoadCSV(strings.NewReader("investor_name,total_committed\nAsha,100\n"))
	require.NoError(t, err)

	_, err = report.ValidateData(rows[0])

	var missing *report.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.NotContains(t, missing.Fields, report.FieldInvestorName)
	assert.Contains(t, missing.Fields, report.FieldNAV)
}

func TestLoadCSV_Errors(t *testing.T) {
	_, err := LoadCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "investors.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	rows, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	_, err = LoadFile(filepath.Join(dir, "investors.xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
