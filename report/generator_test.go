/*
generator_test.go - Tests for the report generation pipeline

Tests for:
- Standalone generation into the output directory
- Generation saved to the store, regeneration, sequence numbering
- Failure stages and the guarantee that early failures leave the store alone
- PDF output disabled vs. PDF engine failing
*/
package report_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/report"
	"github.com/warp/report-engine/store/memory"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

var today = time.Date(2024, 3, 15, 10, 30, 0, 0, time.Local)

type fakeConverter struct {
	err   error
	calls int
}

func (f *fakeConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4"), nil
}

// commitFailStore runs the transaction body and then fails as a commit would.
type commitFailStore struct {
	*memory.Memory
}

var errCommit = errors.New("commit failed")

func (s commitFailStore) WithTx(ctx context.Context, fn func(report.ReportTx) error) error {
	if err := s.Memory.WithTx(ctx, fn); err != nil {
		return err
	}
	return errCommit
}

func newGenerator(t *testing.T, store report.Store, conv report.Converter) (*report.Generator, string) {
	t.Helper()
	renderer, err := report.NewRenderer("")
	require.NoError(t, err)
	dir := t.TempDir()
	return report.NewGenerator(store, renderer, conv, dir,
		report.WithClock(func() time.Time { return today })), dir
}

func investor() report.Investor {
	return report.Investor{
		Name:                  "Asha Rao",
		Email:                 "asha@example.com",
		TotalCommitted:        report.Amount(1000000),
		TotalDrawdownCalled:   report.Amount(600000),
		TotalDrawdownReceived: report.Amount(600000),
		TotalUndrawn:          report.Amount(400000),
		GrossIRR:              report.Amount(12.3456),
		NetIRR:                report.Amount(10),
		NAV:                   report.Amount(750000),
		CapitalReturned:       report.Amount(250000),
		BalanceCapital:        report.Amount(500000),
		TotalReturned:         report.Amount(300000),
	}
}

func seeded(t *testing.T, inv report.Investor) (*memory.Memory, report.Data) {
	t.Helper()
	store := memory.New()
	id, err := store.SaveInvestor(context.Background(), inv)
	require.NoError(t, err)
	stored, err := store.GetInvestor(context.Background(), id)
	require.NoError(t, err)
	return store, stored.Data()
}

func requireStage(t *testing.T, err error, stage report.Stage) *report.GenerationError {
	t.Helper()
	var genErr *report.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, stage, genErr.Stage)
	return genErr
}

// =============================================================================
// SUCCESS PATHS
// =============================================================================

func TestGenerateReport_Standalone(t *testing.T) {
	// GIVEN: A generator without a store
	gen, dir := newGenerator(t, nil, &fakeConverter{})
	data := investor().Data()

	// WHEN: Generating twice
	first, err := gen.GenerateReport(context.Background(), data, false)
	require.NoError(t, err)
	second, err := gen.GenerateReport(context.Background(), data, false)
	require.NoError(t, err)

	// THEN: Sequenced files land in the output directory
	assert.Equal(t, report.ReportID("INV24031501"), first.ReportID)
	assert.Equal(t, report.ReportID("INV24031502"), second.ReportID)
	assert.Equal(t, []string{
		filepath.Join(dir, "investor_report_INV24031501.html"),
		filepath.Join(dir, "investor_report_INV24031501.pdf"),
	}, first.Files)

	html, err := os.ReadFile(first.Files[0])
	require.NoError(t, err)
	assert.Equal(t, first.HTML, string(html))
	assert.Contains(t, first.HTML, "₹10,00,000")
	assert.Contains(t, first.HTML, "12.3%")
}

func TestGenerateReport_SaveToStore(t *testing.T) {
	// GIVEN: A stored investor with consistent totals
	store, data := seeded(t, investor())
	conv := &fakeConverter{}
	gen, dir := newGenerator(t, store, conv)

	// WHEN: Generating with saveToDB
	res, err := gen.GenerateReport(context.Background(), data, true)

	// THEN: The row holds the artifacts and nothing is written to disk
	require.NoError(t, err)
	assert.Regexp(t, report.ReportIDPattern, res.ReportID.String())
	assert.Equal(t, report.ReportID("INV24031501"), res.ReportID)
	assert.Equal(t, []byte("%PDF-1.4"), res.PDF)
	assert.Empty(t, res.Files)

	inv, err := store.GetInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "INV24031501", inv.ReportID)
	assert.Equal(t, res.HTML, inv.HTMLReport)
	assert.Equal(t, res.PDF, inv.PDFReport)
	require.NotNil(t, inv.ReportGeneratedAt)
	assert.True(t, today.Equal(*inv.ReportGeneratedAt))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateReport_RegenerateOverwritesAndIncrements(t *testing.T) {
	store, data := seeded(t, investor())
	gen, _ := newGenerator(t, store, &fakeConverter{})

	first, err := gen.GenerateReport(context.Background(), data, true)
	require.NoError(t, err)
	second, err := gen.GenerateReport(context.Background(), data, true)
	require.NoError(t, err)

	assert.Equal(t, report.ReportID("INV24031501"), first.ReportID)
	assert.Equal(t, report.ReportID("INV24031502"), second.ReportID)

	inv, err := store.GetInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "INV24031502", inv.ReportID)
	assert.Contains(t, inv.HTMLReport, "INV24031502")
}

func TestGenerateReport_ContinuesAfterExistingIDs(t *testing.T) {
	// GIVEN: Three investors already holding today's reports
	ctx := context.Background()
	store := memory.New()
	for i := 1; i <= 3; i++ {
		id, err := store.SaveInvestor(ctx, investor())
		require.NoError(t, err)
		require.NoError(t, store.WithTx(ctx, func(tx report.ReportTx) error {
			return tx.SaveReport(ctx, id, report.Artifacts{
				ReportID:    report.NewReportID(today, i),
				HTML:        "<html></html>",
				GeneratedAt: today,
			})
		}))
	}
	id, err := store.SaveInvestor(ctx, investor())
	require.NoError(t, err)
	inv, err := store.GetInvestor(ctx, id)
	require.NoError(t, err)
	gen, _ := newGenerator(t, store, nil)

	// WHEN: Generating a fourth
	res, err := gen.GenerateReport(ctx, inv.Data(), true)

	// THEN: Sequence 04
	require.NoError(t, err)
	assert.Equal(t, report.ReportID("INV24031504"), res.ReportID)
}

func TestGenerateReport_PDFDisabled(t *testing.T) {
	store, data := seeded(t, investor())
	gen, _ := newGenerator(t, store, nil)
	assert.False(t, gen.PDFEnabled())

	res, err := gen.GenerateReport(context.Background(), data, true)

	require.NoError(t, err)
	assert.NotEmpty(t, res.HTML)
	assert.Nil(t, res.PDF)

	pdf, _, err := store.GetReportPDF(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, pdf)
}

func TestGenerateReport_NullNumericTreatedAsZero(t *testing.T) {
	inv := investor()
	inv.CapitalReturned = report.Amount(0)
	inv.BalanceCapital = report.Amount(750000)
	inv.TotalReturned.Valid = false
	store, data := seeded(t, inv)
	gen, _ := newGenerator(t, store, nil)

	res, err := gen.GenerateReport(context.Background(), data, true)

	require.NoError(t, err)
	assert.Contains(t, res.HTML, "₹0")
}

func TestGenerateReport_DoesNotMutateInput(t *testing.T) {
	gen, _ := newGenerator(t, nil, nil)
	data := investor().Data()
	data[report.FieldNAV] = "750000"

	_, err := gen.GenerateReport(context.Background(), data, false)

	require.NoError(t, err)
	assert.Equal(t, "750000", data[report.FieldNAV])
	assert.NotContains(t, data, report.FieldReportID)
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestGenerateReport_MissingName(t *testing.T) {
	// GIVEN: Data without investor_name
	store, data := seeded(t, investor())
	conv := &fakeConverter{}
	gen, _ := newGenerator(t, store, conv)
	delete(data, report.FieldInvestorName)

	// WHEN: Generating
	_, err := gen.GenerateReport(context.Background(), data, true)

	// THEN: Validation failure naming the field, before any write
	genErr := requireStage(t, err, report.StageValidate)
	assert.True(t, genErr.BeforeWrite())
	var missing *report.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{report.FieldInvestorName}, missing.Fields)
	assert.Equal(t, 0, conv.calls)

	inv, err := store.GetInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, inv.ReportID)
}

func TestGenerateReport_Inconsistent(t *testing.T) {
	inv := investor()
	inv.TotalUndrawn = report.Amount(1)
	store, data := seeded(t, inv)
	gen, _ := newGenerator(t, store, nil)

	_, err := gen.GenerateReport(context.Background(), data, true)

	requireStage(t, err, report.StageValidate)
	var inconsistent *report.DataConsistencyError
	assert.ErrorAs(t, err, &inconsistent)

	stored, err := store.GetInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, stored.ReportID)
	assert.Empty(t, stored.HTMLReport)
}

func TestGenerateReport_ConversionFailureRollsBack(t *testing.T) {
	// GIVEN: A PDF engine that fails
	store, data := seeded(t, investor())
	conv := &fakeConverter{err: &report.ConversionError{Engine: "fake", Err: errors.New("crashed")}}
	gen, _ := newGenerator(t, store, conv)

	// WHEN: Generating
	_, err := gen.GenerateReport(context.Background(), data, true)

	// THEN: Convert stage, row untouched, sequence number not consumed
	genErr := requireStage(t, err, report.StageConvert)
	assert.True(t, genErr.BeforeWrite())
	assert.ErrorIs(t, err, report.ErrConversion)

	stored, err := store.GetInvestor(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, stored.ReportID)

	conv.err = nil
	res, err := gen.GenerateReport(context.Background(), data, true)
	require.NoError(t, err)
	assert.Equal(t, report.ReportID("INV24031501"), res.ReportID)
}

func TestGenerateReport_TemplateFailure(t *testing.T) {
	store, data := seeded(t, investor())
	renderer, err := report.NewRendererFromString(`<p>{{.no_such_field}}</p>`)
	require.NoError(t, err)
	gen := report.NewGenerator(store, renderer, nil, t.TempDir())

	_, err = gen.GenerateReport(context.Background(), data, true)

	requireStage(t, err, report.StageRender)
	assert.ErrorIs(t, err, report.ErrTemplate)
}

func TestGenerateReport_SaveWithoutID(t *testing.T) {
	gen, _ := newGenerator(t, memory.New(), nil)
	data := investor().Data()
	delete(data, report.FieldID)

	_, err := gen.GenerateReport(context.Background(), data, true)

	requireStage(t, err, report.StageValidate)
	assert.ErrorIs(t, err, report.ErrInvestorIDRequired)
}

func TestGenerateReport_UnknownInvestor(t *testing.T) {
	gen, _ := newGenerator(t, memory.New(), nil)
	data := investor().Data()
	data[report.FieldID] = int64(77)

	_, err := gen.GenerateReport(context.Background(), data, true)

	genErr := requireStage(t, err, report.StageWrite)
	assert.False(t, genErr.BeforeWrite())
	assert.Equal(t, "77", genErr.InvestorID)
	assert.True(t, report.IsNotFound(err))
}

func TestGenerateReport_CommitFailure(t *testing.T) {
	store, data := seeded(t, investor())
	gen, _ := newGenerator(t, commitFailStore{Memory: store}, nil)

	_, err := gen.GenerateReport(context.Background(), data, true)

	genErr := requireStage(t, err, report.StageCommit)
	assert.False(t, genErr.BeforeWrite())
	assert.ErrorIs(t, err, errCommit)
}

// =============================================================================
// WIRING
// =============================================================================

func TestNewGeneratorFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Report.OutputDir = filepath.Join(t.TempDir(), "reports")
	cfg.Report.TemplateDir = t.TempDir()
	cfg.PDF.Engine = report.EngineNone

	gen, err := report.NewGeneratorFromConfig(context.Background(), cfg, nil, nil)

	require.NoError(t, err)
	assert.False(t, gen.PDFEnabled())
	_, err = os.Stat(cfg.Report.OutputDir)
	assert.NoError(t, err)

	res, err := gen.GenerateReport(context.Background(), investor().Data(), false)
	require.NoError(t, err)
	assert.Len(t, res.Files, 1)
}
