/*
generator.go - Report generation pipeline

PURPOSE:
  GenerateReport is the single entry point that turns investor data into
  report artifacts. It validates, formats, sequences, renders, converts
  and (optionally) persists, in that order.

TRANSACTION BOUNDARY:
  With saveToDB, sequencing, rendering, conversion and the write-back all
  run inside one Store.WithTx call. Any failure rolls the transaction back,
  so a failed generation leaves neither a consumed sequence number nor a
  partially written row behind.

STANDALONE MODE:
  Without saveToDB, the sequence is counted from the output directory and
  the artifacts are written there as investor_report_<id>.html / .pdf.

PDF:
  A nil Converter means PDF output is disabled; Result.PDF is then nil and
  generation still succeeds. A Converter that fails aborts the generation.

SEE ALSO:
  - store.go: Store / ReportTx contract
  - store/sqlstore: SQL implementation
*/
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/report-engine/config"
)

// Result is the output of one generation.
type Result struct {
	ReportID    ReportID
	HTML        string
	PDF         []byte // nil when PDF output is disabled
	GeneratedAt time.Time
	Files       []string // artifact paths, standalone mode only
}

// Generator runs the report pipeline.
type Generator struct {
	store     Store
	renderer  *Renderer
	converter Converter
	outputDir string
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(g *Generator) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGenerator creates a generator. store may be nil when reports are only
// generated in standalone mode; converter may be nil to disable PDF output.
func NewGenerator(store Store, renderer *Renderer, converter Converter, outputDir string, opts ...Option) *Generator {
	g := &Generator{
		store:     store,
		renderer:  renderer,
		converter: converter,
		outputDir: outputDir,
		now:       time.Now,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewGeneratorFromConfig wires a generator from configuration: the template
// directory, the output directory and the PDF engine. An unavailable PDF
// engine is logged and leaves PDF output disabled.
func NewGeneratorFromConfig(ctx context.Context, cfg config.Config, store Store, log *zap.Logger) (*Generator, error) {
	if err := os.MkdirAll(cfg.Report.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	renderer, err := NewRenderer(cfg.Report.TemplateDir)
	if err != nil {
		return nil, err
	}
	converter, err := NewConverter(ctx, cfg.PDF, cfg.Report.OutputDir, log)
	if err != nil && !errors.Is(err, ErrRendererUnavailable) {
		return nil, err
	}
	return NewGenerator(store, renderer, converter, cfg.Report.OutputDir, WithLogger(log)), nil
}

// PDFEnabled reports whether PDFs are produced.
func (g *Generator) PDFEnabled() bool {
	return g.converter != nil
}

// GenerateReport produces the report for one investor. The input map is
// never modified. All errors are *GenerationError.
func (g *Generator) GenerateReport(ctx context.Context, input Data, saveToDB bool) (*Result, error) {
	log := g.log.With(zap.String("run_id", uuid.NewString()), zap.Bool("save_to_db", saveToDB))
	name := input.Name()
	investorID := ""
	if v, ok := input[FieldID]; ok && v != nil {
		investorID = fmt.Sprint(v)
	}

	fail := func(stage Stage, err error) (*Result, error) {
		log.Error("error generating report",
			zap.String("investor", name),
			zap.String("investor_id", investorID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		return nil, &GenerationError{Stage: stage, InvestorID: investorID, Err: err}
	}

	validated, err := ValidateData(Normalize(input))
	if err != nil {
		return fail(StageValidate, err)
	}
	if err := ValidateConsistency(validated, log); err != nil {
		return fail(StageValidate, err)
	}
	formatted := FormatData(validated)
	now := g.now()

	var (
		res   *Result
		stage Stage
	)
	if saveToDB {
		if g.store == nil {
			return fail(StageSequence, errors.New("no report store configured"))
		}
		id, ok := validated.InvestorID()
		if !ok {
			return fail(StageValidate, ErrInvestorIDRequired)
		}

		written := false
		err = g.store.WithTx(ctx, func(tx ReportTx) error {
			stage = StageSequence
			seq, err := tx.NextSequence(ctx, now)
			if err != nil {
				return err
			}
			if res, stage, err = g.build(ctx, formatted, now, seq); err != nil {
				return err
			}
			stage = StageWrite
			if err := tx.SaveReport(ctx, id, Artifacts{
				ReportID:    res.ReportID,
				HTML:        res.HTML,
				PDF:         res.PDF,
				GeneratedAt: now,
			}); err != nil {
				return err
			}
			written = true
			return nil
		})
		if err != nil {
			if written {
				stage = StageCommit
			}
			return fail(stage, err)
		}
		log.Info("saved report to database",
			zap.String("investor", name),
			zap.Int64("investor_id", id),
			zap.String("report_id", res.ReportID.String()))
	} else {
		seq, err := DirSequencer{Dir: g.outputDir}.NextSequence(ctx, now)
		if err != nil {
			return fail(StageSequence, err)
		}
		if res, stage, err = g.build(ctx, formatted, now, seq); err != nil {
			return fail(stage, err)
		}
		if err := g.writeFiles(res); err != nil {
			return fail(StageWrite, err)
		}
	}

	log.Info("generated report",
		zap.String("investor", name),
		zap.String("report_id", res.ReportID.String()),
		zap.Bool("pdf", res.PDF != nil))
	return res, nil
}

// build renders and converts one report.
func (g *Generator) build(ctx context.Context, formatted Data, now time.Time, seq int) (*Result, Stage, error) {
	id := NewReportID(now, seq)
	html, err := g.renderer.Render(WithReportDates(formatted, now, id))
	if err != nil {
		return nil, StageRender, err
	}

	var pdf []byte
	if g.converter != nil {
		if pdf, err = g.converter.Convert(ctx, html); err != nil {
			return nil, StageConvert, err
		}
	}
	return &Result{ReportID: id, HTML: html, PDF: pdf, GeneratedAt: now}, "", nil
}

func (g *Generator) writeFiles(res *Result) error {
	if err := os.MkdirAll(g.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	htmlPath := filepath.Join(g.outputDir, ArtifactName(res.ReportID, ".html"))
	if err := os.WriteFile(htmlPath, []byte(res.HTML), 0o644); err != nil {
		return fmt.Errorf("failed to write html report: %w", err)
	}
	res.Files = append(res.Files, htmlPath)

	if res.PDF != nil {
		pdfPath := filepath.Join(g.outputDir, ArtifactName(res.ReportID, ".pdf"))
		if err := os.WriteFile(pdfPath, res.PDF, 0o644); err != nil {
			return fmt.Errorf("failed to write pdf report: %w", err)
		}
		res.Files = append(res.Files, pdfPath)
	}
	return nil
}
