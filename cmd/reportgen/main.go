/*
main.go - Batch report generation

PURPOSE:
  Generates investor reports outside the HTTP service, either from a CSV
  file (reports written to the output directory) or from investors in the
  store (reports written back onto their rows). Also seeds the store from
  a CSV file.

COMMANDS:
  generate -data FILE         One report per CSV row, files only
  generate -ids 1,2,3 | -all  Stored investors, saved to the database
  import   -data FILE         Insert or update investors from CSV

COMMON FLAGS:
  -config  YAML configuration file (default: $REPORT_CONFIG)
  -db      Database DSN, overrides db.dsn
  -out     Output directory, overrides report.output_dir
  -pdf     PDF engine, overrides pdf.engine

EXIT STATUS:
  0 when every report was generated, 1 otherwise.

SEE ALSO:
  - ingest/csv.go: CSV loading
  - report/generator.go: Report pipeline
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/ingest"
	"github.com/warp/report-engine/logger"
	"github.com/warp/report-engine/report"
	"github.com/warp/report-engine/store/sqlstore"
)

type options struct {
	configPath string
	dsn        string
	outputDir  string
	engine     string
	dataFile   string
	ids        string
	all        bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", os.Getenv("REPORT_CONFIG"), "YAML configuration file")
	fs.StringVar(&opts.dsn, "db", "", "database DSN (overrides db.dsn)")
	fs.StringVar(&opts.outputDir, "out", "", "output directory (overrides report.output_dir)")
	fs.StringVar(&opts.engine, "pdf", "", "PDF engine: wkhtmltopdf, chrome or none")
	fs.StringVar(&opts.dataFile, "data", "", "CSV file of investors")
	fs.StringVar(&opts.ids, "ids", "", "comma separated investor ids")
	fs.BoolVar(&opts.all, "all", false, "generate for every stored investor")
	fs.Parse(os.Args[2:])

	cfg, err := config.Load(opts.configPath, opts.configPath == "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if opts.dsn != "" {
		cfg.DB.DSN = opts.dsn
	}
	if opts.outputDir != "" {
		cfg.Report.OutputDir = opts.outputDir
	}
	if opts.engine != "" {
		cfg.PDF.Engine = opts.engine
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	switch cmd {
	case "generate":
		err = generate(ctx, cfg, opts, log)
	case "import":
		err = importInvestors(ctx, cfg, opts, log)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("critical error in batch run", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: reportgen generate -data FILE | -ids 1,2 | -all")
	fmt.Fprintln(os.Stderr, "       reportgen import -data FILE")
}

func generate(ctx context.Context, cfg config.Config, opts options, log *zap.Logger) error {
	if opts.dataFile != "" {
		return generateFromFile(ctx, cfg, opts.dataFile, log)
	}
	if opts.ids == "" && !opts.all {
		return fmt.Errorf("generate needs -data, -ids or -all")
	}

	store, err := sqlstore.OpenConfig(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	gen, err := report.NewGeneratorFromConfig(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	ids, err := parseIDs(opts.ids)
	if err != nil {
		return err
	}
	if opts.all {
		if ids, err = store.ListInvestorIDs(ctx); err != nil {
			return err
		}
	}

	failed := 0
	for _, id := range ids {
		inv, err := store.GetInvestor(ctx, id)
		if err != nil {
			return err
		}
		if inv == nil {
			log.Warn("investor not found", zap.Int64("investor_id", id))
			failed++
			continue
		}
		// The generator logs each failure with its stage.
		if _, err := gen.GenerateReport(ctx, inv.Data(), true); err != nil {
			failed++
		}
	}
	return summarize(log, len(ids), failed)
}

func generateFromFile(ctx context.Context, cfg config.Config, path string, log *zap.Logger) error {
	rows, err := ingest.LoadFile(path)
	if err != nil {
		return err
	}

	gen, err := report.NewGeneratorFromConfig(ctx, cfg, nil, log)
	if err != nil {
		return err
	}

	failed := 0
	for _, row := range rows {
		if _, err := gen.GenerateReport(ctx, row, false); err != nil {
			failed++
		}
	}
	return summarize(log, len(rows), failed)
}

func importInvestors(ctx context.Context, cfg config.Config, opts options, log *zap.Logger) error {
	if opts.dataFile == "" {
		return fmt.Errorf("import needs -data")
	}
	rows, err := ingest.LoadFile(opts.dataFile)
	if err != nil {
		return err
	}

	store, err := sqlstore.OpenConfig(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	for i, row := range rows {
		inv, err := ingest.ToInvestor(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		id, err := store.SaveInvestor(ctx, inv)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		log.Info("imported investor", zap.Int64("investor_id", id), zap.String("investor", inv.Name))
	}
	log.Info("import complete", zap.Int("investors", len(rows)))
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid investor id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func summarize(log *zap.Logger, total, failed int) error {
	log.Info("batch complete",
		zap.Int("total", total),
		zap.Int("generated", total-failed),
		zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed", failed, total)
	}
	return nil
}
