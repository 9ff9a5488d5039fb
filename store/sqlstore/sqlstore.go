/*
Package sqlstore provides the database/sql implementation of report.Store.

PURPOSE:
  Reads investor rows and writes report artifacts back onto them. The same
  code serves SQLite (mattn/go-sqlite3) and PostgreSQL (lib/pq); queries are
  written with "?" placeholders and rebound for PostgreSQL.

INTERFACES IMPLEMENTED:
  report.Store:    Transactional report generation
  report.ReportTx: Sequencing and write-back inside a transaction

KEY TABLES:
  investors:        One row per investor, financial columns plus the
                    report artifacts (report_id, html_report, pdf_report,
                    report_generated_at)
  report_sequences: Per-day report counter (day = yymmdd)

SEQUENCING:
  NextSequence upserts the day's counter row and reads it back with
  RETURNING in a single statement. The row lock taken by the upsert is held
  until the generation transaction ends, so two generations never get the
  same number and a rolled back generation gives its number back.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety within one process. SQLite also runs
  on a single connection so ":memory:" databases are shared. Across
  processes, PostgreSQL row locks on report_sequences keep ids unique.

USAGE:
  store, err := sqlstore.New("./investors.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - report/store.go: Interface definitions
  - report/generator.go: Transaction boundary
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/report-engine/config"
	"github.com/warp/report-engine/report"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store implements report.Store over database/sql.
type Store struct {
	db     *sql.DB
	driver string
	mu     sync.RWMutex
}

// New opens a SQLite store at dbPath. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Open opens and migrates a store for driver ("sqlite3" or "postgres").
func Open(driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if !strings.Contains(dsn, "?") {
			dsn += "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, driver: driver}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// OpenConfig opens the store described by cfg and applies its pool limits.
func OpenConfig(cfg config.DBConfig) (*Store, error) {
	store, err := Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver != DriverSQLite && cfg.MaxOpenConns > 0 {
		store.db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		store.db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	store.db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	store.db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	idColumn, blobType := "INTEGER PRIMARY KEY AUTOINCREMENT", "BLOB"
	if s.driver == DriverPostgres {
		idColumn, blobType = "BIGSERIAL PRIMARY KEY", "BYTEA"
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS investors (
			id ` + idColumn + `,
			investor_name TEXT,
			email TEXT,
			total_committed NUMERIC,
			total_drawdown_called NUMERIC,
			total_drawdown_received NUMERIC,
			total_undrawn NUMERIC,
			gross_irr NUMERIC,
			net_irr NUMERIC,
			nav NUMERIC,
			capital_returned NUMERIC,
			balance_capital NUMERIC,
			total_returned NUMERIC,
			report_id TEXT,
			html_report TEXT,
			pdf_report ` + blobType + `,
			report_generated_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_investors_report_id
			ON investors(report_id)`,
		`CREATE TABLE IF NOT EXISTS report_sequences (
			day TEXT PRIMARY KEY,
			last_seq BIGINT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// INVESTORS
// =============================================================================

const investorColumns = `id, investor_name, email,
	total_committed, total_drawdown_called, total_drawdown_received, total_undrawn,
	gross_irr, net_irr, nav, capital_returned, balance_capital, total_returned,
	report_id, html_report, pdf_report, report_generated_at`

// GetInvestor returns the investor row, or nil when no row has that id.
func (s *Store) GetInvestor(ctx context.Context, id int64) (*report.Investor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		s.rebind("SELECT "+investorColumns+" FROM investors WHERE id = ?"), id)

	inv, err := scanInvestor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load investor %d: %w", id, err)
	}
	return inv, nil
}

// SaveInvestor inserts the investor, or replaces its investor fields when
// inv.ID is set and the row exists. Report columns are left alone.
// Returns the row id.
func (s *Store) SaveInvestor(ctx context.Context, inv report.Investor) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values := []any{
		inv.Name, nullString(inv.Email),
		inv.TotalCommitted, inv.TotalDrawdownCalled, inv.TotalDrawdownReceived, inv.TotalUndrawn,
		inv.GrossIRR, inv.NetIRR, inv.NAV, inv.CapitalReturned, inv.BalanceCapital, inv.TotalReturned,
	}
	columns := `investor_name, email,
		total_committed, total_drawdown_called, total_drawdown_received, total_undrawn,
		gross_irr, net_irr, nav, capital_returned, balance_capital, total_returned`

	var query string
	if inv.ID == 0 {
		query = `INSERT INTO investors (` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`
	} else {
		query = `INSERT INTO investors (id, ` + columns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				investor_name = excluded.investor_name,
				email = excluded.email,
				total_committed = excluded.total_committed,
				total_drawdown_called = excluded.total_drawdown_called,
				total_drawdown_received = excluded.total_drawdown_received,
				total_undrawn = excluded.total_undrawn,
				gross_irr = excluded.gross_irr,
				net_irr = excluded.net_irr,
				nav = excluded.nav,
				capital_returned = excluded.capital_returned,
				balance_capital = excluded.balance_capital,
				total_returned = excluded.total_returned
			RETURNING id`
		values = append([]any{inv.ID}, values...)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, s.rebind(query), values...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to save investor: %w", err)
	}
	return id, nil
}

// ListInvestorIDs returns every investor id in ascending order.
func (s *Store) ListInvestorIDs(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id FROM investors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list investors: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetReportPDF returns the stored PDF and report id of an investor. pdf is
// nil when the row does not exist or holds no PDF.
func (s *Store) GetReportPDF(ctx context.Context, id int64) (pdf []byte, reportID string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rid sql.NullString
	err = s.db.QueryRowContext(ctx,
		s.rebind("SELECT pdf_report, report_id FROM investors WHERE id = ?"), id,
	).Scan(&pdf, &rid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load pdf report: %w", err)
	}
	if len(pdf) == 0 {
		return nil, "", nil
	}
	return pdf, rid.String, nil
}

// GetReportHTML returns the stored HTML of an investor. ok is false when the
// row does not exist or holds no HTML.
func (s *Store) GetReportHTML(ctx context.Context, id int64) (html string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var h sql.NullString
	err = s.db.QueryRowContext(ctx,
		s.rebind("SELECT html_report FROM investors WHERE id = ?"), id,
	).Scan(&h)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load html report: %w", err)
	}
	if !h.Valid || h.String == "" {
		return "", false, nil
	}
	return h.String, true, nil
}

func scanInvestor(row *sql.Row) (*report.Investor, error) {
	var (
		inv         report.Investor
		name        sql.NullString
		email       sql.NullString
		reportID    sql.NullString
		htmlReport  sql.NullString
		generatedAt sql.NullString
	)

	err := row.Scan(
		&inv.ID, &name, &email,
		&inv.TotalCommitted, &inv.TotalDrawdownCalled, &inv.TotalDrawdownReceived, &inv.TotalUndrawn,
		&inv.GrossIRR, &inv.NetIRR, &inv.NAV, &inv.CapitalReturned, &inv.BalanceCapital, &inv.TotalReturned,
		&reportID, &htmlReport, &inv.PDFReport, &generatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Name = name.String
	inv.Email = email.String
	inv.ReportID = reportID.String
	inv.HTMLReport = htmlReport.String
	if generatedAt.Valid {
		if t, err := time.Parse(time.RFC3339, generatedAt.String); err == nil {
			inv.ReportGeneratedAt = &t
		}
	}
	return &inv, nil
}

// =============================================================================
// TRANSACTIONAL STORE (report.Store interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx report.ReportTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

// NextSequence reserves the next sequence number of day. The first
// reservation of a day starts after the report ids of that day already
// stored on investor rows.
func (ts *txStore) NextSequence(ctx context.Context, day time.Time) (int, error) {
	greatest := "MAX"
	if ts.parent.driver == DriverPostgres {
		greatest = "GREATEST"
	}

	query := `
		INSERT INTO report_sequences (day, last_seq)
		VALUES (?, (SELECT COUNT(*) FROM investors WHERE report_id LIKE ?) + 1)
		ON CONFLICT(day) DO UPDATE SET
			last_seq = ` + greatest + `(report_sequences.last_seq, excluded.last_seq - 1) + 1
		RETURNING last_seq
	`

	var seq int
	err := ts.tx.QueryRowContext(ctx, ts.parent.rebind(query),
		report.DayKey(day), report.DayPrefix(day)+"%",
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve report sequence: %w", err)
	}
	return seq, nil
}

// SaveReport overwrites the report columns of the investor row.
func (ts *txStore) SaveReport(ctx context.Context, investorID int64, a report.Artifacts) error {
	var pdf any
	if len(a.PDF) > 0 {
		pdf = a.PDF
	}

	query := `
		UPDATE investors
		SET report_id = ?, html_report = ?, pdf_report = ?, report_generated_at = ?
		WHERE id = ?
	`

	res, err := ts.tx.ExecContext(ctx, ts.parent.rebind(query),
		a.ReportID.String(),
		a.HTML,
		pdf,
		a.GeneratedAt.Format(time.RFC3339),
		investorID,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	if n == 0 {
		return report.ErrInvestorNotFound
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// rebind rewrites "?" placeholders as $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
