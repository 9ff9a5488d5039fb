package report

import (
	"context"
	"time"
)

// Artifacts are the report outputs written back onto an investor row.
type Artifacts struct {
	ReportID    ReportID
	HTML        string
	PDF         []byte // nil when PDF output is disabled
	GeneratedAt time.Time
}

// ReportTx is the store as seen from inside one generation transaction.
type ReportTx interface {
	Sequencer

	// SaveReport overwrites the report columns of the investor row.
	// Returns ErrInvestorNotFound when no row has that id.
	SaveReport(ctx context.Context, investorID int64, a Artifacts) error
}

// Store runs report generations transactionally.
type Store interface {
	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(tx ReportTx) error) error
}
