package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/warp/report-engine/report"
)

// newPostgresStore starts a throwaway PostgreSQL container. The test is
// skipped under -short or when Docker is not reachable.
func newPostgresStore(t *testing.T) *Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.Run(ctx, "postgres:16-alpine",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "report",
			"POSTGRES_PASSWORD": "report",
			"POSTGRES_DB":       "investors",
		}),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		container.Terminate(cleanupCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://report:report@%s:%s/investors?sslmode=disable", host, port.Port())
	store, err := Open(DriverPostgres, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgres_GenerationRoundTrip(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 15, 10, 0, 0, 0, time.Local)

	// GIVEN: A seeded investor
	id := seedInvestor(t, store, "Asha Rao")

	// WHEN: Two generations run for the same day
	for i := 1; i <= 2; i++ {
		err := store.WithTx(ctx, func(tx report.ReportTx) error {
			seq, err := tx.NextSequence(ctx, day)
			if err != nil {
				return err
			}
			assert.Equal(t, i, seq)
			return tx.SaveReport(ctx, id, report.Artifacts{
				ReportID:    report.NewReportID(day, seq),
				HTML:        "<html></html>",
				PDF:         []byte("%PDF-1.4"),
				GeneratedAt: day,
			})
		})
		require.NoError(t, err)
	}

	// THEN: The row holds the latest artifacts
	inv, err := store.GetInvestor(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, "INV24031502", inv.ReportID)
	assert.Equal(t, "1000000", inv.TotalCommitted.Decimal.String())
	assert.Equal(t, []byte("%PDF-1.4"), inv.PDFReport)

	err = store.WithTx(ctx, func(tx report.ReportTx) error {
		return tx.SaveReport(ctx, id+1000, report.Artifacts{ReportID: "INV24031503", GeneratedAt: day})
	})
	assert.ErrorIs(t, err, report.ErrInvestorNotFound)
}
