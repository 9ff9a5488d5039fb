// Package memory provides an in-memory report store for tests and local
// runs without a database.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/report-engine/report"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements report.Store and the read side used by the HTTP
// handlers. It follows the same sequencing rule as the SQL store.
type Memory struct {
	mu        sync.RWMutex
	investors map[int64]report.Investor
	sequences map[string]int
	nextID    int64
}

func New() *Memory {
	return &Memory{
		investors: make(map[int64]report.Investor),
		sequences: make(map[string]int),
		nextID:    1,
	}
}

// SaveInvestor inserts inv, or replaces the investor fields of an existing
// row when inv.ID is set. Report fields are kept.
func (m *Memory) SaveInvestor(_ context.Context, inv report.Investor) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inv.ID == 0 {
		inv.ID = m.nextID
	}
	if inv.ID >= m.nextID {
		m.nextID = inv.ID + 1
	}
	if existing, ok := m.investors[inv.ID]; ok {
		inv.ReportID = existing.ReportID
		inv.HTMLReport = existing.HTMLReport
		inv.PDFReport = existing.PDFReport
		inv.ReportGeneratedAt = existing.ReportGeneratedAt
	} else {
		inv.ReportID, inv.HTMLReport, inv.PDFReport, inv.ReportGeneratedAt = "", "", nil, nil
	}
	m.investors[inv.ID] = inv
	return inv.ID, nil
}

// GetInvestor returns a copy of the investor, or nil when absent.
func (m *Memory) GetInvestor(_ context.Context, id int64) (*report.Investor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.investors[id]
	if !ok {
		return nil, nil
	}
	inv.PDFReport = append([]byte(nil), inv.PDFReport...)
	return &inv, nil
}

func (m *Memory) ListInvestorIDs(_ context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]int64, 0, len(m.investors))
	for id := range m.investors {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) GetReportPDF(_ context.Context, id int64) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.investors[id]
	if !ok || len(inv.PDFReport) == 0 {
		return nil, "", nil
	}
	return append([]byte(nil), inv.PDFReport...), inv.ReportID, nil
}

func (m *Memory) GetReportHTML(_ context.Context, id int64) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.investors[id]
	if !ok || inv.HTMLReport == "" {
		return "", false, nil
	}
	return inv.HTMLReport, true, nil
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(report.ReportTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	investors map[int64]report.Investor
	sequences map[string]int
}

func (m *Memory) snapshot() memorySnapshot {
	invCopy := make(map[int64]report.Investor, len(m.investors))
	for k, v := range m.investors {
		invCopy[k] = v
	}
	seqCopy := make(map[string]int, len(m.sequences))
	for k, v := range m.sequences {
		seqCopy[k] = v
	}
	return memorySnapshot{investors: invCopy, sequences: seqCopy}
}

func (m *Memory) restore(s memorySnapshot) {
	m.investors = s.investors
	m.sequences = s.sequences
}

type txView struct {
	parent *Memory
}

func (tv *txView) NextSequence(_ context.Context, day time.Time) (int, error) {
	m := tv.parent
	prefix := report.DayPrefix(day)
	existing := 0
	for _, inv := range m.investors {
		if strings.HasPrefix(inv.ReportID, prefix) {
			existing++
		}
	}

	key := report.DayKey(day)
	seq := max(m.sequences[key], existing) + 1
	m.sequences[key] = seq
	return seq, nil
}

func (tv *txView) SaveReport(_ context.Context, investorID int64, a report.Artifacts) error {
	m := tv.parent
	inv, ok := m.investors[investorID]
	if !ok {
		return report.ErrInvestorNotFound
	}
	at := a.GeneratedAt
	inv.ReportID = a.ReportID.String()
	inv.HTMLReport = a.HTML
	inv.PDFReport = append([]byte(nil), a.PDF...)
	inv.ReportGeneratedAt = &at
	m.investors[investorID] = inv
	return nil
}
