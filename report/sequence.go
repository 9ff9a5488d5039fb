package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReportIDPrefix starts every report identifier.
const ReportIDPrefix = "INV"

// reportFilePrefix names artifacts written to the output directory.
const reportFilePrefix = "investor_report_"

// ReportIDPattern matches a well formed report identifier.
var ReportIDPattern = regexp.MustCompile(`^INV\d{6}\d{2,}$`)

// ReportID is "INV" + yymmdd + a per-day sequence of at least two digits.
type ReportID string

// NewReportID formats the identifier for a day and sequence number.
func NewReportID(day time.Time, seq int) ReportID {
	return ReportID(fmt.Sprintf("%s%s%02d", ReportIDPrefix, DayKey(day), seq))
}

// ParseReportID splits an identifier into its day key and sequence.
func ParseReportID(s string) (day string, seq int, err error) {
	if !ReportIDPattern.MatchString(s) {
		return "", 0, fmt.Errorf("malformed report id %q", s)
	}
	day = s[len(ReportIDPrefix) : len(ReportIDPrefix)+6]
	seq, err = strconv.Atoi(s[len(ReportIDPrefix)+6:])
	return day, seq, err
}

func (id ReportID) String() string { return string(id) }

// DayKey is the yymmdd part of identifiers issued on day.
func DayKey(day time.Time) string {
	return day.Format("060102")
}

// DayPrefix is the identifier prefix shared by every report of a day.
func DayPrefix(day time.Time) string {
	return ReportIDPrefix + DayKey(day)
}

// Sequencer hands out the next report sequence number for a day.
type Sequencer interface {
	NextSequence(ctx context.Context, day time.Time) (int, error)
}

// DirSequencer counts the reports of a day already present in a directory.
// It is the counting source when reports are not saved to the store, and is
// not safe against concurrent generators sharing the directory.
type DirSequencer struct {
	Dir string
}

// NextSequence returns the number of distinct report ids of day found in
// the directory, plus one. A missing directory counts as empty.
func (s DirSequencer) NextSequence(ctx context.Context, day time.Time) (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list output directory: %w", err)
	}

	prefix := reportFilePrefix + DayPrefix(day)
	seen := make(map[string]bool)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		seen[strings.TrimSuffix(name, filepath.Ext(name))] = true
	}
	return len(seen) + 1, nil
}

// ArtifactName is the file name used for a report artifact, e.g.
// investor_report_INV24031501.pdf.
func ArtifactName(id ReportID, ext string) string {
	return reportFilePrefix + string(id) + ext
}
