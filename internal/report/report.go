// Package report stores daily metric snapshots as report files so that they can be aggregated later.
//
// Reports are laid out as <dir>/<unit>/<YYYY-MM-DD>.json, the unit folder being the path escaped unit
// identifier of the snapshot.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ipsurveil/ipmetrics/internal/constants"
	"github.com/ipsurveil/ipmetrics/internal/fileutils"
	"github.com/ipsurveil/ipmetrics/internal/records"
	"github.com/ipsurveil/ipmetrics/internal/surveillance"
)

var (
	// ErrInvalidPeriod is returned when a period has an invalid bound or starts after its end.
	ErrInvalidPeriod = errors.New("invalid period, bounds should be dates with the start not after the end")

	// ErrInvalidReportExt is returned when a report file has an invalid extension.
	ErrInvalidReportExt = errors.New("invalid report file extension")

	// ErrInvalidReportName is returned when a report file has an invalid name that can't be parsed.
	ErrInvalidReportName = errors.New("invalid report file name")

	// ErrInvalidSchema is returned when a report file does not hold a snapshot of a supported schema.
	ErrInvalidSchema = errors.New("unsupported snapshot schema")
)

// Report represents a report file.
type Report struct {
	Path string // Path is the path to the report file.
	Name string // Name is the name of the report file, including extension.
	Date string // Date is the ISO date of the snapshot held by the report.
}

// New creates a new Report object from a path.
// It does not write to the file system, or validate the path.
func New(path string) (Report, error) {
	if filepath.Ext(path) != constants.ReportExtension {
		return Report{}, ErrInvalidReportExt
	}

	date, err := getReportDate(filepath.Base(path))
	if err != nil {
		return Report{}, err
	}

	return Report{Path: path, Name: filepath.Base(path), Date: date}, nil
}

// Write stores s in its report file under dir, replacing any previous report of the same day and unit.
func Write(dir string, s surveillance.Snapshot) (Report, error) {
	date, ok := records.ToISODate(s.Date)
	if !ok || date != s.Date {
		return Report{}, fmt.Errorf("%w: snapshot date %q", ErrInvalidReportName, s.Date)
	}

	unitDir := UnitDir(dir, s.UnitID)
	if err := os.MkdirAll(unitDir, 0750); err != nil {
		return Report{}, fmt.Errorf("failed to create report directory: %v", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return Report{}, fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	r := Report{Path: filepath.Join(unitDir, date+constants.ReportExtension), Name: date + constants.ReportExtension, Date: date}
	if err := fileutils.AtomicWrite(r.Path, data); err != nil {
		return Report{}, fmt.Errorf("failed to write report: %v", err)
	}
	slog.Debug("Wrote report", "path", r.Path)
	return r, nil
}

// ReadSnapshot reads the snapshot stored in the report file.
func (r Report) ReadSnapshot() (surveillance.Snapshot, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return surveillance.Snapshot{}, fmt.Errorf("failed to open report file: %v", err)
	}
	defer f.Close()

	var s surveillance.Snapshot
	if err := fileutils.ParseJSON(f, &s); err != nil {
		return surveillance.Snapshot{}, fmt.Errorf("failed to parse report file: %v", err)
	}
	if s.Schema != surveillance.Schema {
		return surveillance.Snapshot{}, fmt.Errorf("%w: %q", ErrInvalidSchema, s.Schema)
	}
	return s, nil
}

// UnitDir returns the report directory of unit under dir.
func UnitDir(dir, unit string) string {
	if strings.TrimSpace(unit) == "" {
		unit = records.FacilityScope
	}
	return filepath.Join(dir, url.PathEscape(unit))
}

// getReportDate returns the ISO date of the report from its file name.
func getReportDate(name string) (string, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	date, ok := records.ToISODate(base)
	if !ok || date != base {
		return "", fmt.Errorf("%w: %q is not an ISO date", ErrInvalidReportName, base)
	}
	return date, nil
}

// GetAll returns all reports in a given directory, sorted by date.
// Reports are expected to have the correct file extension, and have a name which is an ISO date.
// Does not traverse subdirectories.
func GetAll(dir string) ([]Report, error) {
	reports := make([]Report, 0)
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access path: %v", err)
		}

		if d.IsDir() && path != dir {
			return filepath.SkipDir
		}
		if d.IsDir() {
			return nil
		}

		r, err := New(path)
		if errors.Is(err, ErrInvalidReportExt) || errors.Is(err, ErrInvalidReportName) {
			slog.Info("Skipping non-report file", "file", d.Name(), "error", err)
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to create report object: %v", err)
		}

		reports = append(reports, r)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(reports, func(a, b Report) int { return strings.Compare(a.Date, b.Date) })
	return reports, nil
}

// GetInRange returns the reports in a given directory dated from start to end, both included, sorted
// by date.
func GetInRange(dir, start, end string) ([]Report, error) {
	from, okFrom := records.ToISODate(start)
	to, okTo := records.ToISODate(end)
	if !okFrom || !okTo || from > to {
		return nil, ErrInvalidPeriod
	}

	all, err := GetAll(dir)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(all))
	for _, r := range all {
		if r.Date >= from && r.Date <= to {
			reports = append(reports, r)
		}
	}
	return reports, nil
}

// ReadSnapshots reads the snapshots of every report, in order.
func ReadSnapshots(reports []Report) ([]surveillance.Snapshot, error) {
	snaps := make([]surveillance.Snapshot, 0, len(reports))
	for _, r := range reports {
		s, err := r.ReadSnapshot()
		if err != nil {
			return nil, fmt.Errorf("failed to read report %s: %w", r.Path, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}
