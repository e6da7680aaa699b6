package mirror

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log is the append-only per-series mirror log: one <seriesId>.jsonl file
// per series inside the mirror directory, one Record per line. Records are
// never updated or deleted here; retention is an external policy.
type Log struct {
	dir string
	mu  sync.Mutex
}

// OpenLog opens (creating if needed) a mirror log directory.
func OpenLog(dir string) (*Log, error) {
	//nolint:gosec // G301: 0755 is intentional for a shared mirror directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to ensure mirror dir: %w", err)
	}
	return &Log{dir: dir}, nil
}

// Dir returns the mirror directory path.
func (l *Log) Dir() string { return l.dir }

// SeriesPath returns the log file path for a series id.
func (l *Log) SeriesPath(seriesID string) string {
	return filepath.Join(l.dir, SanitizeSeriesID(seriesID)+".jsonl")
}

// Append writes one record as a single JSON line and syncs the file. The
// write is O_APPEND so concurrent appenders cannot interleave partial lines
// on POSIX filesystems.
func (l *Log) Append(rec *Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	data = append(data, '\n')

	path := l.SeriesPath(rec.SeriesID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open series log: %w", err)
	}
	defer f.Close() //nolint:errcheck // best-effort close after sync

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync series log: %w", err)
	}
	return nil
}

// SanitizeSeriesID maps a series id onto the safe filename charset
// [A-Za-z0-9._-]; every other rune becomes '_'.
func SanitizeSeriesID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// LogReport summarizes a re-verification sweep over one series log.
type LogReport struct {
	File     string `json:"file"`
	Lines    int    `json:"lines"`
	Verified int    `json:"verified"`
	Corrupt  []int  `json:"corrupt,omitempty"` // 1-based line numbers
}

// VerifyLog re-attests every record in a series log by recomputing the raw
// payload hash. A record whose recomputed hash disagrees with its stored
// hash is corrupt and must never be trusted.
func VerifyLog(path string) (*LogReport, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to open series log: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	report := &LogReport{File: filepath.Base(path)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		report.Lines++
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			report.Corrupt = append(report.Corrupt, report.Lines)
			continue
		}
		if !VerifyRecord(&rec) {
			report.Corrupt = append(report.Corrupt, report.Lines)
			continue
		}
		report.Verified++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan series log: %w", err)
	}
	return report, nil
}
