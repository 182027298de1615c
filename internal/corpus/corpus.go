// Package corpus loads persisted action-log records from a recordings
// directory and collapses duplicate request texts to the most recent
// narrative.
package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	recallerrors "github.com/agentdesk/recall/internal/errors"
)

// LogFilePattern matches action log files within a recordings directory.
const LogFilePattern = "action_log_*.json"

// Record is one candidate index entry extracted from an action log.
type Record struct {
	// RequestText is the user's request; the deduplication key.
	// Compared exactly: case-sensitive, whitespace-preserving.
	RequestText string

	// Narrative is the curated account of how the task was solved.
	Narrative string

	// Timestamp is when the record was made. Zero when the log had no
	// parsable recorded_at, so it loses every dedup tie against a
	// valid timestamp.
	Timestamp time.Time

	// LogFile is the base name of the originating log file.
	LogFile string
}

// actionLog mirrors the on-disk record shape.
type actionLog struct {
	Request struct {
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"request"`
	Narrative  string `json:"narrative"`
	RecordedAt string `json:"recorded_at"`
}

// Load scans dir for action logs, parses them, and returns the
// deduplicated records in first-encounter order of their request text.
//
// A missing directory is the only hard failure. Individual records
// that cannot be parsed, or that lack request text or narrative, are
// skipped with a diagnostic.
func Load(dir string) ([]Record, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, recallerrors.Newf(recallerrors.ErrCodeCorpusNotFound,
				"recordings directory not found: %s", dir)
		}
		return nil, recallerrors.Wrap(recallerrors.ErrCodeCorpusNotFound, err)
	}
	if !info.IsDir() {
		return nil, recallerrors.Newf(recallerrors.ErrCodeCorpusNotFound,
			"not a directory: %s", dir)
	}

	matches, err := filepath.Glob(filepath.Join(dir, LogFilePattern))
	if err != nil {
		return nil, recallerrors.Wrap(recallerrors.ErrCodeCorpusNotFound, err)
	}
	sort.Strings(matches)

	records := make([]Record, 0, len(matches))
	for _, path := range matches {
		rec, err := ParseFile(path)
		if err != nil {
			slog.Warn("skipping action log",
				slog.String("file", filepath.Base(path)),
				slog.String("reason", err.Error()))
			continue
		}
		records = append(records, rec)
	}

	return Dedupe(records), nil
}

// ParseFile reads and validates a single action log.
// Returns an error when the log is unparsable or lacks request text
// or narrative; the error carries the reason for diagnostics.
func ParseFile(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, fmt.Errorf("read: %w", err)
	}

	var log actionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return Record{}, fmt.Errorf("parse: %w", err)
	}

	if log.Request.Content.Text == "" {
		return Record{}, fmt.Errorf("no request text found")
	}
	if log.Narrative == "" {
		return Record{}, fmt.Errorf("no narrative found")
	}

	// An unparsable or missing timestamp deliberately stays zero:
	// it must lose dedup ties against any valid timestamp.
	var ts time.Time
	if log.RecordedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, log.RecordedAt); err == nil {
			ts = parsed
		} else if parsed, err := time.Parse("2006-01-02T15:04:05.999999", log.RecordedAt); err == nil {
			// Accept timestamps without zone, as the recorder writes them
			ts = parsed
		} else {
			slog.Debug("unparsable recorded_at, treating as minimum",
				slog.String("file", filepath.Base(path)),
				slog.String("recorded_at", log.RecordedAt))
		}
	}

	return Record{
		RequestText: log.Request.Content.Text,
		Narrative:   log.Narrative,
		Timestamp:   ts,
		LogFile:     filepath.Base(path),
	}, nil
}

// Dedupe collapses records sharing identical request text, keeping
// the one with the greatest timestamp. On an exact timestamp tie the
// record seen later in scan order wins. Output preserves the
// first-encounter order of each surviving request text.
func Dedupe(records []Record) []Record {
	slot := make(map[string]int, len(records))
	dropped := make(map[string]int)
	result := make([]Record, 0, len(records))

	for _, rec := range records {
		i, seen := slot[rec.RequestText]
		if !seen {
			slot[rec.RequestText] = len(result)
			result = append(result, rec)
			continue
		}

		dropped[rec.RequestText]++
		// Later record wins ties, so >= not >
		if !rec.Timestamp.Before(result[i].Timestamp) {
			result[i] = rec
		}
	}

	for text, n := range dropped {
		slog.Debug("deduplicated request",
			slog.String("request", text),
			slog.Int("collapsed", n),
			slog.String("kept", result[slot[text]].LogFile))
	}

	return result
}
