package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// =============================================================================
// Types
// =============================================================================

// ProgressFile represents the JSON structure written to the progress file
type ProgressFile struct {
	Range       RangeInfo       `json:"range"`
	Progress    ProgressInfo    `json:"progress"`
	Events      EventsInfo      `json:"events"`
	Performance PerformanceInfo `json:"performance"`
	Status      string          `json:"status"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RangeInfo tracks the record range being ingested. Unlike a fixed
// fixed ledger sequence range, a telemetry stream's length isn't known
// up front; End is 0 (and PercentComplete stays 0) until the reader
// reaches EOF and the caller supplies a final count to Complete.
type RangeInfo struct {
	Start   uint64 `json:"start"`
	End     uint64 `json:"end"`
	Current uint64 `json:"current"`
}

// ProgressInfo tracks overall progress
type ProgressInfo struct {
	RecordsProcessed int     `json:"records_processed"`
	PercentComplete  float64 `json:"percent_complete"`
}

// EventsInfo tracks event statistics
type EventsInfo struct {
	Total         int     `json:"total"`
	AvgPerRecord  float64 `json:"avg_per_record"`
	FullScanExtra int     `json:"full_scan_fallbacks,omitempty"`
}

// PerformanceInfo tracks timing and rates
type PerformanceInfo struct {
	RecordsPerSec float64 `json:"records_per_sec"`
	EventsPerSec  float64 `json:"events_per_sec"`
	Elapsed       string  `json:"elapsed"`
	Remaining     string  `json:"remaining"`
}

// =============================================================================
// Writer
// =============================================================================

// Writer writes progress updates to a file, the generic analogue of the
// fixed ledger-range progress writer design: total is the expected record
// count if known (0 when ingesting a stream of unknown length, e.g.
// stdin), in which case PercentComplete stays 0 and Remaining reads
// "unknown" instead of an ETA.
type Writer struct {
	filePath  string
	startTime time.Time
	total     uint64
}

// NewWriter creates a new progress writer. total is the expected number
// of records, or 0 if unknown ahead of time.
func NewWriter(filePath string, total uint64) *Writer {
	return &Writer{filePath: filePath, startTime: time.Now(), total: total}
}

// Update writes the current progress to the file.
func (w *Writer) Update(current uint64, recordsProcessed, eventsTotal int) error {
	elapsed := time.Since(w.startTime)
	elapsedSecs := elapsed.Seconds()

	var recordsPerSec, eventsPerSec float64
	if elapsedSecs > 0 {
		recordsPerSec = float64(recordsProcessed) / elapsedSecs
		eventsPerSec = float64(eventsTotal) / elapsedSecs
	}

	var percentComplete float64
	if w.total > 0 {
		percentComplete = float64(recordsProcessed) / float64(w.total) * 100
	}

	var remaining string
	switch {
	case w.total == 0:
		remaining = "unknown"
	case recordsPerSec > 0:
		recordsRemaining := int64(w.total) - int64(recordsProcessed)
		secsRemaining := float64(recordsRemaining) / recordsPerSec
		remaining = formatDuration(time.Duration(secsRemaining * float64(time.Second)))
	default:
		remaining = "calculating..."
	}

	var avgPerRecord float64
	if recordsProcessed > 0 {
		avgPerRecord = float64(eventsTotal) / float64(recordsProcessed)
	}

	progress := &ProgressFile{
		Range: RangeInfo{Start: 0, End: w.total, Current: current},
		Progress: ProgressInfo{
			RecordsProcessed: recordsProcessed,
			PercentComplete:  percentComplete,
		},
		Events: EventsInfo{Total: eventsTotal, AvgPerRecord: avgPerRecord},
		Performance: PerformanceInfo{
			RecordsPerSec: recordsPerSec,
			EventsPerSec:  eventsPerSec,
			Elapsed:       formatDuration(elapsed),
			Remaining:     remaining,
		},
		Status:    "running",
		UpdatedAt: time.Now(),
	}

	return w.write(progress)
}

// Complete writes the final progress with status "completed".
func (w *Writer) Complete(recordsProcessed, eventsTotal int) error {
	elapsed := time.Since(w.startTime)
	elapsedSecs := elapsed.Seconds()

	var recordsPerSec, eventsPerSec float64
	if elapsedSecs > 0 {
		recordsPerSec = float64(recordsProcessed) / elapsedSecs
		eventsPerSec = float64(eventsTotal) / elapsedSecs
	}

	var avgPerRecord float64
	if recordsProcessed > 0 {
		avgPerRecord = float64(eventsTotal) / float64(recordsProcessed)
	}

	progress := &ProgressFile{
		Range: RangeInfo{Start: 0, End: uint64(recordsProcessed), Current: uint64(recordsProcessed)},
		Progress: ProgressInfo{
			RecordsProcessed: recordsProcessed,
			PercentComplete:  100.0,
		},
		Events: EventsInfo{Total: eventsTotal, AvgPerRecord: avgPerRecord},
		Performance: PerformanceInfo{
			RecordsPerSec: recordsPerSec,
			EventsPerSec:  eventsPerSec,
			Elapsed:       formatDuration(elapsed),
			Remaining:     "0s",
		},
		Status:    "completed",
		UpdatedAt: time.Now(),
	}

	return w.write(progress)
}

// Failed writes the final progress with status "failed".
func (w *Writer) Failed(current uint64, recordsProcessed, eventsTotal int, err error) error {
	elapsed := time.Since(w.startTime)
	elapsedSecs := elapsed.Seconds()

	var recordsPerSec, eventsPerSec float64
	if elapsedSecs > 0 {
		recordsPerSec = float64(recordsProcessed) / elapsedSecs
		eventsPerSec = float64(eventsTotal) / elapsedSecs
	}

	var avgPerRecord float64
	if recordsProcessed > 0 {
		avgPerRecord = float64(eventsTotal) / float64(recordsProcessed)
	}

	var percentComplete float64
	if w.total > 0 {
		percentComplete = float64(recordsProcessed) / float64(w.total) * 100
	}

	progress := &ProgressFile{
		Range: RangeInfo{Start: 0, End: w.total, Current: current},
		Progress: ProgressInfo{
			RecordsProcessed: recordsProcessed,
			PercentComplete:  percentComplete,
		},
		Events: EventsInfo{Total: eventsTotal, AvgPerRecord: avgPerRecord},
		Performance: PerformanceInfo{
			RecordsPerSec: recordsPerSec,
			EventsPerSec:  eventsPerSec,
			Elapsed:       formatDuration(elapsed),
			Remaining:     "-",
		},
		Status:    fmt.Sprintf("failed: %v", err),
		UpdatedAt: time.Now(),
	}

	return w.write(progress)
}

// write marshals and writes the progress to file
func (w *Writer) write(p *ProgressFile) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	if err := os.WriteFile(w.filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}

	return nil
}

// formatDuration formats a duration as a human-readable string
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
