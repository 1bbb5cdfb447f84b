package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/orlenko/claude-log-tail/internal/model"
)

// Stats holds a point-in-time snapshot of aggregated metrics.
type Stats struct {
	Uptime         string           `json:"uptime"`
	TotalRecords   int64            `json:"total_records"`
	RecordsPerSec  float64          `json:"records_per_sec"`
	CategoryCounts map[string]int64 `json:"category_counts"`
	ErrorRecords   int64            `json:"error_records"`
	DroppedRecords int64            `json:"dropped_records"`
	FilesWatched   int              `json:"files_watched"`
}

// Aggregator subscribes to the Hub and computes time-windowed metrics over
// the displayed records.
type Aggregator struct {
	mu             sync.RWMutex
	startTime      time.Time
	totalRecords   int64
	errorRecords   int64
	categoryCounts map[string]int64
	window         []time.Time // arrival times for rate calculation (last 5 seconds)
	dropped        func() int64
	fileCount      func() int
	records        <-chan model.DisplayRecord
}

// New creates an Aggregator that reads from a Hub subscriber channel.
// droppedFn and fileCountFn provide live values from the Hub and the
// polling loop respectively.
func New(records <-chan model.DisplayRecord, droppedFn func() int64, fileCountFn func() int) *Aggregator {
	return &Aggregator{
		startTime:      time.Now(),
		categoryCounts: make(map[string]int64),
		dropped:        droppedFn,
		fileCount:      fileCountFn,
		records:        records,
	}
}

// Snapshot returns the current metrics.
func (a *Aggregator) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64)
	for k, v := range a.categoryCounts {
		counts[k] = v
	}

	// Rate over the sliding window.
	cutoff := time.Now().Add(-5 * time.Second)
	var recent int
	for _, t := range a.window {
		if t.After(cutoff) {
			recent++
		}
	}

	return Stats{
		Uptime:         time.Since(a.startTime).Truncate(time.Second).String(),
		TotalRecords:   a.totalRecords,
		RecordsPerSec:  float64(recent) / 5.0,
		CategoryCounts: counts,
		ErrorRecords:   a.errorRecords,
		DroppedRecords: a.dropped(),
		FilesWatched:   a.fileCount(),
	}
}

// Start begins consuming records and updating metrics. Blocks until the
// context is cancelled or the subscription closes.
func (a *Aggregator) Start(ctx context.Context) {
	// Periodically prune the sliding window.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-a.records:
			if !ok {
				return
			}
			a.record(rec)
		case <-ticker.C:
			a.prune()
		}
	}
}

func (a *Aggregator) record(rec model.DisplayRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRecords++
	a.categoryCounts[rec.Category]++
	if rec.IsError {
		a.errorRecords++
	}
	a.window = append(a.window, time.Now())
}

// prune removes arrival times older than 5 seconds from the sliding window.
func (a *Aggregator) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := time.Now().Add(-5 * time.Second)
	i := 0
	for _, t := range a.window {
		if t.After(cutoff) {
			a.window[i] = t
			i++
		}
	}
	a.window = a.window[:i]
}
