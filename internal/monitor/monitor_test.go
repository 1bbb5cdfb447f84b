package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orlenko/claude-log-tail/internal/model"
)

// captureRenderer records everything the monitor emits.
type captureRenderer struct {
	mu         sync.Mutex
	records    []model.DisplayRecord
	discovered []string
}

func (c *captureRenderer) Render(rec model.DisplayRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *captureRenderer) Discovered(project string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discovered = append(c.discovered, project)
	return nil
}

func (c *captureRenderer) snapshot() ([]model.DisplayRecord, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := append([]model.DisplayRecord(nil), c.records...)
	disc := append([]string(nil), c.discovered...)
	return recs, disc
}

func testConfig(root string) Config {
	return Config{
		Root:           root,
		PollInterval:   20 * time.Millisecond,
		RescanInterval: 100 * time.Millisecond,
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestMonitorEmitsAppendedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proj", "session.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	appendFile(t, path, "")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	if count := m.Bootstrap(); count != 1 {
		t.Fatalf("expected 1 file at bootstrap, got %d", count)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	appendFile(t, path, `{"type":"user","timestamp":"2024-01-01T12:00:00Z","message":{"content":"hi"}}`+"\n")

	if !waitFor(t, 3*time.Second, func() bool {
		recs, _ := r.snapshot()
		return len(recs) == 1
	}) {
		t.Fatal("timed out waiting for the record")
	}

	recs, _ := r.snapshot()
	if recs[0].Category != "user" || recs[0].Content != "hi" {
		t.Errorf("unexpected record: %+v", recs[0])
	}
	if recs[0].Project != "proj" {
		t.Errorf("expected project 'proj', got %q", recs[0].Project)
	}

	// No further growth → nothing more is emitted.
	time.Sleep(100 * time.Millisecond)
	if recs, _ := r.snapshot(); len(recs) != 1 {
		t.Errorf("expected exactly 1 record, got %d", len(recs))
	}
}

func TestMonitorHistoryNeverReplayed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendFile(t, path, `{"type":"user","message":{"content":"history"}}`+"\n")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	m.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	time.Sleep(150 * time.Millisecond)
	if recs, _ := r.snapshot(); len(recs) != 0 {
		t.Errorf("pre-existing content must never be emitted, got %v", recs)
	}
}

func TestMonitorSplitWriteEmitsOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendFile(t, path, "")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	m.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	full := `{"type":"user","message":{"content":"split across writes"}}` + "\n"

	// First half, no newline — must not be emitted yet.
	appendFile(t, path, full[:25])
	time.Sleep(100 * time.Millisecond)
	if recs, _ := r.snapshot(); len(recs) != 0 {
		t.Fatalf("partial line must be deferred, got %v", recs)
	}

	// Remainder plus newline — exactly one record now.
	appendFile(t, path, full[25:])
	if !waitFor(t, 3*time.Second, func() bool {
		recs, _ := r.snapshot()
		return len(recs) == 1
	}) {
		t.Fatal("timed out waiting for the completed line")
	}

	recs, _ := r.snapshot()
	if recs[0].Content != "split across writes" {
		t.Errorf("unexpected content %q", recs[0].Content)
	}
}

func TestMonitorDiscoversNewFile(t *testing.T) {
	dir := t.TempDir()

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	if count := m.Bootstrap(); count != 0 {
		t.Fatalf("expected empty bootstrap, got %d", count)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// A new project file appears mid-run with pre-existing content. It is
	// renamed into place so the rescan never observes it half-written.
	path := filepath.Join(dir, "newproj", "session.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	tmp := filepath.Join(dir, "newproj", "session.tmp")
	appendFile(t, tmp, `{"type":"user","message":{"content":"before discovery"}}`+"\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool {
		_, disc := r.snapshot()
		return len(disc) == 1
	}) {
		t.Fatal("timed out waiting for discovery notice")
	}

	_, disc := r.snapshot()
	if disc[0] != "newproj" {
		t.Errorf("expected discovery of 'newproj', got %q", disc[0])
	}

	// Content written before discovery is skipped; new appends show up.
	appendFile(t, path, `{"type":"user","message":{"content":"after discovery"}}`+"\n")

	if !waitFor(t, 3*time.Second, func() bool {
		recs, _ := r.snapshot()
		return len(recs) == 1
	}) {
		t.Fatal("timed out waiting for post-discovery record")
	}

	recs, _ := r.snapshot()
	if recs[0].Content != "after discovery" {
		t.Errorf("expected only post-discovery content, got %+v", recs)
	}
}

func TestMonitorDropsDeletedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendFile(t, path, "")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	m.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return m.FileCount() == 0 }) {
		t.Fatalf("deleted file still tracked, count=%d", m.FileCount())
	}

	// The loop keeps running after the deletion.
	other := filepath.Join(dir, "other.jsonl")
	appendFile(t, other, "")

	if !waitFor(t, 3*time.Second, func() bool { return m.FileCount() == 1 }) {
		t.Fatal("loop stopped discovering after a deletion")
	}
}

func TestMonitorRescanPreservesOffsets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendFile(t, path, "")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	m.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// Write one record, then wait out several rescan intervals.
	appendFile(t, path, `{"type":"user","message":{"content":"once"}}`+"\n")
	time.Sleep(300 * time.Millisecond)

	recs, _ := r.snapshot()
	if len(recs) != 1 {
		t.Fatalf("rescans must not replay content: got %d records", len(recs))
	}
}

func TestMonitorSuppressedRecordsNotEmitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.jsonl")
	appendFile(t, path, "")

	r := &captureRenderer{}
	m := New(testConfig(dir), r)
	m.Bootstrap()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	appendFile(t, path, `{"type":"progress","message":{"content":"50%"}}`+"\n")
	appendFile(t, path, `not valid json`+"\n")
	appendFile(t, path, `{"type":"file-history-snapshot","message":{"content":"snap"}}`+"\n")
	appendFile(t, path, `{"type":"assistant","message":{"content":"visible"}}`+"\n")

	if !waitFor(t, 3*time.Second, func() bool {
		recs, _ := r.snapshot()
		return len(recs) >= 1
	}) {
		t.Fatal("timed out waiting for the visible record")
	}

	recs, _ := r.snapshot()
	if len(recs) != 1 || recs[0].Content != "visible" {
		t.Errorf("expected only the visible record, got %v", recs)
	}
}
