package tracker

import (
	"bytes"
	"io"
	"log"
	"os"
	"sort"
	"strings"
)

// Tracker owns the set of watched files and the byte offset up to which
// each has been consumed. It is not safe for concurrent use: the polling
// loop is its single owner and only mutator.
type Tracker struct {
	files map[string]*watchedFile
}

type watchedFile struct {
	offset int64
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{files: make(map[string]*watchedFile)}
}

// Register starts tracking a file at its current end, so content that
// existed before registration is never emitted. If the size cannot be
// read (the file was deleted between discovery and registration) the
// offset starts at zero; this is silent.
func (t *Tracker) Register(path string) {
	if _, exists := t.files[path]; exists {
		return
	}

	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}
	t.files[path] = &watchedFile{offset: offset}
}

// Deregister stops tracking a file. Unknown paths are ignored.
func (t *Tracker) Deregister(path string) {
	delete(t.files, path)
}

// Known reports whether a path is currently tracked.
func (t *Tracker) Known(path string) bool {
	_, ok := t.files[path]
	return ok
}

// Offset returns the stored offset for a path.
func (t *Tracker) Offset(path string) (int64, bool) {
	wf, ok := t.files[path]
	if !ok {
		return 0, false
	}
	return wf.offset, true
}

// Paths returns the tracked paths in sorted order, so each polling cycle
// drains files in a deterministic order.
func (t *Tracker) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for p := range t.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Count returns the number of tracked files.
func (t *Tracker) Count() int {
	return len(t.files)
}

// Drain reads everything appended since the last call and returns the new
// complete lines in on-disk order. A trailing partial line (no terminating
// newline yet) is left in place for the next call: the offset only ever
// advances past returned lines, so a line split across two polling cycles
// is emitted exactly once, whole.
//
// Filesystem errors mean "no new data this cycle": Drain returns nothing,
// leaves the offset alone, and the next cycle retries naturally. A file
// whose size dropped below the offset was truncated and rewritten; the
// offset resets to zero so the file resumes instead of stalling.
func (t *Tracker) Drain(path string) []string {
	wf, ok := t.files[path]
	if !ok {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	size := info.Size()

	if size < wf.offset {
		log.Printf("file truncated, rereading from start: %s", path)
		wf.offset = 0
	}
	if size == wf.offset {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	if _, err := f.Seek(wf.offset, io.SeekStart); err != nil {
		return nil
	}

	buf := make([]byte, size-wf.offset)
	n, err := io.ReadFull(f, buf)
	if n == 0 {
		return nil
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil
	}
	data := buf[:n]

	// Only consume up to the last newline; the remainder is a partial line.
	last := bytes.LastIndexByte(data, '\n')
	if last < 0 {
		return nil
	}
	wf.offset += int64(last + 1)

	var lines []string
	for _, line := range bytes.Split(data[:last], []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		// Invalid UTF-8 is replaced, never fatal.
		lines = append(lines, strings.ToValidUTF8(string(line), "�"))
	}
	return lines
}
