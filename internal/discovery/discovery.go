package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Suffix is the file extension that marks a conversation log.
const Suffix = ".jsonl"

// Scan walks root recursively and returns the set of matching log files.
// Walk errors yield an empty set; a rescan failing for one cycle is
// tolerated, the next cycle retries.
func Scan(root string) map[string]struct{} {
	pattern := filepath.Join(root, "**", "*"+Suffix)
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return map[string]struct{}{}
	}

	files := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			continue
		}
		files[abs] = struct{}{}
	}
	return files
}

// Diff compares the current on-disk set against the known set and returns
// the paths to register and deregister, each sorted. Paths present in both
// sets are untouched, which is what preserves offsets across rescans.
func Diff(known []string, current map[string]struct{}) (added, removed []string) {
	knownSet := make(map[string]struct{}, len(known))
	for _, p := range known {
		knownSet[p] = struct{}{}
	}

	for p := range current {
		if _, ok := knownSet[p]; !ok {
			added = append(added, p)
		}
	}
	for _, p := range known {
		if _, ok := current[p]; !ok {
			removed = append(removed, p)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// ProjectName derives the display label for a file: the first path segment
// under the watch root, with a leading "-" stripped and, when present, a
// prefix derived from the home directory ("/home/user" → "home-user-")
// stripped as well.
func ProjectName(path, root string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	project := rel
	if i := strings.IndexRune(rel, filepath.Separator); i >= 0 {
		project = rel[:i]
	}

	project = strings.TrimPrefix(project, "-")

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		prefix := strings.ReplaceAll(strings.TrimPrefix(home, "/"), "/", "-") + "-"
		project = strings.TrimPrefix(project, prefix)
	}

	return project
}
