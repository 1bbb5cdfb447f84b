package discovery

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Notifier turns OS-level file creation events into rescan nudges for the
// polling loop. It is purely advisory: it never registers files itself,
// only signals that a rescan is worth doing before the regular cadence.
// The loop remains the single owner of all tracking state, and the 10s
// rescan still catches anything the notifier misses (new directories are
// only watched after a scan has seen them).
type Notifier struct {
	fsw    *fsnotify.Watcher
	Nudges chan struct{}
}

// NewNotifier creates a Notifier watching the given root directory.
func NewNotifier(root string) (*Notifier, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Notifier{
		fsw:    fsw,
		Nudges: make(chan struct{}, 1),
	}, nil
}

// WatchDir adds a directory to the watch set. Errors are tolerated; the
// periodic rescan covers unwatched directories.
func (n *Notifier) WatchDir(dir string) {
	if err := n.fsw.Add(dir); err != nil {
		log.Printf("cannot watch %s: %v", dir, err)
	}
}

// Start forwards creation events as nudges. Blocks until the context is
// cancelled.
func (n *Notifier) Start(ctx context.Context) {
	defer n.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-n.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				// Coalesce: one pending nudge is enough.
				select {
				case n.Nudges <- struct{}{}:
				default:
				}
			}
		case err, ok := <-n.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("notifier error: %v", err)
		}
	}
}
