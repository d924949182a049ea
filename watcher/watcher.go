// Package watcher ingests print jobs from a filesystem directory: it
// watches for newly created .gcode files (grounded on the same
// fsnotify event loop a directory-watching daemon elsewhere in this
// stack uses) and enqueues each one onto a job.Manager, one line
// expanded and parsed at a time through a MacroExpander.
package watcher

import (
	"bufio"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/krustylabs/krusty-host/gcode"
	"github.com/krustylabs/krusty-host/job"
)

// JobWatcher watches a single directory for new .gcode files and
// enqueues them onto manager. It owns no lock of its own: the job
// Manager is already safe for the concurrent access this produces
// (one goroutine reading fsnotify events, driving Enqueue calls).
type JobWatcher struct {
	fsw      *fsnotify.Watcher
	dir      string
	manager  *job.Manager
	expander *gcode.MacroExpander
	done     chan struct{}
}

// New creates a JobWatcher rooted at dir. The directory must already
// exist; callers are expected to create it ahead of time the way a
// deployed host process provisions its spool directory.
func New(dir string, manager *job.Manager, expander *gcode.MacroExpander) (*JobWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return &JobWatcher{fsw: fsw, dir: dir, manager: manager, expander: expander, done: make(chan struct{})}, nil
}

// Run processes fsnotify events until stop is closed or the watcher is
// closed. Run it in its own goroutine; closing stop, or calling Close,
// causes it to return.
func (w *JobWatcher) Run(stop <-chan struct{}) {
	defer close(w.done)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".gcode") {
				continue
			}
			if err := w.ingest(event.Name); err != nil {
				log.Printf("watcher: failed to ingest %s: %v", event.Name, err)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("watcher: fsnotify error: %v", err)
		}
	}
}

// Close releases the underlying fsnotify watch.
func (w *JobWatcher) Close() error { return w.fsw.Close() }

// Done returns a channel closed once Run has returned.
func (w *JobWatcher) Done() <-chan struct{} { return w.done }

// ingest reads path line by line, expanding macros and parsing each
// line into the stream EnqueueFromStream expects. A read or file-open
// failure enqueues nothing; a line that fails to expand or parse
// becomes a StreamItem error entry so the job still queues with a
// visible failure marker at its point of origin, rather than being
// silently dropped.
func (w *JobWatcher) ingest(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var items []job.StreamItem
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmds, err := w.expander.ExpandAndParse(line)
		if err != nil {
			items = append(items, job.StreamItem{Err: err})
			continue
		}
		for _, c := range cmds {
			items = append(items, job.StreamItem{Command: c})
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	id := w.manager.EnqueueFromStream(items)
	log.Printf("watcher: enqueued job %d from %s (%d commands)", id, path, len(items))
	return nil
}
