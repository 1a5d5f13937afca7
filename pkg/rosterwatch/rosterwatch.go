// rosterwatch/rosterwatch.go
// Package rosterwatch keeps a client's player roster in sync with a file on
// disk. Game servers that cannot call into Go directly write one player name
// per line; rosterwatch follows the file and turns edits into sign-ins and
// sign-outs on the client.
package rosterwatch

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Roster is the part of the client this package drives. Changes coming from
// the file always announce; the file is the source of truth for who is on.
type Roster interface {
	AddPlayer(name string, announce bool) bool
	RemovePlayer(name string, announce bool) bool
	Players() []string
}

// Options contains configuration options for the watcher.
type Options struct {
	// Path is the roster file, one player name per line. Blank lines and
	// lines starting with # are skipped.
	Path string

	// Debounce is how long to sit on a burst of writes before re-reading
	// the file. Defaults to 100ms.
	Debounce time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Watcher mirrors a roster file into a Roster.
type Watcher struct {
	roster  Roster
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	options Options
	done    chan struct{}

	stopOnce sync.Once
}

// New creates a watcher for the file named in options. Nothing is read or
// watched until Start.
func New(r Roster, options Options) (*Watcher, error) {
	if options.Path == "" {
		return nil, errors.New("rosterwatch: a roster file path is required")
	}
	if options.Debounce <= 0 {
		options.Debounce = 100 * time.Millisecond
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		roster:  r,
		watcher: fsWatcher,
		logger:  options.Logger,
		options: options,
		done:    make(chan struct{}),
	}, nil
}

// Start loads the file once, then follows it until ctx ends or Stop is
// called. The watch covers the file's directory, so editors and servers
// that replace the file instead of rewriting it still trigger a sync.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.sync(); err != nil {
		return err
	}
	if err := w.watcher.Add(filepath.Dir(w.options.Path)); err != nil {
		return err
	}
	go w.watch(ctx)
	return nil
}

// Stop stops following the file. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}

func (w *Watcher) watch(ctx context.Context) {
	// Debounce events so a burst of writes reads the file once.
	debounceTimer := time.NewTimer(w.options.Debounce)
	debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.options.Path) {
				continue
			}
			debounceTimer.Reset(w.options.Debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("rosterwatch: watcher error", "error", err)
		case <-debounceTimer.C:
			if err := w.sync(); err != nil {
				w.logger.Error("rosterwatch: sync failed", "path", w.options.Path, "error", err)
			}
		}
	}
}

// sync reads the file and applies the difference to the roster: names in
// the file but not the roster sign in, names in the roster but not the file
// sign out. The roster itself ignores names it already has, so a retained
// name costs nothing.
func (w *Watcher) sync() error {
	names, err := readRosterFile(w.options.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file is an empty roster.
			names = nil
		} else {
			return err
		}
	}

	want := make(map[string]bool, len(names))
	for _, name := range names {
		want[name] = true
	}
	for _, name := range w.roster.Players() {
		if !want[name] {
			w.roster.RemovePlayer(name, true)
			w.logger.Debug("rosterwatch: signed out", "player", name)
		}
	}
	for _, name := range names {
		if w.roster.AddPlayer(name, true) {
			w.logger.Debug("rosterwatch: signed in", "player", name)
		}
	}
	return nil
}

func readRosterFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}
