// Package watch notifies callers when manifest files change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 500 * time.Millisecond

// ErrNothingToWatch is returned by Add when none of the paths exist.
var ErrNothingToWatch = errors.New("no watchable paths")

// ChangeFunc receives the sorted, de-duplicated paths that changed in one burst.
type ChangeFunc func(ctx context.Context, changed []string)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithExtensions limits notifications to files with one of the given
// extensions. An empty list accepts every file.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) { w.extensions = exts }
}

// Watcher coalesces filesystem events under a set of directories.
type Watcher struct {
	fs         *fsnotify.Watcher
	logger     zerolog.Logger
	debounce   time.Duration
	extensions []string
	watched    []string
}

// New creates a watcher that reports .json changes by default.
func New(logger zerolog.Logger, opts ...Option) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &Watcher{
		fs:         fs,
		logger:     logger.With().Str("component", "watch").Logger(),
		debounce:   DefaultDebounce,
		extensions: []string{".json"},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Add registers paths. Directories are watched directly; a file is watched
// through its parent directory so that atomic renames are seen. Missing paths
// are skipped with a warning.
func (w *Watcher) Add(paths ...string) error {
	added := 0
	for _, path := range paths {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", path).Msg("Failed to stat path for watching")
			continue
		}
		dir := path
		if !info.IsDir() {
			dir = filepath.Dir(path)
		}
		if err := w.fs.Add(dir); err != nil {
			w.logger.Warn().Err(err).Str("path", dir).Msg("Failed to watch directory")
			continue
		}
		w.watched = append(w.watched, dir)
		added++
	}
	if added == 0 {
		return ErrNothingToWatch
	}
	w.logger.Debug().Strs("paths", w.watched).Msg("Watching paths")
	return nil
}

// Watched returns the directories currently registered.
func (w *Watcher) Watched() []string {
	out := make([]string, len(w.watched))
	copy(out, w.watched)
	return out
}

// Run delivers debounced change batches to fn until ctx is done or the
// watcher is closed. fn runs on the Run goroutine, so bursts arriving while
// it runs are batched into the next call.
func (w *Watcher) Run(ctx context.Context, fn ChangeFunc) error {
	pending := make(map[string]struct{})
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Manifest file changed")
			pending[event.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			pending = make(map[string]struct{})
			fn(ctx, changed)
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if len(w.extensions) == 0 {
		return true
	}
	for _, ext := range w.extensions {
		if strings.HasSuffix(event.Name, ext) {
			return true
		}
	}
	return false
}
