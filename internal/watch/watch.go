// Package watch reports changes to files on disk. It watches the parent
// directories rather than the files so atomic replace-by-rename (as done
// by editors and by our own saves) is seen.
package watch

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period after the last event before the
// callback fires.
const DefaultDebounce = 300 * time.Millisecond

type Options struct {
	Debounce time.Duration
	Logger   zerolog.Logger
}

// FileWatcher calls onChange(path) once per burst of writes to a tracked
// file. Callbacks run on their own goroutine.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]struct{} // cleaned absolute paths
	dirs     []string
	onChange func(path string)
	debounce time.Duration
	log      zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	seq     map[string]uint64 // bumped per event; a timer only fires if it is still the latest

	enabled  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for paths. Nothing is watched until Start.
func New(paths []string, onChange func(path string), opts Options) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &FileWatcher{
		watcher:  w,
		files:    make(map[string]struct{}, len(paths)),
		onChange: onChange,
		debounce: opts.Debounce,
		log:      opts.Logger.With().Str("component", "watch").Logger(),
		pending:  make(map[string]*time.Timer),
		seq:      make(map[string]uint64),
		stopCh:   make(chan struct{}),
	}
	if fw.debounce <= 0 {
		fw.debounce = DefaultDebounce
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		fw.files[abs] = struct{}{}
		if dir := filepath.Dir(abs); !seen[dir] {
			seen[dir] = true
			fw.dirs = append(fw.dirs, dir)
		}
	}
	fw.enabled.Store(true)
	return fw, nil
}

func (fw *FileWatcher) Enabled() bool { return fw.enabled.Load() }

// SetEnabled pauses or resumes change reporting. Events seen while
// disabled are dropped.
func (fw *FileWatcher) SetEnabled(on bool) {
	fw.enabled.Store(on)
	fw.log.Debug().Bool("enabled", on).Msg("watcher toggled")
}

// Start begins watching.
func (fw *FileWatcher) Start() error {
	for _, dir := range fw.dirs {
		if err := fw.watcher.Add(dir); err != nil {
			return err
		}
		fw.log.Info().Str("dir", dir).Msg("watching directory")
	}
	fw.wg.Add(1)
	go fw.run()
	return nil
}

// Stop ends watching and cancels callbacks that have not fired yet.
// It is safe to call more than once.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopCh)
		_ = fw.watcher.Close()
		fw.wg.Wait()

		fw.mu.Lock()
		for p, t := range fw.pending {
			t.Stop()
			delete(fw.pending, p)
		}
		fw.mu.Unlock()
	})
}

func (fw *FileWatcher) run() {
	defer fw.wg.Done()
	for {
		select {
		case <-fw.stopCh:
			return
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(ev)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (fw *FileWatcher) handleEvent(ev fsnotify.Event) {
	if !fw.Enabled() {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(ev.Name)
	if _, ok := fw.files[path]; !ok {
		return
	}

	// trailing-edge debounce: restart the quiet period on every event
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if t, ok := fw.pending[path]; ok {
		t.Stop()
	}
	fw.seq[path]++
	n := fw.seq[path]
	fw.pending[path] = time.AfterFunc(fw.debounce, func() { fw.fire(path, n) })
}

func (fw *FileWatcher) fire(path string, n uint64) {
	fw.mu.Lock()
	if fw.seq[path] != n {
		// a later event re-armed the timer while this one was waiting
		fw.mu.Unlock()
		return
	}
	delete(fw.pending, path)
	fw.mu.Unlock()

	select {
	case <-fw.stopCh:
		return
	default:
	}
	if !fw.Enabled() {
		return
	}
	fw.log.Info().Str("path", path).Msg("file changed")
	if fw.onChange != nil {
		fw.onChange(path)
	}
}
