// Package watcher reports changes to files esbuild does not bundle, such as
// index.html and the public/ directory, so the browser can reload when they
// change. Bundled sources are watched by esbuild itself.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	kerrors "github.com/conneroisu/kiln/internal/errors"
	"github.com/conneroisu/kiln/internal/logging"
)

// FileWatcher watches for file changes with debouncing
type FileWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	scope     FileFilter
	logger    logging.Logger
	mutex     sync.RWMutex
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be watched
type FileFilter func(path string) bool

// ChangeHandler handles file change events
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer creates a debouncer that emits a batch once no event arrived
// for delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 100),
		output:  make(chan []ChangeEvent, 10),
		pending: make([]ChangeEvent, 0),
	}
}

// NewFileWatcher creates a watcher confined to root.
func NewFileWatcher(root string, debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logging.Discard()
	}

	return &FileWatcher{
		root:      absRoot,
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath adds a path to watch
func (fw *FileWatcher) AddPath(path string) error {
	cleanPath, err := fw.validatePath(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	return fw.watcher.Add(cleanPath)
}

// AddRecursive adds a directory and all subdirectories to watch
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := fw.validatePath(root)
	if err != nil {
		return fmt.Errorf("invalid root path: %w", err)
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			cleanPath, err := fw.validatePath(path)
			if err != nil {
				fw.logger.Warn(context.Background(), err, "Skipping invalid directory path", "path", path)
				return filepath.SkipDir
			}
			return fw.watcher.Add(cleanPath)
		}

		return nil
	})
}

// AddStatic watches each path relative to the watch root: directories
// recursively, files through their parent directory. Missing paths are
// skipped so optional directories such as public/ need not exist. Events
// and newly created directories outside the given paths are ignored.
func (fw *FileWatcher) AddStatic(paths []string) ([]string, error) {
	var watched, requested []string
	for _, p := range paths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(fw.root, p)
		}
		requested = append(requested, full)

		info, err := os.Stat(full)
		if errors.Is(err, fs.ErrNotExist) {
			fw.logger.Debug(context.Background(), "Static path does not exist, not watching", "path", p)
			continue
		}
		if err != nil {
			return nil, err
		}

		if info.IsDir() {
			err = fw.AddRecursive(full)
		} else {
			// Editors often replace files by rename, which drops a direct
			// file watch; the parent directory survives that.
			err = fw.AddPath(filepath.Dir(full))
		}
		if err != nil {
			return nil, err
		}
		watched = append(watched, full)
	}

	scope := PathsFilter(requested)
	fw.mutex.Lock()
	fw.scope = scope
	fw.filters = append(fw.filters, scope)
	fw.mutex.Unlock()
	return watched, nil
}

// validatePath cleans path and rejects anything outside the watch root.
func (fw *FileWatcher) validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		cleanPath = filepath.Join(fw.root, cleanPath)
	}

	rel, err := filepath.Rel(fw.root, cleanPath)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", kerrors.ErrPathTraversal(path)
	}

	return cleanPath, nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// Newly created directories are watched as well, unless they lie
	// outside the static paths, as node_modules/ or dist/ do.
	if statErr == nil && info.IsDir() {
		if event.Op&fsnotify.Create == fsnotify.Create && fw.inScope(event.Name) {
			if err := fw.AddRecursive(event.Name); err != nil {
				fw.logger.Warn(context.Background(), err, "Cannot watch new directory", "path", event.Name)
			}
		}
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if statErr == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.debouncer.Add(ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

func (fw *FileWatcher) inScope(dir string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	return fw.scope == nil || fw.scope(dir)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler error")
				}
			}
		}
	}
}

// Add queues an event without blocking. Events are dropped while the queue
// is full.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.stop()
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.flush()
	})
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Deduplicate by path, the latest event wins.
	eventMap := make(map[string]ChangeEvent)
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}

	d.pending = d.pending[:0]
}

// PathsFilter accepts the given files and anything below the given
// directories.
func PathsFilter(paths []string) FileFilter {
	clean := make([]string, len(paths))
	for i, p := range paths {
		clean[i] = filepath.Clean(p)
	}
	return func(path string) bool {
		path = filepath.Clean(path)
		for _, p := range clean {
			if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}

// NoEditorTempFilter rejects swap and backup files written by editors.
func NoEditorTempFilter(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		base == "4913":
		return false
	}
	return true
}

func NoNodeModulesFilter(path string) bool {
	return !strings.Contains(filepath.ToSlash(path), "/node_modules/") &&
		!strings.HasPrefix(filepath.ToSlash(path), "node_modules/")
}

func NoGitFilter(path string) bool {
	return !strings.Contains(filepath.ToSlash(path), "/.git/") &&
		!strings.HasPrefix(filepath.ToSlash(path), ".git/")
}
