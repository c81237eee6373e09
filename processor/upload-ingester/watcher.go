package uploadingester

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// eventChannelBuffer is the size of the watch event channel.
const eventChannelBuffer = 500

// UploadOp indicates the type of upload change.
type UploadOp string

// UploadOpWrite and UploadOpDelete enumerate the upload operations.
// Creates and modifications collapse into one write operation because
// ingestion treats both as "(re)read the file".
const (
	UploadOpWrite  UploadOp = "write"
	UploadOpDelete UploadOp = "delete"
)

// UploadEvent is one debounced change under the uploads tree.
type UploadEvent struct {
	// Path is relative to the uploads root.
	Path string

	// AbsPath is the absolute file path.
	AbsPath string

	Op UploadOp
}

// UploadWatcher watches the uploads tree and emits debounced events for
// files matching the configured glob patterns.
type UploadWatcher struct {
	uploadsDir string
	include    []string
	exclude    []string
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	logger     *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change suppression
	hashMu sync.RWMutex
	hashes map[string]string

	events chan UploadEvent

	droppedEvents atomic.Int64
}

// NewUploadWatcher creates a watcher over the uploads root.
func NewUploadWatcher(config Config, logger *slog.Logger) (*UploadWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	include := config.Include
	if len(include) == 0 {
		include = DefaultConfig().Include
	}

	return &UploadWatcher{
		uploadsDir: config.UploadsDir,
		include:    include,
		exclude:    config.Exclude,
		debounce:   config.GetDebounceDelay(),
		watcher:    fsw,
		logger:     logger,
		pending:    make(map[string]fsnotify.Op),
		hashes:     make(map[string]string),
		events:     make(chan UploadEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of upload events.
func (w *UploadWatcher) Events() <-chan UploadEvent {
	return w.events
}

// Start begins watching the uploads tree.
func (w *UploadWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.uploadsDir, 0o755); err != nil {
		return err
	}
	if err := w.addWatchesRecursive(w.uploadsDir); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Upload watcher started",
		"uploads_dir", w.uploadsDir,
		"debounce", w.debounce,
		"include", w.include)
	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *UploadWatcher) Stop() error {
	return w.watcher.Close()
}

// matchPath reports whether a path relative to the uploads root is
// ingestable: at least one include pattern matches and no exclude
// pattern does. Patterns are matched against the slash form.
func (w *UploadWatcher) matchPath(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	for _, p := range w.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range w.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// addWatchesRecursive adds watches to the root and all subdirectories.
func (w *UploadWatcher) addWatchesRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}

		base := filepath.Base(path)
		if strings.HasPrefix(base, ".") && path != root {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// processEvents handles fsnotify events with debouncing.
func (w *UploadWatcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent accumulates a single fsnotify event.
func (w *UploadWatcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	relPath, err := filepath.Rel(w.uploadsDir, path)
	if err != nil {
		return
	}

	if !w.matchPath(relPath) {
		// New directories need watches even though they never match.
		if event.Has(fsnotify.Create) {
			if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Upload change detected", "path", relPath, "op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory.
func (w *UploadWatcher) handleNewDirectory(path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
}

// flushPending turns accumulated changes into upload events, dropping
// writes whose content hash is unchanged.
func (w *UploadWatcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.uploadsDir, path)
		event := UploadEvent{Path: relPath, AbsPath: path}

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			event.Op = UploadOpDelete
			w.forgetHash(relPath)
			w.sendEvent(event)
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			event.Op = UploadOpDelete
			w.forgetHash(relPath)
			w.sendEvent(event)
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("Failed to read upload", "path", relPath, "error", err)
			continue
		}

		sum := sha256.Sum256(content)
		newHash := hex.EncodeToString(sum[:])
		if old, ok := w.getHash(relPath); ok && old == newHash {
			continue
		}
		w.setHash(relPath, newHash)

		event.Op = UploadOpWrite
		w.sendEvent(event)
	}
}

func (w *UploadWatcher) setHash(path, hash string) {
	w.hashMu.Lock()
	w.hashes[path] = hash
	w.hashMu.Unlock()
}

func (w *UploadWatcher) getHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

func (w *UploadWatcher) forgetHash(path string) {
	w.hashMu.Lock()
	delete(w.hashes, path)
	w.hashMu.Unlock()
}

// sendEvent sends an event without blocking the watch loop.
func (w *UploadWatcher) sendEvent(event UploadEvent) {
	select {
	case w.events <- event:
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}

// DroppedEvents returns the number of events dropped due to channel
// overflow.
func (w *UploadWatcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}
