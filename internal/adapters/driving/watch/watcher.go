// Package watch keeps the knowledge cache in step with a directory.
//
// The Watcher subscribes to filesystem events under a root, waits for a
// path to go quiet, then ingests it. Removed files and superseded versions
// of a file are deleted from the cache when a KnowledgeService is set.
//
// Ingestion deduplicates by content, so several files may share one item.
// The watcher records which item each path it has seen maps to, and never
// deletes an item another known path still maps to.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/kcache/internal/core/domain"
	"github.com/custodia-labs/kcache/internal/core/ports/driving"
	"github.com/custodia-labs/kcache/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// Action describes what happened to a path.
type Action string

// Actions reported to the result handler.
const (
	ActionIngested  Action = "ingested"
	ActionUnchanged Action = "unchanged"
	ActionRemoved   Action = "removed"
	ActionSkipped   Action = "skipped"
	ActionFailed    Action = "failed"
)

// Result reports the outcome for a single path.
type Result struct {
	Path   string
	Action Action
	Item   *domain.KnowledgeItem
	Chunks int
	Err    error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnoreFilter sets the path filter.
func WithIgnoreFilter(f *IgnoreFilter) Option {
	return func(w *Watcher) {
		w.ignore = f
	}
}

// WithKnowledge enables removal of deleted and superseded files.
func WithKnowledge(k driving.KnowledgeService) Option {
	return func(w *Watcher) {
		w.knowledge = k
	}
}

// WithSupported sets the predicate that decides which files are ingested.
func WithSupported(fn func(path string) bool) Option {
	return func(w *Watcher) {
		w.supported = fn
	}
}

// WithResultHandler sets a callback invoked for every processed path.
func WithResultHandler(fn func(Result)) Option {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

type pendingKind int

const (
	pendingChanged pendingKind = iota
	pendingRemoved
)

type pendingPath struct {
	kind pendingKind
	at   time.Time
}

// Watcher ingests files under root as they change.
type Watcher struct {
	root      string
	ingest    driving.IngestService
	knowledge driving.KnowledgeService
	ignore    *IgnoreFilter
	supported func(string) bool
	debounce  time.Duration
	onResult  func(Result)
	now       func() time.Time

	pending map[string]pendingPath
	owners  map[string]string // path -> item id
}

// New creates a watcher for root.
func New(root string, ingest driving.IngestService, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}
	if ingest == nil {
		return nil, errors.New("watch: ingest service is required")
	}

	w := &Watcher{
		root:      abs,
		ingest:    ingest,
		supported: func(string) bool { return true },
		debounce:  DefaultDebounce,
		onResult:  func(Result) {},
		now:       time.Now,
		pending:   make(map[string]pendingPath),
		owners:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.ignore == nil {
		w.ignore, err = NewIgnoreFilter(abs, "")
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Scan ingests every eligible file under root once. Unchanged files are
// duplicates and cost nothing beyond hashing.
func (w *Watcher) Scan(ctx context.Context) error {
	var paths []string
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("Skipping %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path != w.root && w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.eligible(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning %s: %w", w.root, err)
	}

	sort.Strings(paths)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.onResult(w.ingestPath(ctx, path))
	}
	return nil
}

// Run watches root until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	logger.Info("Watching %s", w.root)

	tick := time.NewTicker(w.tickInterval())
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleFsEvent(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watch error: %v", err)

		case <-tick.C:
			w.flush(ctx, false)
		}
	}
}

func (w *Watcher) tickInterval() time.Duration {
	interval := w.debounce / 2
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

// addTree subscribes to dir and every non-ignored directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != w.root && w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		logger.Debug("Watching directory %s", path)
		return nil
	})
}

// handleFsEvent records a filesystem event as pending work.
func (w *Watcher) handleFsEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.ignore.ShouldIgnore(path) || isHidden(w.rel(path)) {
			return
		}
		w.pending[path] = pendingPath{kind: pendingRemoved, at: w.now()}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && !w.skipDir(path) {
				if err := w.addTree(fw, path); err != nil {
					logger.Warn("%v", err)
				}
				w.queueTree(path)
			}
			return
		}
		if !w.eligible(path) {
			return
		}
		w.pending[path] = pendingPath{kind: pendingChanged, at: w.now()}
	}
}

// queueTree marks files in a newly created directory as changed; they may
// have been written before the directory was subscribed.
func (w *Watcher) queueTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if w.eligible(path) {
			w.pending[path] = pendingPath{kind: pendingChanged, at: w.now()}
		}
		return nil
	})
}

// flush processes pending paths that have been quiet for the debounce
// period, or all of them when force is set.
func (w *Watcher) flush(ctx context.Context, force bool) {
	now := w.now()
	var due []string
	for path, p := range w.pending {
		if force || now.Sub(p.at) >= w.debounce {
			due = append(due, path)
		}
	}
	sort.Strings(due)

	for _, path := range due {
		p := w.pending[path]
		delete(w.pending, path)

		if p.kind == pendingRemoved {
			if _, err := os.Stat(path); err == nil {
				// Replaced by an editor's rename-over-write.
				w.onResult(w.ingestPath(ctx, path))
				continue
			}
			w.onResult(w.removePath(ctx, path))
			continue
		}
		w.onResult(w.ingestPath(ctx, path))
	}
}

func (w *Watcher) ingestPath(ctx context.Context, path string) Result {
	res, err := w.ingest.IngestFile(ctx, path)
	switch {
	case errors.Is(err, domain.ErrUnsupportedType), errors.Is(err, domain.ErrNoContent):
		logger.Debug("Skipping %s: %v", path, err)
		return Result{Path: path, Action: ActionSkipped, Err: err}
	case err != nil:
		return Result{Path: path, Action: ActionFailed, Err: err}
	}

	item := res.Item
	prev := w.owners[path]
	w.owners[path] = item.ID
	if err := w.release(ctx, path, prev, item.ID); err != nil {
		logger.Warn("Removing old versions of %s: %v", path, err)
	}

	if !res.Created {
		return Result{Path: path, Action: ActionUnchanged, Item: &item}
	}
	return Result{Path: path, Action: ActionIngested, Item: &item, Chunks: res.ChunkCount}
}

func (w *Watcher) removePath(ctx context.Context, path string) Result {
	prev := w.owners[path]
	delete(w.owners, path)
	if w.knowledge == nil {
		return Result{Path: path, Action: ActionSkipped}
	}
	if err := w.release(ctx, path, prev, ""); err != nil {
		return Result{Path: path, Action: ActionFailed, Err: err}
	}
	return Result{Path: path, Action: ActionRemoved}
}

// release deletes the items path no longer maps to: prev and any item whose
// origin is path, except keepID. Items still mapped by another path stay.
func (w *Watcher) release(ctx context.Context, path, prev, keepID string) error {
	if w.knowledge == nil {
		return nil
	}
	items, err := w.knowledge.List(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for i := range items {
		id := items[i].ID
		if id == keepID || (id != prev && items[i].SourceURL != path) {
			continue
		}
		if owner, shared := w.ownedElsewhere(id, path); shared {
			logger.Debug("Keeping %s, still mapped by %s", id, owner)
			continue
		}
		if err := w.knowledge.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		logger.Debug("Deleted %s (%s)", id, path)
	}
	return errors.Join(errs...)
}

// ownedElsewhere returns a path other than path that maps to id.
func (w *Watcher) ownedElsewhere(id, path string) (string, bool) {
	for other, owned := range w.owners {
		if owned == id && other != path {
			return other, true
		}
	}
	return "", false
}

func (w *Watcher) eligible(path string) bool {
	rel := w.rel(path)
	if isHidden(rel) || w.ignore.ShouldIgnore(path) {
		return false
	}
	return w.supported(path)
}

func (w *Watcher) skipDir(path string) bool {
	return isHidden(w.rel(path)) || w.ignore.ShouldIgnore(path)
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// isHidden reports whether any element of path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && part[0] == '.' && part != ".." {
			return true
		}
	}
	return false
}
