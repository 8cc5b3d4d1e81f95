package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kcache/internal/core/domain"
)

// fakeCache implements driving.IngestService and driving.KnowledgeService
// over a map keyed by content.
type fakeCache struct {
	mu    sync.Mutex
	items []domain.KnowledgeItem
	seq   int
}

func (f *fakeCache) Ingest(_ context.Context, raw domain.RawDocument) (domain.IngestResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(raw.Body) == "" {
		return domain.IngestResult{}, domain.ErrNoContent
	}
	for _, it := range f.items {
		if it.RawContent == raw.Body {
			return domain.IngestResult{Item: it}, nil
		}
	}
	f.seq++
	item := domain.KnowledgeItem{
		ID:         "item-" + string(rune('0'+f.seq)),
		Title:      raw.Title,
		SourceURL:  raw.SourceOrigin,
		RawContent: raw.Body,
	}
	f.items = append(f.items, item)
	return domain.IngestResult{Item: item, Created: true, ChunkCount: 1}, nil
}

func (f *fakeCache) IngestFile(ctx context.Context, path string) (domain.IngestResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.IngestResult{}, err
	}
	if strings.HasSuffix(path, ".bin") {
		return domain.IngestResult{}, domain.ErrUnsupportedType
	}
	return f.Ingest(ctx, domain.RawDocument{Body: string(data), SourceOrigin: path})
}

func (f *fakeCache) List(_ context.Context) ([]domain.KnowledgeItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.KnowledgeItem(nil), f.items...), nil
}

func (f *fakeCache) Get(_ context.Context, id string) (*domain.KnowledgeItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			it := f.items[i]
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCache) Chunks(_ context.Context, _ string) ([]domain.ChunkRow, error) {
	return nil, nil
}

func (f *fakeCache) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeCache) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, it := range f.items {
		out = append(out, filepath.Base(it.SourceURL))
	}
	return out
}

// collector records results.
type collector struct {
	mu      sync.Mutex
	results []Result
}

func (c *collector) add(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

func (c *collector) actions() map[string]Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Action)
	for _, r := range c.results {
		out[filepath.Base(r.Path)] = r.Action
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func newTestWatcher(t *testing.T, root string, cache *fakeCache, col *collector, opts ...Option) *Watcher {
	t.Helper()
	ignore, err := NewIgnoreFilter(root, ".kcacheignore")
	require.NoError(t, err)
	opts = append([]Option{
		WithIgnoreFilter(ignore),
		WithKnowledge(cache),
		WithResultHandler(col.add),
		WithDebounce(20 * time.Millisecond),
	}, opts...)
	w, err := New(root, cache, opts...)
	require.NoError(t, err)
	return w
}

func TestNew(t *testing.T) {
	t.Run("rejects a file root", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "a.txt")
		writeFile(t, file, "x")

		_, err := New(file, &fakeCache{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("rejects a missing root", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "missing"), &fakeCache{})
		assert.Error(t, err)
	})

	t.Run("requires an ingest service", func(t *testing.T) {
		_, err := New(t.TempDir(), nil)
		assert.Error(t, err)
	})

	t.Run("resolves an absolute root", func(t *testing.T) {
		w, err := New(t.TempDir(), &fakeCache{})
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(w.Root()))
	})
}

func TestWatcher_Scan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "notes.md"), "# Notes\n\nsome notes")
	writeFile(t, filepath.Join(root, "sub", "guide.txt"), "a guide")
	writeFile(t, filepath.Join(root, "empty.txt"), "   ")
	writeFile(t, filepath.Join(root, "image.bin"), "binary")
	writeFile(t, filepath.Join(root, ".hidden", "secret.txt"), "hidden")
	writeFile(t, filepath.Join(root, "drafts", "wip.txt"), "ignored draft")
	writeFile(t, filepath.Join(root, ".kcacheignore"), "# drafts\ndrafts/\n")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)

	require.NoError(t, w.Scan(context.Background()))

	actions := col.actions()
	assert.Equal(t, ActionIngested, actions["notes.md"])
	assert.Equal(t, ActionIngested, actions["guide.txt"])
	assert.Equal(t, ActionSkipped, actions["empty.txt"])
	assert.Equal(t, ActionSkipped, actions["image.bin"])
	assert.NotContains(t, actions, "secret.txt")
	assert.NotContains(t, actions, "wip.txt")
	assert.NotContains(t, actions, ".kcacheignore")

	// A second scan finds nothing new.
	col.results = nil
	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, ActionUnchanged, col.actions()["notes.md"])
	assert.ElementsMatch(t, []string{"notes.md", "guide.txt"}, cache.sources())
}

func TestWatcher_Scan_Supported(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "markdown")
	writeFile(t, filepath.Join(root, "b.csv"), "x,y")

	col := &collector{}
	w := newTestWatcher(t, root, &fakeCache{}, col, WithSupported(func(path string) bool {
		return filepath.Ext(path) == ".md"
	}))

	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, map[string]Action{"a.md": ActionIngested}, col.actions())
}

func TestWatcher_HandleFsEvent_Debounce(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "first version")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)

	clock := time.Unix(1000, 0)
	w.now = func() time.Time { return clock }

	w.handleFsEvent(nil, fsnotify.Event{Name: path, Op: fsnotify.Create})
	w.handleFsEvent(nil, fsnotify.Event{Name: path, Op: fsnotify.Write})
	require.Len(t, w.pending, 1)

	// Not quiet long enough yet.
	clock = clock.Add(10 * time.Millisecond)
	w.flush(context.Background(), false)
	assert.Empty(t, col.results)

	clock = clock.Add(20 * time.Millisecond)
	w.flush(context.Background(), false)
	require.Len(t, col.results, 1)
	assert.Equal(t, ActionIngested, col.results[0].Action)
	assert.Empty(t, w.pending)
}

func TestWatcher_ModifiedFileReplacesOldVersion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "first version")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)
	require.NoError(t, w.Scan(context.Background()))

	writeFile(t, path, "second version")
	w.handleFsEvent(nil, fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.flush(context.Background(), true)

	items, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second version", items[0].RawContent)
}

func TestWatcher_RemovedFileIsDeleted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "content")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)
	require.NoError(t, w.Scan(context.Background()))
	require.Len(t, cache.sources(), 1)

	require.NoError(t, os.Remove(path))
	w.handleFsEvent(nil, fsnotify.Event{Name: path, Op: fsnotify.Remove})
	w.flush(context.Background(), true)

	assert.Empty(t, cache.sources())
	assert.Equal(t, ActionRemoved, col.results[len(col.results)-1].Action)
}

func TestWatcher_RemovingOneOfTwoIdenticalFilesKeepsContent(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "a.txt")
	b := filepath.Join(root, "b.txt")
	writeFile(t, a, "shared content")
	writeFile(t, b, "shared content")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)
	require.NoError(t, w.Scan(context.Background()))
	assert.Equal(t, ActionUnchanged, col.actions()["b.txt"], "b deduplicates onto a's item")
	require.Len(t, cache.sources(), 1)

	require.NoError(t, os.Remove(a))
	w.handleFsEvent(nil, fsnotify.Event{Name: a, Op: fsnotify.Remove})
	w.flush(context.Background(), true)

	items, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1, "b still holds the shared content")
	assert.Equal(t, "shared content", items[0].RawContent)

	require.NoError(t, os.Remove(b))
	w.handleFsEvent(nil, fsnotify.Event{Name: b, Op: fsnotify.Remove})
	w.flush(context.Background(), true)
	assert.Empty(t, cache.sources())
}

func TestWatcher_EditToMatchAnotherFileDropsOldVersion(t *testing.T) {
	root := t.TempDir()
	x := filepath.Join(root, "x.txt")
	y := filepath.Join(root, "y.txt")
	writeFile(t, x, "x content")
	writeFile(t, y, "y content")

	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)
	require.NoError(t, w.Scan(context.Background()))
	require.Len(t, cache.sources(), 2)

	writeFile(t, x, "y content")
	w.handleFsEvent(nil, fsnotify.Event{Name: x, Op: fsnotify.Write})
	w.flush(context.Background(), true)
	assert.Equal(t, ActionUnchanged, col.results[len(col.results)-1].Action)

	items, err := cache.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "y content", items[0].RawContent)

	// Removing y keeps the item x now maps to.
	require.NoError(t, os.Remove(y))
	w.handleFsEvent(nil, fsnotify.Event{Name: y, Op: fsnotify.Remove})
	w.flush(context.Background(), true)
	assert.Len(t, cache.sources(), 1)
}

func TestWatcher_RenameOverWriteIsIngested(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doc.txt")
	writeFile(t, path, "content")

	col := &collector{}
	w := newTestWatcher(t, root, &fakeCache{}, col)

	w.handleFsEvent(nil, fsnotify.Event{Name: path, Op: fsnotify.Rename})
	w.flush(context.Background(), true)

	require.Len(t, col.results, 1)
	assert.Equal(t, ActionIngested, col.results[0].Action)
}

func TestWatcher_HandleFsEvent_Skips(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".kcacheignore"), "*.log\n")
	writeFile(t, filepath.Join(root, ".hidden.txt"), "hidden")
	writeFile(t, filepath.Join(root, "app.log"), "log line")
	require.NoError(t, os.Mkdir(filepath.Join(root, "dir"), 0o755))

	w := newTestWatcher(t, root, &fakeCache{}, &collector{})

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
	}{
		{"hidden file", ".hidden.txt", fsnotify.Create},
		{"ignored pattern", "app.log", fsnotify.Write},
		{"chmod only", "app.log", fsnotify.Chmod},
		{"missing file write", "gone.txt", fsnotify.Write},
		{"hidden remove", ".hidden.txt", fsnotify.Remove},
		{"directory write", "dir", fsnotify.Write},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w.handleFsEvent(nil, fsnotify.Event{Name: filepath.Join(root, tt.path), Op: tt.op})
			assert.Empty(t, w.pending)
		})
	}
}

func TestWatcher_Run(t *testing.T) {
	root := t.TempDir()
	cache := &fakeCache{}
	col := &collector{}
	w := newTestWatcher(t, root, cache, col)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to subscribe.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "live.txt"), "written while watching")
	writeFile(t, filepath.Join(root, "nested", "deep.txt"), "in a new directory")

	assert.Eventually(t, func() bool {
		a := col.actions()
		return a["live.txt"] == ActionIngested && a["deep.txt"] == ActionIngested
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestIsHidden(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"file.txt", false},
		{".hidden", true},
		{"dir/.hidden/file.txt", true},
		{"dir/file.txt", false},
		{"../file.txt", false},
		{".", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, isHidden(tt.path))
		})
	}
}

func TestIgnoreFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".kcacheignore"), "# comment\n\n*.log\nbuild/\n")

	f, err := NewIgnoreFilter(root, ".kcacheignore")
	require.NoError(t, err)

	assert.True(t, f.ShouldIgnore(filepath.Join(root, "debug.log")))
	assert.True(t, f.ShouldIgnore(filepath.Join(root, "build", "out.txt")))
	assert.True(t, f.ShouldIgnore(filepath.Join(root, "node_modules", "x.md")))
	assert.True(t, f.ShouldIgnore("/elsewhere/file.txt"))
	assert.False(t, f.ShouldIgnore(filepath.Join(root, "notes.md")))
	assert.False(t, f.ShouldIgnore(root))

	t.Run("missing ignore file uses defaults", func(t *testing.T) {
		f, err := NewIgnoreFilter(t.TempDir(), ".kcacheignore")
		require.NoError(t, err)
		assert.True(t, f.ShouldIgnore(".git/config"))
		assert.False(t, f.ShouldIgnore("notes.md"))
	})
}
