package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Seeded(t *testing.T) {
	seed := map[string]any{"search.top_k": int64(5)}
	store := NewConfigStore(seed)
	require.NotNil(t, store)
	assert.Equal(t, 5, store.GetInt("search.top_k"))

	// The seed map is copied.
	seed["search.top_k"] = int64(9)
	assert.Equal(t, 5, store.GetInt("search.top_k"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"s":     "value",
		"i":     42,
		"f":     0.65,
		"b":     true,
		"slice": []any{"a", "b", 3},
	})

	assert.Equal(t, "value", store.GetString("s"))
	assert.Equal(t, 42, store.GetInt("i"))
	assert.InDelta(t, 0.65, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 42.0, store.GetFloat("i"), 1e-9)
	assert.True(t, store.GetBool("b"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("slice"))

	// Wrong types and missing keys yield zero values.
	assert.Equal(t, "", store.GetString("i"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.False(t, store.GetBool("missing"))
	assert.Nil(t, store.GetStringSlice("s"))
}

func TestConfigStore_SetAndKeys(t *testing.T) {
	store := NewConfigStore(nil)
	require.NoError(t, store.Set("b.key", 1))
	require.NoError(t, store.Set("a.key", 2))

	assert.Equal(t, []string{"a.key", "b.key"}, store.Keys())
	assert.Equal(t, "", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_ = store.Set("key", id)
			_ = store.GetInt("key")
		}(i)
	}
	wg.Wait()
}
