package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `toml:"name"`
	Count int    `toml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return os.ErrInvalid
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	defaults := &sample{Name: "default", Count: 1}

	cfg, err := LoadTOML(filepath.Join(dir, "missing.toml"), defaults)
	require.NoError(t, err)
	assert.Same(t, defaults, cfg)

	path := filepath.Join(dir, "sample.toml")
	writeFile(t, path, "count = 5\n")
	cfg, err = LoadTOML(path, defaults)
	require.NoError(t, err)
	assert.Equal(t, &sample{Name: "default", Count: 5}, cfg)
	assert.Equal(t, 1, defaults.Count)

	writeFile(t, path, "count = -1\n")
	_, err = LoadTOML(path, defaults)
	assert.ErrorIs(t, err, os.ErrInvalid)

	writeFile(t, path, "count = \n")
	_, err = LoadTOML(path, defaults)
	assert.ErrorContains(t, err, "parsing config")

	writeFile(t, path, "colour = \"red\"\n")
	_, err = LoadTOML(path, defaults)
	assert.ErrorContains(t, err, `unknown key "colour"`)
}

func TestStore_SwapNotifies(t *testing.T) {
	first := &sample{Name: "a"}
	store := NewStore(first)

	var seen [][2]string
	store.OnChange(func(old, next *sample) {
		seen = append(seen, [2]string{old.Name, next.Name})
	})

	old := store.Swap(&sample{Name: "b"})
	assert.Same(t, first, old)
	assert.Equal(t, "b", store.Get().Name)
	assert.Equal(t, [][2]string{{"a", "b"}}, seen)
}

func TestReloader_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	defaults := &sample{Name: "default"}
	store := NewStore(defaults)
	reloader := NewReloader(store, path, defaults, nil)
	assert.Equal(t, path, reloader.Path())

	require.NoError(t, reloader.Reload())
	assert.Same(t, defaults, store.Get())

	writeFile(t, path, "name = \"file\"\n")
	require.NoError(t, reloader.Reload())
	assert.Equal(t, "file", store.Get().Name)

	// An invalid file keeps the previous value.
	writeFile(t, path, "count = -3\n")
	assert.Error(t, reloader.Reload())
	assert.Equal(t, "file", store.Get().Name)
}

func TestReloader_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	writeFile(t, path, "name = \"before\"\n")

	defaults := &sample{}
	store := NewStore(defaults)
	reloader := NewReloader(store, path, defaults, nil)
	require.NoError(t, reloader.Reload())

	var reloads atomic.Int32
	store.OnChange(func(_, _ *sample) { reloads.Add(1) })

	w, err := reloader.Watch(WithDebounce(10 * time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(filepath.Dir(path), "other.toml"), "x = 1\n")
	writeFile(t, path, "name = \"after\"\n")

	require.Eventually(t, func() bool {
		cfg := store.Get()
		return cfg.Name == "after"
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, reloads.Load(), int32(1))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}
