package cache

import (
	"fmt"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStatistics is an in-memory StatisticsReader for policy tests
type stubStatistics struct {
	ratings   map[string]int
	favorites map[string]bool
	banned    map[string]bool
	views     map[string]int
}

func newStubStatistics() *stubStatistics {
	return &stubStatistics{
		ratings:   map[string]int{},
		favorites: map[string]bool{},
		banned:    map[string]bool{},
		views:     map[string]int{},
	}
}

func (stub *stubStatistics) GetRating(path string) int   { return stub.ratings[path] }
func (stub *stubStatistics) IsFavorite(path string) bool { return stub.favorites[path] }
func (stub *stubStatistics) IsBanned(path string) bool   { return stub.banned[path] }
func (stub *stubStatistics) GetViews(path string) int    { return stub.views[path] }

func makeEntries(count int) []*Entry {
	entries := make([]*Entry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, &Entry{
			ID:        fmt.Sprintf("entry_%04d", i),
			Path:      fmt.Sprintf("/cache/entry_%04d.jpg", i),
			Timestamp: float64(1700000000 + i),
		})
	}

	return entries
}

func entryPaths(entries []*Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		paths = append(paths, entry.Path)
	}

	return paths
}

func TestSelectForRemovalFIFOFallback(t *testing.T) {
	entries := makeEntries(5)

	selected := selectForRemoval(entries, 2, nil)
	require.Len(t, selected, 2)
	assert.Equal(t, entries[0], selected[0])
	assert.Equal(t, entries[1], selected[1])

	// never more than asked, never more than available
	assert.Len(t, selectForRemoval(entries, 10, nil), 5)
	assert.Empty(t, selectForRemoval(entries, 0, nil))
}

func TestProtectionInvariant(t *testing.T) {
	entries := makeEntries(6)
	stub := newStubStatistics()
	stub.ratings[entries[0].Path] = 5
	stub.favorites[entries[1].Path] = true

	// even asking for everything never selects rated or favorited entries
	selected := selectForRemoval(entries, len(entries), stub)
	require.Len(t, selected, 4)
	assert.NotContains(t, entryPaths(selected), entries[0].Path)
	assert.NotContains(t, entryPaths(selected), entries[1].Path)
}

func TestEvictionPriorityBannedFirst(t *testing.T) {
	entries := makeEntries(6)
	stub := newStubStatistics()
	stub.banned[entries[3].Path] = true
	stub.banned[entries[5].Path] = true

	// n within the banned count selects only banned entries
	selected := selectForRemoval(entries, 2, stub)
	require.Len(t, selected, 2)
	assert.ElementsMatch(t, []string{entries[3].Path, entries[5].Path}, entryPaths(selected))
}

func TestEvictionPriorityOrder(t *testing.T) {
	entries := makeEntries(6)
	stub := newStubStatistics()

	// one banned, two low-priority (unrated, few views), three normal
	stub.banned[entries[0].Path] = true

	stub.views[entries[1].Path] = 2
	stub.views[entries[2].Path] = 0

	stub.views[entries[3].Path] = 10
	stub.views[entries[4].Path] = 3
	stub.views[entries[5].Path] = 3

	selected := selectForRemoval(entries, 4, stub)
	require.Len(t, selected, 4)

	// banned drains first, then low-priority by ascending views
	assert.Equal(t, entries[0].Path, selected[0].Path)
	assert.Equal(t, entries[2].Path, selected[1].Path)
	assert.Equal(t, entries[1].Path, selected[2].Path)

	// then normal, least-viewed and oldest first
	assert.Equal(t, entries[4].Path, selected[3].Path)
}

func TestEvictionTiesBrokenByAge(t *testing.T) {
	entries := makeEntries(4)
	stub := newStubStatistics()
	for _, entry := range entries {
		stub.views[entry.Path] = 1
	}

	selected := selectForRemoval(entries, 2, stub)
	require.Len(t, selected, 2)
	assert.Equal(t, entries[0].Path, selected[0].Path)
	assert.Equal(t, entries[1].Path, selected[1].Path)
}

func TestInsertSoftCapWhenAllProtected(t *testing.T) {
	config := newTestConfig(t, 1)
	store, err := NewStore(config)
	require.NoError(t, err)

	// everything is rated, nothing is removable
	store.SetStatistics(protectEverything{})

	sourceDir := t.TempDir()
	pathA, err := store.Insert(writeTestImage(t, sourceDir, "a.png", color.RGBA{255, 0, 0, 255}), Metadata{SourceInfo: "a"})
	require.NoError(t, err)
	pathB, err := store.Insert(writeTestImage(t, sourceDir, "b.png", color.RGBA{0, 255, 0, 255}), Metadata{SourceInfo: "b"})
	require.NoError(t, err)

	// the cap is soft under total protection: both entries survive
	assert.Len(t, store.ListEntries(), 2)
	assert.FileExists(t, pathA)
	assert.FileExists(t, pathB)
}

// protectEverything rates every path, making all entries protected
type protectEverything struct{}

func (protectEverything) GetRating(path string) int   { return 5 }
func (protectEverything) IsFavorite(path string) bool { return false }
func (protectEverything) IsBanned(path string) bool   { return false }
func (protectEverything) GetViews(path string) int    { return 0 }

func TestInsertSmartEvictionPrefersBanned(t *testing.T) {
	config := newTestConfig(t, 2)
	store, err := NewStore(config)
	require.NoError(t, err)

	stub := newStubStatistics()
	store.SetStatistics(stub)

	sourceDir := t.TempDir()
	pathA, err := store.Insert(writeTestImage(t, sourceDir, "a.png", color.RGBA{255, 0, 0, 255}), Metadata{SourceInfo: "a"})
	require.NoError(t, err)
	pathB, err := store.Insert(writeTestImage(t, sourceDir, "b.png", color.RGBA{0, 255, 0, 255}), Metadata{SourceInfo: "b"})
	require.NoError(t, err)

	// the newer entry is banned, so it goes before the older unbanned one
	stub.banned[pathB] = true

	pathC, err := store.Insert(writeTestImage(t, sourceDir, "c.png", color.RGBA{0, 0, 255, 255}), Metadata{SourceInfo: "c"})
	require.NoError(t, err)

	entries := store.ListEntries()
	require.Len(t, entries, 2)
	assert.ElementsMatch(t, []string{pathA, pathC}, []string{entries[0].Path, entries[1].Path})
	assert.NoFileExists(t, pathB)
}
