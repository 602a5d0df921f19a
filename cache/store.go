package cache

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/lelus78/WallpaperChanger-sub000/commons"
	"github.com/lelus78/WallpaperChanger-sub000/imaging"
)

const (
	indexFileName       string        = "index.json"
	defaultExtension    string        = ".jpg"
	rotationMemoryTTL   time.Duration = 30 * time.Minute
	rotationMemorySweep time.Duration = 10 * time.Minute
)

// Store is the cache index store. It owns a flat directory of image files
// and a single JSON index document describing them. All image files under
// the managed directory are created and deleted only through the store.
//
// One mutex guards the in-memory index and its persistence. The index is
// loaded once at construction and rewritten in full, atomically, on every
// mutation. An unreadable or corrupt index loads as empty: the cache is
// disposable and can always be rebuilt from providers.
type Store struct {
	directory      string
	indexPath      string
	maxItems       int
	enableRotation bool

	colorSampleCount   int
	duplicateThreshold int

	statistics StatisticsReader
	detector   *imaging.DuplicateDetector

	index  cacheIndex
	recent *gocache.Cache
	mutex  sync.Mutex
}

// NewStore creates a Store for the given managed directory
func NewStore(config *commons.Config) (*Store, error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "NewStore",
	})

	directory, err := filepath.Abs(config.CacheRootPath)
	if err != nil {
		return nil, xerrors.Errorf("failed to resolve cache directory %q: %w", config.CacheRootPath, err)
	}

	err = os.MkdirAll(directory, 0755)
	if err != nil {
		return nil, xerrors.Errorf("failed to make cache directory %q: %w", directory, err)
	}

	store := &Store{
		directory:      directory,
		indexPath:      filepath.Join(directory, indexFileName),
		maxItems:       config.CacheMaxItems,
		enableRotation: config.EnableRotation,

		colorSampleCount:   config.ColorSampleCount,
		duplicateThreshold: config.DuplicateThreshold,

		index: newCacheIndex(),
	}

	if store.enableRotation {
		store.recent = gocache.New(rotationMemoryTTL, rotationMemorySweep)
	}

	store.load()

	logger.Infof("Opened wallpaper cache at %s with %d entries (max %d)", directory, len(store.index.Items), store.maxItems)
	return store, nil
}

// SetStatistics attaches the usage statistics collaborator consulted by the
// smart eviction policy. Without it eviction degrades to FIFO.
func (store *Store) SetStatistics(statistics StatisticsReader) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.statistics = statistics
}

// SetDuplicateDetector attaches a perceptual duplicate detector. When set,
// Insert hashes eagerly and rejects images perceptually close to an
// existing entry.
func (store *Store) SetDuplicateDetector(detector *imaging.DuplicateDetector) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	store.detector = detector
}

// GetDirectory returns the managed cache directory
func (store *Store) GetDirectory() string {
	return store.directory
}

// GetMaxItems returns the configured item cap
func (store *Store) GetMaxItems() int {
	return store.maxItems
}

// load reads the index document. A missing or unreadable index resets to empty.
func (store *Store) load() {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "load",
	})

	indexBytes, err := os.ReadFile(store.indexPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warnf("failed to read cache index %s, starting empty", store.indexPath)
		}
		store.index = newCacheIndex()
		return
	}

	index := newCacheIndex()
	err = json.Unmarshal(indexBytes, &index)
	if err != nil {
		logger.WithError(err).Warnf("corrupt cache index %s, starting empty", store.indexPath)
		store.index = newCacheIndex()
		return
	}

	if index.Items == nil {
		index.Items = []*Entry{}
	}

	store.index = index
}

// saveLocked persists the full index atomically. The caller must hold the mutex.
func (store *Store) saveLocked() error {
	indexBytes, err := json.MarshalIndent(&store.index, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal cache index: %w", err)
	}

	// write-temp-then-rename so the on-disk index is always a complete document
	tempPath := store.indexPath + ".tmp"
	err = os.WriteFile(tempPath, indexBytes, 0644)
	if err != nil {
		return xerrors.Errorf("failed to write cache index %q: %w", tempPath, err)
	}

	err = os.Rename(tempPath, store.indexPath)
	if err != nil {
		return xerrors.Errorf("failed to replace cache index %q: %w", store.indexPath, err)
	}

	return nil
}

// Insert copies a downloaded image into the managed directory and appends an
// index entry for it. Returns the stored path, or an empty string when the
// source file does not exist or the image was rejected as a duplicate of an
// existing entry (in which case the existing entry's path is returned).
//
// Inserting a source identity already present is idempotent and returns the
// existing entry's path without copying anything.
func (store *Store) Insert(sourcePath string, metadata Metadata) (string, error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "Insert",
	})

	if _, err := os.Stat(sourcePath); err != nil {
		logger.Debugf("source file %q does not exist, not storing", sourcePath)
		return "", nil
	}

	store.mutex.Lock()
	defer store.mutex.Unlock()

	// dedup by source identity
	if len(metadata.SourceInfo) > 0 {
		for _, item := range store.index.Items {
			if item.SourceInfo == metadata.SourceInfo {
				logger.Debugf("source %q already cached at %s", metadata.SourceInfo, item.Path)
				promCounterForSourceDedupe.Inc()
				return item.Path, nil
			}
		}
	}

	// dedup by perceptual similarity
	fingerprint := ""
	if store.detector != nil {
		newFingerprint, err := store.detector.ComputeHash(sourcePath)
		if err != nil {
			// hashing is best-effort, the insert proceeds without a fingerprint
			logger.WithError(err).Debugf("failed to hash %q, skipping duplicate check", sourcePath)
		} else {
			fingerprint = newFingerprint
			if match := store.detector.IsDuplicateOf(sourcePath, store.fingerprintsLocked(), store.duplicateThreshold); match != nil {
				logger.Infof("rejecting %q, %s of %s (distance %d)", sourcePath, imaging.SimilarityDescription(match.Distance), match.Path, match.Distance)
				promCounterForPerceptualDedupe.Inc()
				return match.Path, nil
			}
		}
	}

	err := os.MkdirAll(store.directory, 0755)
	if err != nil {
		return "", xerrors.Errorf("failed to make cache directory %q: %w", store.directory, err)
	}

	extension := filepath.Ext(sourcePath)
	if len(extension) == 0 {
		extension = defaultExtension
	}

	entryID := newEntryID()
	targetPath := filepath.Join(store.directory, fmt.Sprintf("%s%s", entryID, extension))

	err = copyFile(sourcePath, targetPath)
	if err != nil {
		return "", xerrors.Errorf("failed to copy %q into cache: %w", sourcePath, err)
	}

	entry := &Entry{
		ID:        entryID,
		Path:      targetPath,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),

		SourceInfo: metadata.SourceInfo,
		Provider:   metadata.Provider,
		Preset:     metadata.Preset,
		Monitor:    metadata.Monitor,
		Query:      metadata.Query,

		PerceptualHash: fingerprint,

		Extra: metadata.Extra,
	}

	// color data is optional, decode failures degrade to no color tags
	entry.ColorCategories = imaging.GetColorCategories(targetPath, store.colorSampleCount)
	entry.PrimaryColor = imaging.GetPrimaryColorCategory(targetPath)

	store.index.Items = append(store.index.Items, entry)
	promCounterForInsert.Inc()

	store.evictExcessLocked()

	err = store.saveLocked()
	if err != nil {
		return "", err
	}

	logger.Debugf("stored %s as %s", sourcePath, targetPath)
	return targetPath, nil
}

// evictExcessLocked enforces the item cap using the prioritized policy.
// The caller must hold the mutex.
func (store *Store) evictExcessLocked() {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "evictExcessLocked",
	})

	excess := len(store.index.Items) - store.maxItems
	if excess <= 0 {
		return
	}

	selected := selectForRemoval(store.index.Items, excess, store.statistics)
	if len(selected) < excess {
		// everything else is protected, accept exceeding the cap
		logger.Infof("only %d of %d excess entries are removable, accepting soft cap", len(selected), excess)
	}

	store.removeEntriesLocked(selected)

	for range selected {
		promCounterForEviction.Inc()
	}
}

// removeEntriesLocked drops the given entries from the index and deletes
// their files, tolerating files that are already gone.
// The caller must hold the mutex.
func (store *Store) removeEntriesLocked(entries []*Entry) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "removeEntriesLocked",
	})

	if len(entries) == 0 {
		return
	}

	removed := map[string]bool{}
	for _, entry := range entries {
		removed[entry.ID] = true

		err := os.Remove(entry.Path)
		if err != nil && !os.IsNotExist(err) {
			// the index entry still goes away so the index stays consistent
			logger.WithError(err).Warnf("failed to delete cache file %s", entry.Path)
		}
	}

	kept := make([]*Entry, 0, len(store.index.Items))
	for _, item := range store.index.Items {
		if !removed[item.ID] {
			kept = append(kept, item)
		}
	}

	store.index.Items = kept
}

// GetRandomFilters narrows random retrieval.
// Preset is a hard filter. MonitorLabel is a soft filter: it is skipped when
// no entry matches, so a monitor with no dedicated wallpapers still gets one
// from the broader set. ExcludePaths is a strict subtraction.
type GetRandomFilters struct {
	Preset       string
	MonitorLabel string
	ExcludePaths []string
}

// GetRandom returns a uniformly random entry surviving the filters, or nil.
// Filtering and selection run on a snapshot of entry values taken under the
// lock, so the backfill operations can keep mutating the shared entries.
func (store *Store) GetRandom(filters GetRandomFilters) *Entry {
	promCounterForRandom.Inc()

	store.mutex.Lock()
	items := make([]*Entry, 0, len(store.index.Items))
	for _, item := range store.index.Items {
		entry := *item
		items = append(items, &entry)
	}
	store.mutex.Unlock()

	if len(filters.Preset) > 0 {
		filtered := []*Entry{}
		for _, item := range items {
			if item.Preset == filters.Preset {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	if len(filters.MonitorLabel) > 0 && len(items) > 0 {
		filtered := []*Entry{}
		for _, item := range items {
			if item.Monitor == filters.MonitorLabel {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			items = filtered
		}
	}

	if len(filters.ExcludePaths) > 0 {
		excluded := map[string]bool{}
		for _, path := range filters.ExcludePaths {
			excluded[path] = true
		}

		filtered := []*Entry{}
		for _, item := range items {
			if !excluded[item.Path] {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	// rotation memory is another soft filter: avoid recently served entries
	// unless that would leave nothing to serve
	if store.recent != nil && len(items) > 0 {
		filtered := []*Entry{}
		for _, item := range items {
			if _, served := store.recent.Get(item.Path); !served {
				filtered = append(filtered, item)
			}
		}
		if len(filtered) > 0 {
			items = filtered
		}
	}

	if len(items) == 0 {
		return nil
	}

	picked := items[rand.Intn(len(items))]
	if store.recent != nil {
		store.recent.SetDefault(picked.Path, true)
	}

	return picked
}

// HasItems returns true if the cache holds at least one entry
func (store *Store) HasItems() bool {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	return len(store.index.Items) > 0
}

// ListEntries returns all entries, most recently inserted first
func (store *Store) ListEntries() []*Entry {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entries := make([]*Entry, 0, len(store.index.Items))
	for i := len(store.index.Items) - 1; i >= 0; i-- {
		entry := *store.index.Items[i]
		entries = append(entries, &entry)
	}

	return entries
}

// GetAllColors returns the sorted set of color categories present in the cache
func (store *Store) GetAllColors() []string {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	seen := map[string]bool{}
	for _, item := range store.index.Items {
		for _, category := range item.ColorCategories {
			seen[category] = true
		}
		if len(item.PrimaryColor) > 0 {
			seen[item.PrimaryColor] = true
		}
	}

	colors := make([]string, 0, len(seen))
	for color := range seen {
		colors = append(colors, color)
	}

	sort.Strings(colors)
	return colors
}

// GetByColor returns entries tagged with the given color category,
// most recently inserted first
func (store *Store) GetByColor(color string) []*Entry {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entries := []*Entry{}
	for i := len(store.index.Items) - 1; i >= 0; i-- {
		item := store.index.Items[i]
		if item.PrimaryColor == color || containsString(item.ColorCategories, color) {
			entry := *item
			entries = append(entries, &entry)
		}
	}

	return entries
}

// Prune trims the cache to the item cap, oldest first. This is the simple
// maintenance path; it ignores usage statistics.
func (store *Store) Prune() error {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "Prune",
	})

	store.mutex.Lock()
	defer store.mutex.Unlock()

	excess := len(store.index.Items) - store.maxItems
	if excess <= 0 {
		return nil
	}

	logger.Infof("Pruning %d entries over the cap of %d", excess, store.maxItems)

	store.removeEntriesLocked(store.index.Items[:excess])
	for i := 0; i < excess; i++ {
		promCounterForPrune.Inc()
	}

	return store.saveLocked()
}

// Remove deletes the entry for the given stored path and its file
func (store *Store) Remove(path string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry := store.findByPathLocked(path)
	if entry == nil {
		return xerrors.Errorf("failed to remove cache entry: %w", commons.NewEntryNotFoundError(path))
	}

	store.removeEntriesLocked([]*Entry{entry})
	return store.saveLocked()
}

// Reconcile prunes index entries whose files no longer exist on disk.
// Returns the number of orphaned entries removed.
func (store *Store) Reconcile() (int, error) {
	logger := log.WithFields(log.Fields{
		"package":  "cache",
		"struct":   "Store",
		"function": "Reconcile",
	})

	store.mutex.Lock()
	defer store.mutex.Unlock()

	orphans := []*Entry{}
	for _, item := range store.index.Items {
		if _, err := os.Stat(item.Path); err != nil {
			orphans = append(orphans, item)
		}
	}

	if len(orphans) == 0 {
		return 0, nil
	}

	logger.Infof("Pruning %d orphaned entries", len(orphans))

	store.removeEntriesLocked(orphans)
	return len(orphans), store.saveLocked()
}

// EnsureHash computes and persists the perceptual hash for the entry at the
// given stored path if it is missing. Idempotent: an already hashed entry is
// returned as-is. Requires an attached duplicate detector.
func (store *Store) EnsureHash(path string) (string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if store.detector == nil {
		return "", xerrors.Errorf("no duplicate detector is attached to the cache store")
	}

	entry := store.findByPathLocked(path)
	if entry == nil {
		return "", xerrors.Errorf("failed to hash cache entry: %w", commons.NewEntryNotFoundError(path))
	}

	if len(entry.PerceptualHash) > 0 {
		return entry.PerceptualHash, nil
	}

	fingerprint, err := store.detector.ComputeHash(entry.Path)
	if err != nil {
		return "", xerrors.Errorf("failed to hash cache entry %q: %w", entry.Path, err)
	}

	entry.PerceptualHash = fingerprint
	return fingerprint, store.saveLocked()
}

// EnsureColors computes and persists color categories for the entry at the
// given stored path if they are missing. Idempotent.
func (store *Store) EnsureColors(path string) ([]string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	entry := store.findByPathLocked(path)
	if entry == nil {
		return nil, xerrors.Errorf("failed to analyze cache entry: %w", commons.NewEntryNotFoundError(path))
	}

	if len(entry.ColorCategories) > 0 {
		return entry.ColorCategories, nil
	}

	entry.ColorCategories = imaging.GetColorCategories(entry.Path, store.colorSampleCount)
	entry.PrimaryColor = imaging.GetPrimaryColorCategory(entry.Path)

	return entry.ColorCategories, store.saveLocked()
}

// fingerprintsLocked returns stored path to fingerprint for all hashed entries.
// The caller must hold the mutex.
func (store *Store) fingerprintsLocked() map[string]string {
	fingerprints := map[string]string{}
	for _, item := range store.index.Items {
		if len(item.PerceptualHash) > 0 {
			fingerprints[item.Path] = item.PerceptualHash
		}
	}

	return fingerprints
}

// findByPathLocked returns the entry for a stored path, or nil.
// The caller must hold the mutex.
func (store *Store) findByPathLocked(path string) *Entry {
	for _, item := range store.index.Items {
		if item.Path == path {
			return item
		}
	}

	return nil
}

// newEntryID generates a cache entry id, millisecond timestamp plus a random
// 4-digit suffix. Sortable by insertion time and readable in the cache folder.
func newEntryID() string {
	return fmt.Sprintf("%d_%04d", time.Now().UnixMilli(), 1000+rand.Intn(9000))
}

func copyFile(sourcePath string, targetPath string) error {
	sourceBytes, err := os.ReadFile(sourcePath)
	if err != nil {
		return err
	}

	return os.WriteFile(targetPath, sourceBytes, 0644)
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
