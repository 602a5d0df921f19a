package stats

import (
	"encoding/json"
	"os"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	historyLimit  int = 1000
	ratingMin     int = 0
	ratingMax     int = 5
	dateKeyFormat     = "2006-01-02"
)

// wallpaperRecord holds usage data for one wallpaper path
type wallpaperRecord struct {
	Views      int      `json:"views"`
	LastViewed string   `json:"last_viewed"`
	Rating     int      `json:"rating"`
	Favorite   bool     `json:"favorite"`
	Tags       []string `json:"tags"`
	Provider   string   `json:"provider"`
	Banned     bool     `json:"banned,omitempty"`
}

// HistoryEntry is one wallpaper change event
type HistoryEntry struct {
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Provider  string `json:"provider"`
	Action    string `json:"action"`
}

// dailyRecord aggregates change counts for one calendar day
type dailyRecord struct {
	Changes   int            `json:"changes"`
	Providers map[string]int `json:"providers"`
}

type preferences struct {
	TotalChanges int `json:"total_changes"`
}

// statsData is the persisted statistics document
type statsData struct {
	Wallpapers  map[string]*wallpaperRecord `json:"wallpapers"`
	History     []HistoryEntry              `json:"history"`
	DailyStats  map[string]*dailyRecord     `json:"daily_stats"`
	Banned      []string                    `json:"banned"`
	Preferences preferences                 `json:"preferences"`
}

func newStatsData() statsData {
	return statsData{
		Wallpapers: map[string]*wallpaperRecord{},
		History:    []HistoryEntry{},
		DailyStats: map[string]*dailyRecord{},
		Banned:     []string{},
	}
}

// RankedWallpaper pairs a wallpaper path with a ranking value
type RankedWallpaper struct {
	Path  string
	Value int
}

// Manager tracks wallpaper usage, ratings, favorites, bans and tags,
// persisted as a single JSON document. It satisfies the cache store's
// statistics reader interface, so the eviction policy can consult it.
type Manager struct {
	filePath string
	data     statsData
	mutex    sync.Mutex
}

// NewManager creates a Manager backed by the given file.
// A missing or unreadable file loads as empty statistics.
func NewManager(filePath string) *Manager {
	logger := log.WithFields(log.Fields{
		"package":  "stats",
		"struct":   "Manager",
		"function": "NewManager",
	})

	manager := &Manager{
		filePath: filePath,
		data:     newStatsData(),
	}

	dataBytes, err := os.ReadFile(filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warnf("failed to read statistics file %s, starting empty", filePath)
		}
		return manager
	}

	data := newStatsData()
	err = json.Unmarshal(dataBytes, &data)
	if err != nil {
		logger.WithError(err).Warnf("corrupt statistics file %s, starting empty", filePath)
		return manager
	}

	if data.Wallpapers == nil {
		data.Wallpapers = map[string]*wallpaperRecord{}
	}
	if data.DailyStats == nil {
		data.DailyStats = map[string]*dailyRecord{}
	}

	manager.data = data
	return manager
}

// saveLocked persists the statistics document atomically.
// The caller must hold the mutex.
func (manager *Manager) saveLocked() {
	logger := log.WithFields(log.Fields{
		"package":  "stats",
		"struct":   "Manager",
		"function": "saveLocked",
	})

	err := manager.writeLocked()
	if err != nil {
		// statistics are advisory, losing a write must not fail the caller
		logger.WithError(err).Warnf("failed to save statistics to %s", manager.filePath)
	}
}

func (manager *Manager) writeLocked() error {
	dataBytes, err := json.MarshalIndent(&manager.data, "", "  ")
	if err != nil {
		return xerrors.Errorf("failed to marshal statistics: %w", err)
	}

	tempPath := manager.filePath + ".tmp"
	err = os.WriteFile(tempPath, dataBytes, 0644)
	if err != nil {
		return xerrors.Errorf("failed to write statistics %q: %w", tempPath, err)
	}

	err = os.Rename(tempPath, manager.filePath)
	if err != nil {
		return xerrors.Errorf("failed to replace statistics %q: %w", manager.filePath, err)
	}

	return nil
}

// recordLocked returns the record for a path, creating it if needed.
// The caller must hold the mutex.
func (manager *Manager) recordLocked(path string, provider string) *wallpaperRecord {
	record, ok := manager.data.Wallpapers[path]
	if !ok {
		record = &wallpaperRecord{
			LastViewed: time.Now().Format(time.RFC3339),
			Tags:       []string{},
			Provider:   provider,
		}
		manager.data.Wallpapers[path] = record
	}

	return record
}

// LogWallpaperChange records a wallpaper change event
func (manager *Manager) LogWallpaperChange(path string, provider string, action string) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	now := time.Now()
	timestamp := now.Format(time.RFC3339)
	dateKey := now.Format(dateKeyFormat)

	manager.data.History = append(manager.data.History, HistoryEntry{
		Timestamp: timestamp,
		Path:      path,
		Provider:  provider,
		Action:    action,
	})
	if len(manager.data.History) > historyLimit {
		manager.data.History = manager.data.History[len(manager.data.History)-historyLimit:]
	}

	record := manager.recordLocked(path, provider)
	record.Views++
	record.LastViewed = timestamp

	daily, ok := manager.data.DailyStats[dateKey]
	if !ok {
		daily = &dailyRecord{
			Providers: map[string]int{},
		}
		manager.data.DailyStats[dateKey] = daily
	}
	daily.Changes++
	daily.Providers[provider]++

	manager.data.Preferences.TotalChanges++

	manager.saveLocked()
}

// SetRating sets the rating for a wallpaper, clamped to [0, 5]
func (manager *Manager) SetRating(path string, rating int) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if rating < ratingMin {
		rating = ratingMin
	}
	if rating > ratingMax {
		rating = ratingMax
	}

	record := manager.recordLocked(path, "unknown")
	record.Rating = rating

	manager.saveLocked()
}

// GetRating returns the rating for a wallpaper, 0 for unknown paths
func (manager *Manager) GetRating(path string) int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if record, ok := manager.data.Wallpapers[path]; ok {
		return record.Rating
	}

	return 0
}

// ToggleFavorite toggles the favorite flag, returning the new state
func (manager *Manager) ToggleFavorite(path string) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	record := manager.recordLocked(path, "unknown")
	record.Favorite = !record.Favorite

	manager.saveLocked()
	return record.Favorite
}

// IsFavorite returns true if the wallpaper is marked as favorite
func (manager *Manager) IsFavorite(path string) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if record, ok := manager.data.Wallpapers[path]; ok {
		return record.Favorite
	}

	return false
}

// GetFavorites returns the sorted list of favorite wallpaper paths
func (manager *Manager) GetFavorites() []string {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	favorites := []string{}
	for path, record := range manager.data.Wallpapers {
		if record.Favorite {
			favorites = append(favorites, path)
		}
	}

	sort.Strings(favorites)
	return favorites
}

// GetViews returns the view count for a wallpaper, 0 for unknown paths
func (manager *Manager) GetViews(path string) int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if record, ok := manager.data.Wallpapers[path]; ok {
		return record.Views
	}

	return 0
}

// GetTopRated returns up to limit wallpapers with a positive rating,
// highest rated first
func (manager *Manager) GetTopRated(limit int) []RankedWallpaper {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	rated := []RankedWallpaper{}
	for path, record := range manager.data.Wallpapers {
		if record.Rating > 0 {
			rated = append(rated, RankedWallpaper{Path: path, Value: record.Rating})
		}
	}

	sortRankedDescending(rated)
	if len(rated) > limit {
		rated = rated[:limit]
	}

	return rated
}

// GetMostViewed returns up to limit wallpapers by view count, most viewed first
func (manager *Manager) GetMostViewed(limit int) []RankedWallpaper {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	viewed := []RankedWallpaper{}
	for path, record := range manager.data.Wallpapers {
		viewed = append(viewed, RankedWallpaper{Path: path, Value: record.Views})
	}

	sortRankedDescending(viewed)
	if len(viewed) > limit {
		viewed = viewed[:limit]
	}

	return viewed
}

// Ban bans a wallpaper from being served
func (manager *Manager) Ban(path string) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if containsString(manager.data.Banned, path) {
		return
	}

	manager.data.Banned = append(manager.data.Banned, path)
	if record, ok := manager.data.Wallpapers[path]; ok {
		record.Banned = true
	}

	manager.saveLocked()
}

// Unban removes a wallpaper from the ban list
func (manager *Manager) Unban(path string) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	banned := []string{}
	found := false
	for _, bannedPath := range manager.data.Banned {
		if bannedPath == path {
			found = true
			continue
		}
		banned = append(banned, bannedPath)
	}

	if !found {
		return
	}

	manager.data.Banned = banned
	if record, ok := manager.data.Wallpapers[path]; ok {
		record.Banned = false
	}

	manager.saveLocked()
}

// ToggleBan toggles the ban state, returning true if the wallpaper is now banned
func (manager *Manager) ToggleBan(path string) bool {
	if manager.IsBanned(path) {
		manager.Unban(path)
		return false
	}

	manager.Ban(path)
	return true
}

// IsBanned returns true if the wallpaper is banned
func (manager *Manager) IsBanned(path string) bool {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	return containsString(manager.data.Banned, path)
}

// GetBanned returns the list of banned wallpaper paths
func (manager *Manager) GetBanned() []string {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	return append([]string{}, manager.data.Banned...)
}

// AddTag adds a tag to a wallpaper
func (manager *Manager) AddTag(path string, tag string) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	record := manager.recordLocked(path, "unknown")
	if containsString(record.Tags, tag) {
		return
	}

	record.Tags = append(record.Tags, tag)
	manager.saveLocked()
}

// RemoveTag removes a tag from a wallpaper
func (manager *Manager) RemoveTag(path string, tag string) {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	record, ok := manager.data.Wallpapers[path]
	if !ok {
		return
	}

	tags := []string{}
	found := false
	for _, existing := range record.Tags {
		if existing == tag {
			found = true
			continue
		}
		tags = append(tags, existing)
	}

	if !found {
		return
	}

	record.Tags = tags
	manager.saveLocked()
}

// GetTags returns the tags for a wallpaper
func (manager *Manager) GetTags(path string) []string {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	if record, ok := manager.data.Wallpapers[path]; ok {
		return append([]string{}, record.Tags...)
	}

	return []string{}
}

// GetAllTags returns all unique tags across all wallpapers, sorted
func (manager *Manager) GetAllTags() []string {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	seen := map[string]bool{}
	for _, record := range manager.data.Wallpapers {
		for _, tag := range record.Tags {
			seen[tag] = true
		}
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}

	sort.Strings(tags)
	return tags
}

// GetWallpapersByTag returns all wallpapers carrying a tag, sorted by path
func (manager *Manager) GetWallpapersByTag(tag string) []string {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	paths := []string{}
	for path, record := range manager.data.Wallpapers {
		if containsString(record.Tags, tag) {
			paths = append(paths, path)
		}
	}

	sort.Strings(paths)
	return paths
}

// GetDailyChanges returns change counts for the last days calendar days
func (manager *Manager) GetDailyChanges(days int) map[string]int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	result := map[string]int{}
	for i := 0; i < days; i++ {
		dateKey := time.Now().AddDate(0, 0, -i).Format(dateKeyFormat)
		if daily, ok := manager.data.DailyStats[dateKey]; ok {
			result[dateKey] = daily.Changes
		} else {
			result[dateKey] = 0
		}
	}

	return result
}

// GetProviderStats returns per-provider change counts over the last days days
func (manager *Manager) GetProviderStats(days int) map[string]int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	result := map[string]int{}
	for i := 0; i < days; i++ {
		dateKey := time.Now().AddDate(0, 0, -i).Format(dateKeyFormat)
		if daily, ok := manager.data.DailyStats[dateKey]; ok {
			for provider, count := range daily.Providers {
				result[provider] += count
			}
		}
	}

	return result
}

// GetRecentHistory returns up to limit change events, most recent first
func (manager *Manager) GetRecentHistory(limit int) []HistoryEntry {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	history := manager.data.History
	if len(history) > limit {
		history = history[len(history)-limit:]
	}

	recent := make([]HistoryEntry, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		recent = append(recent, history[i])
	}

	return recent
}

// GetTotalChanges returns the total number of wallpaper changes recorded
func (manager *Manager) GetTotalChanges() int {
	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	return manager.data.Preferences.TotalChanges
}

// CleanupMissing drops statistics for wallpapers not in validPaths.
// Returns the number of records removed.
func (manager *Manager) CleanupMissing(validPaths []string) int {
	logger := log.WithFields(log.Fields{
		"package":  "stats",
		"struct":   "Manager",
		"function": "CleanupMissing",
	})

	manager.mutex.Lock()
	defer manager.mutex.Unlock()

	valid := map[string]bool{}
	for _, path := range validPaths {
		valid[path] = true
	}

	removed := 0
	for path := range manager.data.Wallpapers {
		if !valid[path] {
			delete(manager.data.Wallpapers, path)
			removed++
		}
	}

	if removed > 0 {
		logger.Infof("Cleaned up %d missing wallpapers from statistics", removed)
		manager.saveLocked()
	}

	return removed
}

func sortRankedDescending(ranked []RankedWallpaper) {
	sort.SliceStable(ranked, func(i int, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Path < ranked[j].Path
	})
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}

	return false
}
