package cache

import (
	"sort"
)

// StatisticsReader is the narrow read-only view of the usage statistics
// store the eviction policy consults. Implementations must treat unknown
// paths as rating 0, not favorite, not banned, 0 views.
type StatisticsReader interface {
	GetRating(path string) int
	IsFavorite(path string) bool
	IsBanned(path string) bool
	GetViews(path string) int
}

const lowPriorityViewLimit int = 3

// removalCandidate pairs an entry with its usage stats so the collaborator
// is queried once per entry per eviction pass
type removalCandidate struct {
	entry *Entry
	views int
}

// selectForRemoval picks up to n entries for eviction.
//
// With a statistics reader, candidates are bucketed: entries with a positive
// rating or a favorite flag are protected and never selected; banned entries
// go first; then unrated entries with few views, least-viewed and oldest
// first; then the rest with the same ordering. Fewer than n entries may be
// returned when protection leaves too few candidates, so the item cap is a
// soft cap under heavy protection.
//
// Without a statistics reader the policy degrades to FIFO: the n oldest
// entries by insertion order.
func selectForRemoval(items []*Entry, n int, statistics StatisticsReader) []*Entry {
	if n <= 0 {
		return nil
	}

	if statistics == nil {
		if n > len(items) {
			n = len(items)
		}
		return append([]*Entry{}, items[:n]...)
	}

	banned := []removalCandidate{}
	lowPriority := []removalCandidate{}
	normal := []removalCandidate{}

	for _, item := range items {
		rating := statistics.GetRating(item.Path)
		if rating > 0 || statistics.IsFavorite(item.Path) {
			// protected, never removable
			continue
		}

		candidate := removalCandidate{
			entry: item,
			views: statistics.GetViews(item.Path),
		}

		switch {
		case statistics.IsBanned(item.Path):
			banned = append(banned, candidate)
		case rating == 0 && candidate.views < lowPriorityViewLimit:
			lowPriority = append(lowPriority, candidate)
		default:
			normal = append(normal, candidate)
		}
	}

	sortByViewsThenAge(lowPriority)
	sortByViewsThenAge(normal)

	selected := []*Entry{}
	for _, bucket := range [][]removalCandidate{banned, lowPriority, normal} {
		for _, candidate := range bucket {
			if len(selected) >= n {
				return selected
			}
			selected = append(selected, candidate.entry)
		}
	}

	return selected
}

// sortByViewsThenAge orders candidates least-viewed first, oldest first
func sortByViewsThenAge(candidates []removalCandidate) {
	sort.SliceStable(candidates, func(i int, j int) bool {
		if candidates[i].views != candidates[j].views {
			return candidates[i].views < candidates[j].views
		}
		return candidates[i].entry.Timestamp < candidates[j].entry.Timestamp
	})
}
