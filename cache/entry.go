package cache

// Entry is one managed image record in the cache index.
// ID, Path and Timestamp are owned by the store; ColorCategories,
// PrimaryColor and PerceptualHash are derived fields set at insert time or
// backfilled by maintenance operations. The remaining fields are
// caller-supplied metadata copied verbatim at insert time.
type Entry struct {
	ID        string  `json:"id"`
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`

	SourceInfo string `json:"source_info,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Preset     string `json:"preset,omitempty"`
	Monitor    string `json:"monitor,omitempty"`
	Query      string `json:"query,omitempty"`

	ColorCategories []string `json:"color_categories,omitempty"`
	PrimaryColor    string   `json:"primary_color,omitempty"`
	PerceptualHash  string   `json:"perceptual_hash,omitempty"`

	// Extra holds provider-specific pass-through data the store does not interpret
	Extra map[string]string `json:"extra,omitempty"`
}

// Metadata is the caller-supplied record accompanying an insert.
// SourceInfo is the dedup identity; a non-empty value that matches an
// existing entry makes the insert idempotent.
type Metadata struct {
	SourceInfo string
	Provider   string
	Preset     string
	Monitor    string
	Query      string
	Extra      map[string]string
}

// cacheIndex is the persisted index document, items in insertion order
type cacheIndex struct {
	Version int      `json:"version"`
	Items   []*Entry `json:"items"`
}

const cacheIndexVersion int = 1

func newCacheIndex() cacheIndex {
	return cacheIndex{
		Version: cacheIndexVersion,
		Items:   []*Entry{},
	}
}
