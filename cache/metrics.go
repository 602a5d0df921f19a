package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promCounterForInsert = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_insert_ops_total",
		Help: "The total number of insert calls that stored a new entry",
	})

	promCounterForSourceDedupe = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_source_dedupe_hits_total",
		Help: "The total number of inserts deduplicated by source identity",
	})

	promCounterForPerceptualDedupe = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_perceptual_dedupe_hits_total",
		Help: "The total number of inserts rejected as perceptual duplicates",
	})

	promCounterForEviction = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_evictions_total",
		Help: "The total number of entries evicted to enforce the item cap",
	})

	promCounterForRandom = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_random_ops_total",
		Help: "The total number of random retrieval calls",
	})

	promCounterForPrune = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallpaper_cache_prune_removed_total",
		Help: "The total number of entries removed by explicit pruning",
	})
)
