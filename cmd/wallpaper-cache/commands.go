package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lelus78/WallpaperChanger-sub000/cache"
	"github.com/lelus78/WallpaperChanger-sub000/imaging"
	log "github.com/sirupsen/logrus"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached wallpapers, most recent first",
	RunE:  processListCommand,
}

var randomCmd = &cobra.Command{
	Use:   "random",
	Short: "Pick a random cached wallpaper and print its path",
	RunE:  processRandomCommand,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim the cache to its item cap, oldest first",
	RunE:  processPruneCommand,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Drop index entries whose files are missing from disk",
	RunE:  processReconcileCommand,
}

var colorsCmd = &cobra.Command{
	Use:   "colors",
	Short: "Backfill color categories for entries that lack them",
	RunE:  processColorsCommand,
}

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Backfill perceptual hashes and report duplicate wallpapers",
	RunE:  processDedupeCommand,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print wallpaper usage statistics",
	RunE:  processStatsCommand,
}

func init() {
	randomCmd.Flags().StringP("preset", "", "", "Only pick wallpapers fetched for this preset")
	randomCmd.Flags().StringP("monitor", "", "", "Prefer wallpapers fetched for this monitor label")

	dedupeCmd.Flags().IntP("threshold", "", imaging.VerySimilar, "Maximum Hamming distance to report as duplicate")
	dedupeCmd.Flags().BoolP("delete", "", false, "Delete the younger unprotected wallpaper of each duplicate pair")
}

func processListCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	store, _, _, err := openStore(config)
	if err != nil {
		return err
	}

	entries := store.ListEntries()
	fmt.Printf("%d cached wallpapers in %s\n", len(entries), store.GetDirectory())
	for _, entry := range entries {
		colors := entry.PrimaryColor
		if len(entry.ColorCategories) > 0 {
			colors = fmt.Sprintf("%s (%s)", entry.PrimaryColor, strings.Join(entry.ColorCategories, ", "))
		}

		fmt.Printf("  %s  provider=%s  colors=%s\n", entry.Path, entry.Provider, colors)
	}

	return nil
}

func processRandomCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	store, manager, _, err := openStore(config)
	if err != nil {
		return err
	}

	filters := cache.GetRandomFilters{}
	if presetFlag := command.Flags().Lookup("preset"); presetFlag != nil {
		filters.Preset = presetFlag.Value.String()
	}
	if monitorFlag := command.Flags().Lookup("monitor"); monitorFlag != nil {
		filters.MonitorLabel = monitorFlag.Value.String()
	}

	entry := store.GetRandom(filters)
	if entry == nil {
		return fmt.Errorf("no cached wallpaper matches the given filters")
	}

	manager.LogWallpaperChange(entry.Path, entry.Provider, "manual")

	fmt.Println(entry.Path)
	return nil
}

func processPruneCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	store, manager, _, err := openStore(config)
	if err != nil {
		return err
	}

	err = store.Prune()
	if err != nil {
		return err
	}

	// drop statistics for wallpapers the prune removed
	validPaths := []string{}
	for _, entry := range store.ListEntries() {
		validPaths = append(validPaths, entry.Path)
	}
	manager.CleanupMissing(validPaths)

	return nil
}

func processReconcileCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	store, _, _, err := openStore(config)
	if err != nil {
		return err
	}

	removed, err := store.Reconcile()
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d orphaned entries\n", removed)
	return nil
}

func processColorsCommand(command *cobra.Command, args []string) error {
	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "processColorsCommand",
	})

	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	stopAux := startAuxServices(config)
	defer stopAux()

	store, _, _, err := openStore(config)
	if err != nil {
		return err
	}

	entries := store.ListEntries()
	updated := 0
	skipped := 0
	failed := 0
	for _, entry := range entries {
		if len(entry.ColorCategories) > 0 {
			skipped++
			continue
		}

		categories, err := store.EnsureColors(entry.Path)
		if err != nil {
			logger.WithError(err).Warnf("failed to analyze %s", entry.Path)
			failed++
			continue
		}

		if len(categories) == 0 {
			failed++
			continue
		}

		updated++
	}

	fmt.Printf("Analyzed %d wallpapers: %d updated, %d skipped, %d failed\n", len(entries), updated, skipped, failed)
	return nil
}

func processDedupeCommand(command *cobra.Command, args []string) error {
	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "processDedupeCommand",
	})

	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	stopAux := startAuxServices(config)
	defer stopAux()

	store, manager, detector, err := openStore(config)
	if err != nil {
		return err
	}

	store.SetDuplicateDetector(detector)

	threshold := imaging.VerySimilar
	if parsed, err := command.Flags().GetInt("threshold"); err == nil {
		threshold = parsed
	}

	deleteDuplicates := false
	if parsed, err := command.Flags().GetBool("delete"); err == nil {
		deleteDuplicates = parsed
	}

	entries := store.ListEntries()
	paths := []string{}
	for _, entry := range entries {
		if _, err := store.EnsureHash(entry.Path); err != nil {
			logger.WithError(err).Warnf("failed to hash %s", entry.Path)
			continue
		}

		paths = append(paths, entry.Path)
	}

	pairs := detector.FindDuplicates(paths, threshold)
	fmt.Printf("Found %d duplicate pairs among %d wallpapers\n", len(pairs), len(paths))

	deleted := map[string]bool{}
	for _, pair := range pairs {
		fmt.Printf("  %s\n  %s\n  -> %s (distance %d)\n", pair.PathA, pair.PathB, imaging.SimilarityDescription(pair.Distance), pair.Distance)

		if !deleteDuplicates {
			continue
		}

		victim := pickDuplicateVictim(store, manager, pair)
		if len(victim) == 0 || deleted[victim] {
			continue
		}

		err = store.Remove(victim)
		if err != nil {
			logger.WithError(err).Warnf("failed to remove duplicate %s", victim)
			continue
		}

		deleted[victim] = true
		fmt.Printf("  deleted %s\n", victim)
	}

	return nil
}

// pickDuplicateVictim decides which half of a duplicate pair to delete:
// never a rated or favorited wallpaper, otherwise the younger entry.
func pickDuplicateVictim(store *cache.Store, statistics cache.StatisticsReader, pair imaging.DuplicatePair) string {
	protectedA := statistics.GetRating(pair.PathA) > 0 || statistics.IsFavorite(pair.PathA)
	protectedB := statistics.GetRating(pair.PathB) > 0 || statistics.IsFavorite(pair.PathB)

	switch {
	case protectedA && protectedB:
		return ""
	case protectedA:
		return pair.PathB
	case protectedB:
		return pair.PathA
	}

	var entryA *cache.Entry
	var entryB *cache.Entry
	for _, entry := range store.ListEntries() {
		switch entry.Path {
		case pair.PathA:
			entryA = entry
		case pair.PathB:
			entryB = entry
		}
	}

	if entryA == nil || entryB == nil {
		return ""
	}

	if entryA.Timestamp > entryB.Timestamp {
		return pair.PathA
	}
	return pair.PathB
}

func processStatsCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	_, manager, _, err := openStore(config)
	if err != nil {
		return err
	}

	fmt.Printf("Total wallpaper changes: %d\n", manager.GetTotalChanges())

	topRated := manager.GetTopRated(10)
	if len(topRated) > 0 {
		fmt.Println("Top rated:")
		for _, ranked := range topRated {
			fmt.Printf("  %d [*] %s\n", ranked.Value, ranked.Path)
		}
	}

	mostViewed := manager.GetMostViewed(10)
	if len(mostViewed) > 0 {
		fmt.Println("Most viewed:")
		for _, ranked := range mostViewed {
			fmt.Printf("  %d views  %s\n", ranked.Value, ranked.Path)
		}
	}

	banned := manager.GetBanned()
	if len(banned) > 0 {
		fmt.Printf("Banned: %d\n", len(banned))
	}

	history := manager.GetRecentHistory(10)
	if len(history) > 0 {
		fmt.Println("Recent changes:")
		for _, event := range history {
			fmt.Printf("  %s  %s (%s, %s)\n", event.Timestamp, event.Path, event.Provider, event.Action)
		}
	}

	return nil
}
