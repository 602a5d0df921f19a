package main

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lelus78/WallpaperChanger-sub000/cache"
	"github.com/lelus78/WallpaperChanger-sub000/commons"
	"github.com/lelus78/WallpaperChanger-sub000/imaging"
	"github.com/lelus78/WallpaperChanger-sub000/stats"
	log "github.com/sirupsen/logrus"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "wallpaper-cache [subcommand..]",
	Short:        "Manage the local wallpaper cache",
	Long:         "Manage the local wallpaper cache - list, pick and prune cached wallpapers, backfill color and fingerprint metadata, and find duplicates.",
	RunE:         processRootCommand,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func processRootCommand(command *cobra.Command, args []string) error {
	_, logWriter, cont, err := ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil {
		return err
	}

	if !cont {
		return nil
	}

	return command.Usage()
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000000",
		FullTimestamp:   true,
	})

	log.SetLevel(log.InfoLevel)

	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "main",
	})

	// attach common flags
	SetCommonFlags(rootCmd)

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(randomCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(colorsCmd)
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(statsCmd)

	err := Execute()
	if err != nil {
		logger.Fatal(err)
		os.Exit(1)
	}
}

// openStore builds the cache store with its statistics and duplicate
// detection collaborators attached
func openStore(config *commons.Config) (*cache.Store, *stats.Manager, *imaging.DuplicateDetector, error) {
	store, err := cache.NewStore(config)
	if err != nil {
		return nil, nil, nil, err
	}

	manager := stats.NewManager(config.StatsFilePath)
	store.SetStatistics(manager)

	detector, err := imaging.NewDuplicateDetector()
	if err != nil {
		return nil, nil, nil, err
	}

	if config.EnableDuplicateDetection {
		store.SetDuplicateDetector(detector)
	}

	return store, manager, detector, nil
}

// startAuxServices starts the profile and prometheus exporter endpoints
// when configured. Returns a stopper to defer.
func startAuxServices(config *commons.Config) func() {
	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "startAuxServices",
	})

	var prof interface{ Stop() }
	if config.Profile && config.ProfileServicePort > 0 {
		go func() {
			profileServiceAddr := fmt.Sprintf(":%d", config.ProfileServicePort)

			logger.Infof("Starting profile service at %s", profileServiceAddr)
			http.ListenAndServe(profileServiceAddr, nil)
		}()

		prof = profile.Start(profile.MemProfile)
	}

	if config.PrometheusExporterPort > 0 {
		go func() {
			prometheusExporterAddr := fmt.Sprintf(":%d", config.PrometheusExporterPort)

			logger.Infof("Starting prometheus exporter at %s", prometheusExporterAddr)
			// own mux, so metrics stay off the profile service port
			prometheusExporterServer := &http.Server{Addr: prometheusExporterAddr, Handler: newPrometheusExporterMux()}
			prometheusExporterServer.ListenAndServe()
		}()
	}

	return func() {
		if prof != nil {
			prof.Stop()
		}
	}
}

// newPrometheusExporterMux builds the exporter's dedicated mux
func newPrometheusExporterMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
