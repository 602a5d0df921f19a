package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/natefinch/lumberjack.v2"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lelus78/WallpaperChanger-sub000/commons"
)

func SetCommonFlags(command *cobra.Command) {
	command.PersistentFlags().BoolP("version", "v", false, "Print version")
	command.PersistentFlags().BoolP("debug", "d", false, "Enable debug mode")
	command.PersistentFlags().BoolP("profile", "", false, "Enable profiling")

	command.PersistentFlags().StringP("config", "c", "", "Set config file (yaml)")
	command.PersistentFlags().StringP("cache_root", "", commons.GetDefaultCacheRootPath(), "Set cache root path")
	command.PersistentFlags().IntP("max_items", "", commons.CacheMaxItemsDefault, "Set cache max items")
	command.PersistentFlags().StringP("stats_file", "", commons.GetDefaultStatsFilePath(), "Set statistics file path")
	command.PersistentFlags().StringP("log_path", "", "", "Set log file path")

	command.PersistentFlags().IntP("profile_port", "", commons.ProfileServicePortDefault, "Set profile service port")
	command.PersistentFlags().IntP("prometheus_exporter_port", "", 0, "Set prometheus exporter port")
}

func ProcessCommonFlags(command *cobra.Command) (*commons.Config, io.WriteCloser, bool, error) {
	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "ProcessCommonFlags",
	})

	debug := false
	debugFlag := command.Flags().Lookup("debug")
	if debugFlag != nil {
		debugMode, err := strconv.ParseBool(debugFlag.Value.String())
		if err != nil {
			debugMode = false
		}

		debug = debugMode
	}

	profile := false
	profileFlag := command.Flags().Lookup("profile")
	if profileFlag != nil {
		profileMode, err := strconv.ParseBool(profileFlag.Value.String())
		if err != nil {
			profileMode = false
		}

		profile = profileMode
	}

	if debug {
		log.SetLevel(log.DebugLevel)
	}

	versionFlag := command.Flags().Lookup("version")
	if versionFlag != nil {
		version, err := strconv.ParseBool(versionFlag.Value.String())
		if err != nil {
			version = false
		}

		if version {
			PrintVersion(command)
			return nil, nil, false, nil // stop here
		}
	}

	readConfig := false
	var config *commons.Config

	configFlag := command.Flags().Lookup("config")
	if configFlag != nil {
		configPath := configFlag.Value.String()
		if len(configPath) > 0 {
			yamlBytes, err := os.ReadFile(configPath)
			if err != nil {
				logger.Error(err)
				return nil, nil, false, err // stop here
			}

			fileConfig, err := commons.NewConfigFromYAML(yamlBytes)
			if err != nil {
				logger.Error(err)
				return nil, nil, false, err // stop here
			}

			// overwrite config
			config = fileConfig
			readConfig = true
		}
	}

	// default config
	if !readConfig {
		config = commons.NewDefaultConfig()
	}

	// prioritize command-line flag over config files
	if debug {
		config.Debug = true
	}

	if profile {
		config.Profile = true
	}

	if config.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cacheRootFlag := command.Flags().Lookup("cache_root")
	if cacheRootFlag != nil && cacheRootFlag.Changed {
		cacheRoot := cacheRootFlag.Value.String()
		if len(cacheRoot) > 0 {
			config.CacheRootPath = cacheRoot
		}
	}

	maxItemsFlag := command.Flags().Lookup("max_items")
	if maxItemsFlag != nil && maxItemsFlag.Changed {
		maxItems, err := strconv.ParseInt(maxItemsFlag.Value.String(), 10, 32)
		if err != nil {
			logger.WithError(err).Errorf("failed to convert input to int")
			return nil, nil, false, err // stop here
		}

		if maxItems > 0 {
			config.CacheMaxItems = int(maxItems)
		}
	}

	statsFileFlag := command.Flags().Lookup("stats_file")
	if statsFileFlag != nil && statsFileFlag.Changed {
		statsFile := statsFileFlag.Value.String()
		if len(statsFile) > 0 {
			config.StatsFilePath = statsFile
		}
	}

	logPathFlag := command.Flags().Lookup("log_path")
	if logPathFlag != nil && logPathFlag.Changed {
		logPath := logPathFlag.Value.String()
		if len(logPath) > 0 {
			config.LogPath = logPath
		}
	}

	profilePortFlag := command.Flags().Lookup("profile_port")
	if profilePortFlag != nil && profilePortFlag.Changed {
		profilePort, err := strconv.ParseInt(profilePortFlag.Value.String(), 10, 32)
		if err != nil {
			logger.WithError(err).Errorf("failed to convert input to int")
			return nil, nil, false, err // stop here
		}

		if profilePort > 0 {
			config.ProfileServicePort = int(profilePort)
		}
	}

	prometheusExporterPortFlag := command.Flags().Lookup("prometheus_exporter_port")
	if prometheusExporterPortFlag != nil && prometheusExporterPortFlag.Changed {
		prometheusExporterPort, err := strconv.ParseInt(prometheusExporterPortFlag.Value.String(), 10, 32)
		if err != nil {
			logger.WithError(err).Errorf("failed to convert input to int")
			return nil, nil, false, err // stop here
		}

		if prometheusExporterPort > 0 {
			config.PrometheusExporterPort = int(prometheusExporterPort)
		}
	}

	err := config.Validate()
	if err != nil {
		logger.Error(err)
		return nil, nil, false, err // stop here
	}

	var logWriter io.WriteCloser
	if config.LogPath == "-" || len(config.LogPath) == 0 {
		log.SetOutput(os.Stderr)
	} else {
		logWriter = getLogWriter(config.LogPath)

		// use multi output - to output to file and stderr
		mw := io.MultiWriter(os.Stderr, logWriter)
		log.SetOutput(mw)

		logger.Infof("Logging to %s", config.LogPath)
	}

	return config, logWriter, true, nil // continue
}

func PrintVersion(command *cobra.Command) error {
	info, err := commons.GetVersionJSON()
	if err != nil {
		return err
	}

	fmt.Println(info)
	return nil
}

func getLogWriter(logPath string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // 50MB
		MaxBackups: 5,
		MaxAge:     30, // 30 days
		Compress:   false,
	}
}
