package commons

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/xid"
	yaml "gopkg.in/yaml.v2"
)

const (
	CacheMaxItemsDefault        int    = 50
	CacheDirNameDefault         string = "WallpaperChangerCache"
	StatsFileNameDefault        string = "wallpaper_stats.json"
	ColorSampleCountDefault     int    = 5
	DuplicateThresholdDefault   int    = 5
	LogFilePathPrefixDefault    string = "/tmp/wallpaper_cache"
	ProfileServicePortDefault   int    = 12021
	FingerprintCacheSizeDefault int    = 4096
)

var (
	instanceID string
)

// getInstanceID returns instance ID
func getInstanceID() string {
	if len(instanceID) == 0 {
		instanceID = xid.New().String()
	}

	return instanceID
}

// GetDefaultLogFilePath returns default log file path
func GetDefaultLogFilePath() string {
	return fmt.Sprintf("%s_%s.log", LogFilePathPrefixDefault, getInstanceID())
}

// GetDefaultCacheRootPath returns default cache root path under the user home
func GetDefaultCacheRootPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), CacheDirNameDefault)
	}

	return filepath.Join(home, CacheDirNameDefault)
}

// GetDefaultStatsFilePath returns default statistics file path
func GetDefaultStatsFilePath() string {
	return filepath.Join(GetDefaultCacheRootPath(), StatsFileNameDefault)
}

// Config holds the parameters list which can be configured
type Config struct {
	CacheRootPath            string `yaml:"cache_root_path"`
	CacheMaxItems            int    `yaml:"cache_max_items"`
	EnableRotation           bool   `yaml:"enable_rotation"`
	EnableDuplicateDetection bool   `yaml:"enable_duplicate_detection"`
	DuplicateThreshold       int    `yaml:"duplicate_threshold"`
	ColorSampleCount         int    `yaml:"color_sample_count"`
	StatsFilePath            string `yaml:"stats_file_path"`

	LogPath string `yaml:"log_path,omitempty"`

	Profile            bool `yaml:"profile,omitempty"`
	ProfileServicePort int  `yaml:"profile_service_port,omitempty"`

	PrometheusExporterPort int `yaml:"prometheus_exporter_port,omitempty"`

	Debug bool `yaml:"debug,omitempty"`

	InstanceID string `yaml:"instanceid,omitempty"`
}

// NewDefaultConfig creates DefaultConfig
func NewDefaultConfig() *Config {
	return &Config{
		CacheRootPath:            GetDefaultCacheRootPath(),
		CacheMaxItems:            CacheMaxItemsDefault,
		EnableRotation:           true,
		EnableDuplicateDetection: false,
		DuplicateThreshold:       DuplicateThresholdDefault,
		ColorSampleCount:         ColorSampleCountDefault,
		StatsFilePath:            GetDefaultStatsFilePath(),

		LogPath: "",

		Profile:            false,
		ProfileServicePort: ProfileServicePortDefault,

		PrometheusExporterPort: 0,

		Debug: false,

		InstanceID: getInstanceID(),
	}
}

// NewConfigFromYAML creates Config from YAML
func NewConfigFromYAML(yamlBytes []byte) (*Config, error) {
	config := NewDefaultConfig()

	err := yaml.Unmarshal(yamlBytes, config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML - %v", err)
	}

	return config, nil
}

// Validate validates configuration
func (config *Config) Validate() error {
	if len(config.CacheRootPath) == 0 {
		return fmt.Errorf("cache root path must be given")
	}

	if config.CacheMaxItems < 1 {
		return fmt.Errorf("cache max items must be 1 or higher")
	}

	if config.DuplicateThreshold < 0 {
		return fmt.Errorf("duplicate threshold must not be negative")
	}

	if config.ColorSampleCount < 1 {
		return fmt.Errorf("color sample count must be 1 or higher")
	}

	if config.Profile && config.ProfileServicePort <= 0 {
		return fmt.Errorf("profile service port must be given")
	}

	return nil
}
