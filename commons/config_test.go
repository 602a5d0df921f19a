package commons

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, CacheMaxItemsDefault, config.CacheMaxItems)
	assert.True(t, config.EnableRotation)
	assert.False(t, config.EnableDuplicateDetection)
	assert.NotEmpty(t, config.CacheRootPath)
	assert.NotEmpty(t, config.StatsFilePath)
	assert.NotEmpty(t, config.InstanceID)

	require.NoError(t, config.Validate())
}

func TestNewConfigFromYAML(t *testing.T) {
	yamlBytes := []byte(`
cache_root_path: /tmp/wallpapers
cache_max_items: 120
enable_rotation: false
enable_duplicate_detection: true
duplicate_threshold: 10
`)

	config, err := NewConfigFromYAML(yamlBytes)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/wallpapers", config.CacheRootPath)
	assert.Equal(t, 120, config.CacheMaxItems)
	assert.False(t, config.EnableRotation)
	assert.True(t, config.EnableDuplicateDetection)
	assert.Equal(t, 10, config.DuplicateThreshold)

	// unset fields keep defaults
	assert.Equal(t, ColorSampleCountDefault, config.ColorSampleCount)

	require.NoError(t, config.Validate())
}

func TestNewConfigFromYAMLInvalid(t *testing.T) {
	_, err := NewConfigFromYAML([]byte("cache_max_items: [not an int]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	config := NewDefaultConfig()
	config.CacheMaxItems = 0
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.CacheRootPath = ""
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.DuplicateThreshold = -1
	assert.Error(t, config.Validate())

	config = NewDefaultConfig()
	config.ColorSampleCount = 0
	assert.Error(t, config.Validate())
}
