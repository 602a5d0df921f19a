package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSolidPNG(t *testing.T, dir string, name string, c color.RGBA) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	require.NoError(t, png.Encode(file, img))
	return path
}

func TestRGBToHSV(t *testing.T) {
	h, s, v := RGBToHSV(255, 0, 0)
	assert.InDelta(t, 0.0, h, 0.001)
	assert.InDelta(t, 1.0, s, 0.001)
	assert.InDelta(t, 1.0, v, 0.001)

	h, s, v = RGBToHSV(0, 255, 0)
	assert.InDelta(t, 120.0, h, 0.001)
	assert.InDelta(t, 1.0, s, 0.001)
	assert.InDelta(t, 1.0, v, 0.001)

	h, s, v = RGBToHSV(0, 0, 255)
	assert.InDelta(t, 240.0, h, 0.001)
	assert.InDelta(t, 1.0, s, 0.001)
	assert.InDelta(t, 1.0, v, 0.001)

	h, s, v = RGBToHSV(0, 0, 0)
	assert.InDelta(t, 0.0, h, 0.001)
	assert.InDelta(t, 0.0, s, 0.001)
	assert.InDelta(t, 0.0, v, 0.001)
}

func TestCategorizeColor(t *testing.T) {
	assert.Equal(t, "dark", CategorizeColor(RGB{0, 0, 0}))
	assert.Equal(t, "white", CategorizeColor(RGB{255, 255, 255}))
	assert.Equal(t, "gray", CategorizeColor(RGB{128, 128, 128}))
	assert.Equal(t, "red", CategorizeColor(RGB{255, 0, 0}))
	assert.Equal(t, "orange", CategorizeColor(RGB{255, 165, 0}))
	assert.Equal(t, "yellow", CategorizeColor(RGB{255, 255, 0}))
	assert.Equal(t, "green", CategorizeColor(RGB{0, 255, 0}))
	assert.Equal(t, "blue", CategorizeColor(RGB{0, 0, 255}))
	assert.Equal(t, "purple", CategorizeColor(RGB{128, 0, 255}))
	assert.Equal(t, "pink", CategorizeColor(RGB{255, 0, 200}))

	// red hue wraps around 360 degrees
	assert.Equal(t, "red", CategorizeColor(RGB{255, 0, 20}))
}

func TestGetColorCategoriesSolidImages(t *testing.T) {
	dir := t.TempDir()

	blackPath := writeSolidPNG(t, dir, "black.png", color.RGBA{0, 0, 0, 255})
	assert.Equal(t, []string{"dark"}, GetColorCategories(blackPath, 3))

	whitePath := writeSolidPNG(t, dir, "white.png", color.RGBA{255, 255, 255, 255})
	assert.Equal(t, []string{"white"}, GetColorCategories(whitePath, 3))

	redPath := writeSolidPNG(t, dir, "red.png", color.RGBA{255, 0, 0, 255})
	assert.Equal(t, []string{"red"}, GetColorCategories(redPath, 3))
}

func TestGetPrimaryColorCategory(t *testing.T) {
	dir := t.TempDir()

	redPath := writeSolidPNG(t, dir, "red.png", color.RGBA{255, 0, 0, 255})
	assert.Equal(t, "red", GetPrimaryColorCategory(redPath))
}

func TestGetColorCategoriesDecodeFailure(t *testing.T) {
	dir := t.TempDir()

	// not an image at all
	garbagePath := filepath.Join(dir, "garbage.png")
	require.NoError(t, os.WriteFile(garbagePath, []byte("not an image"), 0644))

	assert.Empty(t, GetColorCategories(garbagePath, 3))
	assert.Equal(t, "", GetPrimaryColorCategory(garbagePath))

	assert.Empty(t, GetColorCategories(filepath.Join(dir, "missing.png"), 3))
}

func TestGetDominantColorsOrderedByDominance(t *testing.T) {
	dir := t.TempDir()

	// three quarters red, one quarter blue
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if x < 48 {
				img.Set(x, y, color.RGBA{255, 0, 0, 255})
			} else {
				img.Set(x, y, color.RGBA{0, 0, 255, 255})
			}
		}
	}

	path := filepath.Join(dir, "redblue.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())

	categories := GetColorCategories(path, 5)
	require.NotEmpty(t, categories)
	assert.Equal(t, "red", categories[0])
	assert.Contains(t, categories, "blue")
}
