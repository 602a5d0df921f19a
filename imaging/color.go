package imaging

import (
	"image"
	"sort"

	log "github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
)

const (
	// colorSampleMaxDim bounds the longest side of the downscaled image
	// used for dominant color extraction.
	colorSampleMaxDim = 200
)

// RGB is a color sample in 8-bit RGB
type RGB struct {
	R uint8
	G uint8
	B uint8
}

// hueRange maps a hue interval to a color category name
type hueRange struct {
	min      float64
	max      float64
	category string
}

var hueRanges = []hueRange{
	{0, 20, "red"},
	{20, 40, "orange"},
	{40, 80, "yellow"},
	{80, 170, "green"},
	{170, 250, "blue"},
	{250, 310, "purple"},
	{310, 350, "pink"},
	{350, 360, "red"},
}

// RGBToHSV converts RGB to HSV color space.
// Hue is in degrees [0, 360), saturation and value in [0, 1].
func RGBToHSV(r uint8, g uint8, b uint8) (float64, float64, float64) {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	maxC := rf
	if gf > maxC {
		maxC = gf
	}
	if bf > maxC {
		maxC = bf
	}

	minC := rf
	if gf < minC {
		minC = gf
	}
	if bf < minC {
		minC = bf
	}

	diff := maxC - minC

	var h float64
	switch {
	case diff == 0:
		h = 0
	case maxC == rf:
		h = 60*((gf-bf)/diff) + 360
		for h >= 360 {
			h -= 360
		}
	case maxC == gf:
		h = 60*((bf-rf)/diff) + 120
		for h >= 360 {
			h -= 360
		}
	default:
		h = 60*((rf-gf)/diff) + 240
		for h >= 360 {
			h -= 360
		}
	}

	var s float64
	if maxC > 0 {
		s = diff / maxC
	}

	return h, s, maxC
}

// CategorizeColor maps an RGB color to a coarse named category
func CategorizeColor(c RGB) string {
	h, s, v := RGBToHSV(c.R, c.G, c.B)

	// dark or desaturated colors map to neutral categories
	if v < 0.2 {
		return "dark"
	}

	if s < 0.2 {
		if v > 0.8 {
			return "white"
		} else if v > 0.4 {
			return "gray"
		}
		return "dark"
	}

	for _, hr := range hueRanges {
		if hr.min <= h && h < hr.max {
			return hr.category
		}
	}

	return "other"
}

// colorBucket accumulates pixels quantized to a coarse RGB cell
type colorBucket struct {
	count uint64
	sumR  uint64
	sumG  uint64
	sumB  uint64
}

// GetDominantColors extracts up to numColors dominant colors from an image,
// ordered by dominance. Returns an empty slice on decode failure.
func GetDominantColors(imagePath string, numColors int) []RGB {
	logger := log.WithFields(log.Fields{
		"package":  "imaging",
		"function": "GetDominantColors",
	})

	if numColors < 1 {
		return nil
	}

	img, err := loadImage(imagePath)
	if err != nil {
		logger.WithError(err).Debugf("failed to load image %q for color extraction", imagePath)
		return nil
	}

	small := downscale(img, colorSampleMaxDim)
	bounds := small.Bounds()

	// quantize to a 4-bit per channel grid, keep full precision sums
	// so bucket centers come out as true averages
	buckets := map[uint32]*colorBucket{}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := small.At(x, y).RGBA()
			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)

			key := uint32(r8>>4)<<8 | uint32(g8>>4)<<4 | uint32(b8>>4)
			bucket, ok := buckets[key]
			if !ok {
				bucket = &colorBucket{}
				buckets[key] = bucket
			}

			bucket.count++
			bucket.sumR += uint64(r8)
			bucket.sumG += uint64(g8)
			bucket.sumB += uint64(b8)
		}
	}

	type keyedBucket struct {
		key    uint32
		bucket *colorBucket
	}

	ordered := make([]keyedBucket, 0, len(buckets))
	for key, bucket := range buckets {
		ordered = append(ordered, keyedBucket{key: key, bucket: bucket})
	}

	sort.Slice(ordered, func(i int, j int) bool {
		if ordered[i].bucket.count != ordered[j].bucket.count {
			return ordered[i].bucket.count > ordered[j].bucket.count
		}
		return ordered[i].key < ordered[j].key
	})

	if len(ordered) > numColors {
		ordered = ordered[:numColors]
	}

	colors := make([]RGB, 0, len(ordered))
	for _, kb := range ordered {
		colors = append(colors, RGB{
			R: uint8(kb.bucket.sumR / kb.bucket.count),
			G: uint8(kb.bucket.sumG / kb.bucket.count),
			B: uint8(kb.bucket.sumB / kb.bucket.count),
		})
	}

	return colors
}

// GetColorCategories returns distinct color category names for an image,
// in the order first encountered among the dominant colors.
// Returns an empty slice on decode failure.
func GetColorCategories(imagePath string, numColors int) []string {
	dominantColors := GetDominantColors(imagePath, numColors)

	categories := []string{}
	seen := map[string]bool{}
	for _, c := range dominantColors {
		category := CategorizeColor(c)
		if !seen[category] {
			seen[category] = true
			categories = append(categories, category)
		}
	}

	return categories
}

// GetPrimaryColorCategory returns the category of the single most dominant
// color, or an empty string if extraction fails.
func GetPrimaryColorCategory(imagePath string) string {
	dominantColors := GetDominantColors(imagePath, 1)
	if len(dominantColors) == 0 {
		return ""
	}

	return CategorizeColor(dominantColors[0])
}

// downscale scales an image so its longest side is at most maxDim
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxDim && height <= maxDim {
		return img
	}

	newWidth := width
	newHeight := height
	if width >= height {
		newWidth = maxDim
		newHeight = height * maxDim / width
	} else {
		newHeight = maxDim
		newWidth = width * maxDim / height
	}

	if newWidth < 1 {
		newWidth = 1
	}
	if newHeight < 1 {
		newHeight = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)
	return scaled
}
