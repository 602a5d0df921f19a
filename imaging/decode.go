package imaging

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"golang.org/x/xerrors"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/lelus78/WallpaperChanger-sub000/commons"
)

// loadImage opens and decodes an image file.
// JPEG, PNG, GIF, BMP and WebP decoders are registered.
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to open image %q: %w", path, err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode image (%v): %w", err, commons.NewImageDecodeError(path))
	}

	return img, nil
}
