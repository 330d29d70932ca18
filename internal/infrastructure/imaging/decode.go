package imaging

import (
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// Decode reads a scanned page in any registered raster format
// (png, jpeg, tiff, bmp) and reports the format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidImage, "decode image", err)
	}
	return img, format, nil
}
