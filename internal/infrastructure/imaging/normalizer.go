package imaging

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/fundingstack/docintake/internal/core/domain"
)

// Config bounds the images the pipeline accepts.
type Config struct {
	MinWidth    int
	MinHeight   int
	MaxWidth    int
	MaxHeight   int
	MinContrast float64
}

func DefaultConfig() Config {
	return Config{
		MinWidth:    800,
		MinHeight:   600,
		MaxWidth:    4096,
		MaxHeight:   4096,
		MinContrast: 20,
	}
}

// Normalizer prepares scanned pages for OCR. Validation failures are hard
// errors; every enhancement stage after it degrades to a pass-through on
// internal failure.
type Normalizer struct {
	cfg Config
	log *slog.Logger
}

func NewNormalizer(cfg Config, log *slog.Logger) *Normalizer {
	if log == nil {
		log = slog.Default()
	}
	return &Normalizer{cfg: cfg, log: log}
}

// Decode reads one page image in any registered format.
func (n *Normalizer) Decode(r io.Reader) (image.Image, string, error) {
	return Decode(r)
}

func (n *Normalizer) Normalize(ctx context.Context, img image.Image) (*image.Gray, error) {
	if err := n.Validate(img); err != nil {
		return nil, err
	}

	gray := ToGray(img)
	stages := []struct {
		name string
		fn   func(*image.Gray) (*image.Gray, error)
	}{
		{"deskew", n.deskew},
		{"denoise", denoiseMedian},
		{"contrast", equalizeAdaptive},
		{"binarize", binarizeAdaptive},
		{"despeckle", removeArtifacts},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "normalize image", err)
		}
		out, err := stage.fn(gray)
		if err != nil {
			n.log.Warn("normalization stage skipped", "stage", stage.name, "error", err)
			continue
		}
		gray = out
	}
	return gray, nil
}

// Validate enforces the intake preconditions: dimension bounds, a gray or
// color pixel layout, and minimum contrast for grayscale inputs.
func (n *Normalizer) Validate(img image.Image) error {
	if img == nil {
		return domain.WrapError(domain.ErrInvalidImage, "validate image", fmt.Errorf("nil image"))
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < n.cfg.MinWidth || h < n.cfg.MinHeight {
		return domain.WrapError(domain.ErrInvalidImage, "validate image",
			fmt.Errorf("dimensions %dx%d below minimum %dx%d", w, h, n.cfg.MinWidth, n.cfg.MinHeight))
	}
	if w > n.cfg.MaxWidth || h > n.cfg.MaxHeight {
		return domain.WrapError(domain.ErrInvalidImage, "validate image",
			fmt.Errorf("dimensions %dx%d exceed maximum %dx%d", w, h, n.cfg.MaxWidth, n.cfg.MaxHeight))
	}

	gray, channels := channelLayout(img)
	if channels != 1 && channels != 3 {
		return domain.WrapError(domain.ErrInvalidImage, "validate image",
			fmt.Errorf("unsupported channel count %d", channels))
	}
	if gray {
		if _, std := MeanStd(ToGray(img)); std < n.cfg.MinContrast {
			return domain.WrapError(domain.ErrInvalidImage, "validate image",
				fmt.Errorf("contrast %.1f below minimum %.1f", std, n.cfg.MinContrast))
		}
	}
	return nil
}

func channelLayout(img image.Image) (gray bool, channels int) {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true, 1
	case *image.CMYK:
		return false, 4
	default:
		return false, 3
	}
}

// ToGray converts any image to 8-bit grayscale with a zero origin.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return normalizeBounds(g)
	}
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// MeanStd returns the mean and standard deviation of pixel intensity
// on the [0,255] scale.
func MeanStd(img *image.Gray) (mean, std float64) {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0, 0
	}
	var sum, sumSq float64
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()]
		for _, v := range row {
			f := float64(v)
			sum += f
			sumSq += f * f
		}
	}
	mean = sum / float64(total)
	variance := sumSq/float64(total) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance)
}

const minDeskewDegrees = 0.15

func (n *Normalizer) deskew(img *image.Gray) (*image.Gray, error) {
	angle, ok := SkewAngle(img)
	if !ok || math.Abs(angle) < minDeskewDegrees {
		return img, nil
	}
	return rotate(img, -angle), nil
}

// rotate returns img rotated by deg degrees around its center, white-filled
// outside the source footprint.
func rotate(img *image.Gray, deg float64) *image.Gray {
	src := normalizeBounds(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for i := range out.Pix {
		out.Pix[i] = 0xff
	}

	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w)/2, float64(h)/2
	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(out, m, src, b, draw.Src, nil)
	return out
}

func denoiseMedian(img *image.Gray) (*image.Gray, error) {
	src := normalizeBounds(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	copy(out.Pix, src.Pix)

	var window [9]byte
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				row := src.Pix[(y+dy)*src.Stride:]
				window[i] = row[x-1]
				window[i+1] = row[x]
				window[i+2] = row[x+1]
				i += 3
			}
			out.Pix[y*out.Stride+x] = median9(window)
		}
	}
	return out, nil
}

func median9(w [9]byte) byte {
	for i := 1; i < 9; i++ {
		v := w[i]
		j := i - 1
		for j >= 0 && w[j] > v {
			w[j+1] = w[j]
			j--
		}
		w[j+1] = v
	}
	return w[4]
}

const (
	contrastTiles     = 8
	contrastClipLimit = 2.0
)

// equalizeAdaptive applies tile-based histogram equalization with clipping,
// interpolating between neighboring tile mappings to avoid seams.
func equalizeAdaptive(img *image.Gray) (*image.Gray, error) {
	src := normalizeBounds(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < contrastTiles || h < contrastTiles {
		return nil, fmt.Errorf("image %dx%d too small for %d tiles", w, h, contrastTiles)
	}

	tileW := (w + contrastTiles - 1) / contrastTiles
	tileH := (h + contrastTiles - 1) / contrastTiles

	luts := make([][256]byte, contrastTiles*contrastTiles)
	for ty := 0; ty < contrastTiles; ty++ {
		for tx := 0; tx < contrastTiles; tx++ {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			luts[ty*contrastTiles+tx] = tileLUT(src, x0, y0, x1, y1)
		}
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		fy := (float64(y)-float64(tileH)/2 + 0.5) / float64(tileH)
		ty0 := int(math.Floor(fy))
		wy := fy - float64(ty0)
		ty1 := clampTile(ty0 + 1)
		ty0 = clampTile(ty0)
		for x := 0; x < w; x++ {
			fx := (float64(x)-float64(tileW)/2 + 0.5) / float64(tileW)
			tx0 := int(math.Floor(fx))
			wx := fx - float64(tx0)
			tx1 := clampTile(tx0 + 1)
			tx0 = clampTile(tx0)

			v := src.Pix[y*src.Stride+x]
			top := (1-wx)*float64(luts[ty0*contrastTiles+tx0][v]) + wx*float64(luts[ty0*contrastTiles+tx1][v])
			bottom := (1-wx)*float64(luts[ty1*contrastTiles+tx0][v]) + wx*float64(luts[ty1*contrastTiles+tx1][v])
			out.Pix[y*out.Stride+x] = byte(math.Round((1-wy)*top + wy*bottom))
		}
	}
	return out, nil
}

func clampTile(t int) int {
	if t < 0 {
		return 0
	}
	if t >= contrastTiles {
		return contrastTiles - 1
	}
	return t
}

func tileLUT(img *image.Gray, x0, y0, x1, y1 int) [256]byte {
	var hist [256]int
	for y := y0; y < y1; y++ {
		row := img.Pix[y*img.Stride:]
		for x := x0; x < x1; x++ {
			hist[row[x]]++
		}
	}
	total := (x1 - x0) * (y1 - y0)
	if total == 0 {
		var identity [256]byte
		for i := range identity {
			identity[i] = byte(i)
		}
		return identity
	}

	clip := int(contrastClipLimit * float64(total) / 256)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i, count := range hist {
		if count > clip {
			excess += count - clip
			hist[i] = clip
		}
	}
	share := excess / 256
	for i := range hist {
		hist[i] += share
	}

	var lut [256]byte
	cum := 0
	for i, count := range hist {
		cum += count
		lut[i] = byte(math.Round(255 * float64(cum) / float64(total)))
	}
	return lut
}

const (
	binarizeBlock = 11
	binarizeC     = 2
)

// binarizeAdaptive thresholds each pixel against the mean of its local
// window, computed with an integral image.
func binarizeAdaptive(img *image.Gray) (*image.Gray, error) {
	src := normalizeBounds(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	integral := make([]uint64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(row[x])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	half := binarizeBlock / 2
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		y0, y1 := max(0, y-half), min(h-1, y+half)
		for x := 0; x < w; x++ {
			x0, x1 := max(0, x-half), min(w-1, x+half)
			area := uint64((x1 - x0 + 1) * (y1 - y0 + 1))
			sum := integral[(y1+1)*(w+1)+x1+1] -
				integral[y0*(w+1)+x1+1] -
				integral[(y1+1)*(w+1)+x0] +
				integral[y0*(w+1)+x0]
			mean := float64(sum) / float64(area)
			if float64(src.Pix[y*src.Stride+x]) > mean-binarizeC {
				out.Pix[y*out.Stride+x] = 0xff
			}
		}
	}
	return out, nil
}

// removeArtifacts applies a morphological open (erode then dilate) with a
// 3x3 kernel, clearing isolated specks left by binarization.
func removeArtifacts(img *image.Gray) (*image.Gray, error) {
	eroded, err := morph(img, true)
	if err != nil {
		return nil, err
	}
	return morph(eroded, false)
}

func morph(img *image.Gray, erode bool) (*image.Gray, error) {
	src := normalizeBounds(img)
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	copy(out.Pix, src.Pix)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var extreme byte
			if erode {
				extreme = 0xff
			}
			for dy := -1; dy <= 1; dy++ {
				row := src.Pix[(y+dy)*src.Stride:]
				for dx := -1; dx <= 1; dx++ {
					v := row[x+dx]
					if erode {
						if v < extreme {
							extreme = v
						}
					} else if v > extreme {
						extreme = v
					}
				}
			}
			out.Pix[y*out.Stride+x] = extreme
		}
	}
	return out, nil
}
