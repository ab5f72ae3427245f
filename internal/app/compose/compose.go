/*
Package compose stamps a label overlay onto a user's photo.

Sizing policy: a photo at least MaxEdge pixels on both axes is shrunk to fit a
MaxEdge square and the overlay keeps its native size; any smaller photo is kept as is
and the overlay is shrunk to fit inside it. Only one of the two images is ever resized.
The overlay is anchored at the bottom-left corner and blended by its alpha channel.
*/
package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/webp"
)

const (
	// MaxEdge is both the size threshold and the bounding square for large photos.
	MaxEdge = 1000

	// JPEGQuality is used for every composed image.
	JPEGQuality = 100

	// MaxInputBytes bounds how much of a photo is read.
	MaxInputBytes = 20 << 20

	// MaxInputPixels rejects images whose header announces more pixels than this.
	MaxInputPixels = 60_000_000
)

var (
	// ErrDecode is returned when the photo or overlay is not a decodable image.
	ErrDecode = errors.New("compose: cannot decode image")

	// ErrOverlayMissing is returned when the overlay file does not exist.
	// It indicates a broken deployment rather than bad user input.
	ErrOverlayMissing = errors.New("compose: overlay resource missing")

	// ErrTooLarge is returned for inputs beyond MaxInputBytes or MaxInputPixels.
	ErrTooLarge = errors.New("compose: image too large")
)

// Layout is the outcome of the sizing policy.
type Layout struct {
	// Base is the size of the output (the photo after any shrink).
	Base image.Point
	// Overlay is the size the overlay is pasted at.
	Overlay image.Point
	// Offset is the overlay's top-left corner in the output.
	Offset image.Point
}

// BaseResized reports whether the policy shrinks a photo of the given size.
func (l Layout) BaseResized(orig image.Point) bool { return l.Base != orig }

// OverlayResized reports whether the policy shrinks an overlay of the given size.
func (l Layout) OverlayResized(orig image.Point) bool { return l.Overlay != orig }

// Plan applies the sizing policy to a photo and overlay of the given sizes.
func Plan(base, overlay image.Point) Layout {
	l := Layout{Base: base, Overlay: overlay}

	if base.X >= MaxEdge && base.Y >= MaxEdge {
		l.Base = fitWithin(base, image.Pt(MaxEdge, MaxEdge))
	} else {
		l.Overlay = fitWithin(overlay, base)
	}

	l.Offset = image.Pt(0, l.Base.Y-l.Overlay.Y)
	return l
}

// fitWithin returns the size src shrinks to so that it fits box with its aspect
// ratio kept. Sizes already inside box are returned unchanged, so nothing is
// ever enlarged. Rounding picks whichever of floor/ceil keeps the aspect ratio
// closest, and never goes below one pixel.
func fitWithin(src, box image.Point) image.Point {
	if box.X >= src.X && box.Y >= src.Y {
		return src
	}

	aspect := float64(src.X) / float64(src.Y)
	x, y := box.X, box.Y

	if float64(x)/float64(y) >= aspect {
		x = roundAspect(float64(y)*aspect, func(n float64) float64 {
			return math.Abs(aspect - n/float64(y))
		})
	} else {
		y = roundAspect(float64(x)/aspect, func(n float64) float64 {
			if n == 0 {
				return 0
			}
			return math.Abs(aspect - float64(x)/n)
		})
	}

	return image.Pt(x, y)
}

func roundAspect(v float64, distance func(float64) float64) int {
	lo, hi := math.Floor(v), math.Ceil(v)
	best := lo
	if distance(hi) < distance(lo) {
		best = hi
	}
	return max(int(best), 1)
}

// ComposeImages applies Plan to base and overlay and returns the stamped image.
// Neither input is modified.
func ComposeImages(base, overlay image.Image) (*image.NRGBA, Layout) {
	baseSize := base.Bounds().Size()
	overlaySize := overlay.Bounds().Size()
	l := Plan(baseSize, overlaySize)

	if l.BaseResized(baseSize) {
		base = imaging.Resize(base, l.Base.X, l.Base.Y, imaging.CatmullRom)
	}
	if l.OverlayResized(overlaySize) {
		overlay = imaging.Resize(overlay, l.Overlay.X, l.Overlay.Y, imaging.CatmullRom)
	}

	origin := base.Bounds().Min
	return imaging.Overlay(base, overlay, origin.Add(l.Offset), 1.0), l
}

// Compositor decodes inputs and stamps overlays.
type Compositor struct{}

// New returns a Compositor.
func New() *Compositor {
	return &Compositor{}
}

// Compose reads the photo from base, loads the overlay from overlayPath and
// returns the stamped image.
func (c *Compositor) Compose(base io.Reader, overlayPath string) (image.Image, error) {
	photo, err := decodeLimited(base)
	if err != nil {
		return nil, fmt.Errorf("photo: %w", err)
	}

	overlay, err := loadOverlay(overlayPath)
	if err != nil {
		return nil, err
	}

	out, _ := ComposeImages(photo, overlay)
	return out, nil
}

func loadOverlay(path string) (image.Image, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %w", ErrOverlayMissing, err)
	}
	if err != nil {
		return nil, fmt.Errorf("open overlay: %w", err)
	}
	defer f.Close()

	img, err := decodeLimited(f)
	if err != nil {
		return nil, fmt.Errorf("overlay %s: %w", path, err)
	}
	return img, nil
}

// decodeLimited reads at most MaxInputBytes, checks the announced dimensions,
// then decodes. PNG alpha is preserved.
func decodeLimited(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxInputBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxInputBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	if cfg.Width*cfg.Height > MaxInputPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

// Encode writes img as a JPEG at JPEGQuality.
func Encode(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}
