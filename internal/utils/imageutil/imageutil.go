package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/anthonynsimon/bild/transform"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
	WEBP Format = "webp"
	GIF  Format = "gif"
	BMP  Format = "bmp"
)

var (
	ErrEmptyImage        = errors.New("image data is empty")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooManyPixels     = errors.New("image has too many pixels")
)

// allowed maps the sniffed MIME type of every accepted encoding to its format.
var allowed = map[string]Format{
	"image/png":  PNG,
	"image/jpeg": JPEG,
	"image/webp": WEBP,
	"image/gif":  GIF,
	"image/bmp":  BMP,
}

// DetectFormat sniffs data and reports its format when it is on the allow-list.
func DetectFormat(data []byte) (Format, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}

	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		if format, ok := allowed[m.String()]; ok {
			return format, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
}

// DecodeConfig sniffs data and reads only its header.
func DecodeConfig(data []byte) (image.Config, Format, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return image.Config{}, "", err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, format, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	return cfg, format, nil
}

// Decode checks data against the allow-list before decoding it into an NRGBA
// buffer. When maxPixels is positive, images whose header declares more
// pixels are rejected without decoding them.
func Decode(data []byte, maxPixels int64) (*image.NRGBA, Format, error) {
	cfg, format, err := DecodeConfig(data)
	if err != nil {
		return nil, format, err
	}

	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, format, fmt.Errorf("%w: %dx%d is over %d", ErrTooManyPixels, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	return ToNRGBA(img), format, nil
}

func ToNRGBA(img image.Image) *image.NRGBA {
	if nrgba, ok := img.(*image.NRGBA); ok && nrgba.Rect.Min == (image.Point{}) {
		return nrgba
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}

	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Thumbnail shrinks img so neither side exceeds maxSize, keeping the aspect
// ratio. Images that already fit are returned untouched.
func Thumbnail(img *image.NRGBA, maxSize int) *image.NRGBA {
	if maxSize <= 0 {
		return img
	}

	b := img.Bounds()
	if b.Dx() <= maxSize && b.Dy() <= maxSize {
		return img
	}

	resized := resize.Thumbnail(uint(maxSize), uint(maxSize), img, resize.Lanczos3)
	return ToNRGBA(resized)
}

// ResizeExact scales img to exactly width x height, ignoring the aspect ratio.
func ResizeExact(img image.Image, width, height int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return ToRGBA(img)
	}

	return transform.Resize(img, width, height, transform.Linear)
}

// Composite draws fg over bg using fg's alpha as the blend weight. Both images
// must have the same size.
func Composite(bg image.Image, fg image.Image) (*image.RGBA, error) {
	if bg.Bounds().Size() != fg.Bounds().Size() {
		return nil, fmt.Errorf("cannot composite %v over %v: size mismatch", fg.Bounds().Size(), bg.Bounds().Size())
	}

	out := ToRGBA(bg)
	if out == bg {
		out = image.NewRGBA(out.Bounds())
		xdraw.Draw(out, out.Bounds(), bg, bg.Bounds().Min, xdraw.Src)
	}

	xdraw.Draw(out, out.Bounds(), fg, fg.Bounds().Min, xdraw.Over)
	return out, nil
}

// RemoveBright makes every pixel whose red, green and blue channels are all
// above threshold fully transparent. Other pixels are left as they are. The
// result has the same bounds as img.
func RemoveBright(img *image.NRGBA, threshold uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.Pix[img.PixOffset(b.Min.X, y) : img.PixOffset(b.Min.X, y)+4*b.Dx()]
		dst := out.Pix[out.PixOffset(b.Min.X, y) : out.PixOffset(b.Min.X, y)+4*b.Dx()]
		copy(dst, src)

		for i := 0; i < len(dst); i += 4 {
			if dst[i] > threshold && dst[i+1] > threshold && dst[i+2] > threshold {
				dst[i+3] = 0
			}
		}
	}

	return out
}

func EncodePNG(img image.Image) ([]byte, error) {
	var output bytes.Buffer
	if err := png.Encode(&output, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	return output.Bytes(), nil
}

// DetectMime returns the sniffed MIME type and file extension of data.
func DetectMime(data []byte) (string, string) {
	mtype := mimetype.Detect(data)
	return mtype.String(), mtype.Extension()
}
