package segmentation

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/utils/imageutil"
)

// Segmenter separates the foreground subject of an image from its background.
// The returned image has the same size as img and marks foreground opacity in
// its alpha channel.
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// NewSegmenter builds the backend selected by cfg.
func NewSegmenter(cfg *config.Config) (Segmenter, error) {
	if cfg.Segmenter == nil {
		return nil, config.ErrUnknownBackend
	}

	switch strings.ToLower(cfg.Segmenter.Backend) {
	case config.BackendRembg:
		return NewRembgClient(cfg.Segmenter.URL, cfg.Segmenter.Model, cfg.Segmenter.Timeout), nil
	case config.BackendThreshold:
		return NewThreshold(cfg.Limits.BrightnessThreshold), nil
	}

	return nil, fmt.Errorf("%w: %s", config.ErrUnknownBackend, cfg.Segmenter.Backend)
}

// Threshold treats every near-white pixel as background. It knows nothing
// about the subject and will also clear bright regions inside it; it only
// exists so that removal keeps working without an inference server.
type Threshold struct {
	threshold uint8
}

func NewThreshold(threshold uint8) *Threshold {
	return &Threshold{threshold: threshold}
}

func (t *Threshold) Name() string {
	return config.BackendThreshold
}

func (t *Threshold) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return imageutil.RemoveBright(imageutil.ToNRGBA(img), t.threshold), nil
}
