package health

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/cozy-creator/bg-remover/internal/services/segmentation"
	"go.uber.org/zap"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

const probeSize = 8

// Status describes whether the segmentation backend came up. It is produced
// once by Probe before the server accepts traffic and is never changed.
type Status struct {
	Backend       string
	BackendLoaded bool
	Error         string
	CheckedAt     time.Time
}

func (s Status) String() string {
	if s.BackendLoaded {
		return StatusHealthy
	}
	return StatusDegraded
}

// Probe segments a small placeholder image. Any failure downgrades the
// service instead of aborting startup.
func Probe(ctx context.Context, segmenter segmentation.Segmenter, logger *zap.Logger) (status Status) {
	status = Status{
		Backend:   segmenter.Name(),
		CheckedAt: time.Now().UTC(),
	}

	defer func() {
		if r := recover(); r != nil {
			status.BackendLoaded = false
			status.Error = fmt.Sprintf("segmentation backend panicked: %v", r)
			logger.Error("segmentation backend probe panicked", zap.Any("panic", r))
		}
	}()

	if _, err := segmenter.Segment(ctx, placeholder()); err != nil {
		status.Error = err.Error()
		logger.Warn("segmentation backend not available, running degraded",
			zap.String("backend", status.Backend),
			zap.Error(err),
		)
		return status
	}

	status.BackendLoaded = true
	logger.Info("segmentation backend loaded", zap.String("backend", status.Backend))
	return status
}

func placeholder() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, probeSize, probeSize))
	for y := 0; y < probeSize; y++ {
		for x := 0; x < probeSize; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}
