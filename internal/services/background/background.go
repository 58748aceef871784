package background

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/services/health"
	"github.com/cozy-creator/bg-remover/internal/services/segmentation"
	"github.com/cozy-creator/bg-remover/internal/utils/imageutil"
	"go.uber.org/zap"
)

const (
	OperationRemove          = "remove-bg"
	OperationRemoveHeuristic = "remove-bg-simple"
	OperationReplace         = "replace-bg"
)

// Upload is one image received from a caller.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Output struct {
	PNG    []byte
	Width  int
	Height int
}

// Archiver keeps a copy of processed images. Archive must not block.
type Archiver interface {
	Archive(operation string, input []byte, output []byte)
}

type Service struct {
	limits    config.LimitsConfig
	segmenter segmentation.Segmenter
	heuristic segmentation.Segmenter
	health    health.Status
	timeout   time.Duration
	archiver  Archiver
	logger    *zap.Logger
}

type OptionFunc func(s *Service)

func WithArchiver(archiver Archiver) OptionFunc {
	return func(s *Service) {
		s.archiver = archiver
	}
}

func WithTimeout(timeout time.Duration) OptionFunc {
	return func(s *Service) {
		s.timeout = timeout
	}
}

func NewService(limits config.LimitsConfig, segmenter segmentation.Segmenter, status health.Status, logger *zap.Logger, options ...OptionFunc) *Service {
	s := &Service{
		limits:    limits,
		segmenter: segmenter,
		heuristic: segmentation.NewThreshold(limits.BrightnessThreshold),
		health:    status,
		timeout:   config.DefaultSegmenterTimeout,
		logger:    logger,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

func (s *Service) Health() health.Status {
	return s.health
}

func (s *Service) Limits() config.LimitsConfig {
	return s.limits
}

// RemoveBackground cuts the subject out of upload with the segmentation backend.
func (s *Service) RemoveBackground(ctx context.Context, upload Upload) (*Output, error) {
	start := time.Now()

	if err := s.validate(upload, s.limits.MaxUploadBytes, "File"); err != nil {
		return nil, err
	}

	if err := s.available(); err != nil {
		return nil, err
	}

	img, err := s.load(upload, "File")
	if err != nil {
		return nil, err
	}

	cutout, err := s.cutout(ctx, img)
	if err != nil {
		return nil, err
	}

	output, err := s.finish(OperationRemove, upload.Data, cutout)
	if err != nil {
		return nil, err
	}

	s.logDone(OperationRemove, output, start)
	return output, nil
}

// RemoveBackgroundHeuristic clears near-white pixels without calling the
// segmentation backend, so it works even when the service is degraded.
func (s *Service) RemoveBackgroundHeuristic(ctx context.Context, upload Upload) (*Output, error) {
	start := time.Now()

	if err := s.validate(upload, s.limits.MaxHeuristicUploadBytes, "File"); err != nil {
		return nil, err
	}

	img, err := s.load(upload, "File")
	if err != nil {
		return nil, err
	}

	result, err := s.heuristic.Segment(ctx, img)
	if err != nil {
		return nil, newError(KindProcessingFailed, err, "Error processing image: %v", err)
	}

	output, err := s.finish(OperationRemoveHeuristic, upload.Data, imageutil.ToNRGBA(result))
	if err != nil {
		return nil, err
	}

	s.logDone(OperationRemoveHeuristic, output, start)
	return output, nil
}

// ReplaceBackground cuts the subject out of foreground and composites it over
// background, which is stretched to the cutout's size.
func (s *Service) ReplaceBackground(ctx context.Context, foreground, background Upload) (*Output, error) {
	start := time.Now()

	if err := s.validate(foreground, s.limits.MaxUploadBytes, "Foreground image"); err != nil {
		return nil, err
	}

	if err := s.validate(background, s.limits.MaxUploadBytes, "Background image"); err != nil {
		return nil, err
	}

	if err := s.available(); err != nil {
		return nil, err
	}

	fg, err := s.load(foreground, "Foreground image")
	if err != nil {
		return nil, err
	}

	bg, err := s.decode(background, "Background image")
	if err != nil {
		return nil, err
	}

	cutout, err := s.cutout(ctx, fg)
	if err != nil {
		return nil, err
	}

	size := cutout.Bounds().Size()
	resized := imageutil.ResizeExact(bg, size.X, size.Y)

	composited, err := imageutil.Composite(resized, cutout)
	if err != nil {
		return nil, newError(KindProcessingFailed, err, "Error processing image: %v", err)
	}

	output, err := s.finish(OperationReplace, foreground.Data, composited)
	if err != nil {
		return nil, err
	}

	s.logDone(OperationReplace, output, start)
	return output, nil
}

func (s *Service) validate(upload Upload, limit int64, label string) error {
	if !strings.HasPrefix(strings.ToLower(upload.ContentType), "image/") {
		return newError(KindInvalidInput, nil, "%s must be an image", label)
	}

	if int64(len(upload.Data)) > limit {
		return newError(KindPayloadTooLarge, nil, "%s too large. Maximum size is %d bytes (%s)", label, limit, humanSize(limit))
	}

	if len(upload.Data) == 0 {
		return newError(KindInvalidInput, imageutil.ErrEmptyImage, "%s is empty", label)
	}

	return nil
}

func (s *Service) decode(upload Upload, label string) (*image.NRGBA, error) {
	img, _, err := imageutil.Decode(upload.Data, s.limits.MaxPixels)
	if err != nil {
		if errors.Is(err, imageutil.ErrTooManyPixels) {
			return nil, newError(KindPayloadTooLarge, err, "%s too large. Maximum is %d pixels", label, s.limits.MaxPixels)
		}
		if errors.Is(err, imageutil.ErrUnsupportedFormat) {
			return nil, newError(KindUnprocessableImage, err, "%s is not a supported format (png, jpeg, webp, gif, bmp)", label)
		}
		return nil, newError(KindUnprocessableImage, err, "%s could not be decoded: %v", label, err)
	}

	return img, nil
}

// load decodes a validated upload and bounds it to the configured dimension.
func (s *Service) load(upload Upload, label string) (*image.NRGBA, error) {
	img, err := s.decode(upload, label)
	if err != nil {
		return nil, err
	}

	return imageutil.Thumbnail(img, s.limits.MaxDimension), nil
}

// available fails fast when the startup probe could not reach the backend.
func (s *Service) available() error {
	if !s.health.BackendLoaded {
		return newError(KindBackendUnavailable, errors.New(s.health.Error),
			"Background removal service is unavailable: %s", s.health.Error)
	}

	return nil
}

func (s *Service) cutout(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	result, err := s.segmenter.Segment(ctx, img)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, newError(KindProcessingFailed, err, "Error processing image: segmentation timed out after %s", s.timeout)
		}
		return nil, newError(KindProcessingFailed, err, "Error processing image: %v", err)
	}

	if result.Bounds().Size() != img.Bounds().Size() {
		err := fmt.Errorf("segmentation returned %v, expected %v", result.Bounds().Size(), img.Bounds().Size())
		return nil, newError(KindProcessingFailed, err, "Error processing image: %v", err)
	}

	return imageutil.ToNRGBA(result), nil
}

func (s *Service) finish(operation string, input []byte, img image.Image) (*Output, error) {
	content, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, newError(KindProcessingFailed, err, "Error processing image: %v", err)
	}

	if s.archiver != nil {
		s.archiver.Archive(operation, input, content)
	}

	size := img.Bounds().Size()
	return &Output{PNG: content, Width: size.X, Height: size.Y}, nil
}

func (s *Service) logDone(operation string, output *Output, start time.Time) {
	s.logger.Info("image processed",
		zap.String("operation", operation),
		zap.Int("width", output.Width),
		zap.Int("height", output.Height),
		zap.Int("bytes", len(output.PNG)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func humanSize(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}
