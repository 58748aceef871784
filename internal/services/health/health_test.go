package health

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/cozy-creator/bg-remover/internal/services/segmentation"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSegmenter struct {
	err   error
	panic bool
}

func (f fakeSegmenter) Name() string { return "fake" }

func (f fakeSegmenter) Segment(_ context.Context, img image.Image) (image.Image, error) {
	if f.panic {
		panic("weights missing")
	}
	if f.err != nil {
		return nil, f.err
	}
	return img, nil
}

func TestProbeHealthy(t *testing.T) {
	status := Probe(context.Background(), segmentation.NewThreshold(200), zap.NewNop())

	assert.True(t, status.BackendLoaded)
	assert.Empty(t, status.Error)
	assert.Equal(t, "threshold", status.Backend)
	assert.Equal(t, StatusHealthy, status.String())
	assert.False(t, status.CheckedAt.IsZero())
}

func TestProbeDegraded(t *testing.T) {
	status := Probe(context.Background(), fakeSegmenter{err: errors.New("connection refused")}, zap.NewNop())

	assert.False(t, status.BackendLoaded)
	assert.Equal(t, "connection refused", status.Error)
	assert.Equal(t, StatusDegraded, status.String())
}

func TestProbeRecoversPanic(t *testing.T) {
	status := Probe(context.Background(), fakeSegmenter{panic: true}, zap.NewNop())

	assert.False(t, status.BackendLoaded)
	assert.Contains(t, status.Error, "weights missing")
	assert.Equal(t, "fake", status.Backend)
	assert.Equal(t, StatusDegraded, status.String())
}
