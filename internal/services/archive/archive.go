package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/cozy-creator/bg-remover/internal/db/repository"
	"github.com/cozy-creator/bg-remover/internal/services/filestorage"
	"github.com/cozy-creator/bg-remover/internal/utils/hashutil"
	"github.com/cozy-creator/bg-remover/internal/utils/imageutil"
	"github.com/gammazero/workerpool"
	"go.uber.org/zap"
)

const (
	InputFolder  = "inputs"
	OutputFolder = "outputs"
)

const taskTimeout = 30 * time.Second

type RecordCreator interface {
	Create(ctx context.Context, record *models.ProcessedImage) (*models.ProcessedImage, error)
}

// Archiver stores processed images and their inputs in the background and
// records each conversion. Failures are logged and never reach the caller.
type Archiver struct {
	wp      *workerpool.WorkerPool
	storage filestorage.FileStorage
	records RecordCreator
	logger  *zap.Logger
}

var _ RecordCreator = (*repository.ProcessedImageRepository)(nil)

func NewArchiver(storage filestorage.FileStorage, records RecordCreator, maxWorkers int, logger *zap.Logger) *Archiver {
	return &Archiver{
		wp:      workerpool.New(maxWorkers),
		storage: storage,
		records: records,
		logger:  logger,
	}
}

// Stop waits for queued archive tasks to finish.
func (a *Archiver) Stop() {
	a.wp.StopWait()
}

func (a *Archiver) Archive(operation string, input []byte, output []byte) {
	a.wp.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
		defer cancel()

		record, err := a.archive(ctx, operation, input, output)
		if err != nil {
			a.logger.Error("failed to archive processed image",
				zap.String("operation", operation),
				zap.Error(err),
			)
			return
		}

		a.logger.Debug("archived processed image",
			zap.String("id", record.ID.String()),
			zap.String("output", record.OutputPath),
		)
	})
}

func (a *Archiver) archive(ctx context.Context, operation string, input []byte, output []byte) (*models.ProcessedImage, error) {
	_, inputExt := imageutil.DetectMime(input)
	inputPath, err := a.store(ctx, InputFolder, inputExt, input)
	if err != nil {
		return nil, fmt.Errorf("failed to store input: %w", err)
	}

	outputPath, err := a.store(ctx, OutputFolder, ".png", output)
	if err != nil {
		return nil, fmt.Errorf("failed to store output: %w", err)
	}

	record := models.NewProcessedImage(operation, inputPath, outputPath)
	if a.records == nil {
		return record, nil
	}

	return a.records.Create(ctx, record)
}

func (a *Archiver) store(ctx context.Context, folder, extension string, content []byte) (string, error) {
	file := filestorage.NewFileInfo(hashutil.Blake3Hash(content), extension, folder, content)
	if _, err := a.storage.Upload(ctx, file); err != nil {
		return "", err
	}

	return file.Filename(), nil
}
