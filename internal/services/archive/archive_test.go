package archive

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"sync"
	"testing"

	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/cozy-creator/bg-remover/internal/services/filestorage"
	"github.com/cozy-creator/bg-remover/internal/utils/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{files: map[string][]byte{}}
}

func (m *memoryStorage) Upload(_ context.Context, file filestorage.FileInfo) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.files[file.Filename()] = file.Content
	return "mem://" + file.Filename(), nil
}

func (m *memoryStorage) GetFile(_ context.Context, filename string) (*filestorage.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[filename]
	if !ok {
		return nil, filestorage.ErrFileNotFound
	}
	return &filestorage.FileInfo{Content: content}, nil
}

type memoryRecords struct {
	mu      sync.Mutex
	records []*models.ProcessedImage
}

func (m *memoryRecords) Create(_ context.Context, record *models.ProcessedImage) (*models.ProcessedImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return record, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestArchive(t *testing.T) {
	storage := newMemoryStorage()
	records := &memoryRecords{}
	archiver := NewArchiver(storage, records, 2, zap.NewNop())

	input := pngBytes(t, 4, 4)
	output := pngBytes(t, 2, 2)

	archiver.Archive("remove-bg", input, output)
	archiver.Stop()

	inputPath := InputFolder + "/" + hashutil.Blake3Hash(input) + ".png"
	outputPath := OutputFolder + "/" + hashutil.Blake3Hash(output) + ".png"

	assert.Equal(t, input, storage.files[inputPath])
	assert.Equal(t, output, storage.files[outputPath])

	require.Len(t, records.records, 1)
	record := records.records[0]
	assert.Equal(t, "remove-bg", record.Operation)
	assert.Equal(t, inputPath, record.InputPath)
	assert.Equal(t, outputPath, record.OutputPath)
	assert.False(t, record.CreatedAt.IsZero())
}

func TestArchiveWithoutRecords(t *testing.T) {
	storage := newMemoryStorage()
	archiver := NewArchiver(storage, nil, 1, zap.NewNop())

	archiver.Archive("replace-bg", pngBytes(t, 3, 3), pngBytes(t, 1, 1))
	archiver.Stop()

	assert.Len(t, storage.files, 2)
}

func TestArchiveStorageFailureSkipsRecord(t *testing.T) {
	storage := newMemoryStorage()
	storage.err = errors.New("disk full")
	records := &memoryRecords{}
	archiver := NewArchiver(storage, records, 1, zap.NewNop())

	archiver.Archive("remove-bg", pngBytes(t, 3, 3), pngBytes(t, 1, 1))
	archiver.Stop()

	assert.Empty(t, records.records)
}
