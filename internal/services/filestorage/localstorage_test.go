package filestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorageUploadAndGet(t *testing.T) {
	dir := t.TempDir()
	storage, err := NewLocalFileStorage(dir, "http://localhost:8000/")
	require.NoError(t, err)

	file := NewFileInfo("abc123", ".png", "outputs", []byte("content"))
	url, err := storage.Upload(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/file/outputs/abc123.png", url)

	onDisk, err := os.ReadFile(filepath.Join(dir, "outputs", "abc123.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("content"), onDisk)

	got, err := storage.GetFile(context.Background(), "outputs/abc123.png")
	require.NoError(t, err)
	assert.Equal(t, "abc123", got.Name)
	assert.Equal(t, ".png", got.Extension)
	assert.Equal(t, "outputs", got.Folder)
	assert.Equal(t, []byte("content"), got.Content)
}

func TestLocalFileStorageMissingFile(t *testing.T) {
	storage, err := NewLocalFileStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, err = storage.GetFile(context.Background(), "outputs/nope.png")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestLocalFileStorageRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	assets := filepath.Join(root, "assets")
	storage, err := NewLocalFileStorage(assets, "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0o644))

	for _, name := range []string{"../secret.txt", "../../secret.txt", "/../secret.txt", ""} {
		_, err := storage.ResolveFile(name)
		assert.ErrorIs(t, err, ErrFileNotFound, name)
	}
}

func TestNewFileStorage(t *testing.T) {
	cfg := &config.Config{Archive: &config.ArchiveConfig{FilesystemType: "local", AssetsDir: t.TempDir()}}
	storage, err := NewFileStorage(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalFileStorage{}, storage)

	cfg.Archive.FilesystemType = "ftp"
	_, err = NewFileStorage(context.Background(), cfg)
	assert.Error(t, err)

	// S3 needs a bucket.
	cfg.Archive.FilesystemType = "s3"
	cfg.S3 = &config.S3Config{}
	_, err = NewFileStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestFileInfoFilename(t *testing.T) {
	assert.Equal(t, "inputs/a.jpg", NewFileInfo("a", ".jpg", "inputs", nil).Filename())
	assert.Equal(t, "a.jpg", NewFileInfo("a", ".jpg", "", nil).Filename())
}
