package filestorage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cozy-creator/bg-remover/internal/config"
)

var ErrFileNotFound = errors.New("file not found")

type FileInfo struct {
	Name      string
	Extension string
	Folder    string
	Content   []byte
}

// Filename is the storage key of the file relative to the storage root.
func (f FileInfo) Filename() string {
	name := fmt.Sprintf("%s%s", f.Name, f.Extension)
	if f.Folder == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", f.Folder, name)
}

type FileStorage interface {
	Upload(ctx context.Context, file FileInfo) (string, error)
	GetFile(ctx context.Context, filename string) (*FileInfo, error)
}

func NewFileInfo(name string, extension string, folder string, content []byte) FileInfo {
	return FileInfo{
		Name:      name,
		Extension: extension,
		Folder:    folder,
		Content:   content,
	}
}

func NewFileStorage(ctx context.Context, cfg *config.Config) (FileStorage, error) {
	if cfg.Archive == nil {
		return nil, fmt.Errorf("archive config is not set")
	}

	filesystem := strings.ToLower(cfg.Archive.FilesystemType)
	switch filesystem {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg.Archive.AssetsDir, cfg.Archive.PublicURL)
	case config.FilesystemS3:
		return NewS3FileStorage(ctx, cfg.S3)
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.Archive.FilesystemType)
}
