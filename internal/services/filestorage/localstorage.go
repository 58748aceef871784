package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type LocalFileStorage struct {
	assetsDir string
	publicURL string
}

func NewLocalFileStorage(assetsDir, publicURL string) (*LocalFileStorage, error) {
	if assetsDir == "" {
		return nil, fmt.Errorf("assets directory is not set")
	}

	if err := os.MkdirAll(assetsDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	return &LocalFileStorage{
		assetsDir: assetsDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (u *LocalFileStorage) Upload(_ context.Context, file FileInfo) (string, error) {
	filedest := filepath.Join(u.assetsDir, filepath.FromSlash(file.Filename()))

	if err := os.MkdirAll(filepath.Dir(filedest), os.ModePerm); err != nil {
		return "", err
	}

	if err := os.WriteFile(filedest, file.Content, os.FileMode(0644)); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/file/%s", u.publicURL, file.Filename()), nil
}

func (u *LocalFileStorage) GetFile(_ context.Context, filename string) (*FileInfo, error) {
	path, err := u.ResolveFile(filename)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}

	ext := filepath.Ext(filename)
	return &FileInfo{
		Name:      strings.TrimSuffix(filepath.Base(filename), ext),
		Extension: ext,
		Folder:    filepath.ToSlash(filepath.Dir(filepath.Clean(filename))),
		Content:   content,
	}, nil
}

// ResolveFile maps filename to a path inside the assets directory, refusing
// anything that would escape it.
func (u *LocalFileStorage) ResolveFile(filename string) (string, error) {
	cleaned := filepath.Clean("/" + filepath.FromSlash(filename))
	resolved := filepath.Join(u.assetsDir, cleaned)

	rel, err := filepath.Rel(u.assetsDir, resolved)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", ErrFileNotFound
	}

	if _, err := os.Stat(resolved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrFileNotFound
		}
		return "", err
	}

	return resolved, nil
}
