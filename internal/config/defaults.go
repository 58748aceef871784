package config

import (
	"errors"
	"time"
)

const (
	ServiceName    = "bg-remover"
	ServiceVersion = "1.0.0"
)

const (
	DefaultPort        = 8000
	DefaultHost        = "0.0.0.0"
	DefaultEnvironment = "development"

	DefaultMaxUploadBytes          int64 = 2 * 1024 * 1024
	DefaultMaxHeuristicUploadBytes int64 = 3 * 1024 * 1024
	DefaultMaxDimension                  = 800
	DefaultMaxPixels               int64 = 40_000_000
	DefaultBrightnessThreshold     uint8 = 200

	DefaultSegmenterURL     = "http://127.0.0.1:7000"
	DefaultSegmenterModel   = "u2net"
	DefaultSegmenterTimeout = 60 * time.Second

	DefaultArchiveWorkers = 4
	DefaultAssetsDir      = "./data/assets"
	DefaultDSN            = "file:./data/main.db"
)

var (
	ErrConfigNotLoaded     = errors.New("config not loaded")
	ErrUnknownBackend      = errors.New("unknown segmenter backend")
	ErrInvalidUploadLimit  = errors.New("upload limits must be positive")
	ErrInvalidMaxDimension = errors.New("limits.max_dimension must be positive")
	ErrInvalidMaxPixels    = errors.New("limits.max_pixels must be positive")
)
