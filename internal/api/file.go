package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/services/filestorage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func GetFile(c *gin.Context) {
	filename := strings.TrimPrefix(c.Param("filename"), "/")
	app := c.MustGet("app").(*app.App)

	storage := app.Storage()
	if storage == nil || filename == "" {
		c.JSON(http.StatusNotFound, gin.H{"detail": "file not found"})
		return
	}

	if local, ok := storage.(*filestorage.LocalFileStorage); ok {
		file, err := local.ResolveFile(filename)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"detail": "file not found"})
			return
		}

		c.File(file)
		return
	}

	file, err := storage.GetFile(c.Request.Context(), filename)
	if err != nil {
		if !errors.Is(err, filestorage.ErrFileNotFound) {
			app.Logger.Error("failed to get archived file", zap.String("filename", filename), zap.Error(err))
		}
		c.JSON(http.StatusNotFound, gin.H{"detail": "file not found"})
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(file.Content).String(), file.Content)
}

func ListHistory(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	if app.ProcessedImageRepository == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "History is not enabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := app.ProcessedImageRepository.ListRecent(c.Request.Context(), limit)
	if err != nil {
		app.Logger.Error("failed to list processed images", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": records, "limit": limit})
}
