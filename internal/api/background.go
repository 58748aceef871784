package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/services/background"
	"github.com/gin-gonic/gin"
)

func RemoveBackground(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	service := app.Service()

	limit := service.Limits().MaxUploadBytes
	limitBody(c, limit, 1)

	upload, err := readUpload(c, limit, "file", "image")
	if err != nil {
		abortWithError(c, err)
		return
	}

	output, err := service.RemoveBackground(c.Request.Context(), *upload)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", output.PNG)
}

func RemoveBackgroundHeuristic(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	service := app.Service()

	limit := service.Limits().MaxHeuristicUploadBytes
	limitBody(c, limit, 1)

	upload, err := readUpload(c, limit, "file", "image")
	if err != nil {
		abortWithError(c, err)
		return
	}

	output, err := service.RemoveBackgroundHeuristic(c.Request.Context(), *upload)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", output.PNG)
}

func ReplaceBackground(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	service := app.Service()
	limit := service.Limits().MaxUploadBytes
	limitBody(c, limit, 2)

	foreground, err := readUpload(c, limit, "foreground")
	if err != nil {
		abortWithError(c, err)
		return
	}

	bg, err := readUpload(c, limit, "background")
	if err != nil {
		abortWithError(c, err)
		return
	}

	output, err := service.ReplaceBackground(c.Request.Context(), *foreground, *bg)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", output.PNG)
}

// multipartOverhead is the room left for boundaries, part headers and small
// form fields on top of the file ceilings.
const multipartOverhead int64 = 64 << 10

// limitBody caps the request body so an oversized upload is cut off while it
// is received instead of being spooled to disk first.
func limitBody(c *gin.Context, limit int64, files int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, files*(limit+1)+multipartOverhead)
}

// readUpload takes the first of fields present in the multipart form. At most
// limit+1 bytes are read, which is enough for the service to reject the
// upload as too large without buffering all of it.
func readUpload(c *gin.Context, limit int64, fields ...string) (*background.Upload, error) {
	var (
		header *multipart.FileHeader
		err    error
	)
	for _, field := range fields {
		header, err = c.FormFile(field)
		if !errors.Is(err, http.ErrMissingFile) {
			break
		}
	}

	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, &background.Error{
				Kind:    background.KindPayloadTooLarge,
				Message: fmt.Sprintf("Request too large. Maximum size is %d bytes per image", limit),
				Err:     err,
			}
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, &background.Error{
				Kind:    background.KindInvalidInput,
				Message: "No file provided in '" + fields[0] + "' field",
				Err:     err,
			}
		}
		return nil, &background.Error{
			Kind:    background.KindInvalidInput,
			Message: "Request must be multipart/form-data",
			Err:     err,
		}
	}

	file, err := header.Open()
	if err != nil {
		return nil, &background.Error{Kind: background.KindInvalidInput, Message: "Failed to open uploaded file", Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, &background.Error{Kind: background.KindInvalidInput, Message: "Failed to read uploaded file", Err: err}
	}

	return &background.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
