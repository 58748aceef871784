package segmentation

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/utils/imageutil"
)

const removePath = "/api/remove"

// maxResponseBytes caps what is read back from the inference server.
const maxResponseBytes = 64 << 20

// RembgClient calls a rembg compatible inference server.
//
//	curl -X POST "$URL/api/remove" -F "file=@my_image.png" -F "model=u2net"
//
// The server answers with the cut out subject as a PNG with alpha.
type RembgClient struct {
	baseURL string
	model   string
	cli     *http.Client
}

func NewRembgClient(baseURL, model string, timeout time.Duration) *RembgClient {
	if timeout <= 0 {
		timeout = config.DefaultSegmenterTimeout
	}

	return &RembgClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		cli:     &http.Client{Timeout: timeout},
	}
}

func (c *RembgClient) Name() string {
	return config.BackendRembg
}

func (c *RembgClient) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	content, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("copy form file: %w", err)
	}
	if c.model != "" {
		if err := writer.WriteField("model", c.model); err != nil {
			return nil, fmt.Errorf("write model field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+removePath, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("segmentation failed with status %d: %s", resp.StatusCode, snippet(data))
	}

	want := img.Bounds().Size()
	cfg, _, err := imageutil.DecodeConfig(data)
	if err != nil {
		return nil, fmt.Errorf("decode segmentation result: %w", err)
	}
	if got := image.Pt(cfg.Width, cfg.Height); got != want {
		return nil, fmt.Errorf("segmentation returned %v, expected %v", got, want)
	}

	out, _, err := imageutil.Decode(data, int64(want.X)*int64(want.Y))
	if err != nil {
		return nil, fmt.Errorf("decode segmentation result: %w", err)
	}

	return out, nil
}

func snippet(data []byte) string {
	const n = 200
	s := strings.TrimSpace(string(data))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
