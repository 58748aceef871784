package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/cozy-creator/bg-remover/internal/app"
	"github.com/cozy-creator/bg-remover/internal/config"
	"github.com/cozy-creator/bg-remover/internal/db/models"
	"github.com/cozy-creator/bg-remover/internal/server"
	"github.com/cozy-creator/bg-remover/internal/services/segmentation"
	"github.com/cozy-creator/bg-remover/internal/utils/hashutil"
	"github.com/cozy-creator/bg-remover/internal/utils/imageutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	white = color.NRGBA{255, 255, 255, 255}
	red   = color.NRGBA{255, 0, 0, 255}
	blue  = color.NRGBA{0, 0, 255, 255}
)

type unavailableSegmenter struct{}

func (unavailableSegmenter) Name() string { return "rembg" }

func (unavailableSegmenter) Segment(context.Context, image.Image) (image.Image, error) {
	return nil, errors.New("dial tcp 127.0.0.1:7000: connection refused")
}

type formFile struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func testConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()

	v := viper.New()
	config.SetDefaults(v)
	v.Set("environment", "test")
	for key, value := range overrides {
		v.Set(key, value)
	}

	cfg, err := config.Unmarshal(v)
	require.NoError(t, err)
	return cfg
}

func newHandler(t *testing.T, cfg *config.Config, options ...app.OptionFunc) (http.Handler, *app.App) {
	t.Helper()

	a, err := app.NewApp(cfg, options...)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv, err := server.NewServer(cfg)
	require.NoError(t, err)
	srv.SetupRoutes(a)

	return srv.Handler(), a
}

func healthyHandler(t *testing.T) http.Handler {
	h, _ := newHandler(t, testConfig(t, nil), app.WithSegmenter(segmentation.NewThreshold(200)))
	return h
}

func square(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := white
			if x >= w/4 && x < 3*w/4 && y >= h/4 && y < 3*h/4 {
				c = red
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func fill(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngFile(t *testing.T, field string, img image.Image) formFile {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return formFile{field: field, filename: field + ".png", contentType: "image/png", data: buf.Bytes()}
}

func postForm(t *testing.T, h http.Handler, path string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		header.Set("Content-Type", f.contentType)

		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodePNG(t *testing.T, w *httptest.ResponseRecorder) *image.NRGBA {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	return imageutil.ToNRGBA(img)
}

func detail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Detail
}

func TestRoot(t *testing.T) {
	w := get(healthyHandler(t), "/")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "bg-remover", body["service"])
	assert.Equal(t, "healthy", body["status"])
	assert.Contains(t, body["endpoints"], "remove_bg")
	assert.NotContains(t, body["endpoints"], "history")
}

func TestHealthHealthy(t *testing.T) {
	w := get(healthyHandler(t), "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["backend_loaded"])
	assert.Equal(t, "threshold", body["backend"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, config.ServiceVersion, body["version"])
	assert.Nil(t, body["error"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestHealthDegraded(t *testing.T) {
	h, _ := newHandler(t, testConfig(t, nil), app.WithSegmenter(unavailableSegmenter{}))

	w := get(h, "/api/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, false, body["backend_loaded"])
	assert.Contains(t, body["error"], "connection refused")

	// Removal is refused while the heuristic keeps working.
	w = postForm(t, h, "/remove-bg", pngFile(t, "file", square(20, 20)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, detail(t, w), "connection refused")

	w = postForm(t, h, "/replace-bg", pngFile(t, "foreground", square(20, 20)), pngFile(t, "background", fill(20, 20, blue)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = postForm(t, h, "/remove-bg-simple", pngFile(t, "file", square(20, 20)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRemoveBackgroundSimple(t *testing.T) {
	w := postForm(t, healthyHandler(t), "/remove-bg-simple", pngFile(t, "file", square(500, 500)))
	img := decodePNG(t, w)

	require.Equal(t, image.Pt(500, 500), img.Bounds().Size())
	assert.Equal(t, uint8(0), img.NRGBAAt(0, 0).A)
	assert.Equal(t, uint8(0), img.NRGBAAt(499, 499).A)
	assert.Equal(t, red, img.NRGBAAt(250, 250))
}

func TestRemoveBackground(t *testing.T) {
	h := healthyHandler(t)

	img := decodePNG(t, postForm(t, h, "/remove-bg", pngFile(t, "file", square(1600, 800))))
	assert.Equal(t, image.Pt(800, 400), img.Bounds().Size())

	// "image" is accepted as the field name too.
	img = decodePNG(t, postForm(t, h, "/remove-bg", pngFile(t, "image", square(40, 40))))
	assert.Equal(t, image.Pt(40, 40), img.Bounds().Size())
}

func TestRemoveBackgroundTooLarge(t *testing.T) {
	data := make([]byte, 5*1024*1024)
	w := postForm(t, healthyHandler(t), "/remove-bg", formFile{
		field: "file", filename: "big.png", contentType: "image/png", data: data,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detail(t, w), "2097152")
}

// countingReader reports how much of a request body the server consumed.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func TestOversizedBodyIsCutOff(t *testing.T) {
	tests := []struct {
		path   string
		fields []string
	}{
		{"/remove-bg", []string{"file"}},
		{"/remove-bg-simple", []string{"file"}},
		{"/replace-bg", []string{"foreground", "background"}},
	}

	h := healthyHandler(t)
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			body := &bytes.Buffer{}
			writer := multipart.NewWriter(body)
			for _, field := range tt.fields {
				part, err := writer.CreateFormFile(field, field+".png")
				require.NoError(t, err)
				_, err = part.Write(make([]byte, 20*1024*1024))
				require.NoError(t, err)
			}
			require.NoError(t, writer.Close())

			total := int64(body.Len())
			counter := &countingReader{r: body}
			req := httptest.NewRequest(http.MethodPost, tt.path, counter)
			req.Header.Set("Content-Type", writer.FormDataContentType())

			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, detail(t, w), "too large")
			assert.Less(t, counter.n, total/2)
		})
	}
}

func TestRemoveBackgroundInvalidInput(t *testing.T) {
	h := healthyHandler(t)

	w := postForm(t, h, "/remove-bg", formFile{field: "file", filename: "a.txt", contentType: "text/plain", data: []byte("hello")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "File must be an image", detail(t, w))

	w = postForm(t, h, "/remove-bg", formFile{field: "file", filename: "a.png", contentType: "image/png", data: []byte("not really a png")})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = postForm(t, h, "/remove-bg", formFile{field: "other", filename: "a.png", contentType: "image/png", data: []byte("x")})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detail(t, w), "'file'")

	req := httptest.NewRequest(http.MethodPost, "/remove-bg", bytes.NewBufferString(`{"file": "x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplaceBackground(t *testing.T) {
	w := postForm(t, healthyHandler(t), "/replace-bg",
		pngFile(t, "foreground", square(300, 300)),
		pngFile(t, "background", fill(1000, 1000, blue)),
	)
	img := decodePNG(t, w)

	require.Equal(t, image.Pt(300, 300), img.Bounds().Size())
	assert.Equal(t, blue, img.NRGBAAt(0, 0))
	assert.Equal(t, red, img.NRGBAAt(150, 150))
}

func TestReplaceBackgroundMissingBackground(t *testing.T) {
	w := postForm(t, healthyHandler(t), "/replace-bg", pngFile(t, "foreground", square(30, 30)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, detail(t, w), "'background'")
}

func TestCORSPreflight(t *testing.T) {
	h := healthyHandler(t)

	req := httptest.NewRequest(http.MethodOptions, "/remove-bg", nil)
	req.Header.Set("Origin", "http://frontend.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "http://frontend.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestHistoryDisabled(t *testing.T) {
	h := healthyHandler(t)

	assert.Equal(t, http.StatusNotFound, get(h, "/api/history").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/file/outputs/missing.png").Code)
}

func TestArchiveAndHistory(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"archive.enabled":    true,
		"archive.assets_dir": t.TempDir(),
		"db.dsn":             "file:archive_history?mode=memory&cache=shared",
	})
	h, _ := newHandler(t, cfg,
		app.WithSegmenter(segmentation.NewThreshold(200)),
		app.WithDBInitialization(),
		app.WithArchive(),
	)

	w := postForm(t, h, "/remove-bg-simple", pngFile(t, "file", square(50, 50)))
	output := w.Body.Bytes()
	decodePNG(t, w)

	var history struct {
		Items []models.ProcessedImage `json:"items"`
		Limit int                     `json:"limit"`
	}
	require.Eventually(t, func() bool {
		w := get(h, "/api/history?limit=500")
		if w.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
			return false
		}
		return len(history.Items) == 1
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, 100, history.Limit)
	item := history.Items[0]
	assert.Equal(t, "remove-bg-simple", item.Operation)
	assert.Equal(t, "outputs/"+hashutil.Blake3Hash(output)+".png", item.OutputPath)

	w = get(h, "/file/"+item.OutputPath)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, output, w.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, get(h, "/file/../../etc/passwd").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/history?limit=abc").Code)
}

func TestAPIKeyAuthentication(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"require_api_key": true,
		"db.dsn":          "file:api_key_auth?mode=memory&cache=shared",
	})
	h, a := newHandler(t, cfg,
		app.WithSegmenter(segmentation.NewThreshold(200)),
		app.WithDBInitialization(),
	)
	require.NotNil(t, a.APIKeyRepository)

	ctx := context.Background()
	_, err := a.APIKeyRepository.Create(ctx, models.NewAPIKey(hashutil.Sha3256Hash([]byte("good-key")), "good****"))
	require.NoError(t, err)
	_, err = a.APIKeyRepository.Create(ctx, models.NewAPIKey(hashutil.Sha3256Hash([]byte("old-key")), "old****"))
	require.NoError(t, err)
	require.NoError(t, a.APIKeyRepository.RevokeByHash(ctx, hashutil.Sha3256Hash([]byte("old-key"))))

	send := func(key string) *httptest.ResponseRecorder {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="file"; filename="a.png"`},
			"Content-Type":        {"image/png"},
		})
		require.NoError(t, err)
		require.NoError(t, png.Encode(part, square(10, 10)))
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/remove-bg-simple", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, send("").Code)
	assert.Equal(t, http.StatusUnauthorized, send("wrong-key").Code)

	w := send("old-key")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, detail(t, w), "revoked")

	assert.Equal(t, http.StatusOK, send("good-key").Code)

	// Health stays public.
	assert.Equal(t, http.StatusOK, get(h, "/api/health").Code)
}
