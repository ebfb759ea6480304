package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/model/modeltest"
	"github.com/7blacky7/waifu2x-go/version"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// loadRecorder merkt sich alle geladenen Fakes.
type loadRecorder struct {
	mu    sync.Mutex
	fakes []*modeltest.Fake
}

func (l *loadRecorder) load(ctx context.Context, data []byte, opts model.LoadOptions) (model.Model, error) {
	m, err := modeltest.Loader(ctx, data, opts)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.fakes = append(l.fakes, m.(*modeltest.Fake))
	return m, nil
}

func (l *loadRecorder) loaded() []*modeltest.Fake {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*modeltest.Fake(nil), l.fakes...)
}

func testModels() fstest.MapFS {
	w := &fstest.MapFile{Data: []byte("weights")}
	return fstest.MapFS{
		"upconv7/anime_style_scale_rgb.onnx":  w,
		"upconv7/anime_style_noise1_rgb.onnx": w,
		"vgg7/anime_style_scale_rgb.onnx":     w,
	}
}

func testServer(t *testing.T, opts ...Option) (*Server, http.Handler, *loadRecorder) {
	t.Helper()

	rec := &loadRecorder{}
	reg := model.NewRegistry()
	reg.Register(model.DefaultExtension, rec.load)

	opts = append([]Option{
		WithModels(testModels()),
		WithRegistry(reg),
		WithParallel(2),
		WithMaxPixels(1 << 20),
		WithNoCache(false),
	}, opts...)

	s := NewServer(opts...)
	t.Cleanup(func() { s.Close() })

	h, err := s.GenerateRoutes()
	require.NoError(t, err)
	return s, h, rec
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{uint8(x * 10), uint8(y * 20), 100, 255})
		}
	}
	return img
}

func upscaleRequest(t *testing.T, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if data != nil {
		part, err := mw.CreateFormFile("image", "in.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upscale", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// ============================================================================
// Allgemeine Routen
// ============================================================================

func TestHealth(t *testing.T) {
	_, h, _ := testServer(t)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "waifu2x is running", w.Body.String())

	w = serve(h, httptest.NewRequest(http.MethodHead, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestVersionHandler(t *testing.T) {
	_, h, _ := testServer(t)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, version.Version, resp.Version)
	assert.Equal(t, "cpu", resp.Device)

	_, err := uuid.Parse(w.Header().Get(requestIDHeader))
	assert.NoError(t, err, "jede Antwort traegt eine Request-ID")
}

func TestRequestIDPassthrough(t *testing.T) {
	_, h, _ := testServer(t)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, id)
	assert.Equal(t, id, serve(h, req).Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/version", nil)
	req.Header.Set(requestIDHeader, "keine-uuid")
	assert.NotEqual(t, "keine-uuid", serve(h, req).Header().Get(requestIDHeader))
}

func TestListHandler(t *testing.T) {
	_, h, _ := testServer(t)

	w := serve(h, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var names []string
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, []string{"vgg7/rgb/scale", "upconv7/rgb/scale", "upconv7/rgb/noise1"}, names)
}

func TestAllowedHosts(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8812}
	_, h, _ := testServer(t, WithAddr(addr))

	tests := []struct {
		host string
		want int
	}{
		{"localhost:8812", http.StatusOK},
		{"127.0.0.1:8812", http.StatusOK},
		{"box.local", http.StatusOK},
		{"example.com", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Host = tt.host
			assert.Equal(t, tt.want, serve(h, req).Code)
		})
	}
}

// ============================================================================
// POST /api/upscale
// ============================================================================

func TestUpscaleHandler(t *testing.T) {
	s, h, rec := testServer(t)
	fields := map[string]string{"arch": "UpConv7", "scale_ratio": "2", "block_size": "8", "batch_size": "2"}

	for range 2 {
		w := serve(h, upscaleRequest(t, encodePNG(t, testImage(13, 9)), fields))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
		assert.Equal(t, "scaling", w.Header().Get(api.StagesHeader))

		out, err := png.Decode(w.Body)
		require.NoError(t, err)
		assert.Equal(t, image.Pt(26, 18), out.Bounds().Size())
	}

	loaded := rec.loaded()
	require.Len(t, loaded, 1, "zweite Anfrage muss das Set aus dem Cache nehmen")
	assert.Equal(t, "upconv7/rgb/scale", loaded[0].Name)
	assert.Equal(t, 1, s.sets.Len())
	assert.False(t, loaded[0].Closed())

	require.NoError(t, s.Close())
	assert.True(t, loaded[0].Closed())
}

func TestUpscaleHandlerNoCache(t *testing.T) {
	s, h, rec := testServer(t, WithNoCache(true))

	w := serve(h, upscaleRequest(t, encodePNG(t, testImage(13, 9)), map[string]string{"arch": "1", "block_size": "8"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	loaded := rec.loaded()
	require.Len(t, loaded, 1)
	assert.True(t, loaded[0].Closed(), "ohne Cache wird das Set nach der Anfrage freigegeben")
	assert.Equal(t, 0, s.sets.Len())
}

func TestUpscaleHandlerFallback(t *testing.T) {
	_, h, _ := testServer(t)

	w := serve(h, upscaleRequest(t, encodePNG(t, testImage(13, 9)), map[string]string{
		"arch":        "UpConv7",
		"method":      "noise_scale",
		"noise_level": "1",
		"scale_ratio": "1.5",
		"block_size":  "8",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "denoising,scaling", w.Header().Get(api.StagesHeader))

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(20, 14), out.Bounds().Size())
}

func TestUpscaleHandlerGray(t *testing.T) {
	_, h, _ := testServer(t)

	gray := image.NewGray(image.Rect(0, 0, 10, 7))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i * 3)
	}

	w := serve(h, upscaleRequest(t, encodePNG(t, gray), map[string]string{"arch": "UpConv7", "block_size": "8"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.IsType(t, &image.Gray{}, out, "Graustufen-Quelle ergibt Graustufen-Ausgabe")
	assert.Equal(t, image.Pt(20, 14), out.Bounds().Size())
}

func TestUpscaleHandlerTargetWidth(t *testing.T) {
	_, h, _ := testServer(t)

	w := serve(h, upscaleRequest(t, encodePNG(t, testImage(10, 6)), map[string]string{
		"arch":       "VGG7",
		"width":      "30",
		"block_size": "8",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out, err := png.Decode(w.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(30, 18), out.Bounds().Size())
}

func TestUpscaleHandlerErrors(t *testing.T) {
	valid := encodePNG(t, testImage(13, 9))

	tests := []struct {
		name   string
		opts   []Option
		data   []byte
		fields map[string]string
		status int
		code   string
	}{
		{
			name:   "unbekannte arch",
			data:   valid,
			fields: map[string]string{"arch": "SRCNN"},
			status: http.StatusBadRequest,
			code:   "UNKNOWN_ARCH",
		},
		{
			name:   "unbekannte farbe",
			data:   valid,
			fields: map[string]string{"arch": "VGG7", "color": "cmyk"},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name:   "formularfeld",
			data:   valid,
			fields: map[string]string{"scale_ratio": "doppelt"},
			status: http.StatusBadRequest,
			code:   "INVALID_REQUEST",
		},
		{
			name:   "tta level",
			data:   valid,
			fields: map[string]string{"arch": "VGG7", "tta": "true", "tta_level": "3"},
			status: http.StatusBadRequest,
			code:   "INVALID_CONFIG",
		},
		{
			name:   "bild fehlt",
			fields: map[string]string{"arch": "VGG7"},
			status: http.StatusBadRequest,
			code:   "MISSING_IMAGE",
		},
		{
			name:   "kein bild",
			data:   []byte("kein bild"),
			fields: map[string]string{"arch": "VGG7"},
			status: http.StatusBadRequest,
			code:   "INVALID_IMAGE",
		},
		{
			name:   "modell fehlt",
			data:   valid,
			fields: map[string]string{"arch": "VGG7", "method": "noise"},
			status: http.StatusNotFound,
			code:   "MODEL_NOT_FOUND",
		},
		{
			name:   "quelle zu gross",
			opts:   []Option{WithMaxPixels(100)},
			data:   valid,
			fields: map[string]string{"arch": "VGG7"},
			status: http.StatusRequestEntityTooLarge,
			code:   "IMAGE_TOO_LARGE",
		},
		{
			name:   "ziel zu gross",
			opts:   []Option{WithMaxPixels(200)},
			data:   valid,
			fields: map[string]string{"arch": "VGG7", "scale_ratio": "8"},
			status: http.StatusRequestEntityTooLarge,
			code:   "IMAGE_TOO_LARGE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h, rec := testServer(t, tt.opts...)

			w := serve(h, upscaleRequest(t, tt.data, tt.fields))
			require.Equal(t, tt.status, w.Code, w.Body.String())

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.Equal(t, w.Header().Get(requestIDHeader), resp.RequestID)
			assert.Empty(t, rec.loaded(), "bei Fehlern vor der Aufloesung wird nichts geladen")
		})
	}
}

func TestLookupError(t *testing.T) {
	status, code := lookupError(&model.ArtifactError{Role: model.RoleScale, Path: "x.onnx", Err: model.ErrMissingArtifact})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "MODEL_NOT_FOUND", code)

	status, code = lookupError(context.Canceled)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "CANCELLED", code)

	status, code = lookupError(assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "INTERNAL_ERROR", code)
}
