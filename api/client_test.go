package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	base, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(base, ts.Client())
}

func TestClientVersion(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("unerwarteter Pfad %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(VersionResponse{Version: "1.2.3"})
	})

	v, err := c.Version(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v != "1.2.3" {
		t.Errorf("Version() = %q, erwartet 1.2.3", v)
	}
}

func TestClientStatusError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		code    string
		message string
	}{
		{
			name:    "json",
			body:    `{"code":"MODEL_NOT_FOUND","message":"missing artifact","request_id":"abc"}`,
			code:    "MODEL_NOT_FOUND",
			message: "missing artifact",
		},
		{
			name:    "kein json",
			body:    "kaputt",
			message: "kaputt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				io.WriteString(w, tt.body)
			})

			_, err := c.List(context.Background())

			var serr StatusError
			if !errors.As(err, &serr) {
				t.Fatalf("erwartet StatusError, bekommen %v", err)
			}
			if serr.StatusCode != http.StatusNotFound {
				t.Errorf("StatusCode = %d", serr.StatusCode)
			}
			if serr.Code != tt.code || serr.Message != tt.message {
				t.Errorf("= (%q, %q), erwartet (%q, %q)", serr.Code, serr.Message, tt.code, tt.message)
			}
		})
	}
}

func TestClientUpscale(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upscale" {
			t.Errorf("unerwartete Anfrage %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Error(err)
			return
		}
		if got := r.FormValue("method"); got != "noise_scale" {
			t.Errorf("method = %q", got)
		}
		if got := r.FormValue("noise_level"); got != "0" {
			t.Errorf("noise_level = %q, Rauschniveau 0 muss uebertragen werden", got)
		}
		if _, ok := r.MultipartForm.Value["width"]; ok {
			t.Error("width 0 darf nicht uebertragen werden")
		}

		f, fh, err := r.FormFile("image")
		if err != nil {
			t.Error(err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if fh.Filename != "in.png" || string(data) != "pixels" {
			t.Errorf("Datei = (%q, %q)", fh.Filename, data)
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set(StagesHeader, "denoising,scaling")
		w.Header().Set(RequestIDHeader, "id-1")
		io.WriteString(w, "png-bytes")
	})

	req := DefaultUpscaleRequest()
	req.Method = "noise_scale"
	req.NoiseLevel = 0

	out, err := c.Upscale(context.Background(), "in.png", strings.NewReader("pixels"), req)
	if err != nil {
		t.Fatal(err)
	}
	if string(out.Image) != "png-bytes" {
		t.Errorf("Upscale() = %q", out.Image)
	}
	if len(out.Stages) != 2 || out.Stages[0] != "denoising" || out.Stages[1] != "scaling" {
		t.Errorf("Stages = %v", out.Stages)
	}
	if out.RequestID != "id-1" {
		t.Errorf("RequestID = %q", out.RequestID)
	}
}

func TestUpscaleRequestFields(t *testing.T) {
	req := DefaultUpscaleRequest()
	req.Height = 300
	req.ScaleRatio = 1.5

	got := map[string]string{}
	for _, f := range req.Fields() {
		got[f[0]] = f[1]
	}

	want := map[string]string{
		"arch":        "UpResNet10",
		"color":       "rgb",
		"method":      "scale",
		"noise_level": "1",
		"scale_ratio": "1.5",
		"height":      "300",
		"tta":         "false",
		"tta_level":   "8",
		"block_size":  "128",
		"batch_size":  "16",
	}
	if len(got) != len(want) {
		t.Fatalf("Fields() = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, erwartet %q", k, got[k], v)
		}
	}
}
