package cmd

import (
	"bytes"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/waifu2x-go/api"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

func TestModelRows(t *testing.T) {
	fsys := fstest.MapFS{
		"upconv7/anime_style_scale_rgb.onnx":      {Data: make([]byte, 1500)},
		"upconv7/anime_style_noise2_scale_y.onnx": {Data: make([]byte, 2_500_000)},
		"vgg7/anime_style_noise0_rgb.onnx":        {Data: []byte("x")},
		"vgg7/readme.txt":                         {Data: []byte("x")},
		"upresnet10/photo_style_unknown_rgb.onnx": {Data: []byte("x")},
	}

	entries, err := model.Catalog(fsys, model.DefaultExtension)
	require.NoError(t, err)

	models := modelInfos(entries)
	require.Len(t, models, 3)

	rows := modelRows(models, "")
	want := [][]string{
		{"vgg7/rgb/noise0", "VGG7", "rgb", "noise0", "1 B"},
		{"upconv7/y/noise2_scale", "UpConv7", "y", "noise2_scale", "2.5 MB"},
		{"upconv7/rgb/scale", "UpConv7", "rgb", "scale", "1.5 KB"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("modelRows mismatch (-want +got):\n%s", diff)
	}

	filtered := modelRows(models, "UPCONV7/RGB")
	assert.Equal(t, [][]string{{"upconv7/rgb/scale", "UpConv7", "rgb", "scale", "1.5 KB"}}, filtered)
}

func TestDeviceRows(t *testing.T) {
	rows := deviceRows([]ml.DeviceInfo{
		{Backend: ml.BackendCPU, ID: -1, Name: "CPU"},
		{Backend: ml.BackendCUDA, ID: 0, Name: "RTX", TotalMemory: 8 << 30, FreeMemory: 6 << 30},
	})

	want := [][]string{
		{"-1", "cpu", "CPU", "-", "-"},
		{"0", "cuda", "RTX", "8.0 GiB", "6.0 GiB"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("deviceRows mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	renderTable(&buf, []string{"NAME", "SIZE"}, [][]string{{"upconv7/rgb/scale", "1.5 KB"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Contains(t, lines[1], "upconv7/rgb/scale")
}

func TestModelInfosEmpty(t *testing.T) {
	assert.Equal(t, []api.ModelInfo{}, modelInfos(nil))
}
