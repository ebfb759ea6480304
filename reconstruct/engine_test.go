package reconstruct

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model/modeltest"
)

// pattern erzeugt ein RGB-Bild ohne Symmetrien, damit falsch orientierte
// Kacheln oder Transformationen auffallen.
func pattern(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 7), uint8(y * 11), uint8((x*y + 3) % 256), 255})
		}
	}
	return img
}

func grayPattern(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 13)
	}
	return img
}

func TestRestoreGeometry(t *testing.T) {
	tests := []struct {
		name          string
		inner, offset int
		block, batch  int
	}{
		{"vgg7", 1, 7, 8, 3},
		{"upconv7", 2, 14, 8, 4},
		{"resnet10", 1, 9, 64, 16},
		{"upresnet10", 2, 26, 5, 2},
		{"mit crop", 2, 3, 4, 1},
	}

	src := pattern(19, 13)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := modeltest.New(tt.inner, tt.offset, 3)
			e := NewEngine(ml.CPU())

			out, err := e.Restore(context.Background(), src, m, Params{BlockSize: tt.block, BatchSize: tt.batch})
			require.NoError(t, err)

			want := imageproc.NearestNeighbor(src, tt.inner).(*image.RGBA)
			got, ok := out.(*image.RGBA)
			require.True(t, ok, "erwartet *image.RGBA, bekommen %T", out)
			assert.Equal(t, want.Bounds(), got.Bounds())
			if !bytes.Equal(want.Pix, got.Pix) {
				t.Error("Kacheln falsch zusammengesetzt")
			}
		})
	}
}

func TestRestoreBatching(t *testing.T) {
	m := modeltest.New(1, 7, 3)
	e := NewEngine(ml.CPU())

	// 20x10 mit Block 8: 3x2 Kacheln, Batch 4 -> Batches 4 und 2
	_, err := e.Restore(context.Background(), pattern(20, 10), m, Params{BlockSize: 8, BatchSize: 4})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{4, 2}, m.Batches())
}

func TestRestoreGrayPlane(t *testing.T) {
	src := grayPattern(9, 7)

	t.Run("rgb modell", func(t *testing.T) {
		out, err := NewEngine(ml.CPU()).Restore(context.Background(), src, modeltest.New(2, 14, 3), DefaultParams())
		require.NoError(t, err)

		got, ok := out.(*image.Gray)
		require.True(t, ok, "erwartet *image.Gray, bekommen %T", out)
		want := imageproc.NearestNeighborGray(src, 2)
		assert.Equal(t, want.Pix, got.Pix)
	})

	t.Run("y modell", func(t *testing.T) {
		out, err := NewEngine(ml.CPU()).Restore(context.Background(), src, modeltest.New(1, 7, 1), DefaultParams())
		require.NoError(t, err)
		assert.Equal(t, src.Pix, out.(*image.Gray).Pix)
	})
}

func TestRestoreLuma(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 6, 4))
	for i := 0; i < len(src.Pix); i += 4 {
		copy(src.Pix[i:], []uint8{200, 120, 40, 255})
	}

	out, err := NewEngine(ml.CPU()).Restore(context.Background(), src, modeltest.New(2, 14, 1), DefaultParams())
	require.NoError(t, err)

	got := out.(*image.RGBA)
	assert.Equal(t, image.Pt(12, 8), got.Bounds().Size())

	// Einfarbig bleibt einfarbig, bis auf Rundung der YCbCr-Konvertierung.
	yy, cb, cr := color.RGBToYCbCr(200, 120, 40)
	r, g, b := color.YCbCrToRGB(yy, cb, cr)
	assert.Equal(t, color.RGBA{r, g, b, 255}, got.RGBAAt(5, 3))
}

func TestRestoreTTA(t *testing.T) {
	src := pattern(11, 7)
	plain, err := NewEngine(ml.CPU()).Restore(context.Background(), src, modeltest.New(2, 14, 3), DefaultParams())
	require.NoError(t, err)

	for _, level := range []int{2, 4, 8} {
		m := modeltest.New(2, 14, 3)
		p := DefaultParams()
		p.TTA, p.TTALevel = true, level

		out, err := NewEngine(ml.CPU()).Restore(context.Background(), src, m, p)
		require.NoError(t, err)

		// Nearest-Neighbor ist aequivariant: Mittelung aendert nichts.
		assert.Equal(t, plain.(*image.RGBA).Pix, out.(*image.RGBA).Pix, "level %d", level)
		assert.Equal(t, level, m.Calls(), "ein Forward pro Transformation bei einer Kachel")
	}
}

func TestTransformsRoundTrip(t *testing.T) {
	s := fromRGBA(pattern(5, 3))
	for _, tr := range dihedral {
		r := tr.apply(s)
		back := make([]float64, s.W*s.H)
		tr.invertInto(back, r.Ch[1], s.W, s.H, r.W, r.H)
		for i, v := range back {
			if float32(v) != s.Ch[1][i] {
				t.Fatalf("%s: Pixel %d = %v, erwartet %v", tr, i, v, s.Ch[1][i])
			}
		}
	}
}

func TestTransformsDistinct(t *testing.T) {
	s := fromRGBA(pattern(4, 4))
	seen := map[string]transform{}
	for _, tr := range dihedral {
		key := string(tr.apply(s).toRGBA().Pix)
		if prev, ok := seen[key]; ok {
			t.Errorf("%s und %s liefern dasselbe Bild", tr, prev)
		}
		seen[key] = tr
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Params
		ok   bool
	}{
		{"default", DefaultParams(), true},
		{"block", Params{BlockSize: 0, BatchSize: 1}, false},
		{"batch", Params{BlockSize: 8, BatchSize: 0}, false},
		{"tta level", Params{BlockSize: 8, BatchSize: 1, TTA: true, TTALevel: 3}, false},
		{"tta level ohne tta", Params{BlockSize: 8, BatchSize: 1, TTALevel: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok != (err == nil) {
				t.Errorf("Validate() = %v", err)
			}
			if err != nil && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("erwartet ErrInvalidParams, bekommen %v", err)
			}
		})
	}
}

func TestRestoreModelError(t *testing.T) {
	m := modeltest.New(1, 7, 3)
	m.Err = errors.New("kaputt")

	_, err := NewEngine(ml.CPU()).Restore(context.Background(), pattern(4, 4), m, DefaultParams())
	assert.ErrorIs(t, err, m.Err)
}

func TestRestoreCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(ml.CPU()).Restore(ctx, pattern(4, 4), modeltest.New(1, 7, 3), DefaultParams())
	assert.ErrorIs(t, err, context.Canceled)
}

type badShape struct{ *modeltest.Fake }

func (b badShape) Forward(ctx context.Context, x *ml.Tensor) (*ml.Tensor, error) {
	return ml.NewTensor(x.N, x.C, 1, 1), nil
}

func TestRestoreOutputShape(t *testing.T) {
	_, err := NewEngine(ml.CPU()).Restore(context.Background(), pattern(4, 4), badShape{modeltest.New(1, 7, 3)}, DefaultParams())
	assert.ErrorIs(t, err, ErrOutputShape)
}
