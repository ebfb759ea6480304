// MODUL: tile
// ZWECK: Bild in Kacheln zerlegen, Kacheln in Batches durch das Modell schicken, Ergebnis zusammensetzen
// INPUT: signal, model.Model, Params
// OUTPUT: signal mit InnerScale-facher Groesse
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/sync/errgroup (extern), ml (Tensor)
// HINWEISE: Kacheln werden um ceil(Offset/InnerScale) Pixel mit Randwiederholung
//           gepolstert. Alle Kacheln eines Bildes haben dieselbe Form, damit
//           sie in einen Batch passen; Kacheln am Rand lesen geklemmt.

package reconstruct

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/waifu2x-go/logutil"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

// geometry beschreibt die Kachelung eines Bildes fuer ein Modell.
type geometry struct {
	inner   int
	pad     int // Eingabe-Polster pro Seite
	crop    int // ueberschuessige Ausgabepixel pro Seite
	tw, th  int // Kachelgroesse ohne Polster
	outTile image.Point
}

func newGeometry(m model.Model, p Params, w, h int) geometry {
	inner, off := m.InnerScale(), m.Offset()
	pad := (off + inner - 1) / inner
	g := geometry{
		inner: inner,
		pad:   pad,
		crop:  pad*inner - off,
		tw:    min(p.BlockSize, w),
		th:    min(p.BlockSize, h),
	}
	g.outTile = image.Pt(g.tw*inner, g.th*inner)
	return g
}

// tiles gibt die linken oberen Ecken aller Kacheln zurueck.
func (g geometry) tiles(w, h int) []image.Point {
	var pts []image.Point
	for y := 0; y < h; y += g.th {
		for x := 0; x < w; x += g.tw {
			pts = append(pts, image.Pt(x, y))
		}
	}
	return pts
}

// tiled restauriert in ohne TTA.
func (e *Engine) tiled(ctx context.Context, in *signal, m model.Model, p Params) (*signal, error) {
	g := newGeometry(m, p, in.W, in.H)
	channels := len(in.Ch)
	if channels != m.Channels() {
		return nil, fmt.Errorf("%w: image has %d channels, model %d", ErrUnsupportedChannels, channels, m.Channels())
	}

	out := newSignal(channels, in.W*g.inner, in.H*g.inner)
	pts := g.tiles(in.W, in.H)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(e.device.Parallelism())

	for start := 0; start < len(pts); start += p.BatchSize {
		batch := pts[start:min(start+p.BatchSize, len(pts))]
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}

			x := ml.NewTensor(len(batch), channels, g.th+2*g.pad, g.tw+2*g.pad)
			for i, pt := range batch {
				extract(in, x.Item(i), pt.X-g.pad, pt.Y-g.pad)
			}

			logutil.Trace("forward", "batch", len(batch), "shape", x.Shape())
			y, err := m.Forward(ectx, x)
			if err != nil {
				return err
			}

			wantH, wantW := g.outTile.Y+2*g.crop, g.outTile.X+2*g.crop
			if y.N != x.N || y.C != channels || y.H != wantH || y.W != wantW {
				return fmt.Errorf("%w: got %v, want [%d %d %d %d]", ErrOutputShape, y.Shape(), x.N, channels, wantH, wantW)
			}

			for i, pt := range batch {
				place(out, y.Item(i), image.Pt(pt.X*g.inner, pt.Y*g.inner), g.outTile, g.crop)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// extract kopiert den Ausschnitt ab (x0, y0) in dst; Koordinaten ausserhalb
// des Bildes werden auf den Rand geklemmt.
func extract(src *signal, dst *ml.Tensor, x0, y0 int) {
	for c := range dst.C {
		plane := dst.Plane(0, c)
		for ty := range dst.H {
			sy := clamp(y0+ty, 0, src.H-1)
			row := src.Ch[c][sy*src.W : (sy+1)*src.W]
			for tx := range dst.W {
				plane[ty*dst.W+tx] = row[clamp(x0+tx, 0, src.W-1)]
			}
		}
	}
}

// place schreibt das Innere (ohne crop) einer Ausgabekachel nach dst an at.
// Anteile jenseits des Bildrandes werden verworfen.
func place(dst *signal, tile *ml.Tensor, at, size image.Point, crop int) {
	h := min(size.Y, dst.H-at.Y)
	w := min(size.X, dst.W-at.X)
	for c := range tile.C {
		plane := tile.Plane(0, c)
		for ry := range h {
			src := plane[(ry+crop)*tile.W+crop:]
			copy(dst.Ch[c][(at.Y+ry)*dst.W+at.X:(at.Y+ry)*dst.W+at.X+w], src[:w])
		}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
