// MODUL: tta
// ZWECK: Test-Time-Augmentation ueber die Symmetriegruppe des Quadrats
// INPUT: signal, model.Model, Params mit TTALevel 2, 4 oder 8
// OUTPUT: pixelweiser Mittelwert der zuruecktransformierten Ergebnisse
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: gonum.org/v1/gonum/floats (extern), tile.go
// HINWEISE: Level 2 = {id, flipX}, Level 4 = {id, flipX, flipY, rot180}, Level 8 = alle

package reconstruct

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/7blacky7/waifu2x-go/model"
)

// transform ist ein Element der Diedergruppe D4: optional transponieren,
// danach optional horizontal und vertikal spiegeln.
type transform struct {
	transpose bool
	flipX     bool
	flipY     bool
}

// dihedral ist so geordnet, dass die ersten 2, 4 und 8 Elemente die Level bilden.
var dihedral = []transform{
	{},
	{flipX: true},
	{flipY: true},
	{flipX: true, flipY: true},
	{transpose: true},
	{transpose: true, flipX: true},
	{transpose: true, flipY: true},
	{transpose: true, flipX: true, flipY: true},
}

func validTTALevel(level int) bool {
	return level == 2 || level == 4 || level == 8
}

func transforms(level int) []transform {
	return dihedral[:level]
}

func (t transform) String() string {
	return fmt.Sprintf("t=%v fx=%v fy=%v", t.transpose, t.flipX, t.flipY)
}

// mapCoord bildet (x, y) auf die Koordinate im transformierten Bild der
// Groesse w x h ab.
func (t transform) mapCoord(x, y, w, h int) (int, int) {
	if t.transpose {
		x, y = y, x
	}
	if t.flipX {
		x = w - 1 - x
	}
	if t.flipY {
		y = h - 1 - y
	}
	return x, y
}

func (t transform) apply(s *signal) *signal {
	w, h := s.W, s.H
	if t.transpose {
		w, h = h, w
	}

	dst := newSignal(len(s.Ch), w, h)
	for c := range s.Ch {
		for y := range s.H {
			for x := range s.W {
				dx, dy := t.mapCoord(x, y, w, h)
				dst.Ch[c][dy*w+dx] = s.Ch[c][y*s.W+x]
			}
		}
	}
	return dst
}

// invertInto liest das transformierte Ergebnis r zurueck in die
// Orientierung des Originals (w x h) und schreibt nach dst.
func (t transform) invertInto(dst []float64, r []float32, w, h, rw, rh int) {
	for y := range h {
		for x := range w {
			sx, sy := t.mapCoord(x, y, rw, rh)
			dst[y*w+x] = float64(r[sy*rw+sx])
		}
	}
}

// tta restauriert in unter jeder Transformation des Levels und mittelt.
func (e *Engine) tta(ctx context.Context, in *signal, m model.Model, p Params) (*signal, error) {
	ts := transforms(p.TTALevel)
	w, h := in.W*m.InnerScale(), in.H*m.InnerScale()

	acc := make([][]float64, len(in.Ch))
	for c := range acc {
		acc[c] = make([]float64, w*h)
	}
	scratch := make([]float64, w*h)

	for _, t := range ts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r, err := e.tiled(ctx, t.apply(in), m, p)
		if err != nil {
			return nil, fmt.Errorf("tta %s: %w", t, err)
		}
		for c := range acc {
			t.invertInto(scratch, r.Ch[c], w, h, r.W, r.H)
			floats.Add(acc[c], scratch)
		}
	}

	out := newSignal(len(in.Ch), w, h)
	for c := range acc {
		floats.Scale(1/float64(len(ts)), acc[c])
		for i, v := range acc[c] {
			out.Ch[c][i] = float32(v)
		}
	}
	return out, nil
}
