// MODUL: scheduler
// ZWECK: Beliebigen Faktor in 2x-Modelldurchlaeufe plus abschliessendes Lanczos-Resize zerlegen
// INPUT: Quellbild, primaeres Modell, optionales Alpha-Modell, Config
// OUTPUT: Bild in Zielgroesse (round(w*ratio), round(h*ratio)) mit Alpha falls vorhanden
// NEBENEFFEKTE: keine ausser Invoker-Aufrufen
// ABHAENGIGKEITEN: imageproc (SplitAlpha, Resize, PutAlpha), Invoker
// HINWEISE: Das Alpha-Modell restauriert ab dem zweiten Durchlauf die FARBE;
//           die Alpha-Ebene restauriert immer das primaere Modell.

package upscale

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/reconstruct"
)

// Invoker wendet ein Modell auf ein Bild an, optional unter TTA.
// Die Ausgabe ist InnerScale-fach groesser als die Eingabe.
type Invoker interface {
	Restore(ctx context.Context, img image.Image, m model.Model, p reconstruct.Params) (image.Image, error)
}

// Stats beschreibt was eine Stage getan hat.
type Stats struct {
	Stage   Stage
	Passes  int         // Modelldurchlaeufe auf der Farbe
	Resized bool        // abschliessendes Resize der Farbe
	Size    image.Point // Ergebnisgroesse
}

// Observer bekommt nach jeder Stage die Stats.
type Observer func(Stats)

// ============================================================================
// Faktor-Zerlegung
// ============================================================================

// Steps gibt die Anzahl der 2x-Durchlaeufe fuer ratio zurueck:
// ceil(log2(ratio)), nie negativ.
func Steps(ratio float64) int {
	if !(ratio > 1) {
		return 0
	}
	return max(int(math.Ceil(math.Log2(ratio))), 0)
}

// NeedsResize meldet ob nach den Durchlaeufen auf die Zielgroesse skaliert
// werden muss: log2(ratio) ist nicht ganzzahlig (6 Nachkommastellen) oder <= 0.
func NeedsResize(ratio float64) bool {
	l := math.Log2(ratio)
	frac := math.Round(math.Mod(l, 1)*1e6) / 1e6
	return frac != 0 || l <= 0
}

// TargetSize ist (round(w*ratio), round(h*ratio)).
func TargetSize(w, h int, ratio float64) image.Point {
	return image.Pt(int(math.Round(float64(w)*ratio)), int(math.Round(float64(h)*ratio)))
}

// ============================================================================
// Scheduler
// ============================================================================

// Scheduler fuehrt die Skalierung eines Bildes aus.
type Scheduler struct {
	inv      Invoker
	cfg      Config
	stage    Stage
	observer Observer
}

// NewScheduler erstellt einen Scheduler. cfg muss bereits per ForImage auf
// das Bild abgestimmt sein.
func NewScheduler(inv Invoker, cfg Config) *Scheduler {
	return &Scheduler{inv: inv, cfg: cfg, stage: StageScaling}
}

// Upscale skaliert src um cfg.ScaleRatio. alphaModel darf nil sein.
func (s *Scheduler) Upscale(ctx context.Context, src image.Image, primary, alphaModel model.Model) (image.Image, error) {
	ratio := s.cfg.ScaleRatio
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return nil, fmt.Errorf("%w: scale ratio %v", ErrInvalidConfig, ratio)
	}

	b := src.Bounds()
	target := TargetSize(b.Dx(), b.Dy(), ratio)
	if target.X < 1 || target.Y < 1 {
		return nil, fmt.Errorf("%w: scale ratio %v shrinks %dx%d to %dx%d", ErrInvalidConfig, ratio, b.Dx(), b.Dy(), target.X, target.Y)
	}

	color, alpha := imageproc.SplitAlpha(src, primary)

	var dst image.Image = color
	steps := Steps(ratio)
	for i := range steps {
		m := primary
		if i > 0 && alphaModel != nil {
			m = alphaModel
		}
		slog.Debug("2.0x upscaling", "pass", i+1, "of", steps, "inner_scale", m.InnerScale(), "alpha_model", m != primary)

		if m.InnerScale() == 1 {
			dst = imageproc.NearestNeighbor(dst, 2)
			alpha = imageproc.NearestNeighborGray(alpha, 2)
		}

		var err error
		dst, err = s.inv.Restore(ctx, dst, m, s.cfg.Params())
		if err != nil {
			return nil, fmt.Errorf("pass %d: %w", i+1, err)
		}

		if alpha != nil {
			a, err := s.inv.Restore(ctx, alpha, primary, s.cfg.alphaParams())
			if err != nil {
				return nil, fmt.Errorf("pass %d alpha: %w", i+1, err)
			}
			alpha = imageproc.ToGray(a)
		}
	}

	resized := false
	if NeedsResize(ratio) {
		if dst.Bounds().Size() != target {
			slog.Debug("resizing", "from", dst.Bounds().Size(), "to", target)
			resized = true
		}
		var err error
		if dst, err = imageproc.Resize(dst, target.X, target.Y); err != nil {
			return nil, err
		}
	}

	if alpha != nil && alpha.Bounds().Size() != target {
		var err error
		if alpha, err = imageproc.ResizeGray(alpha, target.X, target.Y); err != nil {
			return nil, err
		}
	}

	out, err := imageproc.Image{Color: dst, Alpha: alpha}.Compose()
	if err != nil {
		return nil, err
	}

	if s.observer != nil {
		s.observer(Stats{Stage: s.stage, Passes: steps, Resized: resized, Size: out.Bounds().Size()})
	}
	return out, nil
}
