// MODUL: engine
// ZWECK: Ein Modell auf ein ganzes Bild anwenden (Kacheln, Batches, TTA, Y-Modus)
// INPUT: Farbsignal (*image.RGBA) oder Ebene (*image.Gray), model.Model, Params
// OUTPUT: restauriertes Bild, InnerScale-fach vergroessert
// NEBENEFFEKTE: keine ausser Modell-Aufrufen
// ABHAENGIGKEITEN: tile.go, tta.go, signal.go, ml (Device), imageproc
// HINWEISE: Das Geraet wird beim Erzeugen uebergeben, es gibt keinen globalen Zustand

package reconstruct

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

// ============================================================================
// Fehler-Definitionen
// ============================================================================

var (
	ErrInvalidParams       = errors.New("reconstruct: invalid parameters")
	ErrUnsupportedChannels = errors.New("reconstruct: unsupported channel count")
	ErrOutputShape         = errors.New("reconstruct: unexpected model output shape")
)

// ============================================================================
// Params
// ============================================================================

// Params steuert einen einzelnen Restore-Aufruf.
type Params struct {
	BlockSize int  // Kantenlaenge einer Kachel in Eingabepixeln
	BatchSize int  // Kacheln pro Forward-Aufruf
	TTA       bool // Test-Time-Augmentation
	TTALevel  int  // 2, 4 oder 8 Transformationen
}

// DefaultParams gibt die Standardwerte zurueck.
func DefaultParams() Params {
	return Params{
		BlockSize: 128,
		BatchSize: 16,
		TTALevel:  8,
	}
}

// Validate prueft die Parameter.
func (p Params) Validate() error {
	if p.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d", ErrInvalidParams, p.BlockSize)
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidParams, p.BatchSize)
	}
	if p.TTA && !validTTALevel(p.TTALevel) {
		return fmt.Errorf("%w: tta level %d", ErrInvalidParams, p.TTALevel)
	}
	return nil
}

// ============================================================================
// Engine
// ============================================================================

// Engine fuehrt Modelle auf dem beim Start gewaehlten Geraet aus.
type Engine struct {
	device ml.Device
}

// NewEngine erstellt eine Engine fuer das Geraet.
func NewEngine(device ml.Device) *Engine {
	return &Engine{device: device}
}

// Device gibt das Geraet der Engine zurueck.
func (e *Engine) Device() ml.Device {
	return e.device
}

// Restore wendet m auf img an. Eine *image.Gray Eingabe liefert *image.Gray,
// alles andere wird als opakes RGB behandelt und liefert *image.RGBA.
// Ein Modell mit einem Kanal auf RGB-Eingabe restauriert nur die Luma.
func (e *Engine) Restore(ctx context.Context, img image.Image, m model.Model, p Params) (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if ch := m.Channels(); ch != 1 && ch != 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedChannels, ch)
	}
	if m.InnerScale() < 1 {
		return nil, fmt.Errorf("%w: inner scale %d", ErrInvalidParams, m.InnerScale())
	}

	start := time.Now()
	defer func() {
		slog.Debug("restore", "size", img.Bounds().Size(), "inner_scale", m.InnerScale(), "tta", p.TTA, "elapsed", time.Since(start))
	}()

	if gray, ok := img.(*image.Gray); ok {
		return e.restoreGray(ctx, imageproc.ToGray(gray), m, p)
	}

	rgba := imageproc.ToRGBA(img)
	if m.Channels() == 1 {
		return e.restoreLuma(ctx, rgba, m, p)
	}

	out, err := e.run(ctx, fromRGBA(rgba), m, p)
	if err != nil {
		return nil, err
	}
	return out.toRGBA(), nil
}

// restoreGray behandelt eine Ebene (z.B. Alpha) als Graustufenbild.
// Bei RGB-Modellen wird die Ebene auf drei Kanaele verteilt und das
// Ergebnis ueber die Luma-Gewichte zurueckgefuehrt.
func (e *Engine) restoreGray(ctx context.Context, img *image.Gray, m model.Model, p Params) (image.Image, error) {
	in := fromGray(img)
	if m.Channels() == 1 {
		out, err := e.run(ctx, in, m, p)
		if err != nil {
			return nil, err
		}
		return out.toGray(), nil
	}

	out, err := e.run(ctx, in.expand(3), m, p)
	if err != nil {
		return nil, err
	}
	return imageproc.ToGray(out.toRGBA()), nil
}

// restoreLuma restauriert nur Y; Cb und Cr werden bikubisch vergroessert.
func (e *Engine) restoreLuma(ctx context.Context, img *image.RGBA, m model.Model, p Params) (image.Image, error) {
	y, cb, cr := splitYCbCr(img)

	out, err := e.run(ctx, y, m, p)
	if err != nil {
		return nil, err
	}

	cbUp, err := imageproc.ResizeBicubic(cb, out.W, out.H)
	if err != nil {
		return nil, err
	}
	crUp, err := imageproc.ResizeBicubic(cr, out.W, out.H)
	if err != nil {
		return nil, err
	}
	return mergeYCbCr(out, imageproc.ToGray(cbUp), imageproc.ToGray(crUp)), nil
}

// run waehlt zwischen einfachem Durchlauf und TTA-Mittelung.
func (e *Engine) run(ctx context.Context, in *signal, m model.Model, p Params) (*signal, error) {
	if p.TTA {
		return e.tta(ctx, in, m, p)
	}
	return e.tiled(ctx, in, m, p)
}
