// MODUL: pipeline
// ZWECK: Methodenauswahl (Denoising, Scaling, DenoiseScaling) und Ablauf pro Bild
// INPUT: model.Set, Config, Invoker, Quellbild
// OUTPUT: restauriertes Bild, Alpha genau dann wenn die Quelle Alpha hatte
// NEBENEFFEKTE: keine (kein Datei- oder Netzwerkzugriff)
// ABHAENGIGKEITEN: stage.go, scheduler.go, imageproc
// HINWEISE: Die Stages werden in NewPipeline einmal bestimmt und nie neu abgeleitet

package upscale

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/7blacky7/waifu2x-go/imageproc"
	"github.com/7blacky7/waifu2x-go/model"
)

// Pipeline verarbeitet Bilder nacheinander mit einem festen Set und einer
// festen Config. Eine Pipeline ist nicht fuer parallele Process-Aufrufe
// gedacht; der Server erstellt pro Anfrage eine eigene.
type Pipeline struct {
	set      model.Set
	cfg      Config
	inv      Invoker
	stages   []Stage
	observer Observer
}

// PipelineOption ist eine funktionale Option fuer die Pipeline.
type PipelineOption func(*Pipeline)

// WithObserver setzt einen Observer fuer die Stats jeder Stage.
func WithObserver(o Observer) PipelineOption {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// NewPipeline validiert cfg und bestimmt die Stages aus set.
func NewPipeline(set model.Set, cfg Config, inv Invoker, opts ...PipelineOption) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stages, err := PlanStages(set)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{set: set, cfg: cfg, inv: inv, stages: stages}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Stages gibt die geplanten Stages zurueck.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Config gibt die Config der Pipeline zurueck.
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Process fuehrt alle Stages auf src aus.
func (p *Pipeline) Process(ctx context.Context, src image.Image) (image.Image, error) {
	start := time.Now()
	b := src.Bounds()
	cfg := p.cfg.ForImage(b.Dx(), b.Dy())

	dst := src
	for _, stage := range p.stages {
		var err error
		switch stage {
		case StageDenoising:
			m, _ := p.set.Get(model.RoleNoise)
			dst, err = p.denoise(ctx, cfg, dst, m)
		case StageScaling:
			m, _ := p.set.Get(model.RoleScale)
			dst, err = p.scheduler(cfg, stage).Upscale(ctx, dst, m, nil)
		case StageDenoiseScaling:
			m, _ := p.set.Get(model.RoleNoiseScale)
			alpha, _ := p.set.Get(model.RoleAlpha)
			dst, err = p.scheduler(cfg, stage).Upscale(ctx, dst, m, alpha)
		default:
			err = fmt.Errorf("upscale: unknown stage %v", stage)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage, err)
		}
	}

	slog.Info("image processed", "size", b.Size(), "output", dst.Bounds().Size(), "ratio", cfg.ScaleRatio, "stages", p.stages, "elapsed", time.Since(start))
	return dst, nil
}

func (p *Pipeline) scheduler(cfg Config, stage Stage) *Scheduler {
	s := NewScheduler(p.inv, cfg)
	s.stage = stage
	s.observer = p.observer
	return s
}

// denoise wendet das Rauschmodell einmal auf Farbe und Alpha an. Vergroessert
// das Modell (InnerScale != 1), wird auf die Quellgroesse zurueckskaliert.
func (p *Pipeline) denoise(ctx context.Context, cfg Config, src image.Image, m model.Model) (image.Image, error) {
	slog.Debug("denoising", "level", cfg.NoiseLevel, "inner_scale", m.InnerScale())

	color, alpha := imageproc.SplitAlpha(src, m)
	dst, err := p.inv.Restore(ctx, color, m, cfg.Params())
	if err != nil {
		return nil, err
	}

	var restored *image.Gray
	if alpha != nil {
		a, err := p.inv.Restore(ctx, alpha, m, cfg.alphaParams())
		if err != nil {
			return nil, fmt.Errorf("alpha: %w", err)
		}
		restored = imageproc.ToGray(a)
	}

	size := src.Bounds().Size()
	resized := false
	if m.InnerScale() != 1 {
		resized = dst.Bounds().Size() != size
		if dst, err = imageproc.Resize(dst, size.X, size.Y); err != nil {
			return nil, err
		}
		if restored != nil {
			if restored, err = imageproc.ResizeGray(restored, size.X, size.Y); err != nil {
				return nil, err
			}
		}
	}

	out, err := imageproc.Image{Color: dst, Alpha: restored}.Compose()
	if err != nil {
		return nil, err
	}

	if p.observer != nil {
		p.observer(Stats{Stage: StageDenoising, Passes: 1, Resized: resized, Size: out.Bounds().Size()})
	}
	return out, nil
}
