// MODUL: config
// ZWECK: Unveraenderliche Laufparameter fuer Skalierung und Entrauschen
// INPUT: Functional Options
// OUTPUT: validierte Config
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: model (Method), reconstruct (Params)
// HINWEISE: Width/Height ueberschreiben ScaleRatio pro Bild (Height gewinnt)

package upscale

import (
	"fmt"
	"math"

	"github.com/7blacky7/waifu2x-go/model"
	"github.com/7blacky7/waifu2x-go/reconstruct"
)

// ============================================================================
// Config
// ============================================================================

// Config enthaelt die Parameter eines Laufs. Nach NewConfig nur noch lesen.
type Config struct {
	ScaleRatio float64
	NoiseLevel int
	Method     model.Method
	TTA        bool
	TTALevel   int
	BlockSize  int
	BatchSize  int

	// Width und Height (> 0) setzen die Zielgroesse pro Bild
	Width  int
	Height int
}

// Option ist eine funktionale Option fuer Config.
type Option func(*Config)

// DefaultConfig gibt die Standardwerte zurueck.
func DefaultConfig() Config {
	p := reconstruct.DefaultParams()
	return Config{
		ScaleRatio: 2.0,
		NoiseLevel: 1,
		Method:     model.MethodScale,
		TTALevel:   p.TTALevel,
		BlockSize:  p.BlockSize,
		BatchSize:  p.BatchSize,
	}
}

// NewConfig wendet die Optionen auf DefaultConfig an und validiert.
func NewConfig(opts ...Option) (Config, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ============================================================================
// Functional Options
// ============================================================================

// WithScaleRatio setzt den Vergroesserungsfaktor.
func WithScaleRatio(r float64) Option {
	return func(c *Config) {
		c.ScaleRatio = r
	}
}

// WithNoiseLevel setzt das Rauschniveau (0-3).
func WithNoiseLevel(n int) Option {
	return func(c *Config) {
		c.NoiseLevel = n
	}
}

// WithMethod setzt die Methode.
func WithMethod(m model.Method) Option {
	return func(c *Config) {
		c.Method = m
	}
}

// WithTTA aktiviert Test-Time-Augmentation mit dem Level (2, 4, 8).
func WithTTA(level int) Option {
	return func(c *Config) {
		c.TTA = true
		c.TTALevel = level
	}
}

// WithBlockSize setzt die Kachelgroesse.
func WithBlockSize(n int) Option {
	return func(c *Config) {
		c.BlockSize = n
	}
}

// WithBatchSize setzt die Anzahl Kacheln pro Forward-Aufruf.
func WithBatchSize(n int) Option {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithTargetSize setzt eine explizite Zielbreite und -hoehe (0 = nicht gesetzt).
func WithTargetSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// ============================================================================
// Validierung und Ableitungen
// ============================================================================

// Validate prueft die Config.
func (c Config) Validate() error {
	if !c.Method.Valid() {
		return fmt.Errorf("%w: method %q", ErrInvalidConfig, c.Method)
	}
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("%w: target size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.Width == 0 && c.Height == 0 && (c.ScaleRatio <= 0 || math.IsNaN(c.ScaleRatio) || math.IsInf(c.ScaleRatio, 0)) {
		return fmt.Errorf("%w: scale ratio %v", ErrInvalidConfig, c.ScaleRatio)
	}
	if c.Method.UsesNoise() && (c.NoiseLevel < 0 || c.NoiseLevel > model.MaxNoiseLevel) {
		return fmt.Errorf("%w: noise level %d", ErrInvalidConfig, c.NoiseLevel)
	}
	if err := c.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ForImage gibt eine Kopie mit dem Faktor fuer ein Bild der Groesse w x h
// zurueck. Width wird zuerst angewendet, Height ueberschreibt.
func (c Config) ForImage(w, h int) Config {
	if c.Width > 0 && w > 0 {
		c.ScaleRatio = float64(c.Width) / float64(w)
	}
	if c.Height > 0 && h > 0 {
		c.ScaleRatio = float64(c.Height) / float64(h)
	}
	return c
}

// Params gibt die Parameter fuer den Farbaufruf des Invokers zurueck.
func (c Config) Params() reconstruct.Params {
	return reconstruct.Params{
		BlockSize: c.BlockSize,
		BatchSize: c.BatchSize,
		TTA:       c.TTA,
		TTALevel:  c.TTALevel,
	}
}

// alphaParams sind die Parameter fuer Alpha-Ebenen beim Skalieren: nie TTA.
func (c Config) alphaParams() reconstruct.Params {
	p := c.Params()
	p.TTA = false
	return p
}
