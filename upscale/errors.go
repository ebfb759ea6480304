package upscale

import (
	"errors"

	"github.com/7blacky7/waifu2x-go/imageproc"
)

var (
	// ErrInvalidConfig wird von Config.Validate zurueckgegeben.
	ErrInvalidConfig = errors.New("upscale: invalid config")

	// ErrDimensionMismatch: Farbe und Alpha passen an einem
	// Zusammensetzungspunkt nicht zusammen. Das ist ein Planungsfehler und
	// wird nie durch Skalieren verdeckt.
	ErrDimensionMismatch = imageproc.ErrDimensionMismatch
)
