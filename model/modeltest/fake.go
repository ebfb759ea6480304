// Package modeltest stellt ein deterministisches Modell fuer Tests bereit.
//
// Fake verhaelt sich geometrisch wie ein echtes Netz (Ausgabe
// H*InnerScale-2*Offset), rechnet aber nur Nearest-Neighbor, damit die
// Pixelwerte in Tests vorhersagbar bleiben.
package modeltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

// Fake implementiert model.Model.
type Fake struct {
	Name string
	Err  error

	inner, offset, channels int

	mu      sync.Mutex
	calls   int
	batches []int
	closed  bool
}

// New erstellt ein Fake-Modell mit der gegebenen Geometrie.
func New(inner, offset, channels int) *Fake {
	return &Fake{inner: inner, offset: offset, channels: channels}
}

// ForArch erstellt ein Fake-Modell mit der Geometrie einer Architektur.
func ForArch(a model.Arch, c model.Color) *Fake {
	return New(a.InnerScale, a.Offset, c.Channels())
}

func (f *Fake) InnerScale() int { return f.inner }
func (f *Fake) Offset() int     { return f.offset }
func (f *Fake) Channels() int   { return f.channels }

func (f *Fake) Forward(ctx context.Context, x *ml.Tensor) (*ml.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}
	if x.C != f.channels {
		return nil, fmt.Errorf("modeltest: got %d channels, want %d", x.C, f.channels)
	}

	oh, ow := x.H*f.inner-2*f.offset, x.W*f.inner-2*f.offset
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("modeltest: input %dx%d too small for offset %d", x.W, x.H, f.offset)
	}

	f.mu.Lock()
	f.calls++
	f.batches = append(f.batches, x.N)
	f.mu.Unlock()

	out := ml.NewTensor(x.N, x.C, oh, ow)
	for n := range x.N {
		for c := range x.C {
			src, dst := x.Plane(n, c), out.Plane(n, c)
			for y := range oh {
				sy := (y + f.offset) / f.inner
				for xx := range ow {
					sx := (xx + f.offset) / f.inner
					dst[y*ow+xx] = src[sy*x.W+sx]
				}
			}
		}
	}
	return out, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls gibt die Anzahl der Forward-Aufrufe zurueck.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Batches gibt die Batch-Groessen aller Forward-Aufrufe zurueck.
func (f *Fake) Batches() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.batches...)
}

// Closed meldet ob Close aufgerufen wurde.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Loader ist ein model.Loader, der fuer jedes Artefakt ein Fake mit der
// Geometrie aus opts erstellt. Der Name ist der Modell-Key.
func Loader(ctx context.Context, data []byte, opts model.LoadOptions) (model.Model, error) {
	f := ForArch(opts.Arch, opts.Color)
	f.Name = opts.Key.String()
	return f, nil
}
