// cache.go - Zwischenspeicher fuer geladene Modell-Sets
// Ein Set wird pro model.Request einmal geladen und von allen Anfragen
// geteilt. Ohne Cache laedt jede Anfrage ihr Set und gibt es danach frei.
package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/7blacky7/waifu2x-go/model"
)

type resolveFunc func(ctx context.Context, req model.Request) (model.Set, error)

type setCache struct {
	enabled bool

	mu   sync.Mutex
	sets map[model.Request]model.Set
}

func newSetCache(enabled bool) *setCache {
	return &setCache{
		enabled: enabled,
		sets:    make(map[model.Request]model.Set),
	}
}

// get gibt das Set fuer req zurueck. release muss nach der Verarbeitung
// aufgerufen werden; bei aktivem Cache ist es ein No-op.
func (c *setCache) get(ctx context.Context, req model.Request, resolve resolveFunc) (model.Set, func(), error) {
	if !req.Method.UsesNoise() {
		req.NoiseLevel = 0
	}

	if !c.enabled {
		set, err := resolve(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		return set, func() {
			if err := set.Close(); err != nil {
				slog.Warn("failed to close models", "error", err)
			}
		}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if set, ok := c.sets[req]; ok {
		return set, func() {}, nil
	}

	set, err := resolve(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("models cached", "arch", req.Arch.Name, "color", req.Color, "method", req.Method, "roles", set.Roles())
	c.sets[req] = set
	return set, func() {}, nil
}

// Len gibt die Anzahl zwischengespeicherter Sets zurueck.
func (c *setCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

func (c *setCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for req, set := range c.sets {
		errs = append(errs, set.Close())
		delete(c.sets, req)
	}
	return errors.Join(errs...)
}
