// MODUL: registry
// ZWECK: Zentrale Registry fuer Modell-Loader, ein Loader pro Dateiendung
// INPUT: Dateiendung, Loader-Funktionen, LoadOptions
// OUTPUT: geladene Model Instanzen
// NEBENEFFEKTE: Keine (rein speicherbasiert)
// ABHAENGIGKEITEN: sync (stdlib), ml (Device)
// HINWEISE: Backends registrieren sich via init(), z.B. model/onnx fuer ".onnx"

package model

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/7blacky7/waifu2x-go/ml"
)

// ============================================================================
// Loader - Factory-Funktion Typ
// ============================================================================

// LoadOptions enthaelt alles was ein Loader ausser den Rohdaten braucht.
type LoadOptions struct {
	Key    Key
	Arch   Arch
	Color  Color
	Device ml.Device
}

// Loader erstellt ein Modell aus den Bytes eines Artefakts.
type Loader func(ctx context.Context, data []byte, opts LoadOptions) (Model, error)

// ErrLoaderNotRegistered wird zurueckgegeben wenn fuer eine Endung kein Loader existiert.
var ErrLoaderNotRegistered = errors.New("model: loader not registered")

// DefaultExtension ist die Endung, die ohne weitere Angabe verwendet wird.
const DefaultExtension = ".onnx"

// ============================================================================
// Registry
// ============================================================================

// Registry verwaltet Loader pro Dateiendung.
// Thread-sicher durch RWMutex.
type Registry struct {
	loaders map[string]Loader
	mu      sync.RWMutex
}

// NewRegistry erstellt eine neue leere Registry.
func NewRegistry() *Registry {
	return &Registry{
		loaders: make(map[string]Loader),
	}
}

// DefaultRegistry ist die globale Registry; Backends registrieren sich via init().
var DefaultRegistry = NewRegistry()

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Register registriert einen Loader fuer die Endung.
// Ueberschreibt existierende Eintraege ohne Warnung.
func (r *Registry) Register(ext string, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaders[normalizeExt(ext)] = loader
}

// Get gibt den Loader fuer die Endung zurueck.
func (r *Registry) Get(ext string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loader, exists := r.loaders[normalizeExt(ext)]
	return loader, exists
}

// Has prueft ob ein Loader fuer die Endung registriert ist.
func (r *Registry) Has(ext string) bool {
	_, exists := r.Get(ext)
	return exists
}

// List gibt die registrierten Endungen sortiert zurueck.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// Load laedt ein Modell mit dem Loader der Endung.
func (r *Registry) Load(ctx context.Context, ext string, data []byte, opts LoadOptions) (Model, error) {
	loader, exists := r.Get(ext)
	if !exists {
		return nil, &ArtifactError{Path: "*" + normalizeExt(ext), Err: ErrLoaderNotRegistered}
	}
	return loader(ctx, data, opts)
}
