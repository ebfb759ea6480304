// MODUL: resolve
// ZWECK: Abbildung (Architektur, Farbmodus, Methode, Rauschniveau) auf Artefakte und geladene Modelle
// INPUT: Request, fs.FS mit den Gewichten einer Architektur
// OUTPUT: Plan (Rolle -> Pfad), Set (Rolle -> Model)
// NEBENEFFEKTE: Dateisystem-Lesezugriff, Modelle laden
// ABHAENGIGKEITEN: registry.go (Loader), envconfig (Modell-Verzeichnis)
// HINWEISE: Alle Existenzpruefungen laufen vor dem ersten Laden.
//           Fallback-Kette:
//           1. noise_scale + kombiniertes Artefakt -> noise_scale (+ alpha = scale falls vorhanden)
//           2. noise_scale ohne kombiniertes Artefakt -> scale und noise einzeln
//           3. noise ohne eigenes Artefakt -> kombiniertes Artefakt in Rolle noise

package model

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/ml"
)

// ============================================================================
// Fehler
// ============================================================================

var (
	// ErrMissingArtifact: die Gewichte fuer die Methode fehlen und keine
	// Fallback-Kette greift.
	ErrMissingArtifact = errors.New("model: missing artifact")

	ErrInvalidRequest = errors.New("model: invalid request")
)

// ArtifactError beschreibt einen Fehler bei Aufloesung oder Laden eines Artefakts.
type ArtifactError struct {
	Role Role
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s (role %s): %v", e.Path, e.Role, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// ============================================================================
// Request
// ============================================================================

// Request beschreibt welche Modelle ein Lauf braucht.
type Request struct {
	Arch       Arch
	Color      Color
	Method     Method
	NoiseLevel int
}

// Validate prueft den Request vor jedem Dateizugriff.
func (r Request) Validate() error {
	if r.Arch.Name == "" {
		return fmt.Errorf("%w: architecture not set", ErrInvalidRequest)
	}
	if !r.Color.Valid() {
		return fmt.Errorf("%w: color %q", ErrInvalidRequest, r.Color)
	}
	if !r.Method.Valid() {
		return fmt.Errorf("%w: method %q", ErrInvalidRequest, r.Method)
	}
	if r.Method.UsesNoise() && (r.NoiseLevel < 0 || r.NoiseLevel > MaxNoiseLevel) {
		return fmt.Errorf("%w: noise level %d not in [0, %d]", ErrInvalidRequest, r.NoiseLevel, MaxNoiseLevel)
	}
	return nil
}

// Plan ordnet jeder besetzten Rolle einen Artefakt-Pfad relativ zum Resolver-FS zu.
type Plan map[Role]string

// Has prueft ob die Rolle besetzt ist.
func (p Plan) Has(r Role) bool {
	_, ok := p[r]
	return ok
}

// ============================================================================
// Resolver
// ============================================================================

// Resolver loest Requests gegen ein Modell-Verzeichnis auf.
type Resolver struct {
	fsys     fs.FS
	registry *Registry
	device   ml.Device
	ext      string
}

// ResolverOption ist eine funktionale Option fuer den Resolver.
type ResolverOption func(*Resolver)

// WithRegistry setzt die Loader-Registry (Standard: DefaultRegistry).
func WithRegistry(r *Registry) ResolverOption {
	return func(rs *Resolver) {
		rs.registry = r
	}
}

// WithDevice setzt das Geraet, auf das Modelle geladen werden.
func WithDevice(d ml.Device) ResolverOption {
	return func(rs *Resolver) {
		rs.device = d
	}
}

// WithExtension setzt die Artefakt-Endung (Standard: ".onnx").
func WithExtension(ext string) ResolverOption {
	return func(rs *Resolver) {
		rs.ext = normalizeExt(ext)
	}
}

// NewResolver erstellt einen Resolver ueber fsys, das auf das Verzeichnis
// einer Architektur zeigt.
func NewResolver(fsys fs.FS, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		fsys:     fsys,
		registry: DefaultRegistry,
		device:   ml.CPU(),
		ext:      DefaultExtension,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultDir ist das Modell-Verzeichnis einer Architektur unter WAIFU2X_MODELS.
func DefaultDir(a Arch) string {
	return filepath.Join(envconfig.Models(), a.Dir())
}

func (r *Resolver) artifact(stem string) string {
	return stem + r.ext
}

func (r *Resolver) exists(name string) bool {
	info, err := fs.Stat(r.fsys, name)
	return err == nil && !info.IsDir()
}

// Plan bestimmt die Artefakte fuer req, ohne etwas zu laden.
func (r *Resolver) Plan(req Request) (Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	combined := r.artifact(combinedName(req.NoiseLevel, req.Color))
	scale := r.artifact(scaleName(req.Color))
	noise := r.artifact(noiseName(req.NoiseLevel, req.Color))

	plan := Plan{}
	fallback := false

	if req.Method == MethodNoiseScale {
		if r.exists(combined) {
			plan[RoleNoiseScale] = combined
			if r.exists(scale) {
				plan[RoleAlpha] = scale
			}
		} else {
			slog.Debug("combined model not found, using separate noise and scale models", "artifact", combined)
			fallback = true
		}
	}

	if req.Method == MethodScale || fallback {
		if !r.exists(scale) {
			return nil, &ArtifactError{Role: RoleScale, Path: scale, Err: ErrMissingArtifact}
		}
		plan[RoleScale] = scale
	}

	if req.Method == MethodNoise || fallback {
		switch {
		case r.exists(noise):
			plan[RoleNoise] = noise
		case r.exists(combined):
			slog.Debug("noise model not found, using combined model", "artifact", combined)
			plan[RoleNoise] = combined
		default:
			return nil, &ArtifactError{Role: RoleNoise, Path: noise, Err: ErrMissingArtifact}
		}
	}

	return plan, nil
}

// Resolve bestimmt die Artefakte und laedt die Modelle.
// Schlaegt ein Laden fehl, werden bereits geladene Modelle wieder geschlossen.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Set, error) {
	plan, err := r.Plan(req)
	if err != nil {
		return nil, err
	}

	// ohne Loader wird kein Artefakt gelesen
	if !r.registry.Has(r.ext) {
		return nil, &ArtifactError{Path: "*" + r.ext, Err: ErrLoaderNotRegistered}
	}

	set := Set{}
	for _, role := range roleOrder {
		name, ok := plan[role]
		if !ok {
			continue
		}

		m, err := r.load(ctx, req, name)
		if err != nil {
			set.Close()
			return nil, &ArtifactError{Role: role, Path: name, Err: err}
		}

		slog.Debug("model loaded", "role", role, "artifact", name, "device", r.device)
		set[role] = m
	}
	return set, nil
}

func (r *Resolver) load(ctx context.Context, req Request, name string) (Model, error) {
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	purpose, _, _, _ := ParseArtifactName(stem)

	return r.registry.Load(ctx, path.Ext(name), data, LoadOptions{
		Key:    Key{Arch: req.Arch.Name, Color: req.Color, Purpose: purpose},
		Arch:   req.Arch,
		Color:  req.Color,
		Device: r.device,
	})
}
