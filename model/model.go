// MODUL: model
// ZWECK: Schnittstelle fuer geladene Restaurationsmodelle und Architektur-Tabelle
// INPUT: Architektur-Name oder Alias, Farbmodus, Methode
// OUTPUT: Model Interface, Arch/Color/Method Werte
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: ml (Tensor)
// HINWEISE: Modelle sind nach dem Laden unveraenderlich

package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/7blacky7/waifu2x-go/ml"
)

// ============================================================================
// Model Interface
// ============================================================================

// Model ist ein geladenes Restaurationsmodell.
//
// Forward bekommt einen NCHW-Tensor mit Werten in [0, 1] und liefert einen
// Tensor der Hoehe H*InnerScale()-2*Offset() (Breite analog). Der Aufrufer
// ist fuer das Padding zustaendig.
type Model interface {
	InnerScale() int
	Offset() int
	Channels() int
	Forward(ctx context.Context, x *ml.Tensor) (*ml.Tensor, error)
	Close() error
}

// ============================================================================
// Architekturen
// ============================================================================

// ErrUnknownArch wird zurueckgegeben bei unbekanntem Architektur-Namen.
var ErrUnknownArch = errors.New("model: unknown architecture")

// Arch beschreibt die feste Geometrie einer Modell-Architektur.
type Arch struct {
	Name       string
	Alias      string
	InnerScale int
	Offset     int
}

// Dir ist der Verzeichnisname der Gewichte unterhalb des Modell-Verzeichnisses.
func (a Arch) Dir() string {
	return strings.ToLower(a.Name)
}

func (a Arch) String() string {
	return a.Name
}

// Archs sind die bekannten Architekturen in Alias-Reihenfolge.
var Archs = []Arch{
	{Name: "VGG7", Alias: "0", InnerScale: 1, Offset: 7},
	{Name: "UpConv7", Alias: "1", InnerScale: 2, Offset: 14},
	{Name: "ResNet10", Alias: "2", InnerScale: 1, Offset: 9},
	{Name: "UpResNet10", Alias: "3", InnerScale: 2, Offset: 26},
}

// LookupArch findet eine Architektur ueber Namen (ohne Gross-/Kleinschreibung)
// oder numerischen Alias.
func LookupArch(name string) (Arch, error) {
	for _, a := range Archs {
		if strings.EqualFold(a.Name, name) || a.Alias == name {
			return a, nil
		}
	}
	return Arch{}, fmt.Errorf("%w: %q", ErrUnknownArch, name)
}

// ============================================================================
// Farbmodus und Methode
// ============================================================================

// Color ist der Farbmodus der Gewichte.
type Color string

const (
	ColorY   Color = "y"
	ColorRGB Color = "rgb"
)

// Channels gibt die Kanalzahl der Modelle dieses Farbmodus zurueck.
func (c Color) Channels() int {
	if c == ColorY {
		return 1
	}
	return 3
}

// Valid meldet ob c ein bekannter Farbmodus ist.
func (c Color) Valid() bool {
	return c == ColorY || c == ColorRGB
}

// Method waehlt die Art der Restauration.
type Method string

const (
	MethodNoise      Method = "noise"
	MethodScale      Method = "scale"
	MethodNoiseScale Method = "noise_scale"
)

// Valid meldet ob m eine bekannte Methode ist.
func (m Method) Valid() bool {
	switch m {
	case MethodNoise, MethodScale, MethodNoiseScale:
		return true
	}
	return false
}

// UsesNoise meldet ob die Methode ein Rauschniveau braucht.
func (m Method) UsesNoise() bool {
	return m == MethodNoise || m == MethodNoiseScale
}

// MaxNoiseLevel ist das hoechste trainierte Rauschniveau.
const MaxNoiseLevel = 3

// ============================================================================
// Key - Identitaet eines Modells
// ============================================================================

// Key identifiziert ein Modell ueber Architektur, Farbmodus und Zweck.
// Purpose ist der Stamm des Artefakt-Namens, z.B. "noise1_scale" oder "scale".
type Key struct {
	Arch    string
	Color   Color
	Purpose string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", strings.ToLower(k.Arch), k.Color, k.Purpose)
}
