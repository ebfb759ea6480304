// MODUL: image
// ZWECK: Bildtypen und Konvertierungen fuer die Restaurations-Pipeline
// INPUT: beliebige image.Image Werte
// OUTPUT: opake *image.RGBA Farbsignale, *image.Gray Ebenen
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern)
// HINWEISE: Alle Ergebnisse sind auf den Ursprung (0,0) normalisiert

package imageproc

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// ErrDimensionMismatch wird zurueckgegeben wenn Farbe und Alpha an einem
// Zusammensetzungspunkt unterschiedliche Groessen haben.
var ErrDimensionMismatch = errors.New("imageproc: color and alpha dimensions differ")

// Image ist ein Farbsignal mit optionaler Alpha-Ebene.
// Color ist *image.RGBA (opak) oder *image.Gray.
type Image struct {
	Color image.Image
	Alpha *image.Gray
}

// Size gibt die Groesse des Farbsignals zurueck.
func (i Image) Size() image.Point {
	return i.Color.Bounds().Size()
}

// Check prueft die Groessengleichheit von Farbe und Alpha.
func (i Image) Check() error {
	if i.Alpha == nil {
		return nil
	}
	c, a := i.Color.Bounds().Size(), i.Alpha.Bounds().Size()
	if c != a {
		return fmt.Errorf("%w: color %dx%d, alpha %dx%d", ErrDimensionMismatch, c.X, c.Y, a.X, a.Y)
	}
	return nil
}

// Compose setzt Alpha wieder auf das Farbsignal. Ohne Alpha wird Color
// unveraendert zurueckgegeben.
func (i Image) Compose() (image.Image, error) {
	if i.Alpha == nil {
		return i.Color, nil
	}
	return PutAlpha(i.Color, i.Alpha)
}

// ToRGBA konvertiert ein Bild in ein opakes *image.RGBA am Ursprung.
// Alpha wird verworfen, Farben werden nicht vormultipliziert.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && packed(b, rgba.Stride, 4) && rgba.Opaque() {
		return rgba
	}

	nrgba := toNRGBA(img)
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for i := 0; i < len(nrgba.Pix); i += 4 {
		dst.Pix[i+0] = nrgba.Pix[i+0]
		dst.Pix[i+1] = nrgba.Pix[i+1]
		dst.Pix[i+2] = nrgba.Pix[i+2]
		dst.Pix[i+3] = 0xff
	}
	return dst
}

// ToGray konvertiert ein Bild in *image.Gray am Ursprung.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok && packed(b, g.Stride, 1) {
		return g
	}

	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// packed meldet ob ein Puffer am Ursprung beginnt und zeilenweise lueckenlos
// ist. Ein SubImage am Ursprung behaelt den Stride des Elternbildes.
func packed(b image.Rectangle, stride, bpp int) bool {
	return b.Min == (image.Point{}) && stride == bpp*b.Dx()
}

// toNRGBA konvertiert in nicht vormultipliziertes NRGBA am Ursprung.
func toNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && packed(b, n.Stride, 4) {
		return n
	}

	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// MatchModel bringt das Ergebnis in die Darstellung der Quelle zurueck,
// soweit das verlustfrei fuer die Ausgabe sinnvoll ist: eine Graustufen-
// Quelle ohne Alpha ergibt wieder ein Graustufenbild.
func MatchModel(dst, src image.Image) image.Image {
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		if _, ok := dst.(*image.NRGBA); ok {
			return dst
		}
		return ToGray(dst)
	}
	return dst
}
