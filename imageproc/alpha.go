// MODUL: alpha
// ZWECK: Alpha-Kanal abtrennen, Randfarben ausdehnen, Alpha wieder aufsetzen
// INPUT: Quellbild, Modell-Geometrie (InnerScale, Offset)
// OUTPUT: opakes RGB-Signal und optionale Alpha-Ebene
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern)
// HINWEISE: MakeBorder muss vor jeder Inferenz laufen, sonst entstehen
//           Farbsaeume in transparenten Bereichen

package imageproc

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// Receptive beschreibt die Geometrie des Modells, das das Signal verarbeitet.
type Receptive interface {
	InnerScale() int
	Offset() int
}

// BorderRadius gibt die Anzahl der Ausdehnungsschritte fuer MakeBorder zurueck.
// Das ist der Rand, den das Modell ueber jeden Pixel hinaus liest; ohne
// Offset-Angabe wird der Skalierungsfaktor des Modells verwendet.
func BorderRadius(m Receptive) int {
	if r := m.Offset(); r > 0 {
		return r
	}
	return max(m.InnerScale(), 1)
}

// HasAlpha meldet ob das Bild Transparenzinformation traegt.
// Palettenbilder zaehlen nur, wenn mindestens ein Eintrag transparent ist
// (so liefern die Go-Decoder einen tRNS-Farbschluessel aus).
func HasAlpha(img image.Image) bool {
	switch img := img.(type) {
	case *image.Paletted:
		return paletteHasAlpha(img.Palette)
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	case *image.RGBA:
		// image/png liefert RGB ohne Alpha als *image.RGBA
		return !img.Opaque()
	case *image.RGBA64:
		return !img.Opaque()
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	}

	if p, ok := img.ColorModel().(color.Palette); ok {
		return paletteHasAlpha(p)
	}
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func paletteHasAlpha(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}

// Promote wandelt ein Palettenbild mit Transparenzschluessel in volles NRGBA.
// Andere Bilder werden unveraendert zurueckgegeben.
func Promote(img image.Image) image.Image {
	if p, ok := img.(*image.Paletted); ok && paletteHasAlpha(p.Palette) {
		return toNRGBA(p)
	}
	return img
}

// SplitAlpha trennt das Quellbild in ein opakes RGB-Signal und eine
// optionale Alpha-Ebene. Mit Alpha wird das RGB-Signal per MakeBorder
// vorbereitet, damit das Modell unter der Maske keine instabilen Farben sieht.
func SplitAlpha(src image.Image, m Receptive) (*image.RGBA, *image.Gray) {
	src = Promote(src)
	if !HasAlpha(src) {
		return ToRGBA(src), nil
	}

	nrgba := toNRGBA(src)
	b := nrgba.Bounds()
	rgb := image.NewRGBA(b)
	alpha := image.NewGray(b)
	for i, j := 0, 0; i < len(nrgba.Pix); i, j = i+4, j+1 {
		rgb.Pix[i+0] = nrgba.Pix[i+0]
		rgb.Pix[i+1] = nrgba.Pix[i+1]
		rgb.Pix[i+2] = nrgba.Pix[i+2]
		rgb.Pix[i+3] = 0xff
		alpha.Pix[j] = nrgba.Pix[i+3]
	}

	return MakeBorder(rgb, alpha, BorderRadius(m)), alpha
}

// MakeBorder dehnt opake Farben schrittweise in den transparenten Rand aus.
// Pixel mit Alpha 0 werden genullt; in jedem der radius Schritte bekommt jeder
// noch ungefuellte Pixel den Mittelwert seiner gefuellten 3x3-Nachbarn.
func MakeBorder(rgb *image.RGBA, alpha *image.Gray, radius int) *image.RGBA {
	b, ab := rgb.Bounds(), alpha.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h

	mask := make([]float32, n)
	var planes [3][]float32
	for c := range planes {
		planes[c] = make([]float32, n)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if alpha.GrayAt(ab.Min.X+x, ab.Min.Y+y).Y == 0 {
				continue
			}
			mask[i] = 1
			o := rgb.PixOffset(b.Min.X+x, b.Min.Y+y)
			for c := range planes {
				planes[c][i] = float32(rgb.Pix[o+c])
			}
		}
	}

	const eps = 1e-7
	weight := make([]float32, n)
	border := make([]float32, n)
	for range radius {
		sum3x3(weight, mask, w, h)
		for c := range planes {
			sum3x3(border, planes[c], w, h)
			for i := range n {
				if mask[i] == 0 {
					planes[c][i] = border[i] / (weight[i] + eps)
				}
			}
		}
		for i := range n {
			if weight[i] > 0 {
				mask[i] = 1
			}
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			o := y*dst.Stride + x*4
			for c := range planes {
				dst.Pix[o+c] = clampByte(planes[c][i])
			}
			dst.Pix[o+3] = 0xff
		}
	}
	return dst
}

// sum3x3 summiert die 3x3-Nachbarschaft mit Null-Padding.
func sum3x3(dst, src []float32, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var s float32
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					s += src[yy*w+xx]
				}
			}
			dst[y*w+x] = s
		}
	}
}

func clampByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v + 0.5)
}

// PutAlpha setzt die Alpha-Ebene auf ein Farbsignal (RGB oder Grau).
// Unterschiedliche Groessen sind ein Fehler und werden nie angeglichen.
func PutAlpha(c image.Image, alpha *image.Gray) (*image.NRGBA, error) {
	cs, as := c.Bounds().Size(), alpha.Bounds().Size()
	if cs != as {
		return nil, fmt.Errorf("%w: color %dx%d, alpha %dx%d", ErrDimensionMismatch, cs.X, cs.Y, as.X, as.Y)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, cs.X, cs.Y))
	draw.Draw(dst, dst.Bounds(), ToRGBA(c), image.Point{}, draw.Src)

	ab := alpha.Bounds()
	for y := 0; y < cs.Y; y++ {
		off := alpha.PixOffset(ab.Min.X, ab.Min.Y+y)
		row := alpha.Pix[off : off+ab.Dx()]
		for x, a := range row {
			dst.Pix[y*dst.Stride+x*4+3] = a
		}
	}
	return dst, nil
}
