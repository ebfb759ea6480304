// MODUL: resize
// ZWECK: Kontinuierliche und ganzzahlige Skalierung von Farb- und Alpha-Ebenen
// INPUT: *image.RGBA oder *image.Gray, Zielgroesse
// OUTPUT: skaliertes Bild desselben Typs
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: golang.org/x/image/draw (extern)
// HINWEISE: Lanczos ist ein draw.Kernel mit Support 3 (Lanczos3)

package imageproc

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Lanczos ist der Lanczos3-Filter fuer hochwertiges Skalieren.
var Lanczos = &draw.Kernel{
	Support: 3,
	At: func(t float64) float64 {
		if t == 0 {
			return 1
		}
		if t >= 3 {
			return 0
		}
		x := math.Pi * t
		return 3 * math.Sin(x) * math.Sin(x/3) / (x * x)
	},
}

// Resize skaliert img mit dem Lanczos-Filter auf width x height.
// Hat img bereits die Zielgroesse, wird es unveraendert zurueckgegeben.
func Resize(img image.Image, width, height int) (image.Image, error) {
	return scale(img, width, height, Lanczos)
}

// ResizeGray skaliert eine Alpha-Ebene mit dem Lanczos-Filter.
func ResizeGray(img *image.Gray, width, height int) (*image.Gray, error) {
	dst, err := scale(img, width, height, Lanczos)
	if err != nil {
		return nil, err
	}
	return dst.(*image.Gray), nil
}

// ResizeBicubic skaliert mit Catmull-Rom; verwendet fuer Chroma-Ebenen.
func ResizeBicubic(img image.Image, width, height int) (image.Image, error) {
	return scale(img, width, height, draw.CatmullRom)
}

// NearestNeighbor vergroessert um einen ganzzahligen Faktor durch Pixelwiederholung.
// Ein nil-Bild bleibt nil.
func NearestNeighbor(img image.Image, factor int) image.Image {
	if img == nil || factor == 1 {
		return img
	}
	b := img.Bounds()
	dst, _ := scale(img, b.Dx()*factor, b.Dy()*factor, draw.NearestNeighbor)
	return dst
}

// NearestNeighborGray ist NearestNeighbor fuer Alpha-Ebenen.
func NearestNeighborGray(img *image.Gray, factor int) *image.Gray {
	if img == nil {
		return nil
	}
	return NearestNeighbor(img, factor).(*image.Gray)
}

func scale(img image.Image, width, height int, interp draw.Interpolator) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("imageproc: invalid size %dx%d", width, height)
	}

	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}

	rect := image.Rect(0, 0, width, height)
	var dst draw.Image
	switch img.(type) {
	case *image.Gray:
		dst = image.NewGray(rect)
	default:
		dst = image.NewRGBA(rect)
	}

	interp.Scale(dst, rect, img, b, draw.Src, nil)
	return dst, nil
}
