// MODUL: codec
// ZWECK: Bilder laden und als PNG speichern
// INPUT: Dateipfad oder io.Reader
// OUTPUT: dekodiertes image.Image mit Formatname
// NEBENEFFEKTE: Dateisystem-Zugriff bei Load/Save
// ABHAENGIGKEITEN: golang.org/x/image/{bmp,tiff,webp} (extern), image/png, image/jpeg
// HINWEISE: Es gibt keinen WebP-Encoder, Ausgabe ist immer PNG

package imageproc

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Extensions sind die Dateiendungen, die als Eingabe akzeptiert werden.
var Extensions = []string{".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

// ErrUnsupportedFormat wird zurueckgegeben bei nicht unterstuetztem Ausgabeformat
var ErrUnsupportedFormat = errors.New("imageproc: unsupported output format")

// IsSupported prueft die Dateiendung gegen Extensions (ohne Gross-/Kleinschreibung).
func IsSupported(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// Decode dekodiert ein Bild aus einem Reader.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Load laedt ein Bild von einem Dateipfad.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Encode schreibt img im angegebenen Format. Nur "png" wird unterstuetzt.
func Encode(w io.Writer, img image.Image, format string) error {
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "png":
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		return enc.Encode(w, img)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Save schreibt img als Datei; das Format folgt aus der Endung.
func Save(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	return Encode(f, img, filepath.Ext(path))
}
