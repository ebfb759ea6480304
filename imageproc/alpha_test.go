package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/draw"
)

type geometry struct{ inner, offset int }

func (g geometry) InnerScale() int { return g.inner }
func (g geometry) Offset() int     { return g.offset }

func TestBorderRadius(t *testing.T) {
	tests := []struct {
		name string
		g    geometry
		want int
	}{
		{"offset", geometry{1, 7}, 7},
		{"ohne offset", geometry{2, 0}, 2},
		{"minimum", geometry{0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BorderRadius(tt.g); got != tt.want {
				t.Errorf("BorderRadius() = %d, erwartet %d", got, tt.want)
			}
		})
	}
}

func TestHasAlpha(t *testing.T) {
	rect := image.Rect(0, 0, 2, 2)

	opaqueRGBA := image.NewRGBA(rect)
	for i := range opaqueRGBA.Pix {
		opaqueRGBA.Pix[i] = 0xff
	}

	tests := []struct {
		name string
		img  image.Image
		want bool
	}{
		{"gray", image.NewGray(rect), false},
		{"ycbcr", image.NewYCbCr(rect, image.YCbCrSubsampleRatio444), false},
		{"nrgba", image.NewNRGBA(rect), true},
		{"rgba opak", opaqueRGBA, false},
		{"rgba transparent", image.NewRGBA(rect), true},
		{"paletted opak", image.NewPaletted(rect, color.Palette{color.Black, color.White}), false},
		{"paletted tRNS", image.NewPaletted(rect, color.Palette{color.Black, color.NRGBA{0, 0, 0, 0}}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAlpha(tt.img); got != tt.want {
				t.Errorf("HasAlpha() = %v, erwartet %v", got, tt.want)
			}
		})
	}
}

func TestSplitAlphaOpaque(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 3))
	src.SetGray(1, 1, color.Gray{Y: 200})

	rgb, alpha := SplitAlpha(src, geometry{2, 14})
	if alpha != nil {
		t.Fatal("erwartet keine Alpha-Ebene")
	}
	if rgb.Bounds().Size() != (image.Point{4, 3}) {
		t.Errorf("Groesse = %v", rgb.Bounds().Size())
	}
	if c := rgb.RGBAAt(1, 1); c != (color.RGBA{200, 200, 200, 255}) {
		t.Errorf("Pixel = %v", c)
	}
}

func TestSplitAlphaExtractsPlane(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	src.SetNRGBA(0, 0, color.NRGBA{254, 0, 0, 255})
	src.SetNRGBA(1, 0, color.NRGBA{0, 255, 0, 0})
	src.SetNRGBA(2, 0, color.NRGBA{0, 0, 254, 128})

	rgb, alpha := SplitAlpha(src, geometry{1, 1})
	if alpha == nil {
		t.Fatal("erwartet Alpha-Ebene")
	}
	if got := alpha.Pix; !bytes.Equal(got, []byte{255, 0, 128}) {
		t.Errorf("Alpha = %v", got)
	}

	// Der transparente Pixel in der Mitte bekommt den Mittelwert seiner
	// beiden opaken Nachbarn, nicht sein verstecktes Gruen.
	if c := rgb.RGBAAt(1, 0); c != (color.RGBA{127, 0, 127, 255}) {
		t.Errorf("Randpixel = %v, erwartet {127 0 127 255}", c)
	}
	if c := rgb.RGBAAt(2, 0); c != (color.RGBA{0, 0, 254, 255}) {
		t.Errorf("halbtransparenter Pixel veraendert: %v", c)
	}
}

func TestMakeBorderRadius(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 5, 1))
	alpha := image.NewGray(image.Rect(0, 0, 5, 1))
	for x := 0; x < 5; x++ {
		rgb.SetRGBA(x, 0, color.RGBA{0, 0, 200, 255})
	}
	rgb.SetRGBA(0, 0, color.RGBA{250, 0, 0, 255})
	alpha.SetGray(0, 0, color.Gray{Y: 255})

	dst := MakeBorder(rgb, alpha, 2)

	want := []color.RGBA{
		{250, 0, 0, 255},
		{250, 0, 0, 255},
		{250, 0, 0, 255},
		{0, 0, 0, 255},
		{0, 0, 0, 255},
	}
	for x, w := range want {
		if c := dst.RGBAAt(x, 0); c != w {
			t.Errorf("x=%d: %v, erwartet %v", x, c, w)
		}
	}
}

func TestPalettedTransparencyPromotion(t *testing.T) {
	palette := color.Palette{
		color.NRGBA{255, 0, 0, 255},
		color.NRGBA{0, 0, 255, 255},
		color.NRGBA{0, 0, 0, 0},
	}
	paletted := image.NewPaletted(image.Rect(0, 0, 4, 4), palette)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			paletted.SetColorIndex(x, y, uint8((x+y)%3))
		}
	}

	// Ueber PNG mit tRNS-Chunk, wie ein Palettenbild von der Platte kommt.
	var buf bytes.Buffer
	if err := png.Encode(&buf, paletted); err != nil {
		t.Fatal(err)
	}
	decoded, _, err := Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded.(*image.Paletted); !ok {
		t.Fatalf("erwartet *image.Paletted, bekommen %T", decoded)
	}

	full := image.NewNRGBA(paletted.Bounds())
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			full.Set(x, y, paletted.At(x, y))
		}
	}

	g := geometry{2, 3}
	rgbP, alphaP := SplitAlpha(decoded, g)
	rgbF, alphaF := SplitAlpha(full, g)

	if alphaP == nil || alphaF == nil {
		t.Fatal("erwartet Alpha-Ebene fuer beide Darstellungen")
	}
	if !bytes.Equal(alphaP.Pix, alphaF.Pix) {
		t.Errorf("Alpha unterscheidet sich: %v vs %v", alphaP.Pix, alphaF.Pix)
	}
	if !bytes.Equal(rgbP.Pix, rgbF.Pix) {
		t.Error("RGB unterscheidet sich zwischen Palette und NRGBA")
	}
}

func TestPutAlpha(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgb.SetRGBA(1, 1, color.RGBA{10, 20, 30, 255})
	alpha := image.NewGray(image.Rect(0, 0, 2, 2))
	alpha.SetGray(1, 1, color.Gray{Y: 77})

	dst, err := PutAlpha(rgb, alpha)
	if err != nil {
		t.Fatalf("PutAlpha() error = %v", err)
	}
	if c := dst.NRGBAAt(1, 1); c != (color.NRGBA{10, 20, 30, 77}) {
		t.Errorf("Pixel = %v", c)
	}

	_, err = PutAlpha(rgb, image.NewGray(image.Rect(0, 0, 3, 2)))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("erwartet ErrDimensionMismatch, bekommen %v", err)
	}
}

func TestImageCompose(t *testing.T) {
	rgb := image.NewRGBA(image.Rect(0, 0, 2, 2))

	out, err := Image{Color: rgb}.Compose()
	if err != nil || out != image.Image(rgb) {
		t.Errorf("ohne Alpha erwartet unveraendertes Bild, bekommen %T, %v", out, err)
	}

	bad := Image{Color: rgb, Alpha: image.NewGray(image.Rect(0, 0, 1, 1))}
	if err := bad.Check(); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Check() = %v", err)
	}
	if _, err := bad.Compose(); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Compose() = %v", err)
	}
}

func TestSplitAlphaSubImage(t *testing.T) {
	full := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for y := range 4 {
		for x := range 8 {
			full.SetNRGBA(x, y, color.NRGBA{uint8(x * 30), uint8(y * 60), 7, uint8(x*32 + y)})
		}
	}

	crop := full.SubImage(image.Rect(0, 0, 4, 4))
	rgb, alpha := SplitAlpha(crop, geometry{1, 1})
	if alpha == nil {
		t.Fatal("Alpha-Ebene fehlt")
	}
	if got := rgb.Bounds().Size(); got != image.Pt(4, 4) {
		t.Fatalf("Farbe %v, erwartet 4x4", got)
	}
	if got := alpha.Bounds().Size(); got != image.Pt(4, 4) {
		t.Fatalf("Alpha %v, erwartet 4x4", got)
	}
	for y := range 4 {
		for x := range 4 {
			if got, want := alpha.GrayAt(x, y).Y, full.NRGBAAt(x, y).A; got != want {
				t.Errorf("Alpha(%d,%d) = %d, erwartet %d", x, y, got, want)
			}
		}
	}
}

func TestConvertSubImage(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 6, 3))
	gray := image.NewGray(image.Rect(0, 0, 6, 3))
	for y := range 3 {
		for x := range 6 {
			rgba.SetRGBA(x, y, color.RGBA{uint8(x * 40), uint8(y * 80), 9, 0xff})
			gray.SetGray(x, y, color.Gray{uint8(x*40 + y)})
		}
	}
	nrgba := image.NewNRGBA(image.Rect(0, 0, 6, 3))
	draw.Draw(nrgba, nrgba.Bounds(), rgba, image.Point{}, draw.Src)

	rect := image.Rect(0, 0, 2, 3)
	sources := map[string]image.Image{
		"rgba":  rgba.SubImage(rect),
		"nrgba": nrgba.SubImage(rect),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			got := ToRGBA(src)
			if got.Stride != 4*2 || got.Bounds() != rect {
				t.Fatalf("ToRGBA: bounds %v stride %d", got.Bounds(), got.Stride)
			}
			for y := range 3 {
				for x := range 2 {
					if got.RGBAAt(x, y) != rgba.RGBAAt(x, y) {
						t.Errorf("ToRGBA(%d,%d) = %v, erwartet %v", x, y, got.RGBAAt(x, y), rgba.RGBAAt(x, y))
					}
				}
			}
		})
	}

	g := ToGray(gray.SubImage(rect))
	if g.Stride != 2 || len(g.Pix) != 6 {
		t.Fatalf("ToGray: stride %d, len %d", g.Stride, len(g.Pix))
	}
	for y := range 3 {
		for x := range 2 {
			if g.GrayAt(x, y) != gray.GrayAt(x, y) {
				t.Errorf("ToGray(%d,%d) = %v, erwartet %v", x, y, g.GrayAt(x, y), gray.GrayAt(x, y))
			}
		}
	}
}
