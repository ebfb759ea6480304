package reconstruct

import (
	"image"
	"image/color"
)

// signal ist ein Bild als float32-Ebenen in [0, 1], ein Slice pro Kanal.
type signal struct {
	W, H int
	Ch   [][]float32
}

func newSignal(channels, w, h int) *signal {
	s := &signal{W: w, H: h, Ch: make([][]float32, channels)}
	for c := range s.Ch {
		s.Ch[c] = make([]float32, w*h)
	}
	return s
}

// expand verteilt eine einkanalige Ebene auf n identische Kanaele.
func (s *signal) expand(n int) *signal {
	out := &signal{W: s.W, H: s.H, Ch: make([][]float32, n)}
	for c := range out.Ch {
		out.Ch[c] = s.Ch[0]
	}
	return out
}

func fromRGBA(img *image.RGBA) *signal {
	b := img.Bounds()
	s := newSignal(3, b.Dx(), b.Dy())
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			i := y*s.W + x
			s.Ch[0][i] = float32(img.Pix[o+0]) / 255
			s.Ch[1][i] = float32(img.Pix[o+1]) / 255
			s.Ch[2][i] = float32(img.Pix[o+2]) / 255
		}
	}
	return s
}

func fromGray(img *image.Gray) *signal {
	b := img.Bounds()
	s := newSignal(1, b.Dx(), b.Dy())
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			s.Ch[0][y*s.W+x] = float32(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y) / 255
		}
	}
	return s
}

func (s *signal) toRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, s.W, s.H))
	for i := range s.W * s.H {
		o := i * 4
		dst.Pix[o+0] = toByte(s.Ch[0][i])
		dst.Pix[o+1] = toByte(s.Ch[1][i])
		dst.Pix[o+2] = toByte(s.Ch[2][i])
		dst.Pix[o+3] = 0xff
	}
	return dst
}

func (s *signal) toGray() *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, s.W, s.H))
	for i, v := range s.Ch[0] {
		dst.Pix[i] = toByte(v)
	}
	return dst
}

// toByte bildet [0, 1] gerundet auf 0..255 ab.
func toByte(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

// splitYCbCr zerlegt ein RGB-Bild in Luma als signal und Chroma als Ebenen.
func splitYCbCr(img *image.RGBA) (*signal, *image.Gray, *image.Gray) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	y := newSignal(1, w, h)
	cb := image.NewGray(image.Rect(0, 0, w, h))
	cr := image.NewGray(image.Rect(0, 0, w, h))

	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			o := img.PixOffset(b.Min.X+px, b.Min.Y+py)
			yy, u, v := color.RGBToYCbCr(img.Pix[o], img.Pix[o+1], img.Pix[o+2])
			i := py*w + px
			y.Ch[0][i] = float32(yy) / 255
			cb.Pix[i] = u
			cr.Pix[i] = v
		}
	}
	return y, cb, cr
}

// mergeYCbCr setzt restaurierte Luma und vergroesserte Chroma wieder zusammen.
func mergeYCbCr(y *signal, cb, cr *image.Gray) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, y.W, y.H))
	for i, v := range y.Ch[0] {
		r, g, b := color.YCbCrToRGB(toByte(v), cb.Pix[i], cr.Pix[i])
		o := i * 4
		dst.Pix[o+0] = r
		dst.Pix[o+1] = g
		dst.Pix[o+2] = b
		dst.Pix[o+3] = 0xff
	}
	return dst
}
