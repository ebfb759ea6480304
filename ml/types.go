// types.go - Tensor-Typ fuer die Modell-Schnittstelle
// Modelle bekommen und liefern dichte float32-Tensoren im NCHW-Layout,
// Werte im Bereich [0, 1].
package ml

import "fmt"

// Tensor ist ein dichter float32-Tensor im NCHW-Layout.
type Tensor struct {
	N, C, H, W int
	Data       []float32
}

// NewTensor alloziert einen genullten Tensor.
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float32, n*c*h*w)}
}

// Shape gibt die Form als int64-Slice zurueck, wie sie Runtimes erwarten.
func (t *Tensor) Shape() []int64 {
	return []int64{int64(t.N), int64(t.C), int64(t.H), int64(t.W)}
}

// Plane gibt die Ebene (n, c) als Teil-Slice ohne Kopie zurueck.
func (t *Tensor) Plane(n, c int) []float32 {
	size := t.H * t.W
	off := (n*t.C + c) * size
	return t.Data[off : off+size]
}

// Item gibt das n-te Element des Batches als Tensor mit N=1 zurueck (ohne Kopie).
func (t *Tensor) Item(n int) *Tensor {
	size := t.C * t.H * t.W
	return &Tensor{N: 1, C: t.C, H: t.H, W: t.W, Data: t.Data[n*size : (n+1)*size]}
}

// Validate prueft ob Data zur Form passt.
func (t *Tensor) Validate() error {
	if t.N <= 0 || t.C <= 0 || t.H <= 0 || t.W <= 0 {
		return fmt.Errorf("ml: invalid tensor shape %v", t.Shape())
	}
	if len(t.Data) != t.N*t.C*t.H*t.W {
		return fmt.Errorf("ml: tensor data length %d does not match shape %v", len(t.Data), t.Shape())
	}
	return nil
}
