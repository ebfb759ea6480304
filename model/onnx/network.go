//go:build cgo

// MODUL: onnx/network
// ZWECK: model.Model auf Basis einer ONNX Runtime Session
// INPUT: ONNX-Bytes, model.LoadOptions
// OUTPUT: Network (model.Model)
// NEBENEFFEKTE: Alloziert ONNX Runtime Ressourcen, GPU Memory
// ABHAENGIGKEITEN: runtime.go, onnxruntime_go, ml (Tensor)
// HINWEISE: Thread-sicher, Close() MUSS aufgerufen werden

package onnx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/7blacky7/waifu2x-go/ml"
	"github.com/7blacky7/waifu2x-go/model"
)

// ============================================================================
// Konstanten und Fehler
// ============================================================================

const (
	// DefaultInputName wird verwendet wenn das Modell keine Namen preisgibt
	DefaultInputName = "x"

	// DefaultOutputName analog fuer den Ausgang
	DefaultOutputName = "y"
)

var (
	ErrSessionCreate = errors.New("onnx: session erstellen fehlgeschlagen")
	ErrInference     = errors.New("onnx: inference fehlgeschlagen")
	ErrAlreadyClosed = errors.New("onnx: modell bereits geschlossen")
)

// ============================================================================
// Network
// ============================================================================

// Network implementiert model.Model mit ONNX Runtime.
// Die Geometrie kommt aus der Architektur-Tabelle, nicht aus dem Graphen.
type Network struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string

	key      model.Key
	inner    int
	offset   int
	channels int

	mu     sync.RWMutex
	closed bool
}

// Load ist der model.Loader fuer ".onnx" Artefakte.
func Load(ctx context.Context, data []byte, opts model.LoadOptions) (model.Model, error) {
	if err := InitRuntime(); err != nil {
		return nil, fmt.Errorf("runtime init: %w", err)
	}

	inputName, outputName := ioNames(data)

	sessOpts, err := sessionOptions(opts.Device)
	if err != nil {
		return nil, err
	}
	defer sessOpts.Destroy()

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(
		data,
		[]string{inputName},
		[]string{outputName},
		sessOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	return &Network{
		session:    session,
		inputName:  inputName,
		outputName: outputName,
		key:        opts.Key,
		inner:      opts.Arch.InnerScale,
		offset:     opts.Arch.Offset,
		channels:   opts.Color.Channels(),
	}, nil
}

// ioNames liest die Tensor-Namen aus dem Graphen (Fallback: x / y).
func ioNames(data []byte) (string, string) {
	inputName, outputName := DefaultInputName, DefaultOutputName
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return inputName, outputName
	}
	if len(inputs) > 0 {
		inputName = inputs[0].Name
	}
	if len(outputs) > 0 {
		outputName = outputs[0].Name
	}
	return inputName, outputName
}

func (n *Network) InnerScale() int { return n.inner }
func (n *Network) Offset() int     { return n.offset }
func (n *Network) Channels() int   { return n.channels }

// Key gibt die Identitaet des Modells zurueck.
func (n *Network) Key() model.Key { return n.key }

// Forward fuehrt eine Inferenz auf einem NCHW-Batch aus.
func (n *Network) Forward(ctx context.Context, x *ml.Tensor) (*ml.Tensor, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		return nil, ErrAlreadyClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}

	oh, ow := x.H*n.inner-2*n.offset, x.W*n.inner-2*n.offset
	if oh <= 0 || ow <= 0 {
		return nil, fmt.Errorf("%w: input %dx%d smaller than receptive field", ErrInference, x.W, x.H)
	}

	input, err := ort.NewTensor(ort.NewShape(x.Shape()...), x.Data)
	if err != nil {
		return nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	out := ml.NewTensor(x.N, x.C, oh, ow)
	output, err := ort.NewTensor(ort.NewShape(out.Shape()...), out.Data)
	if err != nil {
		return nil, fmt.Errorf("output tensor: %w", err)
	}
	defer output.Destroy()

	if err := n.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInference, n.key, err)
	}

	// out.Data ist der Speicher des Ausgabe-Tensors
	return out, nil
}

// Close gibt die Session frei.
func (n *Network) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	if n.session != nil {
		if err := n.session.Destroy(); err != nil {
			return err
		}
		n.session = nil
	}
	n.closed = true
	return nil
}
