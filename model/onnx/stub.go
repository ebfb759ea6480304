//go:build !cgo

// MODUL: onnx/stub
// ZWECK: Stub-Implementierung wenn CGO nicht verfuegbar ist
// HINWEISE: Load gibt immer ErrCGORequired zurueck

package onnx

import (
	"context"
	"errors"

	"github.com/7blacky7/waifu2x-go/model"
)

// ErrCGORequired wird zurueckgegeben wenn CGO nicht verfuegbar ist
var ErrCGORequired = errors.New("onnx: CGO required but not available")

// Load Stub
func Load(ctx context.Context, data []byte, opts model.LoadOptions) (model.Model, error) {
	return nil, ErrCGORequired
}

// InitRuntime Stub
func InitRuntime() error {
	return ErrCGORequired
}

// DestroyRuntime Stub
func DestroyRuntime() error {
	return nil
}
