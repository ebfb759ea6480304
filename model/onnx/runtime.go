//go:build cgo

// MODUL: onnx/runtime
// ZWECK: ONNX Runtime einmalig initialisieren, Session-Optionen pro Geraet bauen
// INPUT: WAIFU2X_ORT_LIBRARY, WAIFU2X_NUM_THREADS, ml.Device
// OUTPUT: *ort.SessionOptions
// NEBENEFFEKTE: Laedt die onnxruntime Shared Library
// ABHAENGIGKEITEN: onnxruntime_go, envconfig
// HINWEISE: DestroyRuntime() MUSS am Programmende aufgerufen werden

package onnx

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/7blacky7/waifu2x-go/envconfig"
	"github.com/7blacky7/waifu2x-go/ml"
)

// ============================================================================
// Runtime Initialisierung (Singleton)
// ============================================================================

var (
	runtimeInitOnce sync.Once
	runtimeInitErr  error
)

// InitRuntime initialisiert die ONNX Runtime einmalig.
// Wird automatisch beim ersten Laden eines Modells aufgerufen.
func InitRuntime() error {
	runtimeInitOnce.Do(func() {
		if lib := envconfig.OrtLibrary(); lib != "" {
			ort.SetSharedLibraryPath(lib)
		}
		runtimeInitErr = ort.InitializeEnvironment()
		if runtimeInitErr == nil {
			slog.Debug("onnxruntime initialized", "library", envconfig.OrtLibrary())
		}
	})
	return runtimeInitErr
}

// DestroyRuntime gibt die ONNX Runtime frei, falls sie initialisiert wurde.
func DestroyRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ============================================================================
// Session-Optionen
// ============================================================================

// sessionOptions baut die Optionen fuer das gewaehlte Geraet.
// Ein nicht einrichtbarer CUDA-Provider ist ein Fehler: das Geraet wurde
// beim Start explizit gewaehlt.
func sessionOptions(device ml.Device) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}

	if n := envconfig.NumThreads(); n > 0 {
		if err := opts.SetIntraOpNumThreads(int(n)); err != nil {
			opts.Destroy()
			return nil, fmt.Errorf("threads setzen: %w", err)
		}
	}

	if device.IsCPU() {
		return opts, nil
	}

	cudaOpts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("%w: %v", ml.ErrUnsupportedAccelerator, err)
	}
	defer cudaOpts.Destroy()

	if err := cudaOpts.Update(map[string]string{
		"device_id": strconv.Itoa(device.ID),
	}); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("%w: %v", ml.ErrUnsupportedAccelerator, err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("%w: %v", ml.ErrUnsupportedAccelerator, err)
	}
	return opts, nil
}
