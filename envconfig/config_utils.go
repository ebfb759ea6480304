// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint/Uint64: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Integer-Getter
// =============================================================================

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Uint64 gibt eine Funktion zurueck, die einen uint64 mit Default-Wert liest
func Uint64(key string, defaultValue uint64) func() uint64 {
	return func() uint64 {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return n
			}
		}
		return defaultValue
	}
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	ret := map[string]EnvVar{
		"WAIFU2X_DEBUG":        {"WAIFU2X_DEBUG", LogLevel(), "Show additional debug information (e.g. WAIFU2X_DEBUG=1)"},
		"WAIFU2X_HOST":         {"WAIFU2X_HOST", Host(), "IP Address for the waifu2x server (default 127.0.0.1:8812)"},
		"WAIFU2X_MODELS":       {"WAIFU2X_MODELS", Models(), "The path to the models directory"},
		"WAIFU2X_GPU":          {"WAIFU2X_GPU", Device(), "Accelerator device index, -1 for CPU (default -1)"},
		"WAIFU2X_ORIGINS":      {"WAIFU2X_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"WAIFU2X_NUM_PARALLEL": {"WAIFU2X_NUM_PARALLEL", NumParallel(), "Maximum number of images processed in parallel by the server"},
		"WAIFU2X_MAX_PIXELS":   {"WAIFU2X_MAX_PIXELS", MaxPixels(), "Maximum source image size in pixels accepted by the server"},
		"WAIFU2X_NOCACHE":      {"WAIFU2X_NOCACHE", NoCache(), "Do not keep loaded models between server requests"},
		"WAIFU2X_ORT_LIBRARY":  {"WAIFU2X_ORT_LIBRARY", OrtLibrary(), "Path to the onnxruntime shared library"},
		"WAIFU2X_NUM_THREADS":  {"WAIFU2X_NUM_THREADS", NumThreads(), "Intra-op threads for the inference session (0 = auto)"},
	}

	// Nicht-macOS: GPU-Variablen
	if runtime.GOOS != "darwin" {
		ret["CUDA_VISIBLE_DEVICES"] = EnvVar{"CUDA_VISIBLE_DEVICES", CudaVisibleDevices(), "Set which NVIDIA devices are visible"}
	}

	return ret
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
