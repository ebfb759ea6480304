// config_features.go - Laufzeit-, Backend- und Server-Limits
//
// Dieses Modul enthaelt:
// - ONNX Runtime Einstellungen
// - Parallelitaets- und Upload-Limits des Servers
package envconfig

// =============================================================================
// ONNX Runtime
// =============================================================================

var (
	// OrtLibrary ist der Pfad zur onnxruntime Shared Library
	// Leer = Systemsuche des Loaders
	OrtLibrary = String("WAIFU2X_ORT_LIBRARY")

	// NumThreads setzt die Intra-Op Threads der ONNX Session (0 = auto)
	NumThreads = Uint("WAIFU2X_NUM_THREADS", 0)

	// CudaVisibleDevices steuert sichtbare NVIDIA-Geraete
	CudaVisibleDevices = String("CUDA_VISIBLE_DEVICES")
)

// =============================================================================
// Server-Limits
// =============================================================================

var (
	// NumParallel setzt die Anzahl gleichzeitig verarbeiteter Bilder
	// Konfigurierbar via WAIFU2X_NUM_PARALLEL
	NumParallel = Uint("WAIFU2X_NUM_PARALLEL", 1)

	// MaxPixels begrenzt die Quellbildgroesse (Breite*Hoehe) im Server
	// Konfigurierbar via WAIFU2X_MAX_PIXELS
	MaxPixels = Uint64("WAIFU2X_MAX_PIXELS", 16<<20)

	// NoCache deaktiviert das Zwischenspeichern geladener Modelle im Server
	NoCache = Bool("WAIFU2X_NOCACHE")
)
