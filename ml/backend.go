// backend.go - Compute-Backends und Detector-Registrierung
// Dieses Modul definiert den Backend-Typ (cpu, cuda) und die Registry
// der Backend-Detektoren. Plattformspezifische Erkennung liegt in device_cuda.go.
package ml

import "sync"

// Backend repraesentiert ein verfuegbares Compute-Backend.
type Backend string

// Verfuegbare Backend-Typen
const (
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
)

// Detector ist das Interface fuer Backend-Erkennung.
type Detector interface {
	// Detect prueft ob das Backend verfuegbar ist
	Detect() bool

	// GetDevices gibt alle verfuegbaren Geraete zurueck
	GetDevices() []DeviceInfo

	// Backend gibt den Backend-Typ zurueck
	Backend() Backend
}

var (
	detectorsMu sync.RWMutex
	detectors   = make(map[Backend]Detector)
)

// RegisterDetector registriert einen Detektor fuer ein Backend.
// Ein vorhandener Detektor wird ersetzt.
func RegisterDetector(d Detector) {
	detectorsMu.Lock()
	defer detectorsMu.Unlock()

	detectors[d.Backend()] = d
}

func detector(b Backend) (Detector, bool) {
	detectorsMu.RLock()
	defer detectorsMu.RUnlock()

	d, ok := detectors[b]
	return d, ok
}

// DetectBackends erkennt alle verfuegbaren Backends. CPU ist immer dabei.
func DetectBackends() []Backend {
	available := []Backend{BackendCPU}

	if d, ok := detector(BackendCUDA); ok && d.Detect() {
		available = append(available, BackendCUDA)
	}

	return available
}

// IsBackendAvailable prueft ob ein bestimmtes Backend verfuegbar ist.
func IsBackendAvailable(b Backend) bool {
	if b == BackendCPU {
		return true
	}
	if d, ok := detector(b); ok {
		return d.Detect()
	}
	return false
}
