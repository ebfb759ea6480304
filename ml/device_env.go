// device_env.go - Auswahl des Beschleunigers
// Das Geraet wird einmal beim Start gewaehlt und als Handle an Engine und
// Loader weitergereicht. Es gibt keinen globalen "aktiven" Zustand.
package ml

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedAccelerator wird zurueckgegeben wenn der angeforderte
// Geraete-Index nicht verfuegbar ist.
var ErrUnsupportedAccelerator = errors.New("ml: unsupported accelerator")

// Device ist ein explizites Handle auf das gewaehlte Compute-Geraet.
type Device struct {
	DeviceInfo
}

// CPU gibt das CPU-Handle zurueck.
func CPU() Device {
	return Device{cpuDeviceInfo()}
}

// IsCPU meldet ob kein Beschleuniger verwendet wird.
func (d Device) IsCPU() bool {
	return d.Backend == BackendCPU || d.Backend == ""
}

// Parallelism gibt die Anzahl gleichzeitig ausfuehrbarer Batches zurueck.
// Auf der GPU serialisiert der Treiber ohnehin, mehrere Batches wuerden
// nur Speicher kosten.
func (d Device) Parallelism() int {
	if !d.IsCPU() {
		return 1
	}
	return min(max(runtime.NumCPU()/2, 1), 4)
}

// SelectDevice waehlt das Geraet mit dem gegebenen Index.
// index < 0 waehlt die CPU. Ein nicht vorhandener Index ist ein Fehler,
// es findet kein stiller Fallback auf die CPU statt.
func SelectDevice(index int) (Device, error) {
	if index < 0 {
		return CPU(), nil
	}

	d, ok := detector(BackendCUDA)
	if !ok || !d.Detect() {
		return Device{}, fmt.Errorf("%w: device %d requested but cuda is not available", ErrUnsupportedAccelerator, index)
	}

	for _, info := range d.GetDevices() {
		if info.ID == index {
			return Device{info}, nil
		}
	}

	return Device{}, fmt.Errorf("%w: cuda device %d not found", ErrUnsupportedAccelerator, index)
}
