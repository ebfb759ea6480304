// device_info.go
// Dieses Modul enthaelt die DeviceInfo-Struktur und die Auflistung
// aller erkannten Geraete.

package ml

import (
	"fmt"
	"log/slog"
)

// DeviceInfo enthaelt Informationen ueber ein verfuegbares Compute-Geraet.
type DeviceInfo struct {
	Backend Backend `json:"backend"`

	// ID ist der Geraete-Index innerhalb des Backends (-1 fuer CPU)
	ID int `json:"id"`

	// Name is the name of the device as labeled by the backend.
	Name string `json:"name"`

	// TotalMemory is the total amount of memory of the device in bytes
	TotalMemory uint64 `json:"total_memory,omitempty"`

	// FreeMemory is the amount of memory currently available in bytes
	FreeMemory uint64 `json:"free_memory,omitempty"`
}

func (d DeviceInfo) String() string {
	if d.Backend == BackendCPU {
		return string(BackendCPU)
	}
	return fmt.Sprintf("%s:%d", d.Backend, d.ID)
}

// LogValue implementiert slog.LogValuer
func (d DeviceInfo) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("backend", string(d.Backend)),
		slog.Int("id", d.ID),
		slog.String("name", d.Name),
	}
	if d.TotalMemory > 0 {
		attrs = append(attrs, slog.Uint64("total", d.TotalMemory), slog.Uint64("free", d.FreeMemory))
	}
	return slog.GroupValue(attrs...)
}

func cpuDeviceInfo() DeviceInfo {
	return DeviceInfo{
		Backend: BackendCPU,
		ID:      -1,
		Name:    "CPU",
	}
}

// Devices gibt alle verfuegbaren Geraete zurueck, CPU zuerst.
func Devices() []DeviceInfo {
	devices := []DeviceInfo{cpuDeviceInfo()}

	if d, ok := detector(BackendCUDA); ok && d.Detect() {
		devices = append(devices, d.GetDevices()...)
	}

	return devices
}
