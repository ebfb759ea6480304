// device_cuda.go - CUDA-Erkennung ueber nvidia-smi
// Es wird keine CUDA-Runtime gelinkt; die Erkennung fragt nvidia-smi ab.
// Die eigentliche Ausfuehrung auf der GPU uebernimmt die ONNX Runtime.
package ml

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

type cudaDetector struct {
	once    sync.Once
	devices []DeviceInfo
	query   func(ctx context.Context) ([]byte, error)
}

func newCUDADetector() *cudaDetector {
	return &cudaDetector{query: queryNvidiaSMI}
}

func (d *cudaDetector) Backend() Backend {
	return BackendCUDA
}

func (d *cudaDetector) Detect() bool {
	return len(d.GetDevices()) > 0
}

func (d *cudaDetector) GetDevices() []DeviceInfo {
	d.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		out, err := d.query(ctx)
		if err != nil {
			slog.Debug("cuda detection skipped", "error", err)
			return
		}
		d.devices = parseNvidiaSMI(out)
	})
	return d.devices
}

func queryNvidiaSMI(ctx context.Context) ([]byte, error) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, err
	}

	return exec.CommandContext(ctx, path,
		"--query-gpu=index,name,memory.total,memory.free",
		"--format=csv,noheader,nounits",
	).Output()
}

// parseNvidiaSMI liest Zeilen der Form "0, NVIDIA GeForce RTX 3090, 24576, 23000".
// Speicherangaben sind MiB.
func parseNvidiaSMI(out []byte) []DeviceInfo {
	var devices []DeviceInfo

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ",")
		if len(fields) < 2 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			continue
		}

		info := DeviceInfo{
			Backend: BackendCUDA,
			ID:      id,
			Name:    strings.TrimSpace(fields[1]),
		}
		if len(fields) >= 4 {
			total, _ := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 64)
			free, _ := strconv.ParseUint(strings.TrimSpace(fields[3]), 10, 64)
			info.TotalMemory = total << 20
			info.FreeMemory = free << 20
		}

		devices = append(devices, info)
	}

	return devices
}

func init() {
	RegisterDetector(newCUDADetector())
}
