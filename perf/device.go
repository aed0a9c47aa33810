package perf

import (
	"context"
	"runtime"
)

// Device summarizes the resources available to the process
type Device struct {
	// MemoryRatio is heap in use over memory obtained from the OS
	MemoryRatio     float64 `json:"memory,omitempty"`
	Cores           int     `json:"cores,omitempty"`
	ConnectionSpeed string  `json:"connection_speed,omitempty"`
}

// DevicePerformance reads the Go runtime; ConnectionSpeed comes from probe when given
func DevicePerformance(ctx context.Context, probe Connectivity) Device {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	d := Device{Cores: runtime.NumCPU()}
	if ms.Sys > 0 {
		d.MemoryRatio = float64(ms.HeapInuse) / float64(ms.Sys)
	}
	if probe != nil {
		if info, err := probe.Probe(ctx); err == nil {
			d.ConnectionSpeed = info.EffectiveType
		}
	}
	return d
}
