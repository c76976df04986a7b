package runtime

import (
	"fmt"
	"os/exec"
	goruntime "runtime"
	"strings"
)

// Device is the compute target a model handle is bound to.
type Device int

const (
	DeviceStandard Device = iota
	DeviceAccelerated
)

func (d Device) String() string {
	switch d {
	case DeviceAccelerated:
		return "accelerated"
	default:
		return "standard"
	}
}

// ParseDevice maps a configuration string to a device. "auto" (or empty)
// runs detection.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return DetectDevice(), nil
	case "accelerated", "gpu", "cuda":
		return DeviceAccelerated, nil
	case "standard", "cpu":
		return DeviceStandard, nil
	default:
		return DeviceStandard, fmt.Errorf("unknown device %q (want auto|accelerated|standard)", s)
	}
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// DetectDevice reports accelerated when a GPU toolchain is visible on this
// host, standard otherwise.
func DetectDevice() Device {
	if goruntime.GOOS == "darwin" && goruntime.GOARCH == "arm64" {
		return DeviceAccelerated
	}
	for _, bin := range []string{"nvidia-smi", "rocm-smi"} {
		if _, err := lookPath(bin); err == nil {
			return DeviceAccelerated
		}
	}
	return DeviceStandard
}
