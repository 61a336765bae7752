// Package device describes which compute backend and accelerators a
// worker is bound to, and how that binding is applied to the worker's OS
// thread and to child processes it launches.
package device

import (
	"fmt"
	"strconv"
	"strings"
)

// Backend selects the compute backend a worker initializes.
type Backend string

const (
	// BackendUnset leaves the choice to the system default.
	BackendUnset Backend = ""
	// BackendGPU requires GPU execution.
	BackendGPU Backend = "gpu"
	// BackendCPU hides all accelerators from the worker.
	BackendCPU Backend = "cpu"
	// BackendDefault lets each worker pick GPU or CPU from its own device
	// list. This is the only mode that supports mixed per-worker devices.
	BackendDefault Backend = "default"
)

// CUDAVisibleDevicesEnv is the variable consulted by GPU runtimes to pick
// devices for a process.
const CUDAVisibleDevicesEnv = "CUDA_VISIBLE_DEVICES"

// Backends lists the accepted values for a backend flag.
func Backends() []Backend {
	return []Backend{BackendGPU, BackendCPU, BackendDefault}
}

// ParseBackend accepts the short names as well as the historical
// tensorflow-* spellings.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return BackendUnset, nil
	case "gpu", "tensorflow-gpu":
		return BackendGPU, nil
	case "cpu", "tensorflow-cpu":
		return BackendCPU, nil
	case "default", "tensorflow-default":
		return BackendDefault, nil
	}
	return BackendUnset, fmt.Errorf("device: unknown backend %q (want one of gpu, cpu, default)", s)
}

func (b Backend) String() string {
	if b == BackendUnset {
		return "unset"
	}
	return string(b)
}

// Set implements flag.Value.
func (b *Backend) Set(s string) error {
	v, err := ParseBackend(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Assignment is the device binding of one worker.
type Assignment struct {
	Backend Backend
	// GPUs is nil when no device list was requested and empty when the
	// worker was explicitly left on CPU.
	GPUs []int
}

// UsesGPU reports whether the worker was handed at least one GPU.
func (a Assignment) UsesGPU() bool {
	return len(a.GPUs) > 0 && a.Backend != BackendCPU
}

// Environ returns the environment entries a child process needs to see
// the same devices as the worker. It returns nil when the assignment does
// not constrain devices.
func (a Assignment) Environ() []string {
	switch {
	case a.Backend == BackendCPU:
		return []string{CUDAVisibleDevicesEnv + "="}
	case a.GPUs != nil:
		return []string{CUDAVisibleDevicesEnv + "=" + joinInts(a.GPUs)}
	}
	return nil
}

func (a Assignment) String() string {
	return fmt.Sprintf("backend=%s gpus=[%s]", a.Backend, joinInts(a.GPUs))
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}
