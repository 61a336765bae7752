package pool

import (
	"container/heap"

	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/device"
)

// GPUPlan holds one InitArgs per worker, indexed by worker number.
type GPUPlan []InitArgs

// Devices returns the GPU ids of every worker.
func (p GPUPlan) Devices() [][]int {
	out := make([][]int, len(p))
	for i, a := range p {
		out[i] = a.GPUDevices
	}
	return out
}

// PlanGPUs spreads numWorkers workers over numGPUs GPUs. Each worker in
// turn gets the GPU with the fewest workers so far (lowest id on ties)
// until every GPU holds maxWorkersPerGPU workers; the remaining workers
// get an empty device list and run on CPU.
//
// Per-worker device lists only work with device.BackendDefault, so any
// other requested backend is overridden when numGPUs > 0. The backend
// actually used is returned.
func PlanGPUs(numWorkers, numGPUs, maxWorkersPerGPU int, backend device.Backend, logger *zap.Logger) (GPUPlan, device.Backend) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if numGPUs > 0 && backend != device.BackendDefault {
		logger.Warn("forcing backend for per-worker GPU assignment",
			zap.Stringer("requested", backend),
			zap.Stringer("forced", device.BackendDefault))
		backend = device.BackendDefault
	}

	gpus := make(gpuLoads, 0, max(numGPUs, 0))
	if maxWorkersPerGPU > 0 {
		for id := range max(numGPUs, 0) {
			gpus = append(gpus, gpuLoad{id: id})
		}
	}
	heap.Init(&gpus)

	plan := make(GPUPlan, max(numWorkers, 0))
	for w := range plan {
		devices := []int{}
		if gpus.Len() > 0 {
			g := heap.Pop(&gpus).(gpuLoad)
			devices = append(devices, g.id)
			g.assigned++
			if g.assigned < maxWorkersPerGPU {
				heap.Push(&gpus, g)
			}
		}

		plan[w] = InitArgs{Backend: backend, GPUDevices: devices}
		logger.Info("worker assigned GPUs", zap.Int("worker", w), zap.Ints("gpus", devices))
	}

	return plan, backend
}

type gpuLoad struct {
	id       int
	assigned int
}

// gpuLoads is a min-heap ordered by (assigned, id).
type gpuLoads []gpuLoad

func (h gpuLoads) Len() int { return len(h) }

func (h gpuLoads) Less(i, j int) bool {
	if h[i].assigned != h[j].assigned {
		return h[i].assigned < h[j].assigned
	}
	return h[i].id < h[j].id
}

func (h gpuLoads) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *gpuLoads) Push(x any) { *h = append(*h, x.(gpuLoad)) }

func (h *gpuLoads) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
