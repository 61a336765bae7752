package pool

import (
	"reflect"
	"testing"

	"github.com/utkarsh5026/mhcpool/internal/device"
)

func TestPlanGPUs_RoundRobinWithCap(t *testing.T) {
	plan, backend := PlanGPUs(5, 2, 2, device.BackendDefault, nil)

	want := [][]int{{0}, {1}, {0}, {1}, {}}
	if got := plan.Devices(); !reflect.DeepEqual(got, want) {
		t.Fatalf("devices = %v, want %v", got, want)
	}
	if backend != device.BackendDefault {
		t.Errorf("backend = %v, want %v", backend, device.BackendDefault)
	}
}

func TestPlanGPUs_Bounds(t *testing.T) {
	tests := []struct {
		name                     string
		workers, gpus, maxPerGPU int
	}{
		{"more gpus than workers", 3, 8, 1000},
		{"single gpu cap one", 4, 1, 1},
		{"cap larger than demand", 10, 3, 1000},
		{"no gpus", 4, 0, 1000},
		{"zero cap", 4, 2, 0},
		{"many workers", 37, 4, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, _ := PlanGPUs(tt.workers, tt.gpus, tt.maxPerGPU, device.BackendDefault, nil)
			if len(plan) != tt.workers {
				t.Fatalf("len(plan) = %d, want %d", len(plan), tt.workers)
			}

			perGPU := map[int]int{}
			assigned := 0
			for i, args := range plan {
				if args.GPUDevices == nil {
					t.Fatalf("worker %d: nil device list", i)
				}
				if len(args.GPUDevices) > 1 {
					t.Fatalf("worker %d: %d devices", i, len(args.GPUDevices))
				}
				for _, g := range args.GPUDevices {
					if g < 0 || g >= tt.gpus {
						t.Fatalf("worker %d: gpu %d out of range", i, g)
					}
					perGPU[g]++
					assigned++
				}
			}

			for g, n := range perGPU {
				if n > tt.maxPerGPU {
					t.Errorf("gpu %d holds %d workers, cap %d", g, n, tt.maxPerGPU)
				}
			}

			wantAssigned := min(tt.workers, tt.gpus*max(tt.maxPerGPU, 0))
			if assigned != wantAssigned {
				t.Errorf("assigned %d workers to gpus, want %d", assigned, wantAssigned)
			}
		})
	}
}

func TestPlanGPUs_EvenSpread(t *testing.T) {
	plan, _ := PlanGPUs(7, 3, 1000, device.BackendDefault, nil)

	want := [][]int{{0}, {1}, {2}, {0}, {1}, {2}, {0}}
	if got := plan.Devices(); !reflect.DeepEqual(got, want) {
		t.Fatalf("devices = %v, want %v", got, want)
	}
}

func TestPlanGPUs_ForcesDefaultBackend(t *testing.T) {
	for _, requested := range []device.Backend{device.BackendUnset, device.BackendGPU, device.BackendCPU} {
		t.Run(requested.String(), func(t *testing.T) {
			plan, backend := PlanGPUs(2, 1, 1000, requested, nil)
			if backend != device.BackendDefault {
				t.Fatalf("backend = %v, want %v", backend, device.BackendDefault)
			}
			for i, args := range plan {
				if args.Backend != device.BackendDefault {
					t.Errorf("worker %d backend = %v", i, args.Backend)
				}
			}
		})
	}

	if _, backend := PlanGPUs(2, 0, 1000, device.BackendCPU, nil); backend != device.BackendCPU {
		t.Errorf("backend without gpus = %v, want %v", backend, device.BackendCPU)
	}
}
