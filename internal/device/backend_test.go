package device

import (
	"flag"
	"testing"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{in: "", want: BackendUnset},
		{in: "gpu", want: BackendGPU},
		{in: "tensorflow-gpu", want: BackendGPU},
		{in: "CPU", want: BackendCPU},
		{in: "tensorflow-default", want: BackendDefault},
		{in: "tpu", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBackend_FlagValue(t *testing.T) {
	var b Backend
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&b, "backend", "")

	if err := fs.Parse([]string{"-backend", "tensorflow-cpu"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b != BackendCPU {
		t.Errorf("expected cpu, got %s", b)
	}
}

func TestAssignment_Environ(t *testing.T) {
	tests := []struct {
		name string
		a    Assignment
		want []string
	}{
		{name: "unconstrained", a: Assignment{}, want: nil},
		{name: "single gpu", a: Assignment{Backend: BackendDefault, GPUs: []int{1}}, want: []string{"CUDA_VISIBLE_DEVICES=1"}},
		{name: "many gpus", a: Assignment{GPUs: []int{0, 2}}, want: []string{"CUDA_VISIBLE_DEVICES=0,2"}},
		{name: "cpu fallback", a: Assignment{Backend: BackendDefault, GPUs: []int{}}, want: []string{"CUDA_VISIBLE_DEVICES="}},
		{name: "cpu backend", a: Assignment{Backend: BackendCPU, GPUs: []int{3}}, want: []string{"CUDA_VISIBLE_DEVICES="}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Environ()
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: expected %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestBind_ReleaseIsIdempotent(t *testing.T) {
	b, err := Bind(Assignment{Backend: BackendCPU}, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Core != -1 {
		t.Errorf("expected unpinned thread, got core %d", b.Core)
	}
	b.Release()
	b.Release()

	var nilBinding *Binding
	nilBinding.Release()
}
