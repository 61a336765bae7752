package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/device"
	"github.com/utkarsh5026/mhcpool/pool"
)

func runPlan(_ context.Context, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	workers := fs.Int("workers", 1, "Number of workers")
	gpus := fs.Int("gpus", 1, "Number of GPUs")
	maxPerGPU := fs.Int("max-workers-per-gpu", pool.DefaultMaxWorkersPerGPU, "Maximum workers per GPU")
	var backend device.Backend
	fs.Var(&backend, "backend", "Requested backend: gpu, cpu or default")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *workers < 1 || *gpus < 0 {
		return fmt.Errorf("workers must be positive and gpus non-negative")
	}

	plan, used := pool.PlanGPUs(*workers, *gpus, max(*maxPerGPU, 1), backend, logger)

	_, _ = bold.Printf("%d workers on %d GPUs, backend %s\n\n", *workers, *gpus, used)
	if used != backend {
		_, _ = yellow.Printf("requested backend %s replaced by %s\n\n", backend, used)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Worker", "GPUs", "Device", "Environment")
	perGPU := map[int]int{}
	for i, a := range plan {
		dev := green.Sprint("gpu")
		if !a.Assignment().UsesGPU() {
			dev = yellow.Sprint("cpu")
		}
		for _, g := range a.GPUDevices {
			perGPU[g]++
		}
		_ = table.Append(strconv.Itoa(i), formatInts(a.GPUDevices), dev, strings.Join(a.Assignment().Environ(), " "))
	}
	_ = table.Render()

	fmt.Println()
	for g := range *gpus {
		fmt.Printf("gpu %d: %d workers\n", g, perGPU[g])
	}
	return nil
}

func formatInts(v []int) string {
	s := make([]string, len(v))
	for i, x := range v {
		s[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(s, ",") + "]"
}
