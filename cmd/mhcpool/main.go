// Command mhcpool plans worker device assignments, trains affinity
// ensembles on a worker pool and manages local downloads.
//
// Usage:
//
//	mhcpool plan -workers 8 -gpus 2 -max-workers-per-gpu 3
//	mhcpool train -allele HLA-A*02:05 -models 8 -num-jobs 4 -gpus 2
//	mhcpool path data_curated curated_training_data.csv
//	mhcpool downloads [list|info|fetch]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/downloads"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, logger *zap.Logger, args []string) error
}

var commands = []command{
	{"plan", "show the GPU assignment of each worker", runPlan},
	{"train", "train an allele-specific ensemble on a worker pool", runTrain},
	{"path", "print the local path of a downloaded file", runPath},
	{"downloads", "list, describe or fetch downloads", runDownloads},
}

func main() {
	global := flag.NewFlagSet("mhcpool", flag.ExitOnError)
	verbose := global.Bool("verbose", false, "Log debug output in human readable form")
	plain := global.Bool("plain", false, "Disable colored output")
	global.Usage = usage(global)
	_ = global.Parse(os.Args[1:])

	if *plain {
		color.NoColor = true
	}

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(ctx, logger.Named(c.name), args[1:]); err != nil {
			report(err)
			stop()
			os.Exit(1)
		}
		return
	}

	_, _ = red.Fprintf(os.Stderr, "unknown command %q\n", args[0])
	global.Usage()
	os.Exit(2)
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		_, _ = bold.Fprintln(os.Stderr, "usage: mhcpool [-verbose] [-plain] <command> [flags]")
		fmt.Fprintln(os.Stderr)
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintln(os.Stderr)
		fs.PrintDefaults()
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// report prints err for a human. Missing downloads get the command that
// fetches them.
func report(err error) {
	var missing *downloads.MissingError
	if errors.As(err, &missing) {
		_, _ = red.Fprintf(os.Stderr, "missing download %s: %s\n", missing.Name, missing.Path)
		_, _ = yellow.Fprintf(os.Stderr, "to fetch it, run:\n\t%s\n", missing.Remediation())
		return
	}
	_, _ = red.Fprintln(os.Stderr, "error:", err)
}
