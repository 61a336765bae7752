package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/downloads"
)

func runPath(_ context.Context, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("path", flag.ContinueOnError)
	allowMissing := fs.Bool("allow-missing", false, "Print the path even if the file does not exist")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errors.New("usage: mhcpool path [-allow-missing] <download> [filename]")
	}

	cfg, err := downloads.FromEnv(logger)
	if err != nil {
		return err
	}
	path, err := cfg.Path(fs.Arg(0), fs.Arg(1), !*allowMissing)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runDownloads(ctx context.Context, logger *zap.Logger, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	cfg, err := downloads.FromEnv(logger)
	if err != nil {
		return err
	}

	switch sub {
	case "list":
		return listDownloads(cfg)
	case "info":
		return downloadsInfo(cfg)
	case "fetch":
		return fetchDownloads(ctx, cfg, args)
	}
	return fmt.Errorf("unknown downloads command %q (want list, info or fetch)", sub)
}

func listDownloads(cfg *downloads.Config) error {
	all, err := cfg.CurrentReleaseDownloads()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Download", "Downloaded", "Default", "Description")
	for _, d := range all {
		status := red.Sprint("no")
		if d.Downloaded {
			status = green.Sprint("yes")
		}
		def := ""
		if d.Default {
			def = "yes"
		}
		_ = table.Append(d.Name, status, def, d.Description)
	}
	return table.Render()
}

func downloadsInfo(cfg *downloads.Config) error {
	release := cfg.CurrentRelease()
	if release == "" {
		release = "(set by " + downloads.EnvDownloadsDir + ")"
	}
	_, _ = bold.Println("Environment variables")
	for _, name := range downloads.EnvironmentVariables {
		fmt.Printf("  %s=%s\n", name, os.Getenv(name))
	}
	fmt.Println()
	fmt.Printf("Release:       %s\n", release)
	fmt.Printf("Downloads dir: %s\n", cfg.DownloadsDir())
	return nil
}

func fetchDownloads(ctx context.Context, cfg *downloads.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	source := fs.String("url", "", "Fetch from this URL instead of the manifest's")
	if err := fs.Parse(args); err != nil {
		return err
	}

	names := fs.Args()
	if len(names) == 0 {
		all, err := cfg.CurrentReleaseDownloads()
		if err != nil {
			return err
		}
		for _, d := range all {
			if d.Default && !d.Downloaded {
				names = append(names, d.Name)
			}
		}
		if len(names) == 0 {
			_, _ = green.Println("all default downloads present")
			return nil
		}
	}
	if *source != "" && len(names) != 1 {
		return errors.New("-url needs exactly one download name")
	}

	var failed []string
	for _, name := range names {
		path, err := cfg.Fetch(ctx, nil, name, *source, func(size int64) io.Writer {
			return progressbar.DefaultBytes(size, "fetching "+name)
		})
		if err != nil {
			_, _ = red.Fprintf(os.Stderr, "%s: %v\n", name, err)
			failed = append(failed, name)
			continue
		}
		_, _ = green.Printf("%s -> %s\n", name, path)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to fetch %s", strings.Join(failed, ", "))
	}
	return nil
}
