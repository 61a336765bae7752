package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/utkarsh5026/mhcpool/internal/downloads"
	"github.com/utkarsh5026/mhcpool/internal/ensemble"
	"github.com/utkarsh5026/mhcpool/pool"
)

func runTrain(ctx context.Context, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	data := fs.String("data", "", "Training CSV. Defaults to the curated training data download.")
	allele := fs.String("allele", "", "Allele to train (required)")
	length := fs.Int("length", 9, "Peptide length to train on")
	measurementType := fs.String("measurement-type", "", "Only use measurements of this type, e.g. quantitative")
	models := fs.Int("models", 4, "Number of models in the ensemble")
	epochs := fs.Int("epochs", ensemble.DefaultLinearConfig().Epochs, "Training epochs per model")
	seed := fs.Uint64("seed", 0, "Base seed for reproducible models. 0 seeds each model from its worker.")
	ci := fs.Bool("ci", false, "Disable the progress bar")
	poolFlags := pool.AddWorkerPoolFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *allele == "" {
		return errors.New("-allele is required")
	}

	path := *data
	if path == "" {
		cfg, err := downloads.FromEnv(logger)
		if err != nil {
			return err
		}
		if path, err = cfg.GetPath("data_curated", "curated_training_data.csv"); err != nil {
			return err
		}
	}

	ms, err := loadMeasurements(path)
	if err != nil {
		return err
	}
	ms = ensemble.Filter(ms, *allele, *length, *measurementType)
	if len(ms) == 0 {
		return fmt.Errorf("no %d-mer measurements for %s in %s", *length, *allele, path)
	}
	peptides, values := ensemble.Split(ms)

	p, err := pool.BuildFromFlags(poolFlags, logger)
	if err != nil {
		return err
	}
	if p != nil {
		defer p.Terminate()
	}

	var bar *progressbar.ProgressBar
	if !*ci {
		bar = progressbar.NewOptions(*models,
			progressbar.OptionSetDescription("Fitting "+*allele),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionClearOnFinish(),
		)
	}

	estCfg := ensemble.DefaultLinearConfig()
	estCfg.PeptideLength = *length
	estCfg.Epochs = *epochs

	start := time.Now()
	ens, err := ensemble.Train(ctx, p, ensemble.TrainConfig{
		Allele:     *allele,
		Peptides:   peptides,
		Affinities: values,
		NumModels:  *models,
		Factory:    ensemble.LinearFactory(estCfg),
		Seed:       *seed,
		Logger:     logger,
		OnFitted: func(ensemble.Member) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if p != nil {
		if err := p.Shutdown(time.Minute); err != nil {
			logger.Warn("pool shutdown", zap.Error(err))
		}
	}

	return printTraining(ctx, ens, peptides, values, elapsed, p)
}

func loadMeasurements(path string) ([]ensemble.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ensemble.ReadMeasurements(f)
}

func printTraining(ctx context.Context, ens *ensemble.Ensemble, peptides []string, values []float64, elapsed time.Duration, p *pool.Pool) error {
	all, err := ens.PredictAll(ctx, peptides)
	if err != nil {
		return err
	}
	combined, err := ens.Predict(ctx, peptides)
	if err != nil {
		return err
	}

	fmt.Println()
	_, _ = bold.Printf("%s: %d models on %d measurements in %v\n\n",
		ens.Allele, len(ens.Members), len(peptides), elapsed.Round(time.Millisecond))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Model", "ID", "Worker", "Log RMSE")
	for i, m := range ens.Members {
		worker := m.Worker
		if worker == "" {
			worker = "serial"
		}
		_ = table.Append(strconv.Itoa(m.Index), m.ID.String()[:8], worker,
			fmt.Sprintf("%.3f", ensemble.LogRMSE(all[i], values)))
	}
	_ = table.Append("ensemble", "", "", green.Sprintf("%.3f", ensemble.LogRMSE(combined, values)))
	_ = table.Render()

	if p != nil {
		s := p.Stats()
		fmt.Println()
		fmt.Printf("workers started %d, recycled %d, crashed %d, backup fallbacks %d\n",
			s.WorkersStarted, s.WorkersRecycled, s.WorkersCrashed, s.BackupFallbacks)
	}
	return nil
}
