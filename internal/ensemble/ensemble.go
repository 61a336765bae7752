// Package ensemble trains and evaluates allele-specific ensembles of
// affinity regressors, fitting the members in parallel on a worker pool.
package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/utkarsh5026/mhcpool/pool"
)

// Member is one fitted estimator of an ensemble.
type Member struct {
	ID        uuid.UUID
	Index     int
	Allele    string
	Estimator Estimator
	// Worker identifies the pool worker that fitted the member, empty for
	// serial training.
	Worker string
}

// Ensemble is a set of estimators fitted to the same allele.
type Ensemble struct {
	Allele  string
	Members []Member
}

// TrainConfig describes one ensemble training run.
type TrainConfig struct {
	Allele     string
	Peptides   []string
	Affinities []float64
	NumModels  int
	Factory    EstimatorFactory

	// Seed, when non-zero, derives each member's random source from
	// Seed and the member index so that results do not depend on which
	// worker fits which member. Otherwise the worker's own source is used.
	Seed uint64

	Logger *zap.Logger
	// OnFitted is called after each member is fitted, from the worker.
	OnFitted func(Member)
}

// Train fits cfg.NumModels members on p. A nil pool fits them serially.
func Train(ctx context.Context, p *pool.Pool, cfg TrainConfig) (*Ensemble, error) {
	if cfg.NumModels <= 0 {
		return nil, fmt.Errorf("ensemble: number of models must be positive, got %d", cfg.NumModels)
	}
	if cfg.Factory == nil {
		return nil, errors.New("ensemble: no estimator factory")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	indices := make([]int, cfg.NumModels)
	for i := range indices {
		indices[i] = i
	}

	logger.Info("training ensemble",
		zap.String("allele", cfg.Allele),
		zap.Int("models", cfg.NumModels),
		zap.Int("measurements", len(cfg.Peptides)))

	members, err := pool.Map(ctx, p, indices, func(ctx context.Context, i int) (Member, error) {
		return fitMember(ctx, cfg, i)
	})
	if err != nil {
		return nil, err
	}

	return &Ensemble{Allele: cfg.Allele, Members: members}, nil
}

func fitMember(ctx context.Context, cfg TrainConfig, index int) (Member, error) {
	m := Member{ID: uuid.New(), Index: index, Allele: cfg.Allele}

	w, onWorker := pool.WorkerFrom(ctx)
	var r *rand.Rand
	switch {
	case cfg.Seed != 0:
		r = rand.New(rand.NewPCG(cfg.Seed, uint64(index)))
	case onWorker:
		r = w.Rand
	default:
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if onWorker {
		m.Worker = w.ID()
	}

	est := cfg.Factory(r)
	if err := est.Fit(ctx, cfg.Peptides, cfg.Affinities); err != nil {
		return Member{}, fmt.Errorf("fit model %d for %s: %w", index, cfg.Allele, err)
	}
	m.Estimator = est

	if cfg.OnFitted != nil {
		cfg.OnFitted(m)
	}
	return m, nil
}

// PredictAll returns every member's IC50 predictions, indexed by member.
// Members are evaluated concurrently.
func (e *Ensemble) PredictAll(ctx context.Context, peptides []string) ([][]float64, error) {
	out := make([][]float64, len(e.Members))
	g, ctx := errgroup.WithContext(ctx)
	for i, m := range e.Members {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pred, err := m.Estimator.Predict(peptides)
			if err != nil {
				return fmt.Errorf("model %d: %w", m.Index, err)
			}
			out[i] = pred
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Predict returns the geometric mean of the members' IC50 predictions.
func (e *Ensemble) Predict(ctx context.Context, peptides []string) ([]float64, error) {
	if len(e.Members) == 0 {
		return nil, errors.New("ensemble: no members")
	}
	all, err := e.PredictAll(ctx, peptides)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(peptides))
	col := make([]float64, len(all))
	for j := range peptides {
		for i := range all {
			col[i] = all[i][j]
		}
		out[j] = GeometricMean(col)
	}
	return out, nil
}

// LogRMSE is the root mean squared error between the log IC50s of
// predicted and measured affinities.
func LogRMSE(predicted, measured []float64) float64 {
	if len(predicted) != len(measured) || len(predicted) == 0 {
		return math.NaN()
	}
	var sum float64
	for i := range predicted {
		d := math.Log(predicted[i]) - math.Log(measured[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(predicted)))
}
