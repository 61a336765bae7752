package ensemble

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
)

// Estimator is a trainable affinity regressor. Affinities are IC50 values
// in nM.
type Estimator interface {
	Fit(ctx context.Context, peptides []string, affinities []float64) error
	Predict(peptides []string) ([]float64, error)
}

// EstimatorFactory builds an untrained estimator using r for every random
// choice it makes.
type EstimatorFactory func(r *rand.Rand) Estimator

var ErrNotFitted = errors.New("ensemble: estimator not fitted")

// LinearConfig holds the hyperparameters of a LinearEstimator.
type LinearConfig struct {
	PeptideLength int
	Epochs        int
	LearningRate  float64
	L2            float64
	BatchSize     int
}

// DefaultLinearConfig fits 9-mers.
func DefaultLinearConfig() LinearConfig {
	return LinearConfig{
		PeptideLength: 9,
		Epochs:        100,
		LearningRate:  0.05,
		L2:            1e-4,
		BatchSize:     32,
	}
}

// LinearEstimator is a ridge regression over one-hot encoded peptides
// trained with mini-batch gradient descent.
type LinearEstimator struct {
	cfg     LinearConfig
	rng     *rand.Rand
	weights []float64
	bias    float64
}

// NewLinearEstimator returns an untrained estimator.
func NewLinearEstimator(cfg LinearConfig, r *rand.Rand) *LinearEstimator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	return &LinearEstimator{cfg: cfg, rng: r}
}

// LinearFactory adapts NewLinearEstimator to an EstimatorFactory.
func LinearFactory(cfg LinearConfig) EstimatorFactory {
	return func(r *rand.Rand) Estimator {
		return NewLinearEstimator(cfg, r)
	}
}

func (e *LinearEstimator) Fit(ctx context.Context, peptides []string, affinities []float64) error {
	if len(peptides) != len(affinities) {
		return fmt.Errorf("ensemble: %d peptides but %d affinities", len(peptides), len(affinities))
	}
	if len(peptides) == 0 {
		return errors.New("ensemble: no training data")
	}

	x, err := OneHot(peptides, e.cfg.PeptideLength)
	if err != nil {
		return err
	}
	y := make([]float64, len(affinities))
	for i, a := range affinities {
		y[i] = FromIC50(a)
	}

	e.weights = make([]float64, len(x[0]))
	for i := range e.weights {
		e.weights[i] = (e.rng.Float64() - 0.5) * 0.01
	}
	e.bias = 0

	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	grad := make([]float64, len(e.weights))

	for range e.cfg.Epochs {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += e.cfg.BatchSize {
			batch := order[start:min(start+e.cfg.BatchSize, len(order))]
			clear(grad)
			var gb float64
			for _, i := range batch {
				diff := e.raw(x[i]) - y[i]
				for j, v := range x[i] {
					if v != 0 {
						grad[j] += diff * v
					}
				}
				gb += diff
			}
			n := float64(len(batch))
			for j := range e.weights {
				e.weights[j] -= e.cfg.LearningRate * (grad[j]/n + e.cfg.L2*e.weights[j])
			}
			e.bias -= e.cfg.LearningRate * gb / n
		}
	}
	return nil
}

func (e *LinearEstimator) Predict(peptides []string) ([]float64, error) {
	if e.weights == nil {
		return nil, ErrNotFitted
	}
	x, err := OneHot(peptides, e.cfg.PeptideLength)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = ToIC50(e.raw(row))
	}
	return out, nil
}

func (e *LinearEstimator) raw(row []float64) float64 {
	s := e.bias
	for j, v := range row {
		if v != 0 {
			s += e.weights[j] * v
		}
	}
	return s
}
