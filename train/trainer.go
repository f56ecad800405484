package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/djeday123/chatcorpus/dataset"
)

// TrainConfig holds the epoch loop parameters.
type TrainConfig struct {
	BatchSize int
	Epochs    int
	Shuffle   bool
	Seed      uint64 // 0 means time-seeded
	LogEvery  int    // log every N steps, 0 disables step logging
}

func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		BatchSize: 64,
		Epochs:    1,
		Shuffle:   true,
		LogEvery:  100,
	}
}

// StepFunc consumes one batch and returns its loss. The batch tensors are
// only valid for the duration of the call.
type StepFunc func(ctx context.Context, batch *dataset.Batch) (float64, error)

// EpochStats summarises one pass over the store.
type EpochStats struct {
	Epoch    int
	Steps    int
	Examples int
	MeanLoss float64
	Elapsed  time.Duration
}

// Trainer drives a StepFunc over every batch of a store, once per epoch.
type Trainer struct {
	Store  *dataset.Store
	Step   StepFunc
	Config TrainConfig

	rng *rand.Rand
}

func NewTrainer(store *dataset.Store, step StepFunc, cfg TrainConfig) *Trainer {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Trainer{
		Store:  store,
		Step:   step,
		Config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Train runs every epoch and returns the per-epoch statistics collected so
// far. It stops at the first step error or when ctx is done.
func (t *Trainer) Train(ctx context.Context) ([]EpochStats, error) {
	cfg := t.Config
	if cfg.Epochs < 1 {
		return nil, fmt.Errorf("epochs must be at least 1, got %d", cfg.Epochs)
	}
	if t.Store.Len() == 0 {
		return nil, errors.New("no examples to train on")
	}

	slog.Info("training", "examples", t.Store.Len(), "batch", cfg.BatchSize, "epochs", cfg.Epochs)

	var history []EpochStats
	best := math.MaxFloat64
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		stats, err := t.epoch(ctx, epoch)
		if err != nil {
			return history, err
		}
		history = append(history, stats)

		improved := stats.MeanLoss < best
		if improved {
			best = stats.MeanLoss
		}
		slog.Info("epoch complete", "epoch", epoch, "steps", stats.Steps, "loss", stats.MeanLoss, "best", improved, "elapsed", stats.Elapsed)
	}
	return history, nil
}

func (t *Trainer) epoch(ctx context.Context, epoch int) (EpochStats, error) {
	stats := EpochStats{Epoch: epoch}
	start := time.Now()

	if t.Config.Shuffle {
		if err := t.Store.Shuffle(t.rng); err != nil {
			return stats, err
		}
	}

	batches, err := t.Store.Batches(t.Config.BatchSize)
	if err != nil {
		return stats, err
	}
	defer batches.Close()

	var total float64
	for batch := range batches.All() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stepStart := time.Now()
		loss, err := t.Step(ctx, batch)
		if err != nil {
			return stats, fmt.Errorf("epoch %d step %d: %w", epoch, stats.Steps+1, err)
		}

		stats.Steps++
		stats.Examples += batch.Size
		total += loss

		if t.Config.LogEvery > 0 && stats.Steps%t.Config.LogEvery == 0 {
			slog.Info("step", "epoch", epoch, "step", stats.Steps, "loss", loss, "examples", stats.Examples, "elapsed", time.Since(stepStart))
		}
	}

	stats.MeanLoss = total / float64(stats.Steps)
	stats.Elapsed = time.Since(start)
	return stats, nil
}
