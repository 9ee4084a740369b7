package ml

import (
	"fmt"
	"math/rand"
	"time"
)

// TrainingConfig holds configuration for training a churn classifier
type TrainingConfig struct {
	TrainTestSplit  float64 `json:"train_test_split"`  // e.g., 0.8 for 80/20 split
	NumTrees        int     `json:"num_trees"`         // Forest size
	MaxDepth        int     `json:"max_depth"`         // Maximum tree depth
	MinSamplesSplit int     `json:"min_samples_split"` // Minimum samples to split a node
	MinSamplesLeaf  int     `json:"min_samples_leaf"`  // Minimum samples per leaf
	RandomSeed      int64   `json:"random_seed"`       // For reproducibility
	Shuffle         bool    `json:"shuffle"`           // Shuffle data before split
	Stratify        bool    `json:"stratify"`          // Maintain class distribution across the split
}

// DefaultTrainingConfig returns a training config with sensible defaults
func DefaultTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		TrainTestSplit:  0.8,
		NumTrees:        50,
		MaxDepth:        8,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomSeed:      time.Now().UnixNano(),
		Shuffle:         true,
		Stratify:        true,
	}
}

// TrainingResult holds the results of a training run
type TrainingResult struct {
	Model             *RandomForest      `json:"-"`
	TrainMetrics      *Metrics           `json:"train_metrics,omitempty"`
	ValidateMetrics   *Metrics           `json:"validate_metrics,omitempty"`
	TrainingRows      int                `json:"training_rows"`
	ValidationRows    int                `json:"validation_rows"`
	TrainingDuration  time.Duration      `json:"training_duration"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// Trainer orchestrates the training process
type Trainer struct {
	Config *TrainingConfig
	rng    *rand.Rand
}

// NewTrainer creates a new trainer with the given configuration
func NewTrainer(config *TrainingConfig) *Trainer {
	if config == nil {
		config = DefaultTrainingConfig()
	}
	return &Trainer{
		Config: config,
		rng:    rand.New(rand.NewSource(config.RandomSeed)),
	}
}

// Train splits the data, trains a random forest, and evaluates both halves
func (t *Trainer) Train(X [][]float64, y []string, featureNames []string) (*TrainingResult, error) {
	if len(X) == 0 || len(y) == 0 {
		return nil, fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return nil, fmt.Errorf("feature names must match number of features")
	}

	startTime := time.Now()

	trainX, trainY, valX, valY, err := t.TrainTestSplit(X, y)
	if err != nil {
		return nil, fmt.Errorf("failed to split data: %w", err)
	}

	forest := NewRandomForest(
		t.Config.NumTrees,
		t.Config.MaxDepth,
		t.Config.MinSamplesSplit,
		t.Config.MinSamplesLeaf,
	)
	forest.SetSeed(t.Config.RandomSeed)

	if err := forest.Train(trainX, trainY, featureNames); err != nil {
		return nil, fmt.Errorf("failed to train forest: %w", err)
	}

	result := &TrainingResult{
		Model:             forest,
		TrainingRows:      len(trainX),
		ValidationRows:    len(valX),
		TrainingDuration:  time.Since(startTime),
		FeatureImportance: forest.FeatureImportance(),
	}

	result.TrainMetrics, err = Evaluate(forest, trainX, trainY)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate on training set: %w", err)
	}
	if len(valX) > 0 {
		result.ValidateMetrics, err = Evaluate(forest, valX, valY)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate on validation set: %w", err)
		}
	}

	return result, nil
}

// TrainTestSplit partitions samples into train and validation sets.
// With Stratify, each class is split independently so the validation set
// keeps the class balance of the input.
func (t *Trainer) TrainTestSplit(X [][]float64, y []string) (trainX [][]float64, trainY []string, valX [][]float64, valY []string, err error) {
	split := t.Config.TrainTestSplit
	if split <= 0 || split > 1 {
		return nil, nil, nil, nil, fmt.Errorf("train_test_split must be in (0,1], got %v", split)
	}

	var order []int
	if t.Config.Stratify {
		byClass := make(map[string][]int)
		for i, label := range y {
			byClass[label] = append(byClass[label], i)
		}
		for _, class := range uniqueStrings(y) {
			indices := byClass[class]
			if t.Config.Shuffle {
				t.rng.Shuffle(len(indices), func(a, b int) {
					indices[a], indices[b] = indices[b], indices[a]
				})
			}
			cut := int(float64(len(indices)) * split)
			// Keep at least one sample per class in training
			if cut == 0 && len(indices) > 0 {
				cut = 1
			}
			for j, idx := range indices {
				if j < cut {
					trainX = append(trainX, X[idx])
					trainY = append(trainY, y[idx])
				} else {
					valX = append(valX, X[idx])
					valY = append(valY, y[idx])
				}
			}
		}
		return trainX, trainY, valX, valY, nil
	}

	order = make([]int, len(X))
	for i := range order {
		order[i] = i
	}
	if t.Config.Shuffle {
		t.rng.Shuffle(len(order), func(a, b int) {
			order[a], order[b] = order[b], order[a]
		})
	}

	cut := int(float64(len(order)) * split)
	if cut == 0 {
		cut = 1
	}
	for j, idx := range order {
		if j < cut {
			trainX = append(trainX, X[idx])
			trainY = append(trainY, y[idx])
		} else {
			valX = append(valX, X[idx])
			valY = append(valY, y[idx])
		}
	}
	return trainX, trainY, valX, valY, nil
}
