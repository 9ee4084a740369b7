package ml

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"
)

// RandomForest is a bagged ensemble of decision trees. Probabilities are the
// mean of the per-tree leaf distributions, which gives the smooth [0,1]
// churn probability the label thresholds need.
type RandomForest struct {
	Trees           []*DecisionTree `json:"trees"`
	TreeFeatures    [][]int         `json:"tree_features"` // feature indices used by each tree
	NumTrees        int             `json:"num_trees"`
	MaxDepth        int             `json:"max_depth"`
	MinSamplesSplit int             `json:"min_samples_split"`
	MinSamplesLeaf  int             `json:"min_samples_leaf"`
	MaxFeatures     int             `json:"max_features"`
	FeatureNames    []string        `json:"feature_names"`
	Classes         []string        `json:"classes"`
	NumFeatures     int             `json:"num_features"`
	RandomSeed      int64           `json:"random_seed"`

	rng *rand.Rand
}

// NewRandomForest creates a random forest with default hyperparameters where
// zero values are given
func NewRandomForest(numTrees, maxDepth, minSamplesSplit, minSamplesLeaf int) *RandomForest {
	if numTrees <= 0 {
		numTrees = 100
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}

	seed := time.Now().UnixNano()
	return &RandomForest{
		NumTrees:        numTrees,
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
		RandomSeed:      seed,
		rng:             rand.New(rand.NewSource(seed)),
	}
}

// SetSeed fixes the random source for reproducible training
func (rf *RandomForest) SetSeed(seed int64) {
	rf.RandomSeed = seed
	rf.rng = rand.New(rand.NewSource(seed))
}

// Train builds the forest from training data. Trees train concurrently on
// bootstrap samples with sqrt(num_features) random feature subsets.
func (rf *RandomForest) Train(X [][]float64, y []string, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}
	if rf.rng == nil {
		rf.rng = rand.New(rand.NewSource(rf.RandomSeed))
	}

	rf.FeatureNames = featureNames
	rf.NumFeatures = len(X[0])
	rf.Classes = uniqueStrings(y)

	rf.MaxFeatures = int(math.Sqrt(float64(rf.NumFeatures)))
	if rf.MaxFeatures < 1 {
		rf.MaxFeatures = 1
	}

	// Pre-draw per-tree randomness from the shared source so concurrent
	// training stays reproducible for a fixed seed.
	type treePlan struct {
		sampleIdx []int
		features  []int
	}
	plans := make([]treePlan, rf.NumTrees)
	for i := range plans {
		plans[i] = treePlan{
			sampleIdx: rf.bootstrapIndices(len(X)),
			features:  rf.selectRandomFeatures(),
		}
	}

	rf.Trees = make([]*DecisionTree, rf.NumTrees)
	rf.TreeFeatures = make([][]int, rf.NumTrees)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var trainErrs []error

	for i := 0; i < rf.NumTrees; i++ {
		wg.Add(1)
		go func(treeIdx int) {
			defer wg.Done()

			plan := plans[treeIdx]
			bootX := make([][]float64, len(plan.sampleIdx))
			bootY := make([]string, len(plan.sampleIdx))
			for j, idx := range plan.sampleIdx {
				bootX[j] = extractRow(X[idx], plan.features)
				bootY[j] = y[idx]
			}

			subFeatureNames := make([]string, len(plan.features))
			for j, f := range plan.features {
				subFeatureNames[j] = featureNames[f]
			}

			tree := NewDecisionTree(rf.MaxDepth, rf.MinSamplesSplit, rf.MinSamplesLeaf)
			if err := tree.Train(bootX, bootY, subFeatureNames); err != nil {
				mu.Lock()
				trainErrs = append(trainErrs, fmt.Errorf("tree %d training failed: %w", treeIdx, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			rf.Trees[treeIdx] = tree
			rf.TreeFeatures[treeIdx] = plan.features
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	if len(trainErrs) > 0 {
		return trainErrs[0]
	}
	return nil
}

// Predict returns the majority-vote class and its mean probability
func (rf *RandomForest) Predict(x []float64) (string, float64, error) {
	proba, err := rf.PredictProba(x)
	if err != nil {
		return "", 0.0, err
	}

	bestClass := ""
	bestProb := -1.0
	for class, p := range proba {
		if p > bestProb || (p == bestProb && class < bestClass) {
			bestClass = class
			bestProb = p
		}
	}
	return bestClass, bestProb, nil
}

// PredictProba averages the leaf class distributions across all trees
func (rf *RandomForest) PredictProba(x []float64) (map[string]float64, error) {
	if len(rf.Trees) == 0 {
		return nil, fmt.Errorf("model not trained")
	}
	if len(x) != rf.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", rf.NumFeatures, len(x))
	}

	proba := make(map[string]float64, len(rf.Classes))
	for _, class := range rf.Classes {
		proba[class] = 0.0
	}

	for i, tree := range rf.Trees {
		treeProba, err := tree.PredictProba(extractRow(x, rf.TreeFeatures[i]))
		if err != nil {
			return nil, fmt.Errorf("tree %d prediction failed: %w", i, err)
		}
		for class, p := range treeProba {
			proba[class] += p
		}
	}

	n := float64(len(rf.Trees))
	for class := range proba {
		proba[class] /= n
	}
	return proba, nil
}

// FeatureImportance averages per-tree importances back onto the full
// feature set
func (rf *RandomForest) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64, len(rf.FeatureNames))
	for _, name := range rf.FeatureNames {
		importance[name] = 0.0
	}

	for _, tree := range rf.Trees {
		if tree == nil {
			continue
		}
		for name, val := range tree.FeatureImportance() {
			importance[name] += val
		}
	}

	total := 0.0
	for _, val := range importance {
		total += val
	}
	if total > 0 {
		for name := range importance {
			importance[name] /= total
		}
	}
	return importance
}

// Save serializes the forest to a JSON file
func (rf *RandomForest) Save(path string) error {
	data, err := json.MarshalIndent(rf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model file: %w", err)
	}
	return nil
}

// Load reads a forest from a JSON file
func (rf *RandomForest) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model file: %w", err)
	}
	if err := json.Unmarshal(data, rf); err != nil {
		return fmt.Errorf("failed to unmarshal model: %w", err)
	}
	rf.rng = rand.New(rand.NewSource(rf.RandomSeed))
	return nil
}

func (rf *RandomForest) bootstrapIndices(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = rf.rng.Intn(n)
	}
	return indices
}

func (rf *RandomForest) selectRandomFeatures() []int {
	perm := rf.rng.Perm(rf.NumFeatures)
	selected := perm[:rf.MaxFeatures]
	return selected
}

func extractRow(x []float64, features []int) []float64 {
	sub := make([]float64, len(features))
	for i, f := range features {
		sub[i] = x[f]
	}
	return sub
}
