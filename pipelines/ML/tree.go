package ml

import (
	"fmt"
	"sort"
)

// TreeNode represents a node in a classification decision tree
type TreeNode struct {
	IsLeaf       bool           `json:"is_leaf"`
	Class        string         `json:"class,omitempty"`
	ClassCounts  map[string]int `json:"class_counts,omitempty"`
	Confidence   float64        `json:"confidence"`
	Feature      string         `json:"feature,omitempty"`
	FeatureIndex int            `json:"feature_index,omitempty"`
	Threshold    float64        `json:"threshold,omitempty"`
	Left         *TreeNode      `json:"left,omitempty"`
	Right        *TreeNode      `json:"right,omitempty"`
	SamplesCount int            `json:"samples_count"`
	Depth        int            `json:"depth"`
}

// DecisionTree is a lightweight Gini-split classification tree. It is the
// base learner for RandomForest and reports class probabilities from leaf
// distributions.
type DecisionTree struct {
	Root            *TreeNode `json:"root"`
	MaxDepth        int       `json:"max_depth"`
	MinSamplesSplit int       `json:"min_samples_split"`
	MinSamplesLeaf  int       `json:"min_samples_leaf"`
	FeatureNames    []string  `json:"feature_names"`
	Classes         []string  `json:"classes"`
	NumFeatures     int       `json:"num_features"`
}

// NewDecisionTree creates a decision tree with default hyperparameters where
// zero values are given
func NewDecisionTree(maxDepth, minSamplesSplit, minSamplesLeaf int) *DecisionTree {
	if maxDepth <= 0 {
		maxDepth = 10
	}
	if minSamplesSplit <= 0 {
		minSamplesSplit = 2
	}
	if minSamplesLeaf <= 0 {
		minSamplesLeaf = 1
	}

	return &DecisionTree{
		MaxDepth:        maxDepth,
		MinSamplesSplit: minSamplesSplit,
		MinSamplesLeaf:  minSamplesLeaf,
	}
}

// Train builds the tree from training data.
// X: feature matrix (rows = samples, cols = features); y: one label per sample.
func (dt *DecisionTree) Train(X [][]float64, y []string, featureNames []string) error {
	if len(X) == 0 {
		return fmt.Errorf("empty training data")
	}
	if len(X) != len(y) {
		return fmt.Errorf("X and y must have same number of samples")
	}
	if len(featureNames) != len(X[0]) {
		return fmt.Errorf("feature names must match number of features")
	}

	dt.FeatureNames = featureNames
	dt.NumFeatures = len(X[0])
	dt.Classes = uniqueStrings(y)

	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}

	dt.Root = dt.buildTree(X, y, indices, 0)
	return nil
}

func (dt *DecisionTree) buildTree(X [][]float64, y []string, indices []int, depth int) *TreeNode {
	node := &TreeNode{
		SamplesCount: len(indices),
		Depth:        depth,
	}

	currentLabels := make([]string, len(indices))
	for i, idx := range indices {
		currentLabels[i] = y[idx]
	}

	classCounts := countClasses(currentLabels)
	node.ClassCounts = classCounts

	majorityClass, majorityCount := majorityClass(classCounts)
	node.Class = majorityClass
	node.Confidence = float64(majorityCount) / float64(len(indices))

	if depth >= dt.MaxDepth || len(indices) < dt.MinSamplesSplit || len(classCounts) == 1 {
		node.IsLeaf = true
		return node
	}

	bestFeature, bestThreshold, bestGain := dt.findBestSplit(X, y, indices)
	if bestGain <= 0 {
		node.IsLeaf = true
		return node
	}

	leftIndices, rightIndices := splitIndices(X, indices, bestFeature, bestThreshold)
	if len(leftIndices) < dt.MinSamplesLeaf || len(rightIndices) < dt.MinSamplesLeaf {
		node.IsLeaf = true
		return node
	}

	node.Feature = dt.FeatureNames[bestFeature]
	node.FeatureIndex = bestFeature
	node.Threshold = bestThreshold
	node.Left = dt.buildTree(X, y, leftIndices, depth+1)
	node.Right = dt.buildTree(X, y, rightIndices, depth+1)

	return node
}

// findBestSplit searches every feature and candidate threshold for the split
// with the largest Gini gain
func (dt *DecisionTree) findBestSplit(X [][]float64, y []string, indices []int) (int, float64, float64) {
	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	currentLabels := make([]string, len(indices))
	for i, idx := range indices {
		currentLabels[i] = y[idx]
	}
	parentGini := giniImpurity(currentLabels)

	for feature := 0; feature < dt.NumFeatures; feature++ {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][feature]
		}

		for _, threshold := range candidateThresholds(values) {
			leftIndices, rightIndices := splitIndices(X, indices, feature, threshold)
			if len(leftIndices) == 0 || len(rightIndices) == 0 {
				continue
			}

			leftLabels := make([]string, len(leftIndices))
			for i, idx := range leftIndices {
				leftLabels[i] = y[idx]
			}
			rightLabels := make([]string, len(rightIndices))
			for i, idx := range rightIndices {
				rightLabels[i] = y[idx]
			}

			n := float64(len(indices))
			nLeft := float64(len(leftIndices))
			nRight := float64(len(rightIndices))

			weightedGini := (nLeft/n)*giniImpurity(leftLabels) + (nRight/n)*giniImpurity(rightLabels)
			gain := parentGini - weightedGini

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

// Predict returns the predicted class and leaf confidence for one sample
func (dt *DecisionTree) Predict(x []float64) (string, float64, error) {
	if dt.Root == nil {
		return "", 0.0, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return "", 0.0, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	leaf := dt.traverseToLeaf(dt.Root, x)
	return leaf.Class, leaf.Confidence, nil
}

// PredictProba returns the class distribution at the leaf the sample lands in
func (dt *DecisionTree) PredictProba(x []float64) (map[string]float64, error) {
	if dt.Root == nil {
		return nil, fmt.Errorf("model not trained")
	}
	if len(x) != dt.NumFeatures {
		return nil, fmt.Errorf("expected %d features, got %d", dt.NumFeatures, len(x))
	}

	leaf := dt.traverseToLeaf(dt.Root, x)
	proba := make(map[string]float64, len(leaf.ClassCounts))

	total := 0
	for _, count := range leaf.ClassCounts {
		total += count
	}
	for class, count := range leaf.ClassCounts {
		proba[class] = float64(count) / float64(total)
	}

	return proba, nil
}

func (dt *DecisionTree) traverseToLeaf(node *TreeNode, x []float64) *TreeNode {
	if node.IsLeaf {
		return node
	}
	if x[node.FeatureIndex] <= node.Threshold {
		return dt.traverseToLeaf(node.Left, x)
	}
	return dt.traverseToLeaf(node.Right, x)
}

// FeatureImportance scores features by the sample-weighted number of splits
// they participate in, normalized to sum to 1
func (dt *DecisionTree) FeatureImportance() map[string]float64 {
	importance := make(map[string]float64, len(dt.FeatureNames))
	for _, name := range dt.FeatureNames {
		importance[name] = 0.0
	}

	var walk func(node *TreeNode)
	walk = func(node *TreeNode) {
		if node == nil || node.IsLeaf {
			return
		}
		importance[node.Feature] += float64(node.SamplesCount)
		walk(node.Left)
		walk(node.Right)
	}
	walk(dt.Root)

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

// Helper functions

func giniImpurity(labels []string) float64 {
	if len(labels) == 0 {
		return 0.0
	}

	counts := countClasses(labels)
	n := float64(len(labels))
	gini := 1.0
	for _, count := range counts {
		p := float64(count) / n
		gini -= p * p
	}
	return gini
}

func splitIndices(X [][]float64, indices []int, feature int, threshold float64) ([]int, []int) {
	var leftIndices, rightIndices []int
	for _, idx := range indices {
		if X[idx][feature] <= threshold {
			leftIndices = append(leftIndices, idx)
		} else {
			rightIndices = append(rightIndices, idx)
		}
	}
	return leftIndices, rightIndices
}

func countClasses(labels []string) map[string]int {
	counts := make(map[string]int)
	for _, label := range labels {
		counts[label]++
	}
	return counts
}

func majorityClass(classCounts map[string]int) (string, int) {
	maxClass := ""
	maxCount := 0
	for class, count := range classCounts {
		if count > maxCount || (count == maxCount && class < maxClass) {
			maxClass = class
			maxCount = count
		}
	}
	return maxClass, maxCount
}

func uniqueStrings(strs []string) []string {
	seen := make(map[string]bool)
	unique := []string{}
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			unique = append(unique, s)
		}
	}
	sort.Strings(unique)
	return unique
}

// candidateThresholds returns midpoints between consecutive unique values
func candidateThresholds(values []float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	uniqueVals := make([]float64, 0, len(values))
	seen := make(map[float64]bool)
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			uniqueVals = append(uniqueVals, v)
		}
	}
	if len(uniqueVals) == 1 {
		return nil
	}
	sort.Float64s(uniqueVals)

	thresholds := make([]float64, len(uniqueVals)-1)
	for i := 0; i < len(uniqueVals)-1; i++ {
		thresholds[i] = (uniqueVals[i] + uniqueVals[i+1]) / 2.0
	}
	return thresholds
}
