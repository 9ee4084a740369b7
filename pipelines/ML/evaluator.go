package ml

import (
	"fmt"
)

// Metrics holds classification evaluation results
type Metrics struct {
	Accuracy           float64                   `json:"accuracy"`
	Precision          map[string]float64        `json:"precision"` // per class
	Recall             map[string]float64        `json:"recall"`    // per class
	F1Score            map[string]float64        `json:"f1_score"`  // per class
	MacroPrecision     float64                   `json:"macro_precision"`
	MacroRecall        float64                   `json:"macro_recall"`
	MacroF1            float64                   `json:"macro_f1"`
	ConfusionMatrix    map[string]map[string]int `json:"confusion_matrix"` // actual -> predicted -> count
	Support            map[string]int            `json:"support"`
	TotalSamples       int                       `json:"total_samples"`
	CorrectPredictions int                       `json:"correct_predictions"`
}

// Evaluate runs the forest over test data and computes metrics
func Evaluate(forest *RandomForest, X [][]float64, yTrue []string) (*Metrics, error) {
	if len(X) == 0 || len(yTrue) == 0 {
		return nil, fmt.Errorf("empty test data")
	}
	if len(X) != len(yTrue) {
		return nil, fmt.Errorf("X and yTrue must have same length")
	}

	yPred := make([]string, len(X))
	for i, x := range X {
		pred, _, err := forest.Predict(x)
		if err != nil {
			return nil, fmt.Errorf("prediction failed at index %d: %w", i, err)
		}
		yPred[i] = pred
	}

	return CalculateMetrics(yTrue, yPred, forest.Classes)
}

// CalculateMetrics computes accuracy, per-class precision/recall/F1, macro
// averages, and the confusion matrix
func CalculateMetrics(yTrue, yPred []string, classes []string) (*Metrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("yTrue and yPred must have same length")
	}

	metrics := &Metrics{
		Precision:       make(map[string]float64),
		Recall:          make(map[string]float64),
		F1Score:         make(map[string]float64),
		Support:         make(map[string]int),
		ConfusionMatrix: make(map[string]map[string]int),
		TotalSamples:    len(yTrue),
	}

	for _, actual := range classes {
		metrics.ConfusionMatrix[actual] = make(map[string]int)
		for _, pred := range classes {
			metrics.ConfusionMatrix[actual][pred] = 0
		}
	}

	for i := range yTrue {
		actual := yTrue[i]
		predicted := yPred[i]

		if metrics.ConfusionMatrix[actual] == nil {
			metrics.ConfusionMatrix[actual] = make(map[string]int)
		}
		metrics.ConfusionMatrix[actual][predicted]++
		metrics.Support[actual]++

		if actual == predicted {
			metrics.CorrectPredictions++
		}
	}

	metrics.Accuracy = float64(metrics.CorrectPredictions) / float64(metrics.TotalSamples)

	for _, class := range classes {
		tp := metrics.ConfusionMatrix[class][class]

		fn := 0
		for _, predClass := range classes {
			if predClass != class {
				fn += metrics.ConfusionMatrix[class][predClass]
			}
		}

		fp := 0
		for _, actualClass := range classes {
			if actualClass != class {
				fp += metrics.ConfusionMatrix[actualClass][class]
			}
		}

		if tp+fp > 0 {
			metrics.Precision[class] = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			metrics.Recall[class] = float64(tp) / float64(tp+fn)
		}
		if metrics.Precision[class]+metrics.Recall[class] > 0 {
			metrics.F1Score[class] = 2 * metrics.Precision[class] * metrics.Recall[class] /
				(metrics.Precision[class] + metrics.Recall[class])
		}
	}

	if len(classes) > 0 {
		for _, class := range classes {
			metrics.MacroPrecision += metrics.Precision[class]
			metrics.MacroRecall += metrics.Recall[class]
			metrics.MacroF1 += metrics.F1Score[class]
		}
		n := float64(len(classes))
		metrics.MacroPrecision /= n
		metrics.MacroRecall /= n
		metrics.MacroF1 /= n
	}

	return metrics, nil
}
