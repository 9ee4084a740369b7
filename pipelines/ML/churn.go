package ml

import (
	"fmt"
	"strings"

	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
	scoring "github.com/retention-os/retentionos-go/pipelines/Scoring"
)

// Label values used by the binary churn classifier
const (
	LabelChurned  = "churned"
	LabelRetained = "retained"
)

// Provenance of the training labels
const (
	LabelSourceGroundTruth = "ground_truth"
	LabelSourceProxy       = "proxy"
)

// ColumnChurnProbability is the derived column appended by the model path
const ColumnChurnProbability = "churn_probability"

// RequiredFeatures are the canonical fields the probability classifier
// consumes. Unlike the rule scorer there is no neutral fallback: a missing
// feature silently biases a trained model, so classification refuses the
// batch instead.
var RequiredFeatures = []string{
	schema.FieldProductViews,
	schema.FieldCartItems,
	schema.FieldTotalSessions,
	schema.FieldLastActiveDays,
	schema.FieldOrders,
	schema.FieldCartValue,
}

// MissingFieldsError reports canonical fields the active path requires but
// the mapping could not resolve
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Fields, ", "))
}

// Thresholds maps a churn probability onto a risk label.
// p >= High -> High risk; High > p >= Medium -> Medium; below -> Low.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// DefaultThresholds returns the stock probability cut points
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.75, Medium: 0.4}
}

// Label maps a probability to its risk label. Boundaries are inclusive:
// p == Medium is Medium, p == High is High.
func (t Thresholds) Label(p float64) string {
	switch {
	case p >= t.High:
		return scoring.RiskHigh
	case p >= t.Medium:
		return scoring.RiskMedium
	default:
		return scoring.RiskLow
	}
}

// ChurnModel is the probability-based classifier: a random forest over the
// six behavioral features plus the thresholds that turn its churn
// probability into a risk label.
type ChurnModel struct {
	Forest      *RandomForest `json:"forest"`
	Features    []string      `json:"features"`
	Thresholds  Thresholds    `json:"thresholds"`
	LabelSource string        `json:"label_source"`

	Training *TrainingResult `json:"-"`
}

// TrainChurnModel trains a churn classifier on the uploaded table.
//
// When labelColumn names an existing column it is used as ground truth
// (values coerced to churned/retained). When empty, a proxy label is
// synthesized from the rule scorer (score >= 2 means churned) and the model
// is flagged LabelSource "proxy": its predictions are best-effort, not
// validated, and every output batch carries that flag.
func TrainChurnModel(ds *ingest.Dataset, mapping *schema.Mapping, labelColumn string, ruleCfg scoring.RuleConfig, trainCfg *TrainingConfig) (*ChurnModel, error) {
	if err := checkRequiredFeatures(mapping); err != nil {
		return nil, err
	}
	if ds.RowCount == 0 {
		return nil, fmt.Errorf("cannot train on an empty dataset")
	}

	X := make([][]float64, 0, ds.RowCount)
	y := make([]string, 0, ds.RowCount)
	labelSource := LabelSourceProxy

	for _, row := range ds.Rows {
		features, err := featureVector(row, mapping)
		if err != nil {
			return nil, err
		}

		var label string
		if labelColumn != "" {
			raw, ok := row[labelColumn]
			if !ok {
				return nil, fmt.Errorf("label column %q not present in row", labelColumn)
			}
			label, err = coerceLabel(raw)
			if err != nil {
				return nil, fmt.Errorf("label column %q: %w", labelColumn, err)
			}
			labelSource = LabelSourceGroundTruth
		} else {
			scored := scoring.Score(row, mapping, ruleCfg)
			if scored.ChurnScore >= 2 {
				label = LabelChurned
			} else {
				label = LabelRetained
			}
		}

		X = append(X, features)
		y = append(y, label)
	}

	if len(uniqueStrings(y)) < 2 {
		return nil, fmt.Errorf("training labels have no variation (all %q); cannot fit a classifier", y[0])
	}

	trainer := NewTrainer(trainCfg)
	result, err := trainer.Train(X, y, RequiredFeatures)
	if err != nil {
		return nil, err
	}

	return &ChurnModel{
		Forest:      result.Model,
		Features:    RequiredFeatures,
		Thresholds:  DefaultThresholds(),
		LabelSource: labelSource,
		Training:    result,
	}, nil
}

// Classify appends churn_probability and risk_level columns to every row.
// The whole batch is refused with a MissingFieldsError when any required
// feature is unmapped.
func (cm *ChurnModel) Classify(ds *ingest.Dataset, mapping *schema.Mapping) error {
	if cm.Forest == nil {
		return fmt.Errorf("model not trained")
	}
	if err := checkRequiredFeatures(mapping); err != nil {
		return err
	}

	for i, row := range ds.Rows {
		features, err := featureVector(row, mapping)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}

		proba, err := cm.Forest.PredictProba(features)
		if err != nil {
			return fmt.Errorf("row %d: prediction failed: %w", i+1, err)
		}

		p := proba[LabelChurned]
		row[ColumnChurnProbability] = p
		row[scoring.ColumnRiskLevel] = cm.Thresholds.Label(p)
	}

	ds.AppendColumn(ColumnChurnProbability, "numeric")
	ds.AppendColumn(scoring.ColumnRiskLevel, "string")
	return nil
}

// PredictOne scores a single feature vector keyed by canonical field name
func (cm *ChurnModel) PredictOne(features map[string]float64) (probability float64, riskLevel string, err error) {
	if cm.Forest == nil {
		return 0, "", fmt.Errorf("model not trained")
	}

	x := make([]float64, len(cm.Features))
	var missing []string
	for i, name := range cm.Features {
		v, ok := features[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		x[i] = v
	}
	if len(missing) > 0 {
		return 0, "", &MissingFieldsError{Fields: missing}
	}

	proba, err := cm.Forest.PredictProba(x)
	if err != nil {
		return 0, "", err
	}
	p := proba[LabelChurned]
	return p, cm.Thresholds.Label(p), nil
}

// checkRequiredFeatures verifies every required feature resolved to a
// source column, reporting all absentees at once
func checkRequiredFeatures(mapping *schema.Mapping) error {
	var missing []string
	for _, field := range RequiredFeatures {
		if !mapping.Has(field) {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// featureVector reads the six required features from a row. Cells that are
// present but not interpretable as numbers are an error under the model
// path, not a silent zero-fill.
func featureVector(row map[string]any, mapping *schema.Mapping) ([]float64, error) {
	features := make([]float64, len(RequiredFeatures))
	for i, field := range RequiredFeatures {
		v, ok := mapping.Numeric(row, field)
		if !ok {
			if _, present := row[mapping.Fields[field]]; present && row[mapping.Fields[field]] != nil && row[mapping.Fields[field]] != "" {
				return nil, fmt.Errorf("field %q has a non-numeric value %v", field, row[mapping.Fields[field]])
			}
			// Empty cell: treat as zero activity rather than refusing the
			// row; column-level absence was already ruled out above.
			v = 0
		}
		features[i] = v
	}
	return features, nil
}

// coerceLabel interprets a ground-truth label cell as churned/retained
func coerceLabel(raw any) (string, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return LabelChurned, nil
		}
		return LabelRetained, nil
	case float64:
		if v == 1 {
			return LabelChurned, nil
		}
		if v == 0 {
			return LabelRetained, nil
		}
		return "", fmt.Errorf("numeric label must be 0 or 1, got %v", v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "churned", "churn":
			return LabelChurned, nil
		case "0", "false", "no", "retained", "active":
			return LabelRetained, nil
		}
		return "", fmt.Errorf("unrecognized label value %q", v)
	default:
		return "", fmt.Errorf("unsupported label type %T", raw)
	}
}
