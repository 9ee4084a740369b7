package ml

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
	scoring "github.com/retention-os/retentionos-go/pipelines/Scoring"
)

func TestThresholdsLabel(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		p        float64
		expected string
	}{
		{0.0, scoring.RiskLow},
		{0.39, scoring.RiskLow},
		{0.4, scoring.RiskMedium}, // boundary is inclusive
		{0.5, scoring.RiskMedium},
		{0.7499, scoring.RiskMedium},
		{0.75, scoring.RiskHigh}, // boundary is inclusive
		{0.9, scoring.RiskHigh},
		{1.0, scoring.RiskHigh},
	}
	for _, tt := range tests {
		if got := th.Label(tt.p); got != tt.expected {
			t.Errorf("Label(%v) = %s, expected %s", tt.p, got, tt.expected)
		}
	}
}

// behaviorDataset builds a parsed upload with the canonical behavioral
// columns. Half the rows look engaged, half lapsed, so the proxy label has
// both classes.
func behaviorDataset(t *testing.T, withLabel bool) (*ingest.Dataset, *schema.Mapping) {
	t.Helper()

	header := "user_id,product_views,cart_items,total_sessions,last_active_days,orders,cart_value"
	if withLabel {
		header += ",churned"
	}
	lines := []string{header}
	for i := 0; i < 8; i++ {
		line := fmt.Sprintf("eng%d,%d,2,%d,%d,%d,%d", i, 40+i, 18+i, 1+i%3, 3+i%2, 90+i*10)
		if withLabel {
			line += ",0"
		}
		lines = append(lines, line)
	}
	for i := 0; i < 8; i++ {
		line := fmt.Sprintf("lap%d,%d,0,%d,%d,0,%d", i, 2+i%3, 1+i%2, 25+i*2, i%2*5)
		if withLabel {
			line += ",1"
		}
		lines = append(lines, line)
	}

	ds, err := ingest.ParseCSV(strings.NewReader(strings.Join(lines, "\n")), ingest.DefaultParseOptions())
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}

	mapping := schema.InferMapping(ds.ColumnNames(), schema.DefaultFields(), 0)
	return ds, &mapping
}

func testTrainingConfig() *TrainingConfig {
	return &TrainingConfig{
		TrainTestSplit:  0.8,
		NumTrees:        10,
		MaxDepth:        5,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomSeed:      42,
		Shuffle:         true,
		Stratify:        true,
	}
}

func TestTrainChurnModelProxyLabel(t *testing.T) {
	ds, mapping := behaviorDataset(t, false)

	model, err := TrainChurnModel(ds, mapping, "", scoring.DefaultRuleConfig(), testTrainingConfig())
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}

	if model.LabelSource != LabelSourceProxy {
		t.Errorf("Expected proxy label source, got %s", model.LabelSource)
	}
	if model.Forest == nil {
		t.Fatal("Training produced no forest")
	}

	if err := model.Classify(ds, mapping); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !ds.HasColumn(ColumnChurnProbability) {
		t.Error("Expected churn_probability column")
	}
	if !ds.HasColumn(scoring.ColumnRiskLevel) {
		t.Error("Expected risk_level column")
	}
	for i, row := range ds.Rows {
		p, ok := row[ColumnChurnProbability].(float64)
		if !ok {
			t.Fatalf("Row %d missing probability", i)
		}
		if p < 0 || p > 1 {
			t.Errorf("Row %d probability out of range: %v", i, p)
		}
		level := row[scoring.ColumnRiskLevel].(string)
		if level != model.Thresholds.Label(p) {
			t.Errorf("Row %d label %s inconsistent with probability %v", i, level, p)
		}
	}
}

func TestTrainChurnModelGroundTruth(t *testing.T) {
	ds, mapping := behaviorDataset(t, true)

	model, err := TrainChurnModel(ds, mapping, "churned", scoring.DefaultRuleConfig(), testTrainingConfig())
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}
	if model.LabelSource != LabelSourceGroundTruth {
		t.Errorf("Expected ground_truth label source, got %s", model.LabelSource)
	}
}

func TestTrainChurnModelMissingFeatures(t *testing.T) {
	csv := "user_id,orders\nu1,3\nu2,0\n"
	ds, err := ingest.ParseCSV(strings.NewReader(csv), ingest.DefaultParseOptions())
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	mapping := schema.InferMapping(ds.ColumnNames(), schema.DefaultFields(), 0)

	_, err = TrainChurnModel(ds, &mapping, "", scoring.DefaultRuleConfig(), testTrainingConfig())
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldsError, got %v", err)
	}
	if len(missing.Fields) == 0 {
		t.Error("Error should name the absent fields")
	}
	for _, f := range missing.Fields {
		if f == schema.FieldOrders {
			t.Error("orders is mapped and should not be reported missing")
		}
	}
}

func TestTrainChurnModelNoLabelVariation(t *testing.T) {
	// Every row engaged: the proxy label never fires
	header := "user_id,product_views,cart_items,total_sessions,last_active_days,orders,cart_value"
	lines := []string{header}
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf("u%d,40,2,20,1,5,100", i))
	}
	ds, err := ingest.ParseCSV(strings.NewReader(strings.Join(lines, "\n")), ingest.DefaultParseOptions())
	if err != nil {
		t.Fatalf("Failed to parse fixture: %v", err)
	}
	mapping := schema.InferMapping(ds.ColumnNames(), schema.DefaultFields(), 0)

	_, err = TrainChurnModel(ds, &mapping, "", scoring.DefaultRuleConfig(), testTrainingConfig())
	if err == nil {
		t.Fatal("Expected error when labels have no variation")
	}
	if !strings.Contains(err.Error(), "variation") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestChurnModelPredictOne(t *testing.T) {
	ds, mapping := behaviorDataset(t, false)

	model, err := TrainChurnModel(ds, mapping, "", scoring.DefaultRuleConfig(), testTrainingConfig())
	if err != nil {
		t.Fatalf("Training failed: %v", err)
	}

	p, level, err := model.PredictOne(map[string]float64{
		schema.FieldProductViews:   2,
		schema.FieldCartItems:      0,
		schema.FieldTotalSessions:  1,
		schema.FieldLastActiveDays: 40,
		schema.FieldOrders:         0,
		schema.FieldCartValue:      0,
	})
	if err != nil {
		t.Fatalf("PredictOne failed: %v", err)
	}
	if p < 0.5 {
		t.Errorf("Lapsed profile should lean churned, got p=%v", p)
	}
	if level != model.Thresholds.Label(p) {
		t.Errorf("Label %s inconsistent with probability %v", level, p)
	}

	_, _, err = model.PredictOne(map[string]float64{schema.FieldOrders: 1})
	var missing *MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingFieldsError for a partial vector, got %v", err)
	}
}

func TestCoerceLabel(t *testing.T) {
	cases := []struct {
		raw     any
		want    string
		wantErr bool
	}{
		{true, LabelChurned, false},
		{false, LabelRetained, false},
		{1.0, LabelChurned, false},
		{0.0, LabelRetained, false},
		{"yes", LabelChurned, false},
		{"Churned", LabelChurned, false},
		{"active", LabelRetained, false},
		{"maybe", "", true},
		{2.0, "", true},
	}
	for _, tc := range cases {
		got, err := coerceLabel(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("coerceLabel(%v) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("coerceLabel(%v) failed: %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("coerceLabel(%v) = %s, expected %s", tc.raw, got, tc.want)
		}
	}
}
