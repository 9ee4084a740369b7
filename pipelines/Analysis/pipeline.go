// Package analysis orchestrates one upload through the full pipeline:
// schema normalization, churn scoring (rule or model path), and optional
// RFM segmentation. Each invocation produces an immutable Result passed
// explicitly to consumers; there is no shared upload state.
package analysis

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/retention-os/retentionos-go/utils"

	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	ml "github.com/retention-os/retentionos-go/pipelines/ML"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
	scoring "github.com/retention-os/retentionos-go/pipelines/Scoring"
	segmentation "github.com/retention-os/retentionos-go/pipelines/Segmentation"
)

// Scoring paths
const (
	PathRule  = "rule"
	PathModel = "model"
)

// Options configures one pipeline invocation
type Options struct {
	Path           string             `json:"path"`            // "rule" (default) or "model"
	RunRFM         bool               `json:"run_rfm"`         // compute the per-user segmentation table
	Overrides      map[string]string  `json:"overrides"`       // canonical field -> source column
	LabelColumn    string             `json:"label_column"`    // ground-truth churn labels for the model path
	FuzzyThreshold int                `json:"fuzzy_threshold"` // 0 means the default (80)
	Rule           scoring.RuleConfig `json:"rule"`
	Thresholds     ml.Thresholds      `json:"thresholds"`
	Training       *ml.TrainingConfig `json:"-"`

	// Fields overrides the canonical vocabulary; nil means schema.DefaultFields()
	Fields []schema.Field `json:"-"`
}

// DefaultOptions returns a rule-path invocation with stock thresholds
func DefaultOptions() Options {
	return Options{
		Path:       PathRule,
		Rule:       scoring.DefaultRuleConfig(),
		Thresholds: ml.DefaultThresholds(),
	}
}

// Summary carries the headline metrics the dashboard layer displays
type Summary struct {
	TotalRecords    int                `json:"total_records"`
	TotalUsers      int                `json:"total_users"`
	RiskCounts      map[string]int     `json:"risk_counts"`
	AvgChurnScore   float64            `json:"avg_churn_score,omitempty"`
	AvgProbability  float64            `json:"avg_probability,omitempty"`
	SegmentCounts   map[string]int     `json:"segment_counts,omitempty"`
	Nudges          map[string]string  `json:"nudges"`
	FeatureRanking  map[string]float64 `json:"feature_ranking,omitempty"` // model path only
}

// Result is the immutable output of one pipeline invocation
type Result struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path"`

	Dataset *ingest.Dataset      `json:"dataset"`
	Mapping schema.Mapping       `json:"mapping"`
	RFM     *segmentation.Result `json:"rfm,omitempty"`
	Summary Summary              `json:"summary"`

	// LabelSource is "proxy" when the model path trained on a synthesized
	// label; such predictions are best-effort, not validated.
	LabelSource string `json:"label_source,omitempty"`
}

// Pipeline runs uploads through normalization, scoring, and segmentation
type Pipeline struct {
	logger *utils.Logger
}

// NewPipeline creates a pipeline using the global logger
func NewPipeline() *Pipeline {
	return &Pipeline{logger: utils.GetLogger()}
}

// Run processes one parsed upload and returns its Result. The dataset is
// augmented in place with the derived columns; the caller hands ownership
// to the Result and must not reuse it.
func (p *Pipeline) Run(ds *ingest.Dataset, opts Options) (*Result, error) {
	if err := ds.Validate(); err != nil {
		return nil, &ingest.ErrUnparsableInput{Source: ds.Source, Reason: err}
	}

	fields := opts.Fields
	if fields == nil {
		fields = schema.DefaultFields()
	}
	if opts.Path == "" {
		opts.Path = PathRule
	}
	if opts.Rule == (scoring.RuleConfig{}) {
		opts.Rule = scoring.DefaultRuleConfig()
	}
	if opts.Thresholds == (ml.Thresholds{}) {
		opts.Thresholds = ml.DefaultThresholds()
	}

	columns := ds.ColumnNames()
	mapping := schema.InferMapping(columns, fields, opts.FuzzyThreshold)
	if err := mapping.ApplyOverrides(opts.Overrides, columns); err != nil {
		return nil, err
	}

	p.logger.Info("column mapping resolved",
		utils.Int("mapped", len(mapping.Fields)),
		utils.Int("unmapped", len(mapping.Unmapped)),
		utils.Int("warnings", len(mapping.Warnings)),
		utils.Component("pipeline"))

	result := &Result{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Path:      opts.Path,
		Dataset:   ds,
		Mapping:   mapping,
	}

	switch opts.Path {
	case PathRule:
		scoring.ScoreDataset(ds, &mapping, opts.Rule)
	case PathModel:
		model, err := ml.TrainChurnModel(ds, &mapping, opts.LabelColumn, opts.Rule, opts.Training)
		if err != nil {
			return nil, err
		}
		model.Thresholds = opts.Thresholds
		if err := model.Classify(ds, &mapping); err != nil {
			return nil, err
		}
		result.LabelSource = model.LabelSource
		if model.Training != nil {
			result.Summary.FeatureRanking = model.Training.FeatureImportance
		}
	default:
		return nil, fmt.Errorf("unknown scoring path %q (expected %q or %q)", opts.Path, PathRule, PathModel)
	}

	if opts.RunRFM {
		rfm, err := segmentation.Segment(ds, &mapping)
		if err != nil {
			return nil, err
		}
		result.RFM = rfm
	}

	p.summarize(result)

	p.logger.Info("analysis complete",
		utils.String("analysis_id", result.ID),
		utils.String("path", result.Path),
		utils.Int("rows", ds.RowCount),
		utils.Component("pipeline"))

	return result, nil
}

// summarize fills the headline metrics from the scored rows
func (p *Pipeline) summarize(result *Result) {
	summary := &result.Summary
	summary.TotalRecords = result.Dataset.RowCount
	summary.RiskCounts = map[string]int{
		scoring.RiskHigh:   0,
		scoring.RiskMedium: 0,
		scoring.RiskLow:    0,
	}

	userIDs := make(map[string]bool)
	scoreSum := 0.0
	probSum := 0.0

	for _, row := range result.Dataset.Rows {
		if level, ok := row[scoring.ColumnRiskLevel].(string); ok {
			summary.RiskCounts[level]++
		}
		if score, ok := row[scoring.ColumnChurnScore].(float64); ok {
			scoreSum += score
		}
		if prob, ok := row[ml.ColumnChurnProbability].(float64); ok {
			probSum += prob
		}
		if id, ok := result.Mapping.String(row, schema.FieldUserID); ok && id != "" {
			userIDs[id] = true
		}
	}

	summary.TotalUsers = len(userIDs)
	if summary.TotalUsers == 0 {
		// No identity column: every record counts as its own user.
		summary.TotalUsers = summary.TotalRecords
	}

	n := float64(result.Dataset.RowCount)
	if n > 0 {
		if result.Path == PathRule {
			summary.AvgChurnScore = scoreSum / n
		} else {
			summary.AvgProbability = probSum / n
		}
	}

	if result.RFM != nil {
		summary.SegmentCounts = make(map[string]int)
		for _, u := range result.RFM.Users {
			summary.SegmentCounts[u.Segment]++
		}
	}

	summary.Nudges = NudgesForSummary(summary)
}
