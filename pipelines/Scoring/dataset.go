package scoring

import (
	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
)

// ScoreDataset runs the rule scorer over every row and appends the
// churn_score and risk_level columns. The input rows keep their original
// columns; only the two derived columns are added.
func ScoreDataset(ds *ingest.Dataset, mapping *schema.Mapping, cfg RuleConfig) {
	for _, row := range ds.Rows {
		scored := Score(row, mapping, cfg)
		row[ColumnChurnScore] = float64(scored.ChurnScore)
		row[ColumnRiskLevel] = scored.RiskLevel
	}

	ds.AppendColumn(ColumnChurnScore, "numeric")
	ds.AppendColumn(ColumnRiskLevel, "string")
}
