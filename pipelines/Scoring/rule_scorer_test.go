package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
)

func mappingFor(t *testing.T, columns ...string) *schema.Mapping {
	t.Helper()
	m := schema.InferMapping(columns, schema.DefaultFields(), 0)
	return &m
}

// TestScore_RiskTiers walks three customers through the rule scorer: an
// active buyer, a cooling-off user, and a fully lapsed one
func TestScore_RiskTiers(t *testing.T) {
	mapping := mappingFor(t, "last_seen_days", "sessions", "purchases")

	cases := []struct {
		name      string
		row       map[string]any
		wantScore int
		wantLevel string
	}{
		{
			name:      "active buyer",
			row:       map[string]any{"last_seen_days": 3.0, "sessions": 12.0, "purchases": 3.0},
			wantScore: 0,
			wantLevel: RiskLow,
		},
		{
			name:      "cooling off",
			row:       map[string]any{"last_seen_days": 18.0, "sessions": 4.0, "purchases": 1.0},
			wantScore: 1,
			wantLevel: RiskMedium,
		},
		{
			name:      "lapsed",
			row:       map[string]any{"last_seen_days": 27.0, "sessions": 1.0, "purchases": 0.0},
			wantScore: 3,
			wantLevel: RiskHigh,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scored := Score(tc.row, mapping, DefaultRuleConfig())
			assert.Equal(t, tc.wantScore, scored.ChurnScore)
			assert.Equal(t, tc.wantLevel, scored.RiskLevel)
		})
	}
}

// TestScore_MissingFieldsAreNeutral tests that absent indicators contribute
// nothing instead of failing or inflating the score
func TestScore_MissingFieldsAreNeutral(t *testing.T) {
	mapping := mappingFor(t, "sessions")

	scored := Score(map[string]any{"sessions": 1.0}, mapping, DefaultRuleConfig())
	assert.Equal(t, 1, scored.ChurnScore, "only the mapped indicator should fire")
	assert.Equal(t, RiskMedium, scored.RiskLevel)

	empty := mappingFor(t, "zzz_unrelated")
	scored = Score(map[string]any{"zzz_unrelated": "x"}, empty, DefaultRuleConfig())
	assert.Equal(t, 0, scored.ChurnScore)
	assert.Equal(t, RiskLow, scored.RiskLevel)
}

// TestScore_NonNumericCellIsNeutral tests that a mapped but unreadable cell
// is skipped, keeping scoring a total function
func TestScore_NonNumericCellIsNeutral(t *testing.T) {
	mapping := mappingFor(t, "last_seen_days", "purchases")

	row := map[string]any{"last_seen_days": "unknown", "purchases": 0.0}
	scored := Score(row, mapping, DefaultRuleConfig())
	assert.Equal(t, 1, scored.ChurnScore)
}

func TestRiskLevelForScore(t *testing.T) {
	assert.Equal(t, RiskLow, RiskLevelForScore(0))
	assert.Equal(t, RiskMedium, RiskLevelForScore(1))
	assert.Equal(t, RiskHigh, RiskLevelForScore(2))
	assert.Equal(t, RiskHigh, RiskLevelForScore(3))
}

// TestScoreDataset tests that scoring appends the derived columns without
// touching the originals
func TestScoreDataset(t *testing.T) {
	csv := strings.Join([]string{
		"user_id,last_active_days,total_sessions,orders",
		"u1,3,12,3",
		"u2,27,1,0",
	}, "\n")

	ds, err := ingest.ParseCSV(strings.NewReader(csv), ingest.DefaultParseOptions())
	require.NoError(t, err)

	mapping := mappingFor(t, ds.ColumnNames()...)
	ScoreDataset(ds, mapping, DefaultRuleConfig())

	assert.True(t, ds.HasColumn(ColumnChurnScore))
	assert.True(t, ds.HasColumn(ColumnRiskLevel))
	assert.Equal(t, 6, ds.ColumnCount)

	assert.Equal(t, 0.0, ds.Rows[0][ColumnChurnScore])
	assert.Equal(t, RiskLow, ds.Rows[0][ColumnRiskLevel])
	assert.Equal(t, 3.0, ds.Rows[1][ColumnChurnScore])
	assert.Equal(t, RiskHigh, ds.Rows[1][ColumnRiskLevel])

	// originals untouched
	assert.Equal(t, "u1", ds.Rows[0]["user_id"])
	assert.Equal(t, 3.0, ds.Rows[0]["last_active_days"])
}
