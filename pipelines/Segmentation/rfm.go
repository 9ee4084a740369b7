// RFM segmentation: per-user Recency/Frequency/Monetary metrics, quartile
// scores over the uploaded cohort, and named segments.
package segmentation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
)

// Segment labels, in classification priority order
const (
	SegmentChampion  = "Champion"
	SegmentLoyal     = "Loyal"
	SegmentFrequent  = "Frequent"
	SegmentHighValue = "High Value"
	SegmentAtRisk    = "At Risk"
	SegmentOthers    = "Others"
)

// UserSegment is one row of the per-user RFM table
type UserSegment struct {
	UserID    string  `json:"user_id"`
	Recency   int     `json:"recency"`   // days since the user's last activity, relative to the cohort snapshot
	Frequency int     `json:"frequency"` // count of order-bearing records
	Monetary  float64 `json:"monetary"`  // summed revenue
	RScore    int     `json:"r_score"`
	FScore    int     `json:"f_score"`
	MScore    int     `json:"m_score"`
	RFMCode   string  `json:"rfm_code"`
	Segment   string  `json:"segment"`
}

// Warning reports a metric whose distribution could not fill four quartile
// buckets; scoring collapsed to fewer bins instead of failing.
type Warning struct {
	Metric  string `json:"metric"`
	Bins    int    `json:"bins"`
	Details string `json:"details"`
}

// MissingInputError names the canonical fields RFM needs but the mapping
// could not resolve
type MissingInputError struct {
	Fields []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("RFM segmentation requires columns: %s", strings.Join(e.Fields, ", "))
}

// Result is the full segmentation output for one upload. Quartile cut
// points depend on the whole cohort, so a Result is recomputed from scratch
// for every new upload and never mutated afterward.
type Result struct {
	Users    []UserSegment `json:"users"`
	Warnings []Warning     `json:"warnings,omitempty"`
}

// Segment groups the table by user identity, computes per-user RFM metrics,
// ranks each metric into equal-population quartiles across the cohort, and
// classifies the users.
//
// Recency is measured against a cohort-wide snapshot: the most recent
// activity timestamp observed in the upload. When the table carries only a
// last-active-day-count column, the row with the smallest count defines the
// snapshot and per-user recency is the user's own smallest count relative
// to it.
func Segment(ds *ingest.Dataset, mapping *schema.Mapping) (*Result, error) {
	var missing []string
	if !mapping.Has(schema.FieldUserID) {
		missing = append(missing, schema.FieldUserID)
	}
	hasDate := mapping.Has(schema.FieldLastActiveDate)
	hasDays := mapping.Has(schema.FieldLastActiveDays)
	if !hasDate && !hasDays {
		missing = append(missing, schema.FieldLastActiveDays+" (or "+schema.FieldLastActiveDate+")")
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Fields: missing}
	}
	if ds.RowCount == 0 {
		return nil, fmt.Errorf("cannot segment an empty dataset")
	}

	metrics, err := aggregate(ds, mapping, hasDate)
	if err != nil {
		return nil, err
	}

	result := &Result{Users: metrics}

	recency := make([]float64, len(metrics))
	frequency := make([]float64, len(metrics))
	monetary := make([]float64, len(metrics))
	for i, m := range metrics {
		recency[i] = float64(m.Recency)
		frequency[i] = float64(m.Frequency)
		monetary[i] = m.Monetary
	}

	// R is ranked descending: the most recently active user scores 4.
	rScores, rBins := quartileScores(recency, true)
	fScores, fBins := quartileScores(frequency, false)
	mScores, mBins := quartileScores(monetary, false)

	for metric, bins := range map[string]int{"recency": rBins, "frequency": fBins, "monetary": mBins} {
		if bins < 4 {
			result.Warnings = append(result.Warnings, Warning{
				Metric:  metric,
				Bins:    bins,
				Details: fmt.Sprintf("insufficient variation in %s: collapsed to %d bucket(s)", metric, bins),
			})
		}
	}
	sort.Slice(result.Warnings, func(i, j int) bool {
		return result.Warnings[i].Metric < result.Warnings[j].Metric
	})

	for i := range result.Users {
		u := &result.Users[i]
		u.RScore = rScores[i]
		u.FScore = fScores[i]
		u.MScore = mScores[i]
		u.RFMCode = fmt.Sprintf("%d%d%d", u.RScore, u.FScore, u.MScore)
		u.Segment = ClassifySegment(u.RScore, u.FScore, u.MScore)
	}

	return result, nil
}

// ClassifySegment applies the fixed segment rules in priority order. The
// ordering is a tie-break policy: a user who is both highest-recency and
// highest-monetary is Loyal because recency is checked first.
func ClassifySegment(r, f, m int) string {
	switch {
	case r == 4 && f == 4 && m == 4:
		return SegmentChampion
	case r == 4:
		return SegmentLoyal
	case f == 4:
		return SegmentFrequent
	case m == 4:
		return SegmentHighValue
	case r == 1:
		return SegmentAtRisk
	default:
		return SegmentOthers
	}
}

// aggregate computes per-user recency, frequency, and monetary values
func aggregate(ds *ingest.Dataset, mapping *schema.Mapping, useTimestamps bool) ([]UserSegment, error) {
	type userAgg struct {
		lastActivity time.Time // timestamp path
		minDays      float64   // day-count path
		hasRecency   bool
		frequency    int
		monetary     float64
	}

	aggregates := make(map[string]*userAgg)
	var order []string // deterministic output: first-appearance order

	var snapshot time.Time
	minDaysCohort := 0.0
	haveCohortMin := false

	for i, row := range ds.Rows {
		userID, ok := mapping.String(row, schema.FieldUserID)
		if !ok || userID == "" {
			return nil, fmt.Errorf("row %d has no user identity", i+1)
		}

		agg, exists := aggregates[userID]
		if !exists {
			agg = &userAgg{}
			aggregates[userID] = agg
			order = append(order, userID)
		}

		if useTimestamps {
			raw, ok := mapping.String(row, schema.FieldLastActiveDate)
			if ok && raw != "" {
				ts, err := ingest.ParseDateTime(raw)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i+1, err)
				}
				if ts.After(agg.lastActivity) {
					agg.lastActivity = ts
					agg.hasRecency = true
				}
				if ts.After(snapshot) {
					snapshot = ts
				}
			}
		} else {
			days, ok := mapping.Numeric(row, schema.FieldLastActiveDays)
			if ok {
				if !agg.hasRecency || days < agg.minDays {
					agg.minDays = days
					agg.hasRecency = true
				}
				if !haveCohortMin || days < minDaysCohort {
					minDaysCohort = days
					haveCohortMin = true
				}
			}
		}

		if orders, ok := mapping.Numeric(row, schema.FieldOrders); ok && orders > 0 {
			agg.frequency++
		}
		if revenue, ok := mapping.Numeric(row, schema.FieldRevenue); ok {
			agg.monetary += revenue
		}
	}

	users := make([]UserSegment, 0, len(order))
	for _, userID := range order {
		agg := aggregates[userID]

		recency := 0
		if agg.hasRecency {
			if useTimestamps {
				recency = int(snapshot.Sub(agg.lastActivity).Hours() / 24)
			} else {
				recency = int(agg.minDays - minDaysCohort)
			}
			if recency < 0 {
				recency = 0
			}
		}

		users = append(users, UserSegment{
			UserID:    userID,
			Recency:   recency,
			Frequency: agg.frequency,
			Monetary:  agg.monetary,
		})
	}

	return users, nil
}

// quartileScores ranks values into equal-population quartiles. Cut points
// come from the empirical quantiles of the cohort; duplicate cut points
// (fewer than 4 distinct values) collapse to fewer bins. Returns one score
// per value in input order plus the effective bin count. Scores run 1..bins
// ascending, inverted when descending is set.
func quartileScores(values []float64, descending bool) ([]int, int) {
	scores := make([]int, len(values))
	if len(values) == 0 {
		return scores, 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var cuts []float64
	for _, p := range []float64{0.25, 0.5, 0.75} {
		q := stat.Quantile(p, stat.Empirical, sorted, nil)
		// Keep only strictly increasing cut points below the maximum so
		// every bin can hold at least one value.
		if (len(cuts) == 0 || q > cuts[len(cuts)-1]) && q < sorted[len(sorted)-1] {
			cuts = append(cuts, q)
		}
	}

	bins := len(cuts) + 1
	for i, v := range values {
		bin := 1
		for _, cut := range cuts {
			if v > cut {
				bin++
			}
		}
		if descending {
			// Descending rank, but pinned to the 1..4 quartile scale so a
			// collapsed distribution still tops out at 4.
			bin = remapDescending(bin, bins)
		} else {
			bin = remapAscending(bin, bins)
		}
		scores[i] = bin
	}

	return scores, bins
}

// remapAscending stretches a 1..bins rank onto the 1..4 scale so segment
// rules keyed on score 4 and score 1 stay meaningful under collapsed bins.
// A fully degenerate metric (a single bin) scores a neutral 2 for everyone:
// no segment rule keys on 2, so the metric neither promotes nor demotes.
func remapAscending(bin, bins int) int {
	if bins <= 1 {
		return 2
	}
	if bin == bins {
		return 4
	}
	return bin
}

func remapDescending(bin, bins int) int {
	if bins <= 1 {
		return 2
	}
	inverted := bins + 1 - bin
	if inverted == bins {
		return 4
	}
	return inverted
}
