package main

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	analysis "github.com/retention-os/retentionos-go/pipelines/Analysis"
	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	scoring "github.com/retention-os/retentionos-go/pipelines/Scoring"
	segmentation "github.com/retention-os/retentionos-go/pipelines/Segmentation"
)

// handleListAnalyses handles GET /api/v1/analyses
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	results := s.store.List()

	summaries := make([]map[string]any, 0, len(results))
	for _, result := range results {
		summaries = append(summaries, map[string]any{
			"id":           result.ID,
			"created_at":   result.CreatedAt,
			"path":         result.Path,
			"label_source": result.LabelSource,
			"row_count":    result.Dataset.RowCount,
			"summary":      result.Summary,
		})
	}

	writeSuccessResponse(w, summaries)
}

// handleGetAnalysis handles GET /api/v1/analyses/{id}
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookupAnalysis(w, r)
	if !ok {
		return
	}
	writeSuccessResponse(w, result)
}

// handleDeleteAnalysis handles DELETE /api/v1/analyses/{id}
func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.store.Delete(id); err != nil {
		writeNotFoundResponse(w, err.Error())
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"message": "analysis deleted",
		"id":      id,
	})
}

// handleGetRecords handles GET /api/v1/analyses/{id}/records with optional
// ?risk=High filtering and ?limit=N
func (s *Server) handleGetRecords(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookupAnalysis(w, r)
	if !ok {
		return
	}

	riskFilter := r.URL.Query().Get("risk")
	limit := parseLimit(r, result.Dataset.RowCount)

	rows := make([]map[string]any, 0, limit)
	for _, row := range result.Dataset.Rows {
		if riskFilter != "" {
			if level, _ := row[scoring.ColumnRiskLevel].(string); level != riskFilter {
				continue
			}
		}
		rows = append(rows, row)
		if len(rows) >= limit {
			break
		}
	}

	writeSuccessResponse(w, map[string]any{
		"columns": result.Dataset.ColumnNames(),
		"rows":    rows,
		"total":   result.Dataset.RowCount,
	})
}

// handleGetSegments handles GET /api/v1/analyses/{id}/segments
func (s *Server) handleGetSegments(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookupAnalysis(w, r)
	if !ok {
		return
	}
	if result.RFM == nil {
		writeNotFoundResponse(w, fmt.Sprintf("analysis %s was run without RFM segmentation", result.ID))
		return
	}
	writeSuccessResponse(w, result.RFM)
}

// handleExport handles GET /api/v1/analyses/{id}/export?format=csv|xlsx,
// streaming the augmented table back in the requested format
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookupAnalysis(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=analysis_%s.csv", result.ID))
		if err := ingest.WriteCSV(w, result.Dataset, nil); err != nil {
			s.logger.Error("CSV export failed", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=analysis_%s.xlsx", result.ID))
		if err := ingest.WriteExcel(w, result.Dataset, nil, "Analysis"); err != nil {
			s.logger.Error("Excel export failed", err)
		}
	default:
		writeBadRequestResponse(w, fmt.Sprintf("unsupported export format %q (expected csv or xlsx)", format))
	}
}

// handleExportSegments handles GET /api/v1/analyses/{id}/segments/export
func (s *Server) handleExportSegments(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lookupAnalysis(w, r)
	if !ok {
		return
	}
	if result.RFM == nil {
		writeNotFoundResponse(w, fmt.Sprintf("analysis %s was run without RFM segmentation", result.ID))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=segments_%s.csv", result.ID))
	if err := writeSegmentsCSV(w, result.RFM.Users); err != nil {
		s.logger.Error("segment export failed", err)
	}
}

// lookupAnalysis resolves the {id} route variable against the store,
// writing a 404 when absent
func (s *Server) lookupAnalysis(w http.ResponseWriter, r *http.Request) (*analysis.Result, bool) {
	id := mux.Vars(r)["id"]
	result, err := s.store.Get(id)
	if err != nil {
		writeNotFoundResponse(w, err.Error())
		return nil, false
	}
	return result, true
}

// writeSegmentsCSV renders the per-user RFM table as delimited text. The
// segment table has a fixed shape, unlike the pass-through upload table, so
// it serializes through a dedicated dataset rather than the upload's own.
func writeSegmentsCSV(w http.ResponseWriter, users []segmentation.UserSegment) error {
	columns := []string{"user_id", "recency", "frequency", "monetary", "r_score", "f_score", "m_score", "rfm_code", "segment"}
	ds := ingest.NewDataset("segments")
	for _, u := range users {
		ds.Rows = append(ds.Rows, map[string]any{
			"user_id":   u.UserID,
			"recency":   u.Recency,
			"frequency": u.Frequency,
			"monetary":  u.Monetary,
			"r_score":   u.RScore,
			"f_score":   u.FScore,
			"m_score":   u.MScore,
			"rfm_code":  u.RFMCode,
			"segment":   u.Segment,
		})
	}
	ds.RowCount = len(ds.Rows)
	return ingest.WriteCSV(w, ds, columns)
}
