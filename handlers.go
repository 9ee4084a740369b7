package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/retention-os/retentionos-go/utils"

	analysis "github.com/retention-os/retentionos-go/pipelines/Analysis"
	ingest "github.com/retention-os/retentionos-go/pipelines/Ingest"
	ml "github.com/retention-os/retentionos-go/pipelines/ML"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
	segmentation "github.com/retention-os/retentionos-go/pipelines/Segmentation"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "retentionos",
		"version": retentionVersion,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// PreviewMappingRequest asks for a column mapping without running an analysis
type PreviewMappingRequest struct {
	Columns   []string          `json:"columns"`
	Threshold int               `json:"threshold,omitempty"`
	Overrides map[string]string `json:"overrides,omitempty"`
}

// handlePreviewMapping handles POST /api/v1/mappings/preview
func (s *Server) handlePreviewMapping(w http.ResponseWriter, r *http.Request) {
	var req PreviewMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if len(req.Columns) == 0 {
		writeBadRequestResponse(w, "columns is required")
		return
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = s.config.FuzzyThreshold
	}

	mapping := schema.InferMapping(req.Columns, s.fields, threshold)
	if err := mapping.ApplyOverrides(req.Overrides, req.Columns); err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	writeSuccessResponse(w, mapping)
}

// handleListFields handles GET /api/v1/mappings/fields
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, s.fields)
}

// handleCreateAnalysis handles POST /api/v1/analyses. The upload arrives as
// multipart form data under "file"; pipeline options come from form values.
func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeBadRequestResponse(w, fmt.Sprintf("Invalid multipart upload: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequestResponse(w, "file is required")
		return
	}
	defer file.Close()

	ds, err := ingest.ParseFile(header.Filename, file)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	opts, err := s.optionsFromForm(r)
	if err != nil {
		writeBadRequestResponse(w, err.Error())
		return
	}

	result, err := s.pipeline.Run(ds, opts)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.store.Put(result)

	writeJSONResponse(w, http.StatusCreated, map[string]any{
		"id":           result.ID,
		"path":         result.Path,
		"label_source": result.LabelSource,
		"summary":      result.Summary,
		"mapping":      result.Mapping,
		"row_count":    result.Dataset.RowCount,
	})
}

// optionsFromForm reads pipeline options from the upload form
func (s *Server) optionsFromForm(r *http.Request) (analysis.Options, error) {
	opts := s.defaultOptions()

	if path := r.FormValue("path"); path != "" {
		opts.Path = path
	}
	if rfm := r.FormValue("rfm"); rfm != "" {
		parsed, err := strconv.ParseBool(rfm)
		if err != nil {
			return opts, fmt.Errorf("rfm must be a boolean, got %q", rfm)
		}
		opts.RunRFM = parsed
	}
	opts.LabelColumn = r.FormValue("label_column")

	if threshold := r.FormValue("threshold"); threshold != "" {
		parsed, err := strconv.Atoi(threshold)
		if err != nil || parsed < 0 || parsed > 100 {
			return opts, fmt.Errorf("threshold must be an integer between 0 and 100, got %q", threshold)
		}
		opts.FuzzyThreshold = parsed
	}

	if overrides := r.FormValue("overrides"); overrides != "" {
		parsed := make(map[string]string)
		if err := json.Unmarshal([]byte(overrides), &parsed); err != nil {
			return opts, fmt.Errorf("overrides must be a JSON object of field -> column: %v", err)
		}
		opts.Overrides = parsed
	}

	return opts, nil
}

// writePipelineError maps pipeline failures onto HTTP statuses per the
// error taxonomy: unparsable input and bad options are 400, missing
// required fields under the model or RFM path are 422.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	var unparsable *ingest.ErrUnparsableInput
	var missingFields *ml.MissingFieldsError
	var missingRFM *segmentation.MissingInputError

	switch {
	case errors.As(err, &unparsable):
		writeBadRequestResponse(w, err.Error())
	case errors.As(err, &missingFields), errors.As(err, &missingRFM):
		writeErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("analysis failed", err, utils.Component("http"))
		writeBadRequestResponse(w, err.Error())
	}
}
