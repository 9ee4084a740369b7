package main

import (
	"github.com/gorilla/mux"

	"github.com/retention-os/retentionos-go/pkg/config"
	"github.com/retention-os/retentionos-go/utils"

	analysis "github.com/retention-os/retentionos-go/pipelines/Analysis"
	schema "github.com/retention-os/retentionos-go/pipelines/Schema"
)

// Server wires the HTTP layer to the analysis pipeline
type Server struct {
	router   *mux.Router
	config   *config.Config
	logger   *utils.Logger
	pipeline *analysis.Pipeline
	store    *analysis.Store
	fields   []schema.Field
}

// NewServer creates a server from the given configuration
func NewServer(cfg *config.Config) (*Server, error) {
	logger := utils.GetLogger()
	logger.SetLevel(utils.ParseLogLevel(cfg.LogLevel))
	logger.SetFormat(cfg.LogFormat)

	fields := schema.DefaultFields()
	if cfg.AliasFile != "" {
		overrides, err := config.LoadAliasFile(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
		fields = schema.WithAliasOverrides(fields, overrides)
		logger.Info("loaded alias overrides",
			utils.String("file", cfg.AliasFile),
			utils.Int("fields", len(overrides)),
			utils.Component("server"))
	}

	s := &Server{
		router:   mux.NewRouter(),
		config:   cfg,
		logger:   logger,
		pipeline: analysis.NewPipeline(),
		store:    analysis.NewStore(100),
		fields:   fields,
	}

	s.setupRoutes()
	return s, nil
}

// defaultOptions builds pipeline options from the server configuration;
// per-request form values override them
func (s *Server) defaultOptions() analysis.Options {
	opts := analysis.DefaultOptions()
	opts.FuzzyThreshold = s.config.FuzzyThreshold
	opts.Rule.InactiveDays = float64(s.config.InactiveDays)
	opts.Rule.MinOrders = float64(s.config.MinOrders)
	opts.Rule.MinSessions = float64(s.config.MinSessions)
	opts.Thresholds.High = s.config.ProbHigh
	opts.Thresholds.Medium = s.config.ProbMedium
	opts.Fields = s.fields
	return opts
}
