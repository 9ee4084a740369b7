package main

// setupRoutes sets up the HTTP routes with API versioning
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	// Health check (no version)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Column mapping preview: infer a mapping without running an analysis
	v1.HandleFunc("/mappings/preview", s.handlePreviewMapping).Methods("POST")
	v1.HandleFunc("/mappings/fields", s.handleListFields).Methods("GET")

	// Analysis lifecycle
	v1.HandleFunc("/analyses", s.handleCreateAnalysis).Methods("POST")
	v1.HandleFunc("/analyses", s.handleListAnalyses).Methods("GET")
	v1.HandleFunc("/analyses/{id}", s.handleGetAnalysis).Methods("GET")
	v1.HandleFunc("/analyses/{id}", s.handleDeleteAnalysis).Methods("DELETE")
	v1.HandleFunc("/analyses/{id}/records", s.handleGetRecords).Methods("GET")
	v1.HandleFunc("/analyses/{id}/segments", s.handleGetSegments).Methods("GET")
	v1.HandleFunc("/analyses/{id}/export", s.handleExport).Methods("GET")
	v1.HandleFunc("/analyses/{id}/segments/export", s.handleExportSegments).Methods("GET")
}
