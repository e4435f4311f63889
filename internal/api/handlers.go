package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cardio-risk-server/internal/cache"
	"github.com/cardio-risk-server/internal/domain"
	"github.com/cardio-risk-server/internal/history"
	"github.com/cardio-risk-server/internal/service"
)

// analyzeRequest carries either raw report text, a binary document for
// the extraction service, or already-structured metrics.
type analyzeRequest struct {
	Text     string          `json:"text,omitempty"`
	Document []byte          `json:"document,omitempty"`
	MimeType string          `json:"mime_type,omitempty"`
	Metrics  *domain.Metrics `json:"metrics,omitempty"`
}

type analyzeResponse struct {
	Analysis     *domain.Analysis `json:"analysis"`
	DocumentHash string           `json:"document_hash,omitempty"`
	Cached       bool             `json:"cached"`
}

type batchRequest struct {
	Records []*domain.Metrics `json:"records"`
}

type batchResponse struct {
	Analyses []*domain.Analysis `json:"analyses"`
	Count    int                `json:"count"`
}

type validateResponse struct {
	Report     domain.ValidationReport `json:"report"`
	Assessment *domain.QuickAssessment `json:"assessment,omitempty"`
}

type compareRequest struct {
	BaselineID string `json:"baseline_id"`
	FollowupID string `json:"followup_id"`
}

// handleHealth handles health check requests. When an external database
// backs the history store its liveness is included in the report.
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   domain.AnalysisVersion,
	}

	if s.dbHealth != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := s.dbHealth.Health(ctx); err != nil {
			s.logger.WithError(err).Error("Database health check failed")
			resp["status"] = "degraded"
			resp["database"] = "down"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "up"
	}

	c.JSON(http.StatusOK, resp)
}

// handleAnalyze runs the full pipeline over a submitted report. Identical
// documents are served from cache, and every fresh analysis is persisted
// to history.
func (s *Server) handleAnalyze(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"invalid request body", err.Error(), requestID))
		return
	}

	// Structured metrics bypass extraction entirely.
	if req.Metrics != nil {
		analysis, err := s.analyzer.AnalyzeMetrics(c.Request.Context(), req.Metrics, "")
		if err != nil {
			s.respondError(c, err)
			return
		}
		s.persistAnalysis(c, analysis, "")
		c.JSON(http.StatusOK, analyzeResponse{Analysis: analysis})
		return
	}

	text := req.Text
	if text == "" && len(req.Document) > 0 {
		if s.extractor == nil {
			s.respondError(c, domain.NewAnalysisError(domain.ErrTextExtraction,
				"binary document submitted but text extraction is disabled", "", requestID))
			return
		}
		extracted, err := s.extractor.ExtractText(c.Request.Context(), req.Document, req.MimeType)
		if err != nil {
			s.respondError(c, err)
			return
		}
		text = extracted
	}

	if text == "" {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"request must include text, a document, or metrics", "", requestID))
		return
	}

	documentHash := cache.DocumentKey(text)

	if cached, hit, err := s.cache.Get(c.Request.Context(), documentHash); err == nil && hit {
		c.JSON(http.StatusOK, analyzeResponse{
			Analysis:     cached,
			DocumentHash: documentHash,
			Cached:       true,
		})
		return
	}

	// History backs the cache: a known document survives cache restarts.
	if record, err := s.store.FindByDocumentHash(c.Request.Context(), documentHash); err == nil && record != nil {
		if analysis, err := record.Analysis(); err == nil {
			if err := s.cache.Set(c.Request.Context(), documentHash, analysis, 0); err != nil {
				s.logger.WithError(err).Warn("Failed to cache analysis")
			}
			c.JSON(http.StatusOK, analyzeResponse{
				Analysis:     analysis,
				DocumentHash: documentHash,
				Cached:       true,
			})
			return
		}
	}

	analysis, err := s.analyzer.AnalyzeDocument(c.Request.Context(), text)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.persistAnalysis(c, analysis, documentHash)

	if err := s.cache.Set(c.Request.Context(), documentHash, analysis, 0); err != nil {
		s.logger.WithError(err).Warn("Failed to cache analysis")
	}

	c.JSON(http.StatusOK, analyzeResponse{
		Analysis:     analysis,
		DocumentHash: documentHash,
	})
}

// handleAnalyzeBatch analyzes a slice of structured metrics records.
func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"invalid request body", err.Error(), requestID))
		return
	}
	if len(req.Records) == 0 {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"batch requires at least one metrics record", "", requestID))
		return
	}

	analyses, err := s.analyzer.AnalyzeBatch(c.Request.Context(), req.Records)
	if err != nil {
		s.respondError(c, err)
		return
	}

	for _, analysis := range analyses {
		s.persistAnalysis(c, analysis, "")
	}

	c.JSON(http.StatusOK, batchResponse{Analyses: analyses, Count: len(analyses)})
}

// handleValidateMetrics runs the pre-flight validator and, when the record
// passes, a quick headline assessment.
func (s *Server) handleValidateMetrics(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var metrics domain.Metrics
	if err := c.ShouldBindJSON(&metrics); err != nil {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"invalid metrics payload", err.Error(), requestID))
		return
	}

	report := service.ValidateMetrics(&metrics, s.analyzer.RuleConfig())

	resp := validateResponse{Report: report}
	if report.IsValid {
		if assessment, err := s.analyzer.QuickAssessment(&metrics); err == nil {
			resp.Assessment = assessment
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleCompare diffs two stored analyses of the same patient.
func (s *Server) handleCompare(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"invalid request body", err.Error(), requestID))
		return
	}
	if req.BaselineID == "" || req.FollowupID == "" {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"baseline_id and followup_id are required", "", requestID))
		return
	}

	baseline, err := s.loadAnalysis(c, req.BaselineID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	followup, err := s.loadAnalysis(c, req.FollowupID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := service.Compare(baseline, followup)
	if err != nil {
		s.respondError(c, domain.NewAnalysisError(domain.ErrInvalidInput,
			"comparison failed", err.Error(), requestID))
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleGetAnalysis returns a stored analysis by ID.
func (s *Server) handleGetAnalysis(c *gin.Context) {
	analysis, err := s.loadAnalysis(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleGetAnalysisSummary returns the plain-text provider summary for a
// stored analysis.
func (s *Server) handleGetAnalysisSummary(c *gin.Context) {
	analysis, err := s.loadAnalysis(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      analysis.ID,
		"summary": s.analyzer.ProviderSummary(analysis),
	})
}

// handleListAnalyses pages through stored analysis records, newest first.
func (s *Server) handleListAnalyses(c *gin.Context) {
	requestID := c.GetString("correlation_id")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list analyses")
		s.respondError(c, domain.NewAnalysisError(domain.ErrDatabaseError,
			"failed to list analyses", "", requestID))
		return
	}

	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		total = int64(len(records))
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// loadAnalysis fetches and decodes a stored analysis, translating misses
// and storage failures into API errors.
func (s *Server) loadAnalysis(c *gin.Context, id string) (*domain.Analysis, error) {
	requestID := c.GetString("correlation_id")

	record, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		s.logger.WithError(err).WithField("analysis_id", id).Error("Failed to load analysis")
		return nil, domain.NewAnalysisError(domain.ErrDatabaseError,
			"failed to load analysis", "", requestID)
	}
	if record == nil {
		return nil, domain.NewAnalysisError(domain.ErrNotFound,
			"analysis not found", "id: "+id, requestID)
	}

	analysis, err := record.Analysis()
	if err != nil {
		return nil, domain.NewAnalysisError(domain.ErrDatabaseError,
			"failed to decode stored analysis", "", requestID)
	}
	return analysis, nil
}

// persistAnalysis saves a completed analysis to history. Persistence
// failures are logged but never fail the analysis response.
func (s *Server) persistAnalysis(c *gin.Context, analysis *domain.Analysis, documentHash string) {
	record, err := history.NewRecord(analysis, documentHash)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to build history record")
		return
	}
	if err := s.store.Save(c.Request.Context(), record); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"analysis_id": analysis.ID,
		}).Warn("Failed to persist analysis")
	}
}

// respondError maps pipeline and storage errors onto HTTP statuses.
func (s *Server) respondError(c *gin.Context, err error) {
	var analysisErr *domain.AnalysisError
	if !errors.As(err, &analysisErr) {
		analysisErr = domain.NewAnalysisError(domain.ErrInternalServer,
			"internal server error", err.Error(), c.GetString("correlation_id"))
	}
	if analysisErr.RequestID == "" {
		analysisErr.RequestID = c.GetString("correlation_id")
	}

	status := http.StatusInternalServerError
	switch analysisErr.Code {
	case domain.ErrInvalidInput, domain.ErrMissingMetrics, domain.ErrValidation:
		status = http.StatusBadRequest
	case domain.ErrNotFound:
		status = http.StatusNotFound
	case domain.ErrRateLimit:
		status = http.StatusTooManyRequests
	case domain.ErrTextExtraction:
		status = http.StatusBadGateway
	}

	c.JSON(status, analysisErr)
}
