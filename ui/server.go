package ui

import (
	"net/http"
	"strconv"
	"strings"

	"supptrace/app"
	"supptrace/domain/core"
	"supptrace/domain/effect"
	"supptrace/internal"
	"supptrace/ports"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
)

// Server exposes the engine over HTTP: report generation, period tracking,
// the patterns dashboard and the spreadsheet export.
type Server struct {
	router      *gin.Engine
	reports     *app.ReportService
	periods     *app.PeriodService
	supplements ports.SupplementRepository
	log         *internal.Logger
}

// NewServer creates the API server and registers its routes
func NewServer(reports *app.ReportService, periods *app.PeriodService, supplements ports.SupplementRepository, log *internal.Logger) *Server {
	s := &Server{
		router:      gin.Default(),
		reports:     reports,
		periods:     periods,
		supplements: supplements,
		log:         log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")

	api.GET("/users/:user_id/supplements/:supplement_id/report", s.handleReport)
	api.GET("/users/:user_id/supplements/:supplement_id/report/history", s.handleReportHistory)
	api.GET("/users/:user_id/patterns", s.handlePatterns)
	api.GET("/users/:user_id/reports/export", s.handleExport)

	api.POST("/supplements/:supplement_id/periods", s.handleAddPeriod)
	api.PUT("/periods/:period_id/close", s.handleClosePeriod)
}

// Start runs the HTTP server on the given address
func (s *Server) Start(addr string) error {
	s.log.Info("API server listening on %s", addr)
	return s.router.Run(addr)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleReport returns the effect report for a pair. ?force=true reruns the
// pipeline as an explicit test; otherwise the stored report is served when
// still valid.
func (s *Server) handleReport(c *gin.Context) {
	userID, err := core.ParseUserID(c.Param("user_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	supplementID, err := core.ParseUserSupplementID(c.Param("supplement_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	force := strings.EqualFold(c.Query("force"), "true")
	source := effect.SourceImplicit
	if force {
		source = effect.SourceExplicitTest
	}

	report, err := s.reports.Generate(c.Request.Context(), userID, supplementID, force, source)
	if err != nil {
		s.writeError(c, err)
		return
	}

	revealed, err := s.reports.Revealed(c.Request.Context(), report)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"report":   report,
		"revealed": revealed,
	})
}

// handleReportHistory lists past report versions, newest first
func (s *Server) handleReportHistory(c *gin.Context) {
	userID, err := core.ParseUserID(c.Param("user_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	supplementID, err := core.ParseUserSupplementID(c.Param("supplement_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	history, err := s.reports.History(c.Request.Context(), userID, supplementID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

type addPeriodRequest struct {
	Start string  `json:"start_date" binding:"required"`
	End   *string `json:"end_date"`
}

// handleAddPeriod records a new intake interval
func (s *Server) handleAddPeriod(c *gin.Context) {
	supplementID, err := core.ParseUserSupplementID(c.Param("supplement_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req addPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	start, err := core.ParseLocalDate(req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date: " + err.Error()})
		return
	}
	var end *core.LocalDate
	if req.End != nil {
		parsed, err := core.ParseLocalDate(*req.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + err.Error()})
			return
		}
		end = &parsed
	}

	periodID, err := s.periods.AddPeriod(c.Request.Context(), supplementID, start, end)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"period_id": periodID})
}

type closePeriodRequest struct {
	End string `json:"end_date" binding:"required"`
}

// handleClosePeriod sets the stop date on an open period
func (s *Server) handleClosePeriod(c *gin.Context) {
	periodID, err := core.ParsePeriodID(c.Param("period_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req closePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	end, err := core.ParseLocalDate(req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + err.Error()})
		return
	}

	if err := s.periods.ClosePeriod(c.Request.Context(), periodID, end); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"period_id": periodID, "end_date": end})
}

// handlePatterns returns the bucketed dashboard view. Mechanism notes are
// rendered from markdown so the dashboard can show them directly.
func (s *Server) handlePatterns(c *gin.Context) {
	userID, err := core.ParseUserID(c.Param("user_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	summaries, err := s.reports.Patterns(c.Request.Context(), userID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	notes := s.mechanismNotes(c, userID)
	buckets := map[effect.PatternBucket][]effect.Summary{
		effect.BucketWorking:      {},
		effect.BucketHurting:      {},
		effect.BucketNoSignal:     {},
		effect.BucketStillTesting: {},
	}
	for _, sum := range summaries {
		if note, ok := notes[sum.UserSupplementID]; ok && note != "" {
			sum.MechanismHTML = string(markdown.ToHTML([]byte(note), nil, nil))
		}
		buckets[sum.Bucket] = append(buckets[sum.Bucket], sum)
	}

	c.JSON(http.StatusOK, gin.H{
		"working":       buckets[effect.BucketWorking],
		"hurting":       buckets[effect.BucketHurting],
		"no_signal":     buckets[effect.BucketNoSignal],
		"still_testing": buckets[effect.BucketStillTesting],
	})
}

func (s *Server) mechanismNotes(c *gin.Context, userID core.UserID) map[core.UserSupplementID]string {
	notes := make(map[core.UserSupplementID]string)
	sups, err := s.supplements.ListUserSupplements(c.Request.Context(), userID)
	if err != nil {
		s.log.Warn("mechanism note lookup failed for %s: %v", userID, err)
		return notes
	}
	for _, sup := range sups {
		notes[sup.ID] = sup.MechanismNote
	}
	return notes
}

// writeError maps domain errors onto HTTP statuses
func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case core.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case core.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case core.IsTransientError(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
