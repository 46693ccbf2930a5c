package handlers

import (
	"errors"
	"net/http"

	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ResearchHandler handles HTTP requests for research queries, jobs, and
// session artifacts
type ResearchHandler struct {
	researchService *service.ResearchService
	analysisService *service.AnalysisService
	scraperService  *service.ScraperService
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(researchService *service.ResearchService, analysisService *service.AnalysisService, scraperService *service.ScraperService) *ResearchHandler {
	return &ResearchHandler{
		researchService: researchService,
		analysisService: analysisService,
		scraperService:  scraperService,
	}
}

// RunQueryRequest represents the request body for a stateless research query
type RunQueryRequest struct {
	Query   string                 `json:"query" binding:"required"`
	Context models.BusinessContext `json:"context"`
}

// RunQuery handles POST /api/query
func (h *ResearchHandler) RunQuery(c *gin.Context) {
	var req RunQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.researchService.Run(c.Request.Context(), service.ResearchRequest{
		Query:   req.Query,
		Context: req.Context,
	})
	if err != nil {
		h.renderQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    queryResponse(result),
	})
}

// SessionQueryRequest represents the request body for a session query
type SessionQueryRequest struct {
	Query string `json:"query" binding:"required"`
}

// RunSessionQuery handles POST /api/sessions/:id/query
func (h *ResearchHandler) RunSessionQuery(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid session ID format",
			},
		})
		return
	}

	var req SessionQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.researchService.RunSessionQuery(c.Request.Context(), id, req.Query)
	if err != nil {
		h.renderQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    queryResponse(result),
	})
}

// DetermineContextRequest represents the request body for context extraction
type DetermineContextRequest struct {
	Input string `json:"input" binding:"required"`
}

// DetermineContext handles POST /api/context
func (h *ResearchHandler) DetermineContext(c *gin.Context) {
	var req DetermineContextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	bctx, err := h.analysisService.DetermineContext(c.Request.Context(), req.Input)
	if err != nil {
		var parseErr *service.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "EXTRACTION_FAILED",
					"message": "The model response could not be parsed into a business context",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EXTRACTION_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    bctx,
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *ResearchHandler) GetJobStatus(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	result, err := h.researchService.GetJobStatus(c.Request.Context(), service.GetJobStatusRequest{
		JobID: id,
	})
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Research job not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Job,
	})
}

// GetSources handles GET /api/sessions/:id/sources
func (h *ResearchHandler) GetSources(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid session ID format",
			},
		})
		return
	}

	manifest, err := h.researchService.GetManifest(c.Request.Context(), id)
	if err != nil {
		h.renderArtifactError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    manifest,
	})
}

// GetApplicableLaws handles GET /api/sessions/:id/laws
func (h *ResearchHandler) GetApplicableLaws(c *gin.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid session ID format",
			},
		})
		return
	}

	doc, err := h.researchService.GetApplicableLaws(c.Request.Context(), id)
	if err != nil {
		h.renderArtifactError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    doc,
	})
}

// ScrapeSourceRequest represents the request body for scraping a source
type ScrapeSourceRequest struct {
	URL          string `json:"url" binding:"required"`
	Jurisdiction string `json:"jurisdiction"`
}

// ScrapeSource handles POST /api/sources/scrape
func (h *ResearchHandler) ScrapeSource(c *gin.Context) {
	var req ScrapeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	jurisdiction := models.Jurisdiction(req.Jurisdiction)
	switch jurisdiction {
	case models.JurisdictionFederal, models.JurisdictionState, models.JurisdictionLocal:
	case "":
		jurisdiction = models.JurisdictionFederal
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_JURISDICTION",
				"message": "Jurisdiction must be Federal, State, or Local",
			},
		})
		return
	}

	source, err := h.scraperService.ScrapeSource(c.Request.Context(), req.URL, jurisdiction)
	if err != nil {
		if errors.Is(err, service.ErrUntrustedSource) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNTRUSTED_SOURCE",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SCRAPE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    source,
	})
}

// queryResponse shapes a research result for the API, surfacing which
// jurisdictions degraded.
func queryResponse(result *service.ResearchResult) gin.H {
	data := gin.H{"analysis": result.Analysis}
	if degraded := result.DegradedJurisdictions(); len(degraded) > 0 {
		data["degraded_jurisdictions"] = degraded
	}
	return data
}

// renderQueryError maps research pipeline failures onto the API
func (h *ResearchHandler) renderQueryError(c *gin.Context, err error) {
	var parseErr *service.ParseError
	switch {
	case errors.As(err, &parseErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "SYNTHESIS_FAILED",
				"message": "The model response could not be parsed into an analysis",
			},
		})
	case errors.Is(err, service.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EMPTY_QUERY",
				"message": err.Error(),
			},
		})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Research session not found",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUERY_FAILED",
				"message": err.Error(),
			},
		})
	}
}

// renderArtifactError maps artifact retrieval failures onto the API
func (h *ResearchHandler) renderArtifactError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Research session not found",
			},
		})
	case errors.Is(err, service.ErrArtifactNotReady):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ARTIFACT_NOT_READY",
				"message": "The session's research artifacts are not ready yet",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "RETRIEVAL_FAILED",
				"message": err.Error(),
			},
		})
	}
}
