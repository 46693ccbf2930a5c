package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"bizlaw-advisor-backend/models"
	"bizlaw-advisor-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles HTTP requests for research sessions
type SessionHandler struct {
	sessionService  *service.SessionService
	researchService *service.ResearchService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService, researchService *service.ResearchService) *SessionHandler {
	return &SessionHandler{
		sessionService:  sessionService,
		researchService: researchService,
	}
}

// SessionContextRequest represents the business context body for session
// creation and context replacement
type SessionContextRequest struct {
	City         string  `json:"city" binding:"required"`
	State        string  `json:"state" binding:"required"`
	BusinessType string  `json:"business_type" binding:"required"`
	AreaOfLaw    string  `json:"area_of_law" binding:"required"`
	StatuteOfLaw *string `json:"statute_of_law"`
}

func (r SessionContextRequest) businessContext() models.BusinessContext {
	return models.BusinessContext{
		City:         r.City,
		State:        r.State,
		BusinessType: r.BusinessType,
		AreaOfLaw:    r.AreaOfLaw,
		StatuteOfLaw: r.StatuteOfLaw,
	}
}

// CreateSession handles POST /api/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req SessionContextRequest
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

	result, err := h.sessionService.CreateSession(c.Request.Context(), service.CreateSessionRequest{
		Context: req.businessContext(),
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingContextFields) || errors.Is(err, service.ErrUnknownLawCategory) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CONTEXT",
					"message": err.Error(),
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	data := gin.H{"session": result.Session}
	h.startContextSearch(c, result.Session.ID, data)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
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

	result, err := h.sessionService.GetSession(c.Request.Context(), service.GetSessionRequest{ID: id})
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Research session not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result.Session,
	})
}

// UpdateContext handles PUT /api/sessions/:id/context
func (h *SessionHandler) UpdateContext(c *gin.Context) {
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

	var req SessionContextRequest
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

	result, err := h.sessionService.UpdateContext(c.Request.Context(), service.UpdateContextRequest{
		SessionID: id,
		Context:   req.businessContext(),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Research session not found",
				},
			})
		case errors.Is(err, service.ErrMissingContextFields), errors.Is(err, service.ErrUnknownLawCategory):
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_CONTEXT",
					"message": err.Error(),
				},
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPDATE_FAILED",
					"message": err.Error(),
				},
			})
		}
		return
	}

	data := gin.H{"session": result.Session}
	h.startContextSearch(c, id, data)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// ListAnalyses handles GET /api/sessions/:id/analyses
func (h *SessionHandler) ListAnalyses(c *gin.Context) {
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

	result, err := h.sessionService.ListAnalyses(c.Request.Context(), service.ListAnalysesRequest{SessionID: id})
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "NOT_FOUND",
					"message": "Research session not found",
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
		"data":    result.Analyses,
	})
}

// startContextSearch kicks off the session's context-defining research in
// the background and, when the job was created, adds its id to the
// response data.
func (h *SessionHandler) startContextSearch(c *gin.Context, sessionID uuid.UUID, data gin.H) {
	start, err := h.researchService.StartContextSearch(c.Request.Context(), sessionID)
	if err != nil {
		// The session exists either way; the client can resubmit the
		// context to retry the research job.
		log.Printf("Warning: failed to start context search for session %s: %v", sessionID, err)
		return
	}

	// Spawn background goroutine for actual processing
	// Use background context (not request context) to avoid cancellation
	go func() {
		bgCtx := context.Background()
		if err := h.researchService.ProcessContextSearch(bgCtx, start.JobID); err != nil {
			// Error is logged and stored in job.ErrorMessage
			// No need to return to HTTP client (they'll poll status)
			log.Printf("Research job %s failed: %v", start.JobID, err)
		}
	}()

	data["job_id"] = start.JobID
}
