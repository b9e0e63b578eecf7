package handlers

import (
	"context"
	"errors"
	"net/http"

	"designsense-go/internal/models"
	"designsense-go/internal/services"
	"designsense-go/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DesignTestService is what the design test routes need from the service layer.
type DesignTestService interface {
	ListQuestions(ctx context.Context) ([]models.PublicQuestion, error)
	ListSupplemental(ctx context.Context) ([]models.PublicSupplemental, error)
	Submit(ctx context.Context, sub models.Submission) (*services.Outcome, error)
}

type DesignTestHandler struct {
	svc DesignTestService
	log *zap.Logger
}

func NewDesignTestHandler(svc DesignTestService, log *zap.Logger) *DesignTestHandler {
	return &DesignTestHandler{svc: svc, log: log}
}

// ListQuestions serves GET /questions.
func (h *DesignTestHandler) ListQuestions(c *gin.Context) {
	questions, err := h.svc.ListQuestions(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to load questions.")
		return
	}
	c.JSON(http.StatusOK, questions)
}

// ListSupplemental serves GET /supplemental.
func (h *DesignTestHandler) ListSupplemental(c *gin.Context) {
	docs, err := h.svc.ListSupplemental(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to load supplemental questions.")
		return
	}
	c.JSON(http.StatusOK, docs)
}

// Submit serves POST /submit: 201 for a new attempt, 200 for a repeat.
func (h *DesignTestHandler) Submit(c *gin.Context) {
	var req models.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "Request body too large."})
			return
		}
		h.log.Debug("Rejected submission payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Invalid submission payload.",
			"issues": bindingIssues(err),
		})
		return
	}

	outcome, err := h.svc.Submit(c.Request.Context(), req.ToSubmission())
	if err != nil {
		h.writeError(c, err, "Failed to submit results.")
		return
	}

	status := http.StatusCreated
	if outcome.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, outcome.Result)
}

// CreateSession serves POST /sessions.
func (h *DesignTestHandler) CreateSession(c *gin.Context) {
	id, err := utils.NewSessionID()
	if err != nil {
		h.log.Error("Failed to generate session id", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create session."})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": id})
}

// writeError maps service errors to status codes. Anything untyped is a 500
// with the fallback detail.
func (h *DesignTestHandler) writeError(c *gin.Context, err error, fallback string) {
	var serr *services.Error
	if !errors.As(err, &serr) {
		h.log.Error("Unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fallback})
		return
	}

	switch serr.Kind {
	case services.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"detail": serr.Detail, "code": serr.Code})
	case services.KindDataIntegrity:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": serr.Detail, "code": serr.Code})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": serr.Detail})
	}
}
