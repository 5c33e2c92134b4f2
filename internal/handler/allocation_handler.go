package handler

import (
	"errors"
	"net/http"

	"github.com/caridad-cloud/allocation-service/internal/allocation"
	"github.com/caridad-cloud/allocation-service/internal/domain"
	"github.com/caridad-cloud/allocation-service/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AllocationHandler struct {
	allocationService *service.AllocationService
	logger            *zap.Logger
}

func NewAllocationHandler(allocationService *service.AllocationService, logger *zap.Logger) *AllocationHandler {
	return &AllocationHandler{
		allocationService: allocationService,
		logger:            logger,
	}
}

// OpenAllocation stages a new allocation session for a help request and
// returns the editable matrix.
func (h *AllocationHandler) OpenAllocation(c *gin.Context) {
	var req domain.OpenAllocationRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	session, matrix, err := h.allocationService.OpenAllocation(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrSnapshotUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "Donation records unavailable",
			})
			return
		}

		h.logger.Error("Failed to open allocation",
			zap.Int("request_id", req.RequestID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to open allocation",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.SessionID,
		"demand":     session.Demand,
		"matrix":     matrix,
	})
}

// SubmitAllocation reconciles the operator's assignments and submits the
// package commands. Validation failures come back as the complete list of
// corrections; partial submission failures come back in the report.
func (h *AllocationHandler) SubmitAllocation(c *gin.Context) {
	sessionID := c.Param("id")

	var req domain.SubmitAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return
	}

	report, err := h.allocationService.SubmitAllocation(c.Request.Context(), sessionID, req.Assignments)
	if err != nil {
		var verrs allocation.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":             "Allocation does not match demand",
				"validation_errors": verrs,
			})
			return
		}

		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Allocation session not found",
			})
			return
		}

		if errors.Is(err, service.ErrNoAssignments) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "No assignments submitted",
			})
			return
		}

		h.logger.Error("Failed to submit allocation",
			zap.String("session_id", sessionID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit allocation",
		})
		return
	}

	status := http.StatusOK
	if len(report.Failed) > 0 || len(report.InternalErrors) > 0 {
		// Partial success still reports what was created.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}

// GetSession returns the audit record of one allocation session.
func (h *AllocationHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.allocationService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Allocation session not found",
			})
			return
		}

		h.logger.Error("Failed to get session",
			zap.String("session_id", sessionID),
			zap.Error(err))

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get session",
		})
		return
	}

	c.JSON(http.StatusOK, session)
}
