package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/session"
	"solana-token-transfer/internal/transfer"
)

// Error is the JSON error body.
type Error struct {
	Message string `json:"message"`
}

func (h *Handler) newErrorResponse(c *gin.Context, statusCode int, err error) {
	entry := h.log.WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"status": statusCode,
	}).WithError(err)
	if statusCode >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	c.AbortWithStatusJSON(statusCode, Error{Message: err.Error()})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, transfer.ErrNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, transfer.ErrNoSelection),
		errors.Is(err, session.ErrInvalidSelection),
		transfer.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrStaleGeneration):
		return http.StatusConflict
	default:
		// Submission failures and discovery failures both come from the node.
		return http.StatusBadGateway
	}
}
