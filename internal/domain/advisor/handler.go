package advisor

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the advisor chat endpoint.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Chat answers one free-form question.
func (h *Handler) Chat(c *gin.Context) {
	var payload struct {
		AccountID *string `json:"account_id"`
		Question  string  `json:"question"`
	}
	if err := c.BindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	var accountID *uuid.UUID
	if payload.AccountID != nil && *payload.AccountID != "" {
		id, err := uuid.Parse(*payload.AccountID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account_id"})
			return
		}
		accountID = &id
	}

	answer, err := h.svc.Ask(c.Request.Context(), accountID, payload.Question)
	if err != nil {
		h.logger.Error("advisor request failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "advisor is unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": answer})
}
