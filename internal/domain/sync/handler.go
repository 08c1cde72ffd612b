package sync

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes the open banking endpoints.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Connect registers the accounts under a Pluggy item id obtained from the
// widget flow on the frontend.
func (h *Handler) Connect(c *gin.Context) {
	var payload struct {
		ItemID string `json:"item_id"`
	}
	if err := c.BindJSON(&payload); err != nil || payload.ItemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item_id is required"})
		return
	}

	accounts, err := h.svc.ConnectItem(c.Request.Context(), payload.ItemID)
	if err != nil {
		h.logger.Error("failed to connect item", "item_id", payload.ItemID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to connect bank accounts"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"accounts": accounts})
}

// Run triggers a sync of every connected account.
func (h *Handler) Run(c *gin.Context) {
	results, err := h.svc.SyncAll(c.Request.Context())
	if err != nil {
		h.logger.Error("sync run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sync failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
