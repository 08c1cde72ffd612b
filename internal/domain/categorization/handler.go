package categorization

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Handler serves the category vocabulary endpoints.
type Handler struct {
	suggest *SuggestIndex
	logger  *slog.Logger
}

func NewHandler(suggest *SuggestIndex, logger *slog.Logger) *Handler {
	return &Handler{suggest: suggest, logger: logger}
}

// List returns both category vocabularies so the frontend can render
// pickers without hardcoding them.
func (h *Handler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"income":  IncomeCategories,
		"expense": ExpenseCategories,
	})
}

// Search powers the category autocomplete used when re-labeling a
// transaction by hand.
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	suggestions, err := h.suggest.Suggest(query, limit)
	if err != nil {
		h.logger.Error("category search failed", "query", query, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
