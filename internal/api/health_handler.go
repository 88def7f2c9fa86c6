package api

import (
	"context"
	"net/http"
	"time"

	"BetSync/internal/repository"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	repo repository.BetRepository
}

func NewHealthHandler(repo repository.BetRepository) *HealthHandler {
	return &HealthHandler{repo: repo}
}

// Healthz GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
	defer cancel()
	if err := h.repo.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
