package api

import (
	"errors"
	"net/http"

	"BetSync/internal/lock"
	"BetSync/internal/service"
	"BetSync/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SyncHandler struct {
	syncService *service.SyncService
	logger      *logrus.Logger
}

func NewSyncHandler(syncService *service.SyncService, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{
		syncService: syncService,
		logger:      logger,
	}
}

type syncUserRequest struct {
	AggregatorUserID string `json:"aggregator_user_id" binding:"required"`
}

// SyncUserHandler 同步指定用户在聚合方的全部注单
// @Summary 同步用户注单
// @Param user_id path string true "系统用户ID"
// @Param body body syncUserRequest true "聚合方用户ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400,409,500,502 {object} map[string]interface{}
// @Router /sync/user/{user_id} [post]
func (h *SyncHandler) SyncUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	var req syncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "aggregator_user_id 不能为空"})
		return
	}

	stats, err := h.syncService.SyncUser(c.Request.Context(), userID, req.AggregatorUserID)
	if err != nil {
		h.respondSyncError(c, userID, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": service.SyncMessage(stats),
		"stats":   stats,
	})
}

func (h *SyncHandler) respondSyncError(c *gin.Context, userID string, err error) {
	log := h.logger.WithError(err).WithField("user_id", userID)

	var upstream *settlement.UpstreamFetchError
	switch {
	case errors.Is(err, lock.ErrSyncInProgress):
		log.Info("同步已在进行中")
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": err.Error()})
	case errors.As(err, &upstream):
		log.Warn("聚合方不可用")
		c.JSON(http.StatusBadGateway, gin.H{
			"success":   false,
			"error":     err.Error(),
			"retryable": upstream.Retryable(),
		})
	default:
		log.Error("同步用户注单失败")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
