package api

import (
	"errors"
	"net/http"

	"BetSync/internal/service"
	"BetSync/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	actionRecalculateAll  = "recalculate_all"
	actionRecalculateUser = "recalculate_user"
	actionValidate        = "validate"
)

// SettlementHandler 盈亏重算与校验的管理接口
type SettlementHandler struct {
	reconcileService *service.ReconcileService
	logger           *logrus.Logger
}

func NewSettlementHandler(reconcileService *service.ReconcileService, logger *logrus.Logger) *SettlementHandler {
	return &SettlementHandler{reconcileService: reconcileService, logger: logger}
}

type reconcileRequest struct {
	Action string `json:"action" binding:"required"`
	UserID string `json:"userId"`
	Sample int    `json:"sample"` // 仅 validate 使用，<=0 用默认值
}

// Reconcile 执行重算或校验
// POST /api/settlement/reconcile {"action":"recalculate_all"|"recalculate_user"|"validate","userId":"..."}
func (h *SettlementHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "action 不能为空"})
		return
	}
	ctx := c.Request.Context()
	log := h.logger.WithFields(logrus.Fields{"action": req.Action, "user_id": req.UserID})

	var (
		details interface{}
		message string
		err     error
	)
	switch req.Action {
	case actionRecalculateAll:
		var res *service.ReconcileResult
		res, err = h.reconcileService.RecalcAll(ctx)
		if err == nil {
			details, message = res, "全量盈亏重算完成"
		}
	case actionRecalculateUser:
		if req.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": service.ErrUserIDRequired.Error()})
			return
		}
		var res *service.ReconcileResult
		res, err = h.reconcileService.RecalcForUser(ctx, req.UserID)
		if err == nil {
			details, message = res, "用户盈亏重算完成"
		}
	case actionValidate:
		var res *service.ValidateResult
		res, err = h.reconcileService.Validate(ctx, req.Sample)
		if err == nil {
			details, message = res, "盈亏校验完成"
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "未知的 action: " + req.Action})
		return
	}

	if err != nil {
		if errors.Is(err, service.ErrUserIDRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		log.WithError(err).Error("盈亏重算失败")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	log.Info(message)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": message,
		"details": details,
	})
}

// Describe 说明可用的 action 与结算规则
// GET /api/settlement/reconcile
func (h *SettlementHandler) Describe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "settlement-reconciler",
		"actions": []string{actionRecalculateAll, actionRecalculateUser, actionValidate},
		"rules":   settlement.SettlementRules,
	})
}
