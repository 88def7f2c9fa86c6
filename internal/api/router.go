package api

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 挂载全部接口
func RegisterRoutes(r *gin.Engine, syncHandler *SyncHandler, settlementHandler *SettlementHandler, healthHandler *HealthHandler) {
	pprof.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthHandler.Healthz)

	// 用户注单同步
	r.POST("/sync/user/:user_id", syncHandler.SyncUserHandler)

	// 盈亏重算（管理接口）
	r.GET("/api/settlement/reconcile", settlementHandler.Describe)
	r.POST("/api/settlement/reconcile", settlementHandler.Reconcile)
}
