package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector 同步与重算指标；nil 接收者上的方法都是空操作，测试里可以直接传 nil
type Collector struct {
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Histogram
	legResults      *prometheus.CounterVec
	reconcileWrites *prometheus.CounterVec
	validateIssues  prometheus.Gauge
	publishFailures prometheus.Counter
}

// New 在 reg 上注册全部指标，reg 通常是 prometheus.DefaultRegisterer
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_sync_runs_total",
			Help: "按结果统计的用户同步次数",
		}, []string{"result"}),
		syncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "betsync_sync_duration_seconds",
			Help:    "单次用户同步耗时",
			Buckets: prometheus.DefBuckets,
		}),
		legResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_leg_results_total",
			Help: "按处理结果统计的注单腿数",
		}, []string{"result"}),
		reconcileWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "betsync_reconcile_updates_total",
			Help: "重算写回的注单腿数",
		}, []string{"scope"}),
		validateIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "betsync_validate_issues",
			Help: "最近一次 validate 发现的不一致腿数",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betsync_publish_failures_total",
			Help: "结算事件推送失败次数",
		}),
	}
	reg.MustRegister(c.syncRuns, c.syncDuration, c.legResults, c.reconcileWrites, c.validateIssues, c.publishFailures)
	return c
}

// ObserveSync result: ok/upstream_error/locked/error
func (c *Collector) ObserveSync(result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.syncRuns.WithLabelValues(result).Inc()
	c.syncDuration.Observe(elapsed.Seconds())
}

// AddLegResults result: created/updated/unchanged/validation/persistence
func (c *Collector) AddLegResults(result string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.legResults.WithLabelValues(result).Add(float64(n))
}

// AddReconcileUpdates scope: all/user
func (c *Collector) AddReconcileUpdates(scope string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.reconcileWrites.WithLabelValues(scope).Add(float64(n))
}

func (c *Collector) SetValidateIssues(n int) {
	if c == nil {
		return
	}
	c.validateIssues.Set(float64(n))
}

func (c *Collector) IncPublishFailures() {
	if c == nil {
		return
	}
	c.publishFailures.Inc()
}
