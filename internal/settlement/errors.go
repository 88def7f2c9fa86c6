package settlement

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStaleVersion CAS 更新时版本号已变化（其他写入抢先）
var ErrStaleVersion = errors.New("注单版本已变化")

// Violation 单个字段的校验失败
type Violation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError 单腿数据不合法，一次列出所有不合法字段
type ValidationError struct {
	LegID      string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s(%s)", v.Field, v.Rule))
	}
	return fmt.Sprintf("注单腿%s校验失败: %s", e.LegID, strings.Join(parts, ", "))
}

// UpstreamFetchError 聚合方接口不可用或超时，整次同步中止，可重试
type UpstreamFetchError struct {
	AggregatorUserID string
	StatusCode       int
	Err              error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("拉取聚合方注单失败(user=%s, status=%d): %v", e.AggregatorUserID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("拉取聚合方注单失败(user=%s): %v", e.AggregatorUserID, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// Retryable 上游错误均可重试
func (e *UpstreamFetchError) Retryable() bool { return true }

// PersistenceError 单腿读写失败，记录后继续处理其他腿
type PersistenceError struct {
	LegID string
	Op    string // lookup/insert/update
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("注单腿%s %s失败: %v", e.LegID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
