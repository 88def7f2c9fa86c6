package interfaces

import (
	"context"

	"BetSync/internal/model"
)

// AggregatorAdapter 聚合方注单接口，接入新的聚合方只需实现此接口
type AggregatorAdapter interface {
	GetName() string                                                                         // 数据来源标识
	FetchSlips(ctx context.Context, aggregatorUserID string) ([]*model.AggregatorSlip, error) // 拉取用户全部注单，失败返回 *settlement.UpstreamFetchError
}

// SettlementPublisher 盈亏变更事件推送
type SettlementPublisher interface {
	PublishSettlement(ctx context.Context, events ...model.SettlementEvent) error
	Close() error
}
