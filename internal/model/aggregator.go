package model

import (
	"encoding/json"
	"time"
)

// AggregatorSlip 聚合方返回的一张注单（一条或多条腿一起提交）
// 金额字段单位为分
type AggregatorSlip struct {
	ID           string          `json:"id"`           // 注单ID，串关时即 parlay_id
	Type         string          `json:"type"`         // single/parlay
	Status       string          `json:"status"`       // 注单级状态
	OddsAmerican int             `json:"oddsAmerican"` // 整单美式赔率
	AtRisk       *int64          `json:"atRisk"`       // 整单本金（分）
	ToWin        *int64          `json:"toWin"`        // 整单可赢（分）
	TimePlaced   string          `json:"timePlaced"`   // 下注时间
	TimeClosed   string          `json:"timeClosed"`   // 结算时间
	Book         AggregatorBook  `json:"book"`
	Bets         []AggregatorLeg `json:"bets"` // 按到达顺序排列的腿
}

type AggregatorBook struct {
	Name string `json:"name"`
}

type AggregatorEvent struct {
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
}

// AggregatorLeg 注单中的一条腿，Raw 保留原始 JSON 用于落库溯源
type AggregatorLeg struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	OddsAmerican int             `json:"oddsAmerican"`
	Position     string          `json:"position"`    // 方向原文（Over/Home/队名…）
	Type         string          `json:"type"`        // 玩法原文
	Proposition  string          `json:"proposition"` // 盘口描述
	Line         *float64        `json:"line"`
	AtRisk       *int64          `json:"atRisk"`
	ToWin        *int64          `json:"toWin"`
	TimePlaced   string          `json:"timePlaced"`
	TimeClosed   string          `json:"timeClosed"`
	Event        AggregatorEvent `json:"event"`
	Raw          json.RawMessage `json:"-"`
}

// UnmarshalJSON 解析时顺带保存原始字节
func (l *AggregatorLeg) UnmarshalJSON(b []byte) error {
	type alias AggregatorLeg
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*l = AggregatorLeg(a)
	l.Raw = append(json.RawMessage(nil), b...)
	return nil
}

// SettlementEvent 盈亏变更事件，推送到 kafka 供下游（统计/通知）消费
type SettlementEvent struct {
	BetID         uint64    `json:"bet_id"`
	UserID        string    `json:"user_id"`
	ExternalBetID string    `json:"external_bet_id"`
	ParlayID      *string   `json:"parlay_id,omitempty"`
	IsPrimary     bool      `json:"is_primary"`
	Status        BetStatus `json:"status"`
	Profit        *float64  `json:"profit"`
	Source        string    `json:"source"` // sync/reconcile
	OccurredAt    time.Time `json:"occurred_at"`
}
