package settlement

import (
	"fmt"

	"BetSync/internal/model"
)

// OutcomeKind 单腿结算形态
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeLost
	OutcomeWon
	OutcomePush // void/cancelled，乘数按 1.0 处理
)

// Outcome 单腿结算结果，Won 时携带小数赔率
type Outcome struct {
	Kind    OutcomeKind
	Decimal float64
}

// OutcomeOf 状态 → 结算形态；void 与 cancelled 统一视为 Push
func OutcomeOf(status model.BetStatus, odds int) (Outcome, error) {
	switch status {
	case model.BetStatusWon:
		d, err := AmericanToDecimal(odds)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: OutcomeWon, Decimal: d}, nil
	case model.BetStatusLost:
		return Outcome{Kind: OutcomeLost}, nil
	case model.BetStatusVoid, model.BetStatusCancelled:
		return Outcome{Kind: OutcomePush, Decimal: 1}, nil
	default:
		return Outcome{Kind: OutcomePending}, nil
	}
}

// Fold 串关整体结算：任一腿输则整单输；否则任一腿未结则未结；
// 全部 Push 则走水；其余为赢，组合赔率只乘赢的腿
func Fold(outcomes []Outcome) Outcome {
	anyPending, anyWon := false, false
	combined := 1.0
	for _, o := range outcomes {
		switch o.Kind {
		case OutcomeLost:
			return Outcome{Kind: OutcomeLost}
		case OutcomePending:
			anyPending = true
		case OutcomeWon:
			anyWon = true
			combined *= o.Decimal
		}
	}
	switch {
	case anyPending:
		return Outcome{Kind: OutcomePending}
	case !anyWon:
		return Outcome{Kind: OutcomePush, Decimal: 1}
	default:
		return Outcome{Kind: OutcomeWon, Decimal: combined}
	}
}

// Profit 按结算形态计算本金对应的盈亏，未结返回 nil
func (o Outcome) Profit(stake float64) *float64 {
	var p float64
	switch o.Kind {
	case OutcomePending:
		return nil
	case OutcomeLost:
		p = -stake
	case OutcomeWon:
		p = stake * (o.Decimal - 1)
	case OutcomePush:
		p = 0
	}
	return &p
}

// GroupLeg 计算盈亏需要的单腿信息
type GroupLeg struct {
	Status    model.BetStatus
	Odds      int
	Stake     float64
	IsPrimary bool
}

// LegsFromBets 从库里的行构造计算输入
func LegsFromBets(bets []*model.Bet) []GroupLeg {
	legs := make([]GroupLeg, len(bets))
	for i, b := range bets {
		legs[i] = GroupLeg{Status: b.Status, Odds: b.Odds, Stake: b.Stake, IsPrimary: b.IsPrimary}
	}
	return legs
}

// ProfitsForGroup 返回与输入同序的每条腿应存的盈亏。
// 单腿按单关计算；多腿按串关折叠，只有主腿可能为非 0，其他腿结算后为 0、未结为 nil。
func ProfitsForGroup(legs []GroupLeg) ([]*float64, error) {
	profits := make([]*float64, len(legs))
	if len(legs) == 0 {
		return profits, nil
	}

	outcomes := make([]Outcome, len(legs))
	for i, l := range legs {
		o, err := OutcomeOf(l.Status, l.Odds)
		if err != nil {
			return nil, fmt.Errorf("第%d条腿赔率非法: %w", i, err)
		}
		outcomes[i] = o
	}

	if len(legs) == 1 {
		profits[0] = outcomes[0].Profit(legs[0].Stake)
		return profits, nil
	}

	stake := 0.0
	for _, l := range legs {
		if l.IsPrimary {
			stake = l.Stake
			break
		}
	}
	parlay := Fold(outcomes)
	for i, l := range legs {
		if parlay.Kind == OutcomePending {
			continue
		}
		if l.IsPrimary {
			profits[i] = parlay.Profit(stake)
		} else {
			zero := 0.0
			profits[i] = &zero
		}
	}
	return profits, nil
}

// HasPending 组内是否存在未结算的腿
func HasPending(legs []GroupLeg) bool {
	for _, l := range legs {
		if l.Status == model.BetStatusPending {
			return true
		}
	}
	return false
}
