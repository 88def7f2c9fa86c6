package settlement

import (
	"gorm.io/datatypes"

	"BetSync/internal/model"
)

// Group 为一张注单的全部腿打上同一个 parlay_id，primary 指定主腿下标（首次入库时为第一条能落库的腿）。
// 主腿承载注单级 stake/payout（注单未给时退回腿上的金额），其余腿一律写 0，
// 不管聚合方是否在每条腿上都重复报了整单金额。
func Group(meta SlipMeta, legs []NormalizedLeg, primary int) []*model.Bet {
	if primary < 0 || primary >= len(legs) {
		primary = 0
	}
	isParlay := len(legs) > 1
	var parlayID *string
	if isParlay {
		id := meta.SlipID
		parlayID = &id
	}

	rows := make([]*model.Bet, 0, len(legs))
	for i, leg := range legs {
		row := &model.Bet{
			UserID:        meta.UserID,
			ExternalBetID: leg.ExternalBetID,
			ParlayID:      parlayID,
			IsParlay:      isParlay,
			IsPrimary:     i == primary,
			LegIndex:      i,
			LegCount:      len(legs),
			Odds:          leg.Odds,
			Side:          leg.Side,
			BetType:       leg.BetType,
			LineValue:     leg.LineValue,
			Status:        leg.Status,
			SettledAt:     leg.SettledAt,
			GameDate:      leg.GameDate,
			Sportsbook:    meta.Sportsbook,
			BetSource:     meta.Source,
			Description:   leg.Description,
		}
		if leg.PlacedAt != nil {
			row.PlacedAt = *leg.PlacedAt
		}
		if len(leg.Raw) > 0 {
			row.RawPayload = datatypes.JSON(leg.Raw)
		}
		if i == primary {
			row.Stake, row.PotentialPayout = primaryAmounts(meta, leg)
		}
		rows = append(rows, row)
	}
	return rows
}

func primaryAmounts(meta SlipMeta, leg NormalizedLeg) (stake, payout float64) {
	if meta.Stake != nil {
		stake = *meta.Stake
		if meta.PotentialPayout != nil {
			payout = *meta.PotentialPayout
		}
		return stake, payout
	}
	if leg.Stake != nil {
		stake = *leg.Stake
	}
	return stake, leg.PotentialPayout
}
