package settlement

import (
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"BetSync/internal/model"
)

// NormalizedLeg 归一化后的单腿，尚未分组（stake 仍是聚合方报给这条腿的金额）
type NormalizedLeg struct {
	ExternalBetID   string          `json:"external_bet_id" validate:"required"`
	Status          model.BetStatus `json:"status"`
	Side            *model.BetSide  `json:"side"`
	BetType         model.BetType   `json:"bet_type"`
	Odds            int             `json:"odds" validate:"american_odds"`
	LineValue       *float64        `json:"line_value"`
	Stake           *float64        `json:"stake" validate:"required,gt=0"`
	PotentialPayout float64         `json:"potential_payout" validate:"gte=0"`
	PlacedAt        *time.Time      `json:"placed_at" validate:"required"`
	SettledAt       *time.Time      `json:"settled_at"`
	GameDate        *time.Time      `json:"game_date"`
	Description     string          `json:"description"`
	Raw             json.RawMessage `json:"-"`
}

// NormalizeStatus 聚合方状态 → pending/won/lost/void，无法识别的一律按 pending 处理，不丢单
func NormalizeStatus(raw string) model.BetStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "won", "win", "w", "winner":
		return model.BetStatusWon
	case "lost", "loss", "l", "lose", "loser":
		return model.BetStatusLost
	case "void", "voided", "canceled", "cancelled", "push", "refunded", "draw":
		return model.BetStatusVoid
	default:
		return model.BetStatusPending
	}
}

var sideKeywords = []model.BetSide{
	model.BetSideOver,
	model.BetSideUnder,
	model.BetSideHome,
	model.BetSideAway,
}

// NormalizeSide 按 over/under/home/away 的顺序做子串匹配；队名等其他文本返回 nil
func NormalizeSide(raw string) *model.BetSide {
	s := strings.ToLower(raw)
	for _, kw := range sideKeywords {
		if strings.Contains(s, string(kw)) {
			side := kw
			return &side
		}
	}
	return nil
}

type betTypeRule struct {
	betType  model.BetType
	phrases  []string // 子串匹配
	shortTok []string // 整词匹配，避免 "ml" 命中 "html" 之类
}

var betTypeRules = []betTypeRule{
	{model.BetTypeSpread, []string{"spread", "handicap", "run line", "runline", "puck line", "puckline"}, nil},
	{model.BetTypeTotal, []string{"total", "over/under"}, []string{"ou"}},
	{model.BetTypeMoneyline, []string{"moneyline", "money line"}, []string{"ml"}},
	{model.BetTypeFirstHalf, []string{"first half", "1st half"}, []string{"1h"}},
	{model.BetTypeQuarter, []string{"quarter"}, []string{"1q", "2q", "3q", "4q"}},
	{model.BetTypePeriod, []string{"period"}, nil},
	{model.BetTypeGameProp, []string{"game prop", "game_prop"}, nil},
}

// NormalizeBetType 玩法分类，未命中任何关键字时默认 player_prop
func NormalizeBetType(raw string) model.BetType {
	s := strings.ToLower(raw)
	words := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, rule := range betTypeRules {
		for _, p := range rule.phrases {
			if strings.Contains(s, p) {
				return rule.betType
			}
		}
		for _, tok := range rule.shortTok {
			for _, w := range words {
				if w == tok {
					return rule.betType
				}
			}
		}
	}
	return model.BetTypePlayerProp
}

// ComputeSingleLegProfit 按聚合方记录的金额计算单关盈亏，不能用于串关腿
func ComputeSingleLegProfit(leg *model.Bet) float64 {
	switch leg.Status {
	case model.BetStatusWon:
		return leg.PotentialPayout - leg.Stake
	case model.BetStatusLost:
		return -leg.Stake
	default:
		return 0
	}
}

// SlipMeta 注单级信息，分组时使用
type SlipMeta struct {
	UserID          string
	SlipID          string
	Source          string
	Sportsbook      string
	Stake           *float64
	PotentialPayout *float64
}

// NormalizeSlipMeta 提取注单级金额（分→元）
func NormalizeSlipMeta(userID, source string, slip *model.AggregatorSlip) SlipMeta {
	meta := SlipMeta{
		UserID:     userID,
		SlipID:     slip.ID,
		Source:     source,
		Sportsbook: truncate(slip.Book.Name, 64),
	}
	if slip.AtRisk != nil {
		stake := CentsToAmount(*slip.AtRisk)
		meta.Stake = &stake
		payout := stake
		if slip.ToWin != nil {
			payout = CentsToAmount(*slip.AtRisk + *slip.ToWin)
		}
		meta.PotentialPayout = &payout
	}
	return meta
}

// NormalizeLeg 把注单中第 idx 条腿映射为系统枚举；腿上缺失的字段用注单级数据兜底
func NormalizeLeg(slip *model.AggregatorSlip, idx int) NormalizedLeg {
	leg := slip.Bets[idx]
	single := len(slip.Bets) == 1

	rawStatus := leg.Status
	if strings.TrimSpace(rawStatus) == "" && single {
		rawStatus = slip.Status
	}
	odds := leg.OddsAmerican
	if odds == 0 && single {
		odds = slip.OddsAmerican
	}

	atRisk, toWin := leg.AtRisk, leg.ToWin
	if atRisk == nil {
		atRisk, toWin = slip.AtRisk, slip.ToWin
	}

	n := NormalizedLeg{
		ExternalBetID: leg.ID,
		Status:        NormalizeStatus(rawStatus),
		Side:          NormalizeSide(leg.Position),
		Odds:          odds,
		LineValue:     leg.Line,
		GameDate:      ParseFeedTime(leg.Event.StartTime),
		Raw:           leg.Raw,
	}

	betTypeRaw := leg.Type
	if strings.TrimSpace(betTypeRaw) == "" {
		betTypeRaw = leg.Proposition
	}
	n.BetType = NormalizeBetType(betTypeRaw)

	desc := leg.Proposition
	if desc == "" {
		desc = leg.Event.Name
	}
	n.Description = truncate(desc, 256)

	if atRisk != nil {
		stake := CentsToAmount(*atRisk)
		n.Stake = &stake
		n.PotentialPayout = stake
		if toWin != nil {
			n.PotentialPayout = CentsToAmount(*atRisk + *toWin)
		}
	}

	placed := leg.TimePlaced
	if placed == "" {
		placed = slip.TimePlaced
	}
	n.PlacedAt = ParseFeedTime(placed)

	if n.Status != model.BetStatusPending {
		closed := leg.TimeClosed
		if closed == "" {
			closed = slip.TimeClosed
		}
		n.SettledAt = ParseFeedTime(closed)
	}
	return n
}

var feedTimeFormats = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseFeedTime 解析聚合方时间，空串或无法解析返回 nil（由校验环节报错，不用当前时间兜底）
// 统一转 UTC 并截断到微秒，与 postgres timestamp 精度一致，避免重复同步时误判为变更
func ParseFeedTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, f := range feedTimeFormats {
		if t, err := time.Parse(f, s); err == nil {
			t = t.UTC().Truncate(time.Microsecond)
			return &t
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	r := []rune(s)
	for len(string(r)) > maxLen {
		r = r[:len(r)-1]
	}
	return string(r)
}
