package model

import (
	"time"

	"gorm.io/datatypes"
)

// BetStatus 单腿结算状态
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"
	BetStatusWon       BetStatus = "won"
	BetStatusLost      BetStatus = "lost"
	BetStatusVoid      BetStatus = "void"
	BetStatusCancelled BetStatus = "cancelled"
)

// BetSide 下注方向，库里只接受这四个值（或 NULL）
type BetSide string

const (
	BetSideOver  BetSide = "over"
	BetSideUnder BetSide = "under"
	BetSideHome  BetSide = "home"
	BetSideAway  BetSide = "away"
)

// BetType 玩法分类
type BetType string

const (
	BetTypeSpread     BetType = "spread"
	BetTypeMoneyline  BetType = "moneyline"
	BetTypeTotal      BetType = "total"
	BetTypePlayerProp BetType = "player_prop"
	BetTypeGameProp   BetType = "game_prop"
	BetTypeFirstHalf  BetType = "first_half"
	BetTypeQuarter    BetType = "quarter"
	BetTypePeriod     BetType = "period"
)

// Bet 对应 bets 表，每条腿一行（单关或串关的一腿）。
// 串关的金额只挂在主腿（IsPrimary）上，其他腿 stake/potential_payout/profit 均为 0，
// 避免按用户汇总时把同一笔真实下注重复计算。
type Bet struct {
	ID              uint64         `gorm:"column:id;primaryKey;autoIncrement;comment:自增主键ID"`
	UserID          string         `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:uk_user_external_bet,priority:1;index:idx_bets_user_parlay,priority:1;comment:用户ID"`
	ExternalBetID   string         `gorm:"column:external_bet_id;type:varchar(128);not null;uniqueIndex:uk_user_external_bet,priority:2;comment:聚合方注单ID"`
	ParlayID        *string        `gorm:"column:parlay_id;type:varchar(128);index:idx_bets_user_parlay,priority:2;comment:串关ID，单关为空"`
	IsParlay        bool           `gorm:"column:is_parlay;type:boolean;default:false;comment:是否串关"`
	IsPrimary       bool           `gorm:"column:is_primary;type:boolean;default:false;comment:是否主腿（承载金额）"`
	LegIndex        int            `gorm:"column:leg_index;type:int;default:0;comment:腿在注单中的到达顺序"`
	LegCount        int            `gorm:"column:leg_count;type:int;not null;default:0;comment:注单总腿数，0 表示未知"`
	Odds            int            `gorm:"column:odds;type:int;not null;comment:美式赔率"`
	Side            *BetSide       `gorm:"column:side;type:varchar(8);comment:over/under/home/away"`
	BetType         BetType        `gorm:"column:bet_type;type:varchar(16);not null;comment:玩法"`
	LineValue       *float64       `gorm:"column:line_value;type:numeric(10,2);comment:盘口线"`
	Stake           float64        `gorm:"column:stake;type:numeric(18,6);not null;default:0;comment:本金"`
	PotentialPayout float64        `gorm:"column:potential_payout;type:numeric(18,6);not null;default:0;comment:潜在返还"`
	Status          BetStatus      `gorm:"column:status;type:varchar(16);not null;index;comment:pending/won/lost/void/cancelled"`
	Profit          *float64       `gorm:"column:profit;type:numeric(18,6);comment:盈亏，未结算时为空"`
	PlacedAt        time.Time      `gorm:"column:placed_at;type:timestamp;not null;comment:下注时间"`
	SettledAt       *time.Time     `gorm:"column:settled_at;type:timestamp;comment:结算时间"`
	GameDate        *time.Time     `gorm:"column:game_date;type:timestamp;comment:比赛时间"`
	Sportsbook      string         `gorm:"column:sportsbook;type:varchar(64);comment:博彩公司"`
	BetSource       string         `gorm:"column:bet_source;type:varchar(32);comment:数据来源"`
	Description     string         `gorm:"column:description;type:varchar(256);comment:盘口描述"`
	RawPayload      datatypes.JSON `gorm:"column:raw_payload;type:jsonb;comment:聚合方原始数据"`
	Version         int64          `gorm:"column:version;not null;comment:乐观锁版本号"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime;comment:创建时间"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime;comment:更新时间"`
}

func (Bet) TableName() string { return "bets" }

// GroupKey 串关分组键，按用户隔离，不同用户的同名注单不会被合并
type GroupKey struct {
	UserID   string `gorm:"column:user_id"`
	ParlayID string `gorm:"column:parlay_id"`
}
