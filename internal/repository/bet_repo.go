package repository

import (
	"context"
	"fmt"

	"BetSync/internal/model"

	"gorm.io/gorm"
)

// BetRepository bets 表读写，所有写操作都以 (user_id, external_bet_id) 或 id+version 定位
type BetRepository interface {
	GetByExternalID(ctx context.Context, userID, externalBetID string) (*model.Bet, error)
	Create(ctx context.Context, bet *model.Bet) error
	CompareAndSwap(ctx context.Context, id uint64, version int64, changes map[string]interface{}) (bool, error)
	ListParlayKeys(ctx context.Context, userID string, after model.GroupKey, limit int) ([]model.GroupKey, error)
	ListRecentParlayKeys(ctx context.Context, limit int) ([]model.GroupKey, error)
	ListLegsByParlay(ctx context.Context, keys []model.GroupKey) (map[model.GroupKey][]*model.Bet, error)
	ListStandalone(ctx context.Context, userID string, afterID uint64, limit int) ([]*model.Bet, error)
	Ping(ctx context.Context) error
}

type betRepository struct {
	db *gorm.DB
}

// NewBetRepository 创建注单仓储
func NewBetRepository(db *gorm.DB) BetRepository {
	return &betRepository{db: db}
}

// GetByExternalID 不存在时返回 nil, nil
func (r *betRepository) GetByExternalID(ctx context.Context, userID, externalBetID string) (*model.Bet, error) {
	var rows []*model.Bet
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND external_bet_id = ?", userID, externalBetID).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *betRepository) Create(ctx context.Context, bet *model.Bet) error {
	if bet.Version == 0 {
		bet.Version = 1
	}
	return r.db.WithContext(ctx).Create(bet).Error
}

// CompareAndSwap 仅当 version 未变时写入 changes 并把 version+1；返回 false 表示被其他写入抢先
func (r *betRepository) CompareAndSwap(ctx context.Context, id uint64, version int64, changes map[string]interface{}) (bool, error) {
	updates := make(map[string]interface{}, len(changes)+1)
	for k, v := range changes {
		updates[k] = v
	}
	updates["version"] = gorm.Expr("version + 1")

	res := r.db.WithContext(ctx).Model(&model.Bet{}).
		Where("id = ? AND version = ?", id, version).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListParlayKeys 按 (user_id, parlay_id) 键集分页列出串关组；userID 为空时不限用户
func (r *betRepository) ListParlayKeys(ctx context.Context, userID string, after model.GroupKey, limit int) ([]model.GroupKey, error) {
	q := r.db.WithContext(ctx).Model(&model.Bet{}).
		Select("user_id, parlay_id").
		Where("parlay_id IS NOT NULL")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if after != (model.GroupKey{}) {
		q = q.Where("(user_id > ? OR (user_id = ? AND parlay_id > ?))", after.UserID, after.UserID, after.ParlayID)
	}

	var keys []model.GroupKey
	if err := q.Group("user_id, parlay_id").Order("user_id, parlay_id").Limit(limit).Scan(&keys).Error; err != nil {
		return nil, fmt.Errorf("查询串关组失败: %w", err)
	}
	return keys, nil
}

// ListRecentParlayKeys 最近下注的 limit 个串关组
func (r *betRepository) ListRecentParlayKeys(ctx context.Context, limit int) ([]model.GroupKey, error) {
	var keys []model.GroupKey
	err := r.db.WithContext(ctx).Model(&model.Bet{}).
		Select("user_id, parlay_id").
		Where("parlay_id IS NOT NULL").
		Group("user_id, parlay_id").
		Order("MAX(placed_at) DESC").
		Limit(limit).
		Scan(&keys).Error
	if err != nil {
		return nil, fmt.Errorf("查询最近串关组失败: %w", err)
	}
	return keys, nil
}

// ListLegsByParlay 一次取回多个串关组的全部腿，组内按 leg_index 排序
func (r *betRepository) ListLegsByParlay(ctx context.Context, keys []model.GroupKey) (map[model.GroupKey][]*model.Bet, error) {
	out := make(map[model.GroupKey][]*model.Bet, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	users := make([]string, 0, len(keys))
	parlays := make([]string, 0, len(keys))
	seenUser := make(map[string]bool)
	for _, k := range keys {
		out[k] = nil
		parlays = append(parlays, k.ParlayID)
		if !seenUser[k.UserID] {
			seenUser[k.UserID] = true
			users = append(users, k.UserID)
		}
	}

	var rows []*model.Bet
	err := r.db.WithContext(ctx).
		Where("parlay_id IN ? AND user_id IN ?", parlays, users).
		Order("user_id, parlay_id, leg_index, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询串关腿失败: %w", err)
	}
	// IN 的笛卡尔组合可能多取到其他组，按键过滤
	for _, b := range rows {
		k := model.GroupKey{UserID: b.UserID, ParlayID: *b.ParlayID}
		if legs, ok := out[k]; ok {
			out[k] = append(legs, b)
		}
	}
	return out, nil
}

// ListStandalone 按 id 键集分页列出已结算的单关
func (r *betRepository) ListStandalone(ctx context.Context, userID string, afterID uint64, limit int) ([]*model.Bet, error) {
	q := r.db.WithContext(ctx).
		Where("parlay_id IS NULL AND id > ? AND status <> ?", afterID, model.BetStatusPending)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var rows []*model.Bet
	if err := q.Order("id").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询单关失败: %w", err)
	}
	return rows, nil
}

func (r *betRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
