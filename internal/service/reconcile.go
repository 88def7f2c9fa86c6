package service

import (
	"context"
	"errors"
	"fmt"

	"BetSync/internal/config"
	"BetSync/internal/interfaces"
	"BetSync/internal/metrics"
	"BetSync/internal/model"
	"BetSync/internal/publisher"
	"BetSync/internal/repository"
	"BetSync/internal/settlement"

	"github.com/sirupsen/logrus"
)

// ErrUserIDRequired recalculate_user 缺少用户
var ErrUserIDRequired = errors.New("userId 不能为空")

// ReconcileResult 重算结果
type ReconcileResult struct {
	Success bool `json:"success"`
	Updated int  `json:"updated"`
}

// Discrepancy 库中盈亏与重算值不一致的腿
type Discrepancy struct {
	UserID        string   `json:"userId"`
	ParlayID      string   `json:"parlayId"`
	BetID         uint64   `json:"betId"`
	ExternalBetID string   `json:"externalBetId"`
	Expected      *float64 `json:"expected"`
	Stored        *float64 `json:"stored"`
}

// ValidateResult 只读校验结果
type ValidateResult struct {
	Success bool          `json:"success"`
	Issues  []Discrepancy `json:"issues"`
}

// ReconcileService 按库中已有数据重算盈亏，修正历史数据或规则调整后的存量
type ReconcileService struct {
	repo      repository.BetRepository
	publisher interfaces.SettlementPublisher
	metrics   *metrics.Collector
	logger    *logrus.Logger
	batchSize int
	sample    int
}

func NewReconcileService(
	repo repository.BetRepository,
	cfg *config.ReconcileConfig,
	pub interfaces.SettlementPublisher,
	m *metrics.Collector,
	logger *logrus.Logger,
) *ReconcileService {
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	s := &ReconcileService{repo: repo, publisher: pub, metrics: m, logger: logger, batchSize: 200, sample: 100}
	if cfg != nil {
		if cfg.BatchSize > 0 {
			s.batchSize = cfg.BatchSize
		}
		if cfg.ValidateSample > 0 {
			s.sample = cfg.ValidateSample
		}
	}
	return s
}

// RecalcAll 全量重算；ctx 取消时返回已写入的数量和 ctx 错误
func (s *ReconcileService) RecalcAll(ctx context.Context) (*ReconcileResult, error) {
	return s.recalc(ctx, "", "all")
}

// RecalcForUser 只重算一个用户
func (s *ReconcileService) RecalcForUser(ctx context.Context, userID string) (*ReconcileResult, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	return s.recalc(ctx, userID, "user")
}

func (s *ReconcileService) recalc(ctx context.Context, userID, scope string) (*ReconcileResult, error) {
	log := s.logger.WithFields(logrus.Fields{"scope": scope, "user_id": userID})
	res := &ReconcileResult{}
	defer func() { s.metrics.AddReconcileUpdates(scope, res.Updated) }()

	after := model.GroupKey{}
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		keys, err := s.repo.ListParlayKeys(ctx, userID, after, s.batchSize)
		if err != nil {
			return res, err
		}
		if len(keys) == 0 {
			break
		}
		groups, err := s.repo.ListLegsByParlay(ctx, keys)
		if err != nil {
			return res, err
		}
		for _, k := range keys {
			res.Updated += s.reconcileGroup(ctx, groups[k])
		}
		after = keys[len(keys)-1]
	}

	var afterID uint64
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		rows, err := s.repo.ListStandalone(ctx, userID, afterID, s.batchSize)
		if err != nil {
			return res, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			res.Updated += s.reconcileGroup(ctx, []*model.Bet{row})
		}
		afterID = rows[len(rows)-1].ID
	}

	res.Success = true
	log.WithField("updated", res.Updated).Info("盈亏重算完成")
	return res, nil
}

// reconcileGroup 返回实际写回的腿数；含未结算腿的组跳过
func (s *ReconcileService) reconcileGroup(ctx context.Context, legs []*model.Bet) int {
	expected, ok := s.expectedProfits(legs)
	if !ok {
		return 0
	}

	updated := 0
	var events []model.SettlementEvent
	for i, b := range legs {
		if settlement.ProfitEqual(b.Profit, expected[i]) {
			continue
		}
		log := s.logger.WithFields(logrus.Fields{"user_id": b.UserID, "leg_id": b.ExternalBetID, "bet_id": b.ID})
		swapped, err := s.repo.CompareAndSwap(ctx, b.ID, b.Version, map[string]interface{}{"profit": expected[i]})
		if err != nil {
			log.WithError(err).Warn("重算写回失败")
			continue
		}
		if !swapped {
			log.Info("注单已被并发修改，留待下次重算")
			continue
		}
		updated++
		fixed := *b
		fixed.Profit = expected[i]
		events = append(events, *settlementEvent(&fixed, "reconcile"))
	}

	if len(events) > 0 {
		if err := s.publisher.PublishSettlement(ctx, events...); err != nil {
			s.metrics.IncPublishFailures()
			s.logger.WithError(err).WithField("count", len(events)).Warn("推送结算事件失败")
		}
	}
	return updated
}

// expectedProfits 重算组内每条腿应存的盈亏（已按分取整）；组内有未结算腿、缺腿或赔率非法时返回 false
func (s *ReconcileService) expectedProfits(legs []*model.Bet) ([]*float64, bool) {
	if len(legs) == 0 {
		return nil, false
	}
	in := settlement.LegsFromBets(legs)
	if settlement.HasPending(in) || missingLegs(legs) {
		return nil, false
	}
	profits, err := settlement.ProfitsForGroup(in)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":   legs[0].UserID,
			"parlay_id": groupLabel(legs[0]),
		}).Warn("注单组无法重算")
		return nil, false
	}
	for i := range profits {
		profits[i] = settlement.RoundProfit(profits[i])
	}
	return profits, true
}

// Validate 抽查最近的串关组，只读；sample<=0 时用配置的默认值
func (s *ReconcileService) Validate(ctx context.Context, sample int) (*ValidateResult, error) {
	if sample <= 0 {
		sample = s.sample
	}
	keys, err := s.repo.ListRecentParlayKeys(ctx, sample)
	if err != nil {
		return nil, err
	}
	groups, err := s.repo.ListLegsByParlay(ctx, keys)
	if err != nil {
		return nil, err
	}

	res := &ValidateResult{Success: true, Issues: []Discrepancy{}}
	for _, k := range keys {
		legs := groups[k]
		expected, ok := s.expectedProfits(legs)
		if !ok {
			continue
		}
		for i, b := range legs {
			if settlement.ProfitEqual(b.Profit, expected[i]) {
				continue
			}
			res.Issues = append(res.Issues, Discrepancy{
				UserID:        b.UserID,
				ParlayID:      k.ParlayID,
				BetID:         b.ID,
				ExternalBetID: b.ExternalBetID,
				Expected:      expected[i],
				Stored:        b.Profit,
			})
		}
	}
	s.metrics.SetValidateIssues(len(res.Issues))
	s.logger.WithFields(logrus.Fields{"groups": len(keys), "issues": len(res.Issues)}).Info("盈亏校验完成")
	return res, nil
}

// missingLegs 串关有腿未落库（同步时校验失败），缺的腿按未结处理
func missingLegs(legs []*model.Bet) bool {
	if !legs[0].IsParlay {
		return false
	}
	count := 0
	for _, b := range legs {
		if b.LegCount > count {
			count = b.LegCount
		}
	}
	return count > len(legs)
}

func groupLabel(b *model.Bet) string {
	if b.ParlayID != nil {
		return *b.ParlayID
	}
	return fmt.Sprintf("single:%s", b.ExternalBetID)
}
