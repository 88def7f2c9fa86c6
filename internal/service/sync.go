package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"BetSync/internal/interfaces"
	"BetSync/internal/lock"
	"BetSync/internal/metrics"
	"BetSync/internal/model"
	"BetSync/internal/publisher"
	"BetSync/internal/repository"
	"BetSync/internal/settlement"

	"github.com/sirupsen/logrus"
)

// 单腿处理失败的类别
const (
	LegErrorValidation  = "validation"
	LegErrorPersistence = "persistence"
)

// LegError 单腿失败明细，批次继续处理其他腿
type LegError struct {
	LegID      string                 `json:"legId"`
	SlipID     string                 `json:"slipId"`
	Kind       string                 `json:"kind"`
	Message    string                 `json:"message"`
	Violations []settlement.Violation `json:"violations,omitempty"`
}

// BatchResult 一批注单的处理汇总
type BatchResult struct {
	Processed int        `json:"processed"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Errors    []LegError `json:"errors"`
}

// SyncStats 接口返回的同步统计
type SyncStats struct {
	TotalBetSlips int        `json:"totalBetSlips"`
	TotalBets     int        `json:"totalBets"`
	NewBets       int        `json:"newBets"`
	UpdatedBets   int        `json:"updatedBets"`
	Errors        []LegError `json:"errors"`
}

type legAction int

const (
	legCreated legAction = iota
	legUpdated
	legUnchanged
	legFailed
)

// legResult 单腿处理结果，最后统一折叠成 BatchResult
type legResult struct {
	action legAction
	err    *LegError
	event  *model.SettlementEvent
}

type SyncService struct {
	repo      repository.BetRepository
	adapter   interfaces.AggregatorAdapter
	locker    lock.UserLocker
	publisher interfaces.SettlementPublisher
	metrics   *metrics.Collector
	logger    *logrus.Logger
}

func NewSyncService(
	repo repository.BetRepository,
	adapter interfaces.AggregatorAdapter,
	locker lock.UserLocker,
	pub interfaces.SettlementPublisher,
	m *metrics.Collector,
	logger *logrus.Logger,
) *SyncService {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if pub == nil {
		pub = publisher.NoopPublisher{}
	}
	return &SyncService{
		repo:      repo,
		adapter:   adapter,
		locker:    locker,
		publisher: pub,
		metrics:   m,
		logger:    logger,
	}
}

// SyncUser 拉取用户在聚合方的全部注单并落库。
// 同一用户同一时刻只允许一个同步（ErrSyncInProgress）；上游失败时整体中止，不写任何数据。
func (s *SyncService) SyncUser(ctx context.Context, userID, aggregatorUserID string) (*SyncStats, error) {
	start := time.Now()
	log := s.logger.WithFields(logrus.Fields{"user_id": userID, "aggregator_user_id": aggregatorUserID})

	release, err := s.locker.TryLock(ctx, userID)
	if err != nil {
		if errors.Is(err, lock.ErrSyncInProgress) {
			s.metrics.ObserveSync("locked", time.Since(start))
		} else {
			s.metrics.ObserveSync("error", time.Since(start))
		}
		return nil, err
	}
	defer release()

	slips, err := s.adapter.FetchSlips(ctx, aggregatorUserID)
	if err != nil {
		s.metrics.ObserveSync("upstream_error", time.Since(start))
		return nil, err
	}

	result, err := s.UpsertSlips(ctx, userID, slips)
	stats := &SyncStats{
		TotalBetSlips: len(slips),
		TotalBets:     result.Processed,
		NewBets:       result.Created,
		UpdatedBets:   result.Updated,
		Errors:        result.Errors,
	}
	if err != nil {
		s.metrics.ObserveSync("error", time.Since(start))
		return stats, err
	}

	s.metrics.ObserveSync("ok", time.Since(start))
	log.WithFields(logrus.Fields{
		"slips":     stats.TotalBetSlips,
		"legs":      stats.TotalBets,
		"created":   result.Created,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"errors":    len(result.Errors),
	}).Info("用户注单同步完成")
	return stats, nil
}

// UpsertSlips 逐腿去重写入；单腿失败记录在 Errors 中，只有 ctx 取消会提前返回
func (s *SyncService) UpsertSlips(ctx context.Context, userID string, slips []*model.AggregatorSlip) (BatchResult, error) {
	var results []legResult
	for _, slip := range slips {
		if err := ctx.Err(); err != nil {
			return foldResults(results, s.metrics), err
		}
		if slip == nil {
			continue
		}
		slipResults := s.processSlip(ctx, userID, slip)
		s.publish(ctx, slipResults)
		results = append(results, slipResults...)
	}
	return foldResults(results, s.metrics), nil
}

func (s *SyncService) processSlip(ctx context.Context, userID string, slip *model.AggregatorSlip) []legResult {
	if len(slip.Bets) == 0 {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "slip_id": slip.ID}).Warn("注单没有任何腿，跳过")
		return nil
	}

	meta := settlement.NormalizeSlipMeta(userID, s.adapter.GetName(), slip)
	legs := make([]settlement.NormalizedLeg, len(slip.Bets))
	for i := range slip.Bets {
		legs[i] = settlement.NormalizeLeg(slip, i)
	}

	results := make([]legResult, len(legs))
	rejected := make([]bool, len(legs))
	primary := -1
	for i := range legs {
		if err := settlement.ValidateLeg(legs[i]); err != nil {
			results[i] = s.validationFailure(slip.ID, legs[i].ExternalBetID, err)
			rejected[i] = true
			continue
		}
		if primary < 0 {
			primary = i
		}
	}
	if primary < 0 {
		return results
	}

	rows := settlement.Group(meta, legs, primary)
	var stored map[string]*model.Bet
	if len(rows) > 1 {
		var err error
		stored, err = s.storedLegs(ctx, userID, slip.ID)
		if err != nil {
			for i, row := range rows {
				if !rejected[i] {
					results[i] = s.persistenceFailure(slip.ID, &settlement.PersistenceError{LegID: row.ExternalBetID, Op: "lookup", Err: err})
				}
			}
			return results
		}
		keepStoredPrimary(rows, stored)
	}

	s.assignProfits(slip.ID, rows, rejected, stored)

	for i, row := range rows {
		if rejected[i] {
			continue
		}
		if len(rows) == 1 {
			s.crossCheckStandalone(row)
		}
		results[i] = s.upsertLeg(ctx, slip.ID, row)
	}
	return results
}

// storedLegs 该串关已落库的腿，按 external_bet_id 索引
func (s *SyncService) storedLegs(ctx context.Context, userID, parlayID string) (map[string]*model.Bet, error) {
	key := model.GroupKey{UserID: userID, ParlayID: parlayID}
	groups, err := s.repo.ListLegsByParlay(ctx, []model.GroupKey{key})
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.Bet, len(groups[key]))
	for _, b := range groups[key] {
		out[b.ExternalBetID] = b
	}
	return out, nil
}

// keepStoredPrimary 主腿与金额以首次入库为准，不随聚合方返回顺序变化；新出现的腿不承载金额
func keepStoredPrimary(rows []*model.Bet, stored map[string]*model.Bet) {
	hasPrimary := false
	for _, b := range stored {
		if b.IsPrimary {
			hasPrimary = true
			break
		}
	}
	if !hasPrimary {
		return
	}
	for _, row := range rows {
		if b, ok := stored[row.ExternalBetID]; ok {
			row.IsPrimary = b.IsPrimary
			row.Stake = b.Stake
			row.PotentialPayout = b.PotentialPayout
			continue
		}
		row.IsPrimary = false
		row.Stake = 0
		row.PotentialPayout = 0
	}
}

// assignProfits 按整张注单计算盈亏：校验失败且未落库的腿视为未结，
// 已落库的腿（本次被拒或未返回）按库里的状态参与，和重算看到的是同一组腿
func (s *SyncService) assignProfits(slipID string, rows []*model.Bet, rejected []bool, stored map[string]*model.Bet) {
	input := settlement.LegsFromBets(rows)
	seen := make(map[string]bool, len(rows))
	for i, row := range rows {
		seen[row.ExternalBetID] = true
		if !rejected[i] {
			continue
		}
		if b, ok := stored[row.ExternalBetID]; ok {
			input[i] = settlement.LegsFromBets([]*model.Bet{b})[0]
		} else {
			input[i].Status = model.BetStatusPending
		}
	}
	for id, b := range stored {
		if !seen[id] {
			input = append(input, settlement.LegsFromBets([]*model.Bet{b})...)
		}
	}

	profits, err := settlement.ProfitsForGroup(input)
	if err != nil {
		s.logger.WithError(err).WithField("slip_id", slipID).Warn("计算注单盈亏失败，盈亏置空")
		for _, row := range rows {
			row.Profit = nil
		}
		return
	}
	for i, row := range rows {
		row.Profit = settlement.RoundProfit(profits[i])
	}
}

// crossCheckStandalone 聚合方金额推出的盈亏与赔率推出的不一致时告警，落库仍以赔率为准
func (s *SyncService) crossCheckStandalone(row *model.Bet) {
	if row.Profit == nil || (row.Status != model.BetStatusWon && row.Status != model.BetStatusLost) {
		return
	}
	recorded := settlement.RoundMoney(settlement.ComputeSingleLegProfit(row))
	if math.Abs(recorded-*row.Profit) > 0.01 {
		s.logger.WithFields(logrus.Fields{
			"user_id":         row.UserID,
			"leg_id":          row.ExternalBetID,
			"feed_profit":     recorded,
			"computed_profit": *row.Profit,
		}).Warn("聚合方金额与赔率计算的盈亏不一致")
	}
}

func (s *SyncService) validationFailure(slipID, legID string, err error) legResult {
	le := &LegError{LegID: legID, SlipID: slipID, Kind: LegErrorValidation, Message: err.Error()}
	var ve *settlement.ValidationError
	if errors.As(err, &ve) {
		le.Violations = ve.Violations
	}
	s.logger.WithError(err).WithFields(logrus.Fields{"slip_id": slipID, "leg_id": legID}).Warn("注单腿校验失败")
	return legResult{action: legFailed, err: le}
}

func (s *SyncService) persistenceFailure(slipID string, err *settlement.PersistenceError) legResult {
	s.logger.WithError(err.Err).WithFields(logrus.Fields{
		"slip_id": slipID,
		"leg_id":  err.LegID,
		"op":      err.Op,
	}).Error("注单腿写入失败")
	return legResult{action: legFailed, err: &LegError{
		LegID:   err.LegID,
		SlipID:  slipID,
		Kind:    LegErrorPersistence,
		Message: err.Error(),
	}}
}

// upsertLeg 按 (user_id, external_bet_id) 查找：不存在则插入，存在则只在可变字段变化时 CAS 更新
func (s *SyncService) upsertLeg(ctx context.Context, slipID string, row *model.Bet) legResult {
	existing, err := s.repo.GetByExternalID(ctx, row.UserID, row.ExternalBetID)
	if err != nil {
		return s.persistenceFailure(slipID, &settlement.PersistenceError{LegID: row.ExternalBetID, Op: "lookup", Err: err})
	}

	if existing == nil {
		row.Version = 1
		if err := s.repo.Create(ctx, row); err != nil {
			return s.persistenceFailure(slipID, &settlement.PersistenceError{LegID: row.ExternalBetID, Op: "insert", Err: err})
		}
		res := legResult{action: legCreated}
		if row.Profit != nil {
			res.event = settlementEvent(row, "sync")
		}
		return res
	}

	changes := diffMutableFields(existing, row)
	if len(changes) == 0 {
		return legResult{action: legUnchanged}
	}
	ok, err := s.repo.CompareAndSwap(ctx, existing.ID, existing.Version, changes)
	if err != nil {
		return s.persistenceFailure(slipID, &settlement.PersistenceError{LegID: row.ExternalBetID, Op: "update", Err: err})
	}
	if !ok {
		return s.persistenceFailure(slipID, &settlement.PersistenceError{LegID: row.ExternalBetID, Op: "update", Err: settlement.ErrStaleVersion})
	}

	res := legResult{action: legUpdated}
	_, profitChanged := changes["profit"]
	_, statusChanged := changes["status"]
	if profitChanged || statusChanged {
		updated := *existing
		updated.Status = row.Status
		updated.Profit = row.Profit
		res.event = settlementEvent(&updated, "sync")
	}
	return res
}

// diffMutableFields 重复同步只会改这五个字段；stake、payout、主腿标记首次写入后不再变动
func diffMutableFields(stored, incoming *model.Bet) map[string]interface{} {
	changes := make(map[string]interface{})
	if stored.Status != incoming.Status {
		changes["status"] = incoming.Status
	}
	if !settlement.ProfitEqual(stored.Profit, incoming.Profit) {
		changes["profit"] = settlement.RoundProfit(incoming.Profit)
	}
	if !timePtrEqual(stored.SettledAt, incoming.SettledAt) {
		changes["settled_at"] = incoming.SettledAt
	}
	if !floatPtrEqual(stored.LineValue, incoming.LineValue) {
		changes["line_value"] = incoming.LineValue
	}
	if stored.Odds != incoming.Odds {
		changes["odds"] = incoming.Odds
	}
	return changes
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) < 1e-9
}

func settlementEvent(b *model.Bet, source string) *model.SettlementEvent {
	return &model.SettlementEvent{
		BetID:         b.ID,
		UserID:        b.UserID,
		ExternalBetID: b.ExternalBetID,
		ParlayID:      b.ParlayID,
		IsPrimary:     b.IsPrimary,
		Status:        b.Status,
		Profit:        b.Profit,
		Source:        source,
		OccurredAt:    time.Now().UTC(),
	}
}

// publish 推送失败只记录日志，不影响已落库的结果
func (s *SyncService) publish(ctx context.Context, results []legResult) {
	var events []model.SettlementEvent
	for _, r := range results {
		if r.event != nil {
			events = append(events, *r.event)
		}
	}
	if len(events) == 0 {
		return
	}
	if err := s.publisher.PublishSettlement(ctx, events...); err != nil {
		s.metrics.IncPublishFailures()
		s.logger.WithError(err).WithField("count", len(events)).Warn("推送结算事件失败")
	}
}

func foldResults(results []legResult, m *metrics.Collector) BatchResult {
	out := BatchResult{Errors: []LegError{}}
	failedByKind := map[string]int{}
	for _, r := range results {
		out.Processed++
		switch r.action {
		case legCreated:
			out.Created++
		case legUpdated:
			out.Updated++
		case legUnchanged:
			out.Unchanged++
		case legFailed:
			out.Errors = append(out.Errors, *r.err)
			failedByKind[r.err.Kind]++
		}
	}
	m.AddLegResults("created", out.Created)
	m.AddLegResults("updated", out.Updated)
	m.AddLegResults("unchanged", out.Unchanged)
	for kind, n := range failedByKind {
		m.AddLegResults(kind, n)
	}
	return out
}

// SyncMessage 接口返回的概要文案
func SyncMessage(stats *SyncStats) string {
	return fmt.Sprintf("同步完成：%d张注单，%d条腿，新增%d，更新%d，失败%d",
		stats.TotalBetSlips, stats.TotalBets, stats.NewBets, stats.UpdatedBets, len(stats.Errors))
}
