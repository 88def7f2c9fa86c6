package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"BetSync/internal/model"
	"BetSync/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Bet{}))
	return db
}

func newNullLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

// fakeAdapter 返回预置注单，可替换为错误
type fakeAdapter struct {
	mu    sync.Mutex
	slips []*model.AggregatorSlip
	err   error
	calls int
}

func (f *fakeAdapter) GetName() string { return "aggregator" }

func (f *fakeAdapter) FetchSlips(context.Context, string) ([]*model.AggregatorSlip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.slips, f.err
}

func (f *fakeAdapter) set(slips []*model.AggregatorSlip) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slips = slips
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SettlementEvent
	err    error
}

func (p *recordingPublisher) PublishSettlement(_ context.Context, events ...model.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

func decodeSlips(t *testing.T, body string) []*model.AggregatorSlip {
	t.Helper()
	var slips []*model.AggregatorSlip
	require.NoError(t, json.Unmarshal([]byte(body), &slips))
	return slips
}

func loadBets(t *testing.T, db *gorm.DB, userID string) map[string]*model.Bet {
	t.Helper()
	var rows []*model.Bet
	require.NoError(t, db.Where("user_id = ?", userID).Find(&rows).Error)
	out := make(map[string]*model.Bet, len(rows))
	for _, r := range rows {
		out[r.ExternalBetID] = r
	}
	return out
}

// staleRepo CAS 永远失败，模拟并发写入抢先
type staleRepo struct {
	repository.BetRepository
}

func (staleRepo) CompareAndSwap(context.Context, uint64, int64, map[string]interface{}) (bool, error) {
	return false, nil
}
