package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"BetSync/internal/model"
)

type BetRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo BetRepository
	ctx  context.Context
}

func TestBetRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(BetRepositoryTestSuite))
}

func (s *BetRepositoryTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(s.T(), err)
	sqlDB, err := db.DB()
	require.NoError(s.T(), err)
	// 内存库每个连接独立，限制为单连接
	sqlDB.SetMaxOpenConns(1)
	require.NoError(s.T(), db.AutoMigrate(&model.Bet{}))

	s.db = db
	s.repo = NewBetRepository(db)
	s.ctx = context.Background()
}

func strPtr(s string) *string { return &s }

func (s *BetRepositoryTestSuite) insert(userID, externalID string, parlayID *string, legIndex int, placed time.Time) *model.Bet {
	b := &model.Bet{
		UserID:        userID,
		ExternalBetID: externalID,
		ParlayID:      parlayID,
		IsParlay:      parlayID != nil,
		IsPrimary:     legIndex == 0,
		LegIndex:      legIndex,
		Odds:          -110,
		BetType:       model.BetTypeSpread,
		Status:        model.BetStatusWon,
		PlacedAt:      placed,
	}
	require.NoError(s.T(), s.repo.Create(s.ctx, b))
	return b
}

func (s *BetRepositoryTestSuite) TestGetByExternalID() {
	got, err := s.repo.GetByExternalID(s.ctx, "u1", "missing")
	s.NoError(err)
	s.Nil(got)

	created := s.insert("u1", "L1", nil, 0, time.Now().UTC())
	s.Equal(int64(1), created.Version)

	got, err = s.repo.GetByExternalID(s.ctx, "u1", "L1")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(created.ID, got.ID)

	// 同一外部 ID 属于其他用户时互不可见
	got, err = s.repo.GetByExternalID(s.ctx, "u2", "L1")
	s.NoError(err)
	s.Nil(got)
}

func (s *BetRepositoryTestSuite) TestCreateDuplicateRejected() {
	s.insert("u1", "L1", nil, 0, time.Now().UTC())
	dup := &model.Bet{UserID: "u1", ExternalBetID: "L1", BetType: model.BetTypeSpread, Status: model.BetStatusPending, PlacedAt: time.Now().UTC()}
	s.Error(s.repo.Create(s.ctx, dup))
}

func (s *BetRepositoryTestSuite) TestCompareAndSwap() {
	b := s.insert("u1", "L1", nil, 0, time.Now().UTC())
	profit := 90.91

	ok, err := s.repo.CompareAndSwap(s.ctx, b.ID, 1, map[string]interface{}{"profit": &profit})
	s.Require().NoError(err)
	s.True(ok)

	// 旧版本号再写一次被拒绝
	ok, err = s.repo.CompareAndSwap(s.ctx, b.ID, 1, map[string]interface{}{"status": model.BetStatusLost})
	s.Require().NoError(err)
	s.False(ok)

	got, err := s.repo.GetByExternalID(s.ctx, "u1", "L1")
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
	s.Equal(model.BetStatusWon, got.Status)
	s.Require().NotNil(got.Profit)
	s.InDelta(90.91, *got.Profit, 1e-9)

	ok, err = s.repo.CompareAndSwap(s.ctx, b.ID, 2, map[string]interface{}{"profit": (*float64)(nil)})
	s.Require().NoError(err)
	s.True(ok)
	got, _ = s.repo.GetByExternalID(s.ctx, "u1", "L1")
	s.Nil(got.Profit)
}

func (s *BetRepositoryTestSuite) TestListParlayKeysPaging() {
	now := time.Now().UTC()
	for _, u := range []string{"u1", "u2"} {
		for p := 0; p < 3; p++ {
			pid := fmt.Sprintf("P%d", p)
			s.insert(u, pid+"-a", strPtr(pid), 0, now)
			s.insert(u, pid+"-b", strPtr(pid), 1, now)
		}
	}
	s.insert("u1", "single", nil, 0, now)

	var all []model.GroupKey
	after := model.GroupKey{}
	for {
		page, err := s.repo.ListParlayKeys(s.ctx, "", after, 4)
		s.Require().NoError(err)
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		after = page[len(page)-1]
	}
	s.Len(all, 6)
	s.Equal(model.GroupKey{UserID: "u1", ParlayID: "P0"}, all[0])
	s.Equal(model.GroupKey{UserID: "u2", ParlayID: "P2"}, all[5])

	scoped, err := s.repo.ListParlayKeys(s.ctx, "u2", model.GroupKey{}, 10)
	s.Require().NoError(err)
	s.Len(scoped, 3)
	for _, k := range scoped {
		s.Equal("u2", k.UserID)
	}
}

func (s *BetRepositoryTestSuite) TestListLegsByParlayKeepsUsersApart() {
	now := time.Now().UTC()
	s.insert("u1", "A1", strPtr("P1"), 0, now)
	s.insert("u1", "A2", strPtr("P1"), 1, now)
	s.insert("u2", "B1", strPtr("P1"), 0, now)
	s.insert("u2", "B2", strPtr("P2"), 0, now)
	s.insert("u1", "C1", strPtr("P2"), 1, now)
	s.insert("u1", "C0", strPtr("P2"), 0, now)

	keys := []model.GroupKey{{UserID: "u1", ParlayID: "P2"}, {UserID: "u2", ParlayID: "P1"}}
	groups, err := s.repo.ListLegsByParlay(s.ctx, keys)
	s.Require().NoError(err)
	s.Len(groups, 2)

	u1p2 := groups[keys[0]]
	s.Require().Len(u1p2, 2)
	s.Equal("C0", u1p2[0].ExternalBetID)
	s.Equal("C1", u1p2[1].ExternalBetID)

	u2p1 := groups[keys[1]]
	s.Require().Len(u2p1, 1)
	s.Equal("B1", u2p1[0].ExternalBetID)
}

func (s *BetRepositoryTestSuite) TestListRecentParlayKeys() {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.insert("u1", "old", strPtr("OLD"), 0, base)
	s.insert("u1", "new", strPtr("NEW"), 0, base.Add(48*time.Hour))
	s.insert("u2", "mid", strPtr("MID"), 0, base.Add(24*time.Hour))

	keys, err := s.repo.ListRecentParlayKeys(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal([]model.GroupKey{{UserID: "u1", ParlayID: "NEW"}, {UserID: "u2", ParlayID: "MID"}}, keys)
}

func (s *BetRepositoryTestSuite) TestListStandaloneSkipsPendingAndParlays() {
	now := time.Now().UTC()
	a := s.insert("u1", "S1", nil, 0, now)
	s.insert("u1", "P-leg", strPtr("P"), 0, now)
	pending := &model.Bet{UserID: "u1", ExternalBetID: "S2", BetType: model.BetTypeTotal, Status: model.BetStatusPending, PlacedAt: now}
	s.Require().NoError(s.repo.Create(s.ctx, pending))
	c := s.insert("u2", "S3", nil, 0, now)

	rows, err := s.repo.ListStandalone(s.ctx, "", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(a.ID, rows[0].ID)
	s.Equal(c.ID, rows[1].ID)

	rows, err = s.repo.ListStandalone(s.ctx, "", a.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)

	rows, err = s.repo.ListStandalone(s.ctx, "u1", 0, 10)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("S1", rows[0].ExternalBetID)
}

func (s *BetRepositoryTestSuite) TestPing() {
	s.NoError(s.repo.Ping(s.ctx))
}
