package settlement

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BetSync/internal/model"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]model.BetStatus{
		"won":       model.BetStatusWon,
		"WIN":       model.BetStatusWon,
		" w ":       model.BetStatusWon,
		"lost":      model.BetStatusLost,
		"Loss":      model.BetStatusLost,
		"l":         model.BetStatusLost,
		"void":      model.BetStatusVoid,
		"canceled":  model.BetStatusVoid,
		"cancelled": model.BetStatusVoid,
		"push":      model.BetStatusVoid,
		"open":      model.BetStatusPending,
		"active":    model.BetStatusPending,
		"pending":   model.BetStatusPending,
		"":          model.BetStatusPending,
		"graded?":   model.BetStatusPending,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeStatus(raw), "raw=%q", raw)
	}
}

func TestNormalizeSide(t *testing.T) {
	side := func(s model.BetSide) *model.BetSide { return &s }
	tests := []struct {
		raw  string
		want *model.BetSide
	}{
		{"Over", side(model.BetSideOver)},
		{"UNDER 221.5", side(model.BetSideUnder)},
		{"home", side(model.BetSideHome)},
		{"Away -3.5", side(model.BetSideAway)},
		{"Boston Celtics", nil},
		{"", nil},
		// 同时出现时按 over/under/home/away 的优先级
		{"home team over", side(model.BetSideOver)},
	}
	for _, tt := range tests {
		got := NormalizeSide(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw=%q", tt.raw)
			continue
		}
		require.NotNil(t, got, "raw=%q", tt.raw)
		assert.Equal(t, *tt.want, *got)
	}
}

func TestNormalizeBetType(t *testing.T) {
	tests := map[string]model.BetType{
		"Point Spread":          model.BetTypeSpread,
		"Run Line":              model.BetTypeSpread,
		"Total Points":          model.BetTypeTotal,
		"Moneyline":             model.BetTypeMoneyline,
		"ML":                    model.BetTypeMoneyline,
		"1st Half Winner":       model.BetTypeFirstHalf,
		"2nd Quarter Winner":    model.BetTypeQuarter,
		"3rd Period Winner":     model.BetTypePeriod,
		"Game Prop":             model.BetTypeGameProp,
		"LeBron James Points":   model.BetTypePlayerProp,
		"":                      model.BetTypePlayerProp,
		"html widget something": model.BetTypePlayerProp,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeBetType(raw), "raw=%q", raw)
	}
}

func TestComputeSingleLegProfit(t *testing.T) {
	b := &model.Bet{Stake: 100, PotentialPayout: 190.91}

	b.Status = model.BetStatusWon
	assert.InDelta(t, 90.91, ComputeSingleLegProfit(b), 1e-9)
	b.Status = model.BetStatusLost
	assert.Equal(t, -100.0, ComputeSingleLegProfit(b))
	b.Status = model.BetStatusVoid
	assert.Equal(t, 0.0, ComputeSingleLegProfit(b))
	b.Status = model.BetStatusPending
	assert.Equal(t, 0.0, ComputeSingleLegProfit(b))
}

func decodeSlip(t *testing.T, raw string) *model.AggregatorSlip {
	t.Helper()
	var slip model.AggregatorSlip
	require.NoError(t, json.Unmarshal([]byte(raw), &slip))
	return &slip
}

func TestNormalizeLeg_SingleFallsBackToSlip(t *testing.T) {
	slip := decodeSlip(t, `{
		"id":"S1","type":"single","status":"win","oddsAmerican":-110,"atRisk":11000,"toWin":10000,
		"timePlaced":"2024-01-01T18:00:00.123456789Z","timeClosed":"2024-01-02T01:00:00Z",
		"book":{"name":"FanDuel"},
		"bets":[{"id":"L1","position":"Boston Celtics","type":"Moneyline","event":{"name":"LAL @ BOS","startTime":"2024-01-02T00:00:00Z"}}]
	}`)

	n := NormalizeLeg(slip, 0)
	assert.Equal(t, "L1", n.ExternalBetID)
	assert.Equal(t, model.BetStatusWon, n.Status)
	assert.Nil(t, n.Side)
	assert.Equal(t, model.BetTypeMoneyline, n.BetType)
	assert.Equal(t, -110, n.Odds)
	require.NotNil(t, n.Stake)
	assert.Equal(t, 110.0, *n.Stake)
	assert.Equal(t, 210.0, n.PotentialPayout)
	require.NotNil(t, n.PlacedAt)
	assert.True(t, time.Date(2024, 1, 1, 18, 0, 0, 123456000, time.UTC).Equal(*n.PlacedAt))
	require.NotNil(t, n.SettledAt)
	require.NotNil(t, n.GameDate)
	assert.Equal(t, "LAL @ BOS", n.Description)
	assert.NotEmpty(t, n.Raw)
	assert.NoError(t, ValidateLeg(n))
}

func TestNormalizeLeg_PendingHasNoSettledAt(t *testing.T) {
	slip := decodeSlip(t, `{"id":"S1","atRisk":100,"timePlaced":"2024-01-01T18:00:00Z","timeClosed":"2024-01-02T01:00:00Z",
		"bets":[{"id":"L1","status":"open","oddsAmerican":120}]}`)

	n := NormalizeLeg(slip, 0)
	assert.Equal(t, model.BetStatusPending, n.Status)
	assert.Nil(t, n.SettledAt)
}

func TestParseFeedTime(t *testing.T) {
	assert.Nil(t, ParseFeedTime(""))
	assert.Nil(t, ParseFeedTime("yesterday"))

	got := ParseFeedTime("2024-03-01")
	require.NotNil(t, got)
	assert.True(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Equal(*got))

	got = ParseFeedTime("2024-03-01T10:00:00+02:00")
	require.NotNil(t, got)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 8, got.Hour())
}

func TestValidateLeg_ReportsEveryViolation(t *testing.T) {
	zero := 0.0
	err := ValidateLeg(NormalizedLeg{ExternalBetID: "L9", Odds: 50, Stake: &zero})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "L9", ve.LegID)

	fields := map[string]string{}
	for _, v := range ve.Violations {
		fields[v.Field] = v.Rule
	}
	assert.Equal(t, map[string]string{
		"odds":      "american_odds",
		"stake":     "gt",
		"placed_at": "required",
	}, fields)
	assert.Contains(t, err.Error(), "L9")
}

func TestValidateLeg_MissingStake(t *testing.T) {
	now := time.Now()
	err := ValidateLeg(NormalizedLeg{ExternalBetID: "L1", Odds: -110, PlacedAt: &now})

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Violations, 1)
	assert.Equal(t, Violation{Field: "stake", Rule: "required"}, ve.Violations[0])
}
