package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AmericanToDecimal 美式赔率转小数赔率
// +150 → 2.50，-110 → 1.909…
func AmericanToDecimal(american int) (float64, error) {
	if american == 0 {
		return 0, fmt.Errorf("非法美式赔率: 0")
	}
	if american > 0 {
		return 1 + float64(american)/100, nil
	}
	return 1 + 100/float64(-american), nil
}

// ValidAmericanOdds 美式赔率只能落在 (-∞,-100] ∪ [100,∞)
func ValidAmericanOdds(american int) bool {
	return american >= 100 || american <= -100
}

// CentsToAmount 聚合方金额（分）转为货币金额
func CentsToAmount(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// RoundMoney 金额保留两位小数
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundProfit 对可空盈亏取整，nil 保持 nil
func RoundProfit(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := RoundMoney(*p)
	return &v
}

// ProfitEqual 按分比较两个可空盈亏
func ProfitEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return decimal.NewFromFloat(*a).Round(2).Equal(decimal.NewFromFloat(*b).Round(2))
}
