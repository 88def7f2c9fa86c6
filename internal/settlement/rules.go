package settlement

// SettlementRules 结算规则说明，由 GET /api/settlement/reconcile 原样返回。
// 修改 calculator.go 时必须同步修改这里，rules_test.go 会逐条校验。
var SettlementRules = []string{
	"1. Standalone bet: won => stake * (decimalOdds - 1); lost => -stake; void/cancelled => 0; pending => null.",
	"2. Parlay with any lost leg => primary leg profit = -stake, all other legs = 0.",
	"3. Parlay with no lost leg but any pending leg => profit = null on every leg.",
	"4. Parlay where every leg is void/cancelled => push: primary leg profit = 0, other legs = 0.",
	"5. Parlay with won legs and no lost/pending legs => primary leg profit = stake * (product of won legs' decimal odds - 1), void/cancelled legs count as 1.0; other legs = 0.",
}
