package formulas

// SharpeRatio computes the risk-adjusted return (annualReturn - riskFree) / volatility.
// Zero volatility yields a Sharpe ratio of 0 rather than dividing by zero.
func SharpeRatio(annualReturn, volatility, riskFree float64) float64 {
	if volatility <= 0 {
		return 0
	}
	return (annualReturn - riskFree) / volatility
}
