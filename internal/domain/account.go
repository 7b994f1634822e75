package domain

import "github.com/shopspring/decimal"

// Stats summarises the user's trading performance.
type Stats struct {
	TotalVolume       decimal.Decimal            `json:"total_volume"`
	TotalProfitLoss   decimal.Decimal            `json:"total_profit_loss"`
	SuccessRate       string                     `json:"success_rate"`
	PerformanceByPair map[string]decimal.Decimal `json:"performance_by_pair"`
}

// DemoTransaction is a paper trade on the demo account.
type DemoTransaction struct {
	Side   OrderSide       `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Pair   string          `json:"pair"`
	Price  decimal.Decimal `json:"price"`
}

// DemoAccount is the paper-trading balance and its transactions.
type DemoAccount struct {
	Balance      decimal.Decimal   `json:"balance"`
	Transactions []DemoTransaction `json:"transactions"`
}
