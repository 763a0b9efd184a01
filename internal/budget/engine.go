package budget

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Nanlep/Fiscana-sub000/internal/fx"
	"github.com/Nanlep/Fiscana-sub000/internal/money"
)

// ComputeVariance folds per-currency spend into base currency and positions
// it against the budget limit. Pure with respect to its inputs; the same
// (budget, spend, rate) triple always yields the same report, so reports are
// always consistent with the ledger and rate at the moment they are asked for.
func ComputeVariance(b Budget, month time.Time, spent []CurrencyAmount, rate decimal.Decimal) (VarianceReport, error) {
	limit, err := fx.Normalize(b.Limit, b.Currency, rate)
	if err != nil {
		return VarianceReport{}, err
	}

	total := decimal.Zero
	for _, s := range spent {
		normalized, err := fx.Normalize(s.Amount, s.Currency, rate)
		if err != nil {
			return VarianceReport{}, err
		}
		total = total.Add(normalized)
	}
	total = money.Round(total)

	variance := limit.Sub(total)
	status := StatusOK
	if variance.Sign() < 0 {
		status = StatusOver
	}
	return VarianceReport{
		Budget:   b,
		Month:    month.Format("2006-01"),
		Limit:    limit,
		Spent:    total,
		Variance: variance,
		Status:   status,
		Rate:     rate,
	}, nil
}
