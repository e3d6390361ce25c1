package services

import (
	"github.com/shopspring/decimal"

	"backend_bilim/models"
)

// UsageCounts содержит текущие счетчики тарифицируемых единиц
type UsageCounts struct {
	Students int `json:"students"`
	Staff    int `json:"staff"`
}

// Total возвращает общее количество тарифицируемых единиц
func (u UsageCounts) Total() int {
	return u.Students + u.Staff
}

// ChargeTotals содержит рассчитанные суммы начислений
type ChargeTotals struct {
	UnitCount int             `json:"unit_count"`
	Monthly   decimal.Decimal `json:"monthly"`
	Quarterly decimal.Decimal `json:"quarterly"`
	Annual    decimal.Decimal `json:"annual"`
}

// CalculateCharges рассчитывает начисления по живым счетчикам и тарифному
// плану. Чистая функция без побочных эффектов: состояние подписки здесь не
// читается и не изменяется. Результат обязан пересчитываться при каждом
// чтении, кэшированный снимок на записи подписки источником истины не
// является.
func CalculateCharges(usage UsageCounts, plan *models.PricingPlan) (*ChargeTotals, error) {
	if plan == nil {
		return nil, ErrPlanNotFound
	}

	units := decimal.NewFromInt(int64(usage.Total()))
	monthly := units.Mul(plan.PricePerUnit)

	return &ChargeTotals{
		UnitCount: usage.Total(),
		Monthly:   monthly,
		Quarterly: monthly.Mul(decimal.NewFromInt(3)),
		Annual:    monthly.Mul(decimal.NewFromInt(12)),
	}, nil
}

// ChargeForCycle возвращает начисление за один цикл тарификации
func (c *ChargeTotals) ChargeForCycle(cycle string) decimal.Decimal {
	switch cycle {
	case models.BillingCycleQuarterly:
		return c.Quarterly
	case models.BillingCycleAnnual:
		return c.Annual
	default:
		return c.Monthly
	}
}
