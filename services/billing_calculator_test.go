package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_bilim/models"
)

func TestCalculateCharges(t *testing.T) {
	plan := &models.PricingPlan{
		Name:         "BASIC",
		PricePerUnit: decimal.NewFromInt(500),
	}

	charges, err := CalculateCharges(UsageCounts{Students: 10, Staff: 2}, plan)
	require.NoError(t, err)

	assert.Equal(t, 12, charges.UnitCount)
	assert.True(t, decimal.NewFromInt(6000).Equal(charges.Monthly))
	assert.True(t, decimal.NewFromInt(18000).Equal(charges.Quarterly))
	assert.True(t, decimal.NewFromInt(72000).Equal(charges.Annual))
}

func TestCalculateCharges_ZeroUsage(t *testing.T) {
	plan := &models.PricingPlan{
		Name:         "BASIC",
		PricePerUnit: decimal.NewFromInt(500),
	}

	charges, err := CalculateCharges(UsageCounts{}, plan)
	require.NoError(t, err)
	assert.True(t, charges.Monthly.IsZero())
	assert.True(t, charges.Annual.IsZero())
}

func TestCalculateCharges_FractionalPrice(t *testing.T) {
	plan := &models.PricingPlan{
		Name:         "PROMO",
		PricePerUnit: decimal.RequireFromString("499.99"),
	}

	charges, err := CalculateCharges(UsageCounts{Students: 3}, plan)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1499.97").Equal(charges.Monthly))
}

func TestCalculateCharges_NilPlan(t *testing.T) {
	_, err := CalculateCharges(UsageCounts{Students: 1}, nil)
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestChargeForCycle(t *testing.T) {
	charges := &ChargeTotals{
		Monthly:   decimal.NewFromInt(1000),
		Quarterly: decimal.NewFromInt(3000),
		Annual:    decimal.NewFromInt(12000),
	}

	assert.True(t, decimal.NewFromInt(1000).Equal(charges.ChargeForCycle(models.BillingCycleMonthly)))
	assert.True(t, decimal.NewFromInt(3000).Equal(charges.ChargeForCycle(models.BillingCycleQuarterly)))
	assert.True(t, decimal.NewFromInt(12000).Equal(charges.ChargeForCycle(models.BillingCycleAnnual)))
}
