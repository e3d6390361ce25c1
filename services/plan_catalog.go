package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"backend_bilim/database"
	"backend_bilim/models"
)

// PlanCatalog предоставляет доступ к справочнику тарифных планов.
// Справочник меняется редко, поэтому чтение по имени кэшируется в Redis.
type PlanCatalog struct {
	db *gorm.DB
}

// NewPlanCatalog создает новый экземпляр PlanCatalog
func NewPlanCatalog(db *gorm.DB) *PlanCatalog {
	return &PlanCatalog{db: db}
}

// GetByName возвращает тарифный план по имени. Несуществующее имя на
// записи подписки — ошибочное состояние, поэтому возвращается ErrPlanNotFound.
func (pc *PlanCatalog) GetByName(name string) (*models.PricingPlan, error) {
	cacheKey := "billing:plan:" + name

	var plan models.PricingPlan
	if err := database.CacheGetJSON(cacheKey, &plan); err == nil && plan.Name == name {
		return &plan, nil
	}

	err := pc.db.Where("name = ?", name).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения тарифного плана: %w", err)
	}

	// Кэш не критичен для корректности, ошибку игнорируем
	_ = database.CacheSetJSON(cacheKey, &plan, database.CacheTTLPlans)
	return &plan, nil
}

// GetActive возвращает активный тарифный план; неизвестное имя и
// неактивный план считаются недопустимым выбором
func (pc *PlanCatalog) GetActive(name string) (*models.PricingPlan, error) {
	plan, err := pc.GetByName(name)
	if errors.Is(err, ErrPlanNotFound) {
		return nil, ErrInvalidPlan
	}
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrInvalidPlan
	}
	return plan, nil
}

// GetTrialPlan возвращает активный пробный тарифный план
func (pc *PlanCatalog) GetTrialPlan() (*models.PricingPlan, error) {
	var plan models.PricingPlan
	err := pc.db.Where("is_trial = ? AND is_active = ?", true, true).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidPlan
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения пробного тарифа: %w", err)
	}
	return &plan, nil
}

// ListActive возвращает все активные тарифные планы
func (pc *PlanCatalog) ListActive() ([]models.PricingPlan, error) {
	var plans []models.PricingPlan
	if err := pc.db.Where("is_active = ?", true).Order("price_per_unit ASC").Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения тарифных планов: %w", err)
	}
	return plans, nil
}

// Invalidate сбрасывает кэш плана после административного изменения
func (pc *PlanCatalog) Invalidate(name string) {
	_ = database.CacheDel("billing:plan:" + name)
}
