package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PricingPlan представляет модель тарифного плана в системе
type PricingPlan struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля тарифного плана
	Name         string          `json:"name" gorm:"uniqueIndex;not null;type:varchar(100)"`
	Description  string          `json:"description" gorm:"type:text"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" gorm:"type:decimal(15,2);not null"`
	Currency     string          `json:"currency" gorm:"default:'KZT';type:varchar(3)"`

	// Пробный период
	IsTrial       bool `json:"is_trial" gorm:"default:false"`
	TrialDays     int  `json:"trial_days" gorm:"default:30"`
	TrialMaxUnits int  `json:"trial_max_units" gorm:"default:100"`

	// Лимиты и возможности
	MaxStudents  int  `json:"max_students" gorm:"default:0"` // 0 = безлимитно
	MaxStaff     int  `json:"max_staff" gorm:"default:0"`    // 0 = безлимитно
	HasAnalytics bool `json:"has_analytics" gorm:"default:false"`
	HasAPI       bool `json:"has_api" gorm:"default:false"`
	HasSupport   bool `json:"has_support" gorm:"default:false"`

	// Статус и доступность
	IsActive  bool `json:"is_active" gorm:"default:true"`
	IsPopular bool `json:"is_popular" gorm:"default:false"`
}

// TableName задает имя таблицы для модели PricingPlan
func (PricingPlan) TableName() string {
	return "pricing_plans"
}
