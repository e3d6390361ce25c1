package services

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// Категории тарифицируемых единиц
const (
	UsageCategoryStudents = "students"
	UsageCategoryStaff    = "staff"
)

// UsageCounter возвращает текущие счетчики тарифицируемых единиц учебного
// заведения. Управление учениками и сотрудниками выполняет внешняя
// подсистема, биллинг только читает.
type UsageCounter interface {
	Count(schoolID uuid.UUID, category string) (int, error)
}

// GormUsageCounter считает тарифицируемые единицы напрямую в БД
type GormUsageCounter struct {
	db *gorm.DB
}

// NewGormUsageCounter создает новый экземпляр GormUsageCounter
func NewGormUsageCounter(db *gorm.DB) *GormUsageCounter {
	return &GormUsageCounter{db: db}
}

// Count возвращает количество активных единиц в категории
func (uc *GormUsageCounter) Count(schoolID uuid.UUID, category string) (int, error) {
	var total int64
	var err error

	switch category {
	case UsageCategoryStudents:
		err = uc.db.Model(&models.Student{}).
			Where("school_id = ? AND is_active = ?", schoolID, true).
			Count(&total).Error
	case UsageCategoryStaff:
		err = uc.db.Model(&models.StaffMember{}).
			Where("school_id = ? AND is_active = ?", schoolID, true).
			Count(&total).Error
	default:
		return 0, fmt.Errorf("неизвестная категория единиц: %s", category)
	}

	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета единиц категории %s: %w", category, err)
	}
	return int(total), nil
}

// CollectUsage собирает счетчики обеих категорий одним вызовом
func CollectUsage(uc UsageCounter, schoolID uuid.UUID) (UsageCounts, error) {
	students, err := uc.Count(schoolID, UsageCategoryStudents)
	if err != nil {
		return UsageCounts{}, err
	}
	staff, err := uc.Count(schoolID, UsageCategoryStaff)
	if err != nil {
		return UsageCounts{}, err
	}
	return UsageCounts{Students: students, Staff: staff}, nil
}
