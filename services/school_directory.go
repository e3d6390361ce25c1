package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// SchoolDirectory — внешний справочник учебных заведений. Биллингу от него
// нужны только контактные данные получателя уведомлений.
type SchoolDirectory interface {
	Get(schoolID uuid.UUID) (*models.School, error)
}

// GormSchoolDirectory читает справочник напрямую из БД
type GormSchoolDirectory struct {
	db *gorm.DB
}

// NewGormSchoolDirectory создает новый экземпляр GormSchoolDirectory
func NewGormSchoolDirectory(db *gorm.DB) *GormSchoolDirectory {
	return &GormSchoolDirectory{db: db}
}

// Get возвращает учебное заведение по идентификатору
func (d *GormSchoolDirectory) Get(schoolID uuid.UUID) (*models.School, error) {
	var school models.School
	err := d.db.First(&school, "id = ?", schoolID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("учебное заведение %s не найдено", schoolID)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения учебного заведения: %w", err)
	}
	return &school, nil
}
