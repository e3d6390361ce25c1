package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// School представляет учебное заведение (tenant) в мультитенантной системе биллинга
type School struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля учебного заведения
	Name   string `json:"name" gorm:"not null;type:varchar(200)"`
	Domain string `json:"domain" gorm:"uniqueIndex;type:varchar(100)"` // Поддомен или домен

	// Контактная информация (получатель биллинговых уведомлений)
	ContactEmail  string `json:"contact_email" gorm:"type:varchar(100)"`
	ContactPhone  string `json:"contact_phone" gorm:"type:varchar(20)"`
	ContactPerson string `json:"contact_person" gorm:"type:varchar(100)"`

	// Telegram-чат для биллинговых уведомлений (скрыт в JSON)
	TelegramChatID int64 `json:"-"`

	// Адрес
	Address string `json:"address" gorm:"type:text"`
	City    string `json:"city" gorm:"type:varchar(100)"`
	Country string `json:"country" gorm:"default:'Kazakhstan';type:varchar(100)"`

	// Настройки и статус
	IsActive bool `json:"is_active" gorm:"default:true"`

	// Настройки локализации
	Language string `json:"language" gorm:"default:'ru';type:varchar(5)"`
	Timezone string `json:"timezone" gorm:"default:'Asia/Almaty';type:varchar(50)"`
	Currency string `json:"currency" gorm:"default:'KZT';type:varchar(3)"`
}

// TableName задает имя таблицы для модели School
func (School) TableName() string {
	return "schools"
}

// BeforeCreate генерирует идентификатор на стороне приложения: серверный
// default вроде gen_random_uuid() есть только в Postgres
func (s *School) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Student представляет ученика учебного заведения.
// Управление учениками выполняет внешняя подсистема, биллингу нужен только подсчет.
type Student struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	SchoolID uuid.UUID `json:"school_id" gorm:"type:uuid;not null;index"`
	FullName string    `json:"full_name" gorm:"not null;type:varchar(200)"`
	IsActive bool      `json:"is_active" gorm:"default:true"`
}

// TableName задает имя таблицы для модели Student
func (Student) TableName() string {
	return "students"
}

// StaffMember представляет сотрудника учебного заведения.
// Как и ученики, сотрудники управляются внешней подсистемой.
type StaffMember struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	SchoolID uuid.UUID `json:"school_id" gorm:"type:uuid;not null;index"`
	FullName string    `json:"full_name" gorm:"not null;type:varchar(200)"`
	Position string    `json:"position" gorm:"type:varchar(100)"`
	IsActive bool      `json:"is_active" gorm:"default:true"`
}

// TableName задает имя таблицы для модели StaffMember
func (StaffMember) TableName() string {
	return "staff_members"
}
