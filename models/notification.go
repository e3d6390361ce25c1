package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Типы биллинговых уведомлений
const (
	NotificationTypeSubscriptionConfirm = "subscription_confirm"
	NotificationTypeReminderDay3        = "grace_reminder_day3"
	NotificationTypeReminderCritical    = "grace_reminder_critical"
	NotificationTypePaymentReceived     = "payment_received"
)

// NotificationTemplate представляет шаблон уведомления
type NotificationTemplate struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Name     string `json:"name" gorm:"not null;uniqueIndex"`   // Уникальное имя шаблона
	Type     string `json:"type" gorm:"not null"`               // subscription_confirm, grace_reminder_day3, ...
	Channel  string `json:"channel" gorm:"not null"`            // email, telegram
	Subject  string `json:"subject"`                            // Тема сообщения (для email)
	Template string `json:"template" gorm:"type:text;not null"` // Шаблон с плейсхолдерами
	IsActive bool   `json:"is_active" gorm:"default:true"`
	Language string `json:"language" gorm:"default:'ru'"`
}

// TableName задает имя таблицы для модели NotificationTemplate
func (NotificationTemplate) TableName() string {
	return "notification_templates"
}

// NotificationLog представляет лог отправленных уведомлений
type NotificationLog struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля
	Type         string     `json:"type" gorm:"not null"`              // Тип уведомления
	Channel      string     `json:"channel" gorm:"not null"`           // Канал отправки
	Recipient    string     `json:"recipient" gorm:"not null"`         // Получатель
	Subject      string     `json:"subject"`                           // Тема (для email)
	Message      string     `json:"message" gorm:"type:text;not null"` // Текст сообщения
	Status       string     `json:"status" gorm:"default:'pending'"`   // pending, sent, failed
	ErrorMessage string     `json:"error_message" gorm:"type:text"`    // Сообщение об ошибке
	SentAt       *time.Time `json:"sent_at"`                           // Время отправки

	// Для мультитенантности
	SchoolID uuid.UUID `json:"school_id" gorm:"type:uuid;index"`
}

// TableName задает имя таблицы для модели NotificationLog
func (NotificationLog) TableName() string {
	return "notification_logs"
}
