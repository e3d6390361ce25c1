package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы счета
const (
	InvoiceStatusDraft     = "DRAFT"
	InvoiceStatusSent      = "SENT"
	InvoiceStatusViewed    = "VIEWED"
	InvoiceStatusPaid      = "PAID"
	InvoiceStatusOverdue   = "OVERDUE"
	InvoiceStatusCancelled = "CANCELLED"
	InvoiceStatusCompleted = "COMPLETED" // Счет, созданный по факту подтвержденного платежа
)

// Invoice представляет счет в системе биллинга. Счет неизменяем после
// создания: мутируют только статус и платежные поля.
type Invoice struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Основные поля счета
	Number      string    `json:"number" gorm:"uniqueIndex;not null;type:varchar(64)"`
	Title       string    `json:"title" gorm:"not null;type:varchar(200)"`
	InvoiceDate time.Time `json:"invoice_date" gorm:"not null"`
	DueDate     time.Time `json:"due_date" gorm:"not null"`

	// Связи
	SchoolID       uuid.UUID     `json:"school_id" gorm:"type:uuid;not null;index"`
	SubscriptionID uint          `json:"subscription_id" gorm:"not null;index"`
	Subscription   *Subscription `json:"subscription,omitempty" gorm:"foreignKey:SubscriptionID"`
	PlanName       string        `json:"plan_name" gorm:"not null;type:varchar(100)"`

	// Период биллинга
	BillingPeriodStart time.Time `json:"billing_period_start" gorm:"not null"`
	BillingPeriodEnd   time.Time `json:"billing_period_end" gorm:"not null"`

	// Снимок использования на момент выставления
	UnitCount    int             `json:"unit_count" gorm:"not null"`
	PricePerUnit decimal.Decimal `json:"price_per_unit" gorm:"type:decimal(15,2);not null"`

	// Финансовая информация
	SubtotalAmount decimal.Decimal `json:"subtotal_amount" gorm:"type:decimal(15,2);not null"`
	TaxAmount      decimal.Decimal `json:"tax_amount" gorm:"type:decimal(15,2);default:0"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(15,2);default:0"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2);not null"`
	Currency       string          `json:"currency" gorm:"default:'KZT';type:varchar(3)"`

	// Статус счета
	Status string `json:"status" gorm:"default:'DRAFT';type:varchar(20);index"`

	// Подтверждение оплаты (фиксируется как факт, платеж не проводится)
	TransactionID string     `json:"transaction_id" gorm:"type:varchar(100)"`
	PaymentMethod string     `json:"payment_method" gorm:"type:varchar(50)"`
	PaidAt        *time.Time `json:"paid_at"`

	// Связанные позиции счета
	Items []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID"`
}

// TableName задает имя таблицы для модели Invoice
func (Invoice) TableName() string {
	return "invoices"
}

// IsOverdue проверяет, просрочен ли счет
func (i *Invoice) IsOverdue(now time.Time) bool {
	switch i.Status {
	case InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusCompleted:
		return false
	}
	return now.After(i.DueDate)
}

// IsPaid проверяет, оплачен ли счет
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid || i.Status == InvoiceStatusCompleted
}

// InvoiceItem представляет позицию в счете
type InvoiceItem struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связь со счетом
	InvoiceID uint `json:"invoice_id" gorm:"not null;index"`

	// Основные поля позиции
	Name     string `json:"name" gorm:"not null;type:varchar(200)"`
	Category string `json:"category" gorm:"not null;type:varchar(50)"` // students, staff

	// Количество и цены
	Quantity  int             `json:"quantity" gorm:"not null"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(15,2);not null"`
	Amount    decimal.Decimal `json:"amount" gorm:"type:decimal(15,2);not null"`
}

// TableName задает имя таблицы для модели InvoiceItem
func (InvoiceItem) TableName() string {
	return "invoice_items"
}

// BillingHistory представляет журнал биллинговых операций: переходы
// жизненного цикла, платежи, смены тарифа, напоминания, действия
// администратора
type BillingHistory struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связи
	SchoolID       uuid.UUID `json:"school_id" gorm:"type:uuid;not null;index"`
	SubscriptionID *uint     `json:"subscription_id" gorm:"index"`
	InvoiceID      *uint     `json:"invoice_id" gorm:"index"`

	// Информация об операции
	Operation   string          `json:"operation" gorm:"not null;type:varchar(50)"` // plan_selected, accepted, trial_claimed, payment_received, plan_changed, reminder_sent, grace_extended, cancelled
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(15,2)"`
	Currency    string          `json:"currency" gorm:"default:'KZT';type:varchar(3)"`
	Description string          `json:"description" gorm:"type:text"`

	// Статус операции
	Status string `json:"status" gorm:"default:'completed';type:varchar(20)"`
}

// TableName задает имя таблицы для модели BillingHistory
func (BillingHistory) TableName() string {
	return "billing_history"
}
