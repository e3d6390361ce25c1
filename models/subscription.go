package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Статусы жизненного цикла подписки
const (
	SubscriptionStatusPendingAcceptance = "PENDING_ACCEPTANCE"
	SubscriptionStatusGracePeriod       = "GRACE_PERIOD"
	SubscriptionStatusActive            = "ACTIVE"
	SubscriptionStatusPaymentOverdue    = "PAYMENT_OVERDUE"
	SubscriptionStatusCancelled         = "CANCELLED"
	SubscriptionStatusExpired           = "EXPIRED"
)

// Варианты льготного периода: платный (после принятия плана) и пробный.
// Поле GraceKind заполнено только в статусе GRACE_PERIOD, поэтому
// противоречивые комбинации вроде "отмененный пробный период" невозможны.
const (
	GraceKindPaid  = "paid"
	GraceKindTrial = "trial"
)

// Циклы тарификации
const (
	BillingCycleMonthly   = "monthly"
	BillingCycleQuarterly = "quarterly"
	BillingCycleAnnual    = "annual"
)

// Типы напоминаний о приближении дедлайна льготного периода
const (
	ReminderTypeDay3     = "DAY_3"
	ReminderTypeCritical = "DAY_5_CRITICAL"
)

// Subscription представляет подписку учебного заведения на тарифный план.
// На одно заведение существует не более одной записи; терминальные статусы
// сохраняются для аудита и никогда не удаляются физически.
type Subscription struct {
	ID        uint           `json:"id" gorm:"primarykey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Связь с учебным заведением (мультитенантность)
	SchoolID uuid.UUID `json:"school_id" gorm:"type:uuid;not null;uniqueIndex"`

	// Выбранный тарифный план (по имени, не по ссылке)
	PlanName string `json:"plan_name" gorm:"not null;type:varchar(100)"`

	// Канонический статус жизненного цикла
	Status    string `json:"status" gorm:"default:'PENDING_ACCEPTANCE';type:varchar(30);index"`
	GraceKind string `json:"grace_kind" gorm:"type:varchar(10)"` // paid или trial, только в GRACE_PERIOD

	// Метаданные принятия плана
	AcceptanceToken *string    `json:"-" gorm:"uniqueIndex;type:varchar(64)"`
	TokenExpiresAt  *time.Time `json:"token_expires_at"`
	AcceptedAt      *time.Time `json:"accepted_at"`

	// Дедлайны льготного периода
	GracePeriodEndDate *time.Time `json:"grace_period_end_date"`
	PaymentDueDate     *time.Time `json:"payment_due_date"`

	// Платежная информация
	LastPaymentAmount decimal.Decimal `json:"last_payment_amount" gorm:"type:decimal(15,2);default:0"`
	LastPaymentDate   *time.Time      `json:"last_payment_date"`

	// Цикл тарификации и продление
	BillingCycle string     `json:"billing_cycle" gorm:"default:'monthly';type:varchar(20)"`
	RenewalDate  *time.Time `json:"renewal_date"`

	// Окно пробного периода (дублирует дедлайны в статусе GRACE_PERIOD/trial)
	TrialStartDate *time.Time `json:"trial_start_date"`
	TrialEndDate   *time.Time `json:"trial_end_date"`
	TrialMaxUnits  int        `json:"trial_max_units" gorm:"default:0"`

	// Денормализованный снимок начислений, обновляется при каждой мутации.
	// Источником истины не является: начисления всегда пересчитываются
	// калькулятором от живых счетчиков.
	MonthlyCharges decimal.Decimal `json:"monthly_charges" gorm:"type:decimal(15,2);default:0"`

	// Примечания администратора
	Notes string `json:"notes" gorm:"type:text"`

	// Счетчик версий для оптимистичной блокировки
	Version int64 `json:"version" gorm:"not null;default:1"`

	// Отправленные напоминания (идемпотентность напоминаний)
	Reminders []SubscriptionReminder `json:"reminders,omitempty" gorm:"foreignKey:SubscriptionID"`
}

// TableName задает имя таблицы для модели Subscription
func (Subscription) TableName() string {
	return "subscriptions"
}

// IsTerminal проверяет, находится ли подписка в терминальном статусе
func (s *Subscription) IsTerminal() bool {
	return s.Status == SubscriptionStatusCancelled || s.Status == SubscriptionStatusExpired
}

// IsAccepted проверяет, был ли план принят (по токену или через пробный период)
func (s *Subscription) IsAccepted() bool {
	return s.AcceptedAt != nil
}

// IsFreeTrial проверяет, находится ли подписка в пробном льготном периоде
func (s *Subscription) IsFreeTrial() bool {
	return s.Status == SubscriptionStatusGracePeriod && s.GraceKind == GraceKindTrial
}

// GraceDaysRemaining возвращает количество полных и неполных дней до конца
// льготного периода (0, если дедлайн не установлен или уже прошел)
func (s *Subscription) GraceDaysRemaining(now time.Time) int {
	if s.GracePeriodEndDate == nil {
		return 0
	}
	remaining := s.GracePeriodEndDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

// HasReminder проверяет, было ли уже отправлено напоминание данного типа
func (s *Subscription) HasReminder(reminderType string) bool {
	for _, r := range s.Reminders {
		if r.Type == reminderType {
			return true
		}
	}
	return false
}

// IsValidSubscriptionStatus проверяет допустимость статуса подписки
func IsValidSubscriptionStatus(status string) bool {
	switch status {
	case SubscriptionStatusPendingAcceptance, SubscriptionStatusGracePeriod,
		SubscriptionStatusActive, SubscriptionStatusPaymentOverdue,
		SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// IsValidBillingCycle проверяет допустимость цикла тарификации
func IsValidBillingCycle(cycle string) bool {
	switch cycle {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleAnnual:
		return true
	}
	return false
}

// BillingCycleDays возвращает длину цикла тарификации в днях
func BillingCycleDays(cycle string) int {
	switch cycle {
	case BillingCycleQuarterly:
		return 90
	case BillingCycleAnnual:
		return 365
	default:
		return 30
	}
}

// SubscriptionReminder представляет отправленное напоминание о дедлайне.
// Уникальный индекс по (subscription_id, type) гарантирует отправку
// не более одного напоминания каждого типа за льготный период.
type SubscriptionReminder struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`

	SubscriptionID uint      `json:"subscription_id" gorm:"not null;uniqueIndex:idx_subscription_reminder_type"`
	Type           string    `json:"type" gorm:"not null;type:varchar(30);uniqueIndex:idx_subscription_reminder_type"`
	SentAt         time.Time `json:"sent_at" gorm:"not null"`
}

// TableName задает имя таблицы для модели SubscriptionReminder
func (SubscriptionReminder) TableName() string {
	return "subscription_reminders"
}
