package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// SubscriptionRepository инкапсулирует доступ к записям подписок.
// Запись подписки — единица контроля конкурентности: все мутации проходят
// через CompareAndSwap по счетчику версий.
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository создает новый экземпляр SubscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetBySchool возвращает подписку учебного заведения вместе с напоминаниями
func (r *SubscriptionRepository) GetBySchool(schoolID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Reminders").Where("school_id = ?", schoolID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSubscription
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения подписки: %w", err)
	}
	return &sub, nil
}

// GetByToken возвращает подписку по токену принятия
func (r *SubscriptionRepository) GetByToken(token string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Preload("Reminders").Where("acceptance_token = ?", token).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения подписки по токену: %w", err)
	}
	return &sub, nil
}

// Create сохраняет новую запись подписки. Уникальный индекс по school_id
// гарантирует не более одной записи на заведение.
func (r *SubscriptionRepository) Create(sub *models.Subscription) error {
	sub.Version = 1
	if err := r.db.Create(sub).Error; err != nil {
		return fmt.Errorf("ошибка создания подписки: %w", err)
	}
	return nil
}

// CompareAndSwap атомарно сохраняет изменения подписки при совпадении
// версии. Возвращает ErrConflict, если запись успела измениться: второй из
// двух одновременных вызовов увидит RowsAffected == 0.
func (r *SubscriptionRepository) CompareAndSwap(sub *models.Subscription) error {
	expectedVersion := sub.Version
	sub.Version = expectedVersion + 1

	result := r.db.Model(&models.Subscription{}).
		Where("id = ? AND version = ?", sub.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at", "Reminders").
		Updates(sub)

	if result.Error != nil {
		sub.Version = expectedVersion
		return fmt.Errorf("ошибка сохранения подписки: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		sub.Version = expectedVersion
		return ErrConflict
	}
	return nil
}

// ListInGracePeriod возвращает все подписки в льготном периоде с
// установленным дедлайном
func (r *SubscriptionRepository) ListInGracePeriod() ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Preload("Reminders").
		Where("status = ? AND grace_period_end_date IS NOT NULL", models.SubscriptionStatusGracePeriod).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки подписок в льготном периоде: %w", err)
	}
	return subs, nil
}

// ListAll возвращает все подписки (для административного интерфейса)
func (r *SubscriptionRepository) ListAll() ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.Preload("Reminders").Order("created_at DESC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки подписок: %w", err)
	}
	return subs, nil
}

// AppendReminder условно добавляет запись о напоминании. Уникальный индекс
// по (subscription_id, type) делает добавление идемпотентным: повторный
// вызов возвращает false без отправки второй записи.
func (r *SubscriptionRepository) AppendReminder(subscriptionID uint, reminderType string, sentAt time.Time) (bool, error) {
	reminder := models.SubscriptionReminder{
		SubscriptionID: subscriptionID,
		Type:           reminderType,
		SentAt:         sentAt,
	}

	result := r.db.Exec(
		"INSERT INTO subscription_reminders (created_at, subscription_id, type, sent_at) VALUES (?, ?, ?, ?) ON CONFLICT (subscription_id, type) DO NOTHING",
		time.Now(), reminder.SubscriptionID, reminder.Type, reminder.SentAt,
	)
	if result.Error != nil {
		return false, fmt.Errorf("ошибка записи напоминания: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DB возвращает нижележащее подключение (для журнала операций)
func (r *SubscriptionRepository) DB() *gorm.DB {
	return r.db
}
