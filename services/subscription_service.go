package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"backend_bilim/models"
)

// Длительности жизненного цикла подписки
const (
	AcceptanceTokenTTL = 24 * time.Hour
	PaidGraceDays      = 5
)

// ErrNotActive возвращается при попытке сменить тариф не в статусе ACTIVE
var ErrNotActive = errors.New("смена тарифа доступна только активной подписке")

// SubscriptionService — машина состояний жизненного цикла подписки.
// Каждая операция перечитывает запись, повторно выводит статус от текущего
// времени, применяет переход, пересчитывает начисления от живых счетчиков
// и атомарно сохраняет результат. Фоновых часов нет: истечение дедлайнов
// обнаруживается лениво при чтении и записи.
type SubscriptionService struct {
	Repo     *SubscriptionRepository
	Catalog  *PlanCatalog
	Usage    UsageCounter
	Schools  SchoolDirectory
	Notifier Notifier
	Invoices *InvoiceService

	// Источник времени, подменяется в тестах
	Now func() time.Time
}

// NewSubscriptionService создает новый экземпляр SubscriptionService
func NewSubscriptionService(repo *SubscriptionRepository, catalog *PlanCatalog, usage UsageCounter, schools SchoolDirectory, notifier Notifier, invoices *InvoiceService) *SubscriptionService {
	return &SubscriptionService{
		Repo:     repo,
		Catalog:  catalog,
		Usage:    usage,
		Schools:  schools,
		Notifier: notifier,
		Invoices: invoices,
		Now:      time.Now,
	}
}

// DeriveStatus повторно выводит статус подписки от текущего времени.
// Единственный автоматический переход по времени: льготный период с
// истекшим дедлайном и без записанного платежа становится PAYMENT_OVERDUE.
// Чистая функция, применяется на каждом пути чтения и записи.
func DeriveStatus(sub *models.Subscription, now time.Time) bool {
	if sub.Status != models.SubscriptionStatusGracePeriod {
		return false
	}
	if sub.GracePeriodEndDate == nil || !now.After(*sub.GracePeriodEndDate) {
		return false
	}
	if sub.LastPaymentDate != nil {
		return false
	}
	sub.Status = models.SubscriptionStatusPaymentOverdue
	return true
}

// SelectPlan выбирает тарифный план и выдает токен принятия.
// Повторный выбор до принятия разрешен и аннулирует прежний токен.
func (ss *SubscriptionService) SelectPlan(schoolID uuid.UUID, planName string) (*models.Subscription, error) {
	plan, err := ss.Catalog.GetActive(planName)
	if err != nil {
		return nil, err
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if errors.Is(err, ErrNoSubscription) {
		sub = &models.Subscription{SchoolID: schoolID}
		if err := ss.applyPlanSelection(sub, plan, now); err != nil {
			return nil, err
		}
		if err := ss.Repo.Create(sub); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		DeriveStatus(sub, now)
		if sub.IsAccepted() && !sub.IsTerminal() {
			return nil, ErrAlreadyActive
		}
		mutate := func(s *models.Subscription) error { return ss.applyPlanSelection(s, plan, now) }
		sub, err = ss.casWithRetry(sub, mutate)
		if err != nil {
			return nil, err
		}
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "plan_selected", sub.MonthlyCharges,
		fmt.Sprintf("Выбран тарифный план «%s», выдан токен принятия", plan.Name))
	ss.notify(schoolID, models.NotificationTypeSubscriptionConfirm, map[string]interface{}{
		"PlanName": plan.Name,
		"Token":    derefToken(sub.AcceptanceToken),
	})

	return sub, nil
}

// applyPlanSelection переводит запись в PENDING_ACCEPTANCE со свежим токеном
func (ss *SubscriptionService) applyPlanSelection(sub *models.Subscription, plan *models.PricingPlan, now time.Time) error {
	token := uuid.NewString()
	expires := now.Add(AcceptanceTokenTTL)

	sub.PlanName = plan.Name
	sub.Status = models.SubscriptionStatusPendingAcceptance
	sub.GraceKind = ""
	sub.AcceptanceToken = &token
	sub.TokenExpiresAt = &expires
	sub.AcceptedAt = nil
	sub.GracePeriodEndDate = nil
	sub.PaymentDueDate = nil
	sub.TrialStartDate = nil
	sub.TrialEndDate = nil
	sub.TrialMaxUnits = 0
	sub.RenewalDate = nil
	// Платежи прошлого жизненного цикла не засчитываются новому
	sub.LastPaymentDate = nil
	sub.LastPaymentAmount = decimal.Zero

	return ss.refreshCharges(sub)
}

// AcceptByToken принимает подписку по токену. Операция строго однократна:
// из N одновременных вызовов с одним токеном ровно один переведет запись в
// GRACE_PERIOD, остальные получат ErrInvalidOrExpiredToken.
func (ss *SubscriptionService) AcceptByToken(token string) (*models.Subscription, error) {
	if token == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	now := ss.Now()

	sub, err := ss.Repo.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if sub.Status != models.SubscriptionStatusPendingAcceptance {
		return nil, ErrInvalidOrExpiredToken
	}
	if sub.TokenExpiresAt == nil || now.After(*sub.TokenExpiresAt) {
		return nil, ErrInvalidOrExpiredToken
	}

	deadline := now.AddDate(0, 0, PaidGraceDays)
	accepted := now

	sub.AcceptanceToken = nil
	sub.TokenExpiresAt = nil
	sub.AcceptedAt = &accepted
	sub.Status = models.SubscriptionStatusGracePeriod
	sub.GraceKind = models.GraceKindPaid
	sub.GracePeriodEndDate = &deadline
	sub.PaymentDueDate = &deadline

	if err := ss.refreshCharges(sub); err != nil {
		return nil, err
	}

	// Конфликт версии означает, что токен успел потребить параллельный
	// вызов: для второго вызова он уже недействителен. Повтор не выполняется.
	if err := ss.Repo.CompareAndSwap(sub); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, err
	}

	ss.recordHistory(sub.SchoolID, &sub.ID, nil, "accepted", sub.MonthlyCharges,
		fmt.Sprintf("Подписка принята, льготный период до %s", deadline.Format("02.01.2006")))

	return sub, nil
}

// ClaimFreeTrial активирует пробный период, минуя шаг с токеном
func (ss *SubscriptionService) ClaimFreeTrial(schoolID uuid.UUID) (*models.Subscription, error) {
	plan, err := ss.Catalog.GetTrialPlan()
	if err != nil {
		return nil, err
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if errors.Is(err, ErrNoSubscription) {
		sub = &models.Subscription{SchoolID: schoolID}
		if err := ss.applyTrialClaim(sub, plan, now); err != nil {
			return nil, err
		}
		if err := ss.Repo.Create(sub); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else {
		DeriveStatus(sub, now)
		if sub.IsAccepted() && !sub.IsTerminal() {
			return nil, ErrAlreadyActive
		}
		mutate := func(s *models.Subscription) error { return ss.applyTrialClaim(s, plan, now) }
		sub, err = ss.casWithRetry(sub, mutate)
		if err != nil {
			return nil, err
		}
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "trial_claimed", decimal.Zero,
		fmt.Sprintf("Активирован пробный период до %s, лимит %d единиц", sub.TrialEndDate.Format("02.01.2006"), sub.TrialMaxUnits))

	return sub, nil
}

// applyTrialClaim переводит запись в пробный льготный период
func (ss *SubscriptionService) applyTrialClaim(sub *models.Subscription, plan *models.PricingPlan, now time.Time) error {
	trialDays := plan.TrialDays
	if trialDays <= 0 {
		trialDays = 30
	}
	maxUnits := plan.TrialMaxUnits
	if maxUnits <= 0 {
		maxUnits = 100
	}

	start := now
	end := now.AddDate(0, 0, trialDays)
	accepted := now

	sub.PlanName = plan.Name
	sub.Status = models.SubscriptionStatusGracePeriod
	sub.GraceKind = models.GraceKindTrial
	sub.AcceptanceToken = nil
	sub.TokenExpiresAt = nil
	sub.AcceptedAt = &accepted
	sub.TrialStartDate = &start
	sub.TrialEndDate = &end
	sub.TrialMaxUnits = maxUnits
	// Окно пробного периода служит и дедлайном льготного периода
	sub.GracePeriodEndDate = &end
	sub.PaymentDueDate = &end
	sub.RenewalDate = nil
	sub.LastPaymentDate = nil
	sub.LastPaymentAmount = decimal.Zero

	return ss.refreshCharges(sub)
}

// UpgradeFromTrial переводит пробную подписку на платный тариф с новым
// пятидневным льготным периодом
func (ss *SubscriptionService) UpgradeFromTrial(schoolID uuid.UUID, newPlan string) (*models.Subscription, error) {
	plan, err := ss.Catalog.GetActive(newPlan)
	if err != nil {
		return nil, err
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, now)
	if !sub.IsFreeTrial() {
		return nil, ErrNotOnTrial
	}

	previousPlan := sub.PlanName
	mutate := func(s *models.Subscription) error {
		if !s.IsFreeTrial() {
			return ErrNotOnTrial
		}
		deadline := now.AddDate(0, 0, PaidGraceDays)
		s.PlanName = plan.Name
		s.GraceKind = models.GraceKindPaid
		s.TrialStartDate = nil
		s.TrialEndDate = nil
		s.TrialMaxUnits = 0
		s.GracePeriodEndDate = &deadline
		s.PaymentDueDate = &deadline
		return ss.refreshCharges(s)
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "trial_upgraded", sub.MonthlyCharges,
		fmt.Sprintf("Переход с пробного тарифа «%s» на «%s»", previousPlan, plan.Name))

	return sub, nil
}

// ChangePlan меняет тарифный план активной подписки с немедленным
// пересчетом начислений. Прежний план фиксируется в журнале для аудита.
func (ss *SubscriptionService) ChangePlan(schoolID uuid.UUID, newPlan string) (*models.Subscription, error) {
	plan, err := ss.Catalog.GetActive(newPlan)
	if err != nil {
		return nil, err
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, now)
	if sub.Status != models.SubscriptionStatusActive {
		return nil, ErrNotActive
	}

	previousPlan := sub.PlanName
	mutate := func(s *models.Subscription) error {
		if s.Status != models.SubscriptionStatusActive {
			return ErrNotActive
		}
		s.PlanName = plan.Name
		return ss.refreshCharges(s)
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "plan_changed", sub.MonthlyCharges,
		fmt.Sprintf("Смена тарифа: «%s» → «%s»", previousPlan, plan.Name))

	return sub, nil
}

// SetBillingCycle устанавливает цикл тарификации
func (ss *SubscriptionService) SetBillingCycle(schoolID uuid.UUID, cycle string) (*models.Subscription, error) {
	if !models.IsValidBillingCycle(cycle) {
		return nil, ErrInvalidBillingCycle
	}

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, ss.Now())

	mutate := func(s *models.Subscription) error {
		s.BillingCycle = cycle
		return ss.refreshCharges(s)
	}
	return ss.casWithRetry(sub, mutate)
}

// ConfirmPayment фиксирует факт платежа. Из льготного периода подписка
// становится активной; для активной подписки продлевается дата продления.
// Создание счета по платежу — мягкая операция: ее ошибка не откатывает
// переход.
func (ss *SubscriptionService) ConfirmPayment(schoolID uuid.UUID, amount decimal.Decimal, transactionID, paymentMethod string) (*models.Subscription, error) {
	if amount.LessThanOrEqual(decimal.Zero) || transactionID == "" {
		return nil, ErrMissingPaymentFields
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, now)

	mutate := func(s *models.Subscription) error {
		paymentDate := now
		s.LastPaymentAmount = amount
		s.LastPaymentDate = &paymentDate

		switch s.Status {
		case models.SubscriptionStatusGracePeriod:
			renewal := now.AddDate(0, 0, models.BillingCycleDays(s.BillingCycle))
			s.Status = models.SubscriptionStatusActive
			s.GraceKind = ""
			s.TrialStartDate = nil
			s.TrialEndDate = nil
			s.TrialMaxUnits = 0
			s.RenewalDate = &renewal
		case models.SubscriptionStatusActive:
			renewal := now.AddDate(0, 0, models.BillingCycleDays(s.BillingCycle))
			s.RenewalDate = &renewal
		}
		return ss.refreshCharges(s)
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	// Счет по платежу создается в лучшем случае: переход уже сохранен
	var invoiceID *uint
	if ss.Invoices != nil {
		invoice, invErr := ss.Invoices.CreatePaymentInvoice(sub, amount, transactionID, paymentMethod, now)
		if invErr != nil {
			log.Printf("⚠️  Ошибка создания счета по платежу %s: %v", transactionID, invErr)
		} else {
			invoiceID = &invoice.ID
		}
	}

	ss.recordHistory(schoolID, &sub.ID, invoiceID, "payment_received", amount,
		fmt.Sprintf("Получен платеж %s (транзакция %s)", amount.String(), transactionID))
	ss.notify(schoolID, models.NotificationTypePaymentReceived, map[string]interface{}{
		"PlanName":    sub.PlanName,
		"Amount":      amount.String(),
		"RenewalDate": formatDate(sub.RenewalDate),
	})

	return sub, nil
}

// ReadStatus возвращает статус подписки, предварительно повторно выводя его
// от текущего времени. Обнаруженный просроченный дедлайн сохраняется как
// побочный эффект чтения — фонового планировщика в системе нет.
func (ss *SubscriptionService) ReadStatus(schoolID uuid.UUID) (*models.Subscription, error) {
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}

	if DeriveStatus(sub, now) {
		if err := ss.Repo.CompareAndSwap(sub); err != nil {
			if errors.Is(err, ErrConflict) {
				// Запись изменил параллельный запрос: перечитываем и выводим заново
				sub, err = ss.Repo.GetBySchool(schoolID)
				if err != nil {
					return nil, err
				}
				if DeriveStatus(sub, now) {
					if casErr := ss.Repo.CompareAndSwap(sub); casErr != nil && !errors.Is(casErr, ErrConflict) {
						return nil, casErr
					}
				}
			} else {
				return nil, err
			}
		} else {
			ss.recordHistory(schoolID, &sub.ID, nil, "grace_expired", decimal.Zero,
				"Льготный период истек без оплаты, подписка переведена в PAYMENT_OVERDUE")
		}
	}

	return sub, nil
}

// SubscriptionDetails содержит подписку вместе с живыми счетчиками и
// пересчитанными начислениями
type SubscriptionDetails struct {
	Subscription *models.Subscription `json:"subscription"`
	Usage        UsageCounts          `json:"usage"`
	Charges      *ChargeTotals        `json:"charges"`
}

// GetDetails возвращает подписку, живые счетчики и начисления,
// пересчитанные калькулятором на момент вызова
func (ss *SubscriptionService) GetDetails(schoolID uuid.UUID) (*SubscriptionDetails, error) {
	sub, err := ss.ReadStatus(schoolID)
	if err != nil {
		return nil, err
	}

	usage, err := CollectUsage(ss.Usage, schoolID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счетчиков: %w", err)
	}

	plan, err := ss.Catalog.GetByName(sub.PlanName)
	if err != nil {
		return nil, err
	}

	charges, err := CalculateCharges(usage, plan)
	if err != nil {
		return nil, err
	}

	return &SubscriptionDetails{Subscription: sub, Usage: usage, Charges: charges}, nil
}

// ExtendGracePeriod продлевает дедлайн льготного периода на указанное число
// дней. Статус не меняется; лимит единиц пробного периода не расширяется.
func (ss *SubscriptionService) ExtendGracePeriod(schoolID uuid.UUID, days int) (*models.Subscription, error) {
	if days < 1 {
		return nil, ErrInvalidDays
	}
	now := ss.Now()

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, now)
	if sub.IsTerminal() {
		return nil, fmt.Errorf("подписка в терминальном статусе %s", sub.Status)
	}

	mutate := func(s *models.Subscription) error {
		if s.GracePeriodEndDate != nil {
			extended := s.GracePeriodEndDate.AddDate(0, 0, days)
			s.GracePeriodEndDate = &extended
		}
		if s.PaymentDueDate != nil {
			due := s.PaymentDueDate.AddDate(0, 0, days)
			s.PaymentDueDate = &due
		}
		if s.TrialEndDate != nil {
			trialEnd := s.TrialEndDate.AddDate(0, 0, days)
			s.TrialEndDate = &trialEnd
		}
		return nil
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "grace_extended", decimal.Zero,
		fmt.Sprintf("Льготный период продлен администратором на %d дн., новый дедлайн %s", days, formatDate(sub.GracePeriodEndDate)))

	return sub, nil
}

// Cancel переводит подписку в терминальный статус CANCELLED. Запись
// сохраняется для аудита.
func (ss *SubscriptionService) Cancel(schoolID uuid.UUID, reason string) (*models.Subscription, error) {
	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, ss.Now())
	if sub.IsTerminal() {
		return sub, nil
	}

	mutate := func(s *models.Subscription) error {
		s.Status = models.SubscriptionStatusCancelled
		s.GraceKind = ""
		s.AcceptanceToken = nil
		s.TokenExpiresAt = nil
		if reason != "" {
			s.Notes = reason
		}
		return nil
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "cancelled", decimal.Zero,
		fmt.Sprintf("Подписка отменена администратором. Причина: %s", reason))

	return sub, nil
}

// AdminOverride принудительно меняет статус, тариф и примечания подписки.
// Единственный путь в статус EXPIRED. Nil-поля не трогаются.
func (ss *SubscriptionService) AdminOverride(schoolID uuid.UUID, status, planName, notes *string) (*models.Subscription, error) {
	if status != nil && !models.IsValidSubscriptionStatus(*status) {
		return nil, ErrInvalidStatus
	}

	var plan *models.PricingPlan
	if planName != nil {
		var err error
		plan, err = ss.Catalog.GetByName(*planName)
		if err != nil {
			return nil, err
		}
	}

	sub, err := ss.Repo.GetBySchool(schoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(sub, ss.Now())
	prevStatus, prevPlan := sub.Status, sub.PlanName

	mutate := func(s *models.Subscription) error {
		if status != nil {
			s.Status = *status
			if s.IsTerminal() {
				s.GraceKind = ""
				s.AcceptanceToken = nil
				s.TokenExpiresAt = nil
			}
		}
		if plan != nil {
			s.PlanName = plan.Name
		}
		if notes != nil {
			s.Notes = *notes
		}
		if plan != nil {
			return ss.refreshCharges(s)
		}
		return nil
	}

	sub, err = ss.casWithRetry(sub, mutate)
	if err != nil {
		return nil, err
	}

	ss.recordHistory(schoolID, &sub.ID, nil, "admin_override", decimal.Zero,
		fmt.Sprintf("Администратор изменил подписку: статус %s → %s, тариф %s → %s", prevStatus, sub.Status, prevPlan, sub.PlanName))

	return sub, nil
}

// casWithRetry применяет мутацию и сохраняет запись через CompareAndSwap.
// Конфликт версии повторяется один раз со свежим чтением, после чего
// возвращается ErrConflict.
func (ss *SubscriptionService) casWithRetry(sub *models.Subscription, mutate func(*models.Subscription) error) (*models.Subscription, error) {
	if err := mutate(sub); err != nil {
		return nil, err
	}
	err := ss.Repo.CompareAndSwap(sub)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrConflict) {
		return nil, err
	}

	fresh, err := ss.Repo.GetBySchool(sub.SchoolID)
	if err != nil {
		return nil, err
	}
	DeriveStatus(fresh, ss.Now())
	if err := mutate(fresh); err != nil {
		return nil, err
	}
	if err := ss.Repo.CompareAndSwap(fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

// refreshCharges обновляет денормализованный снимок начислений от живых
// счетчиков. Вызывается при каждой мутации.
func (ss *SubscriptionService) refreshCharges(sub *models.Subscription) error {
	usage, err := CollectUsage(ss.Usage, sub.SchoolID)
	if err != nil {
		return fmt.Errorf("ошибка получения счетчиков: %w", err)
	}
	plan, err := ss.Catalog.GetByName(sub.PlanName)
	if err != nil {
		return err
	}
	charges, err := CalculateCharges(usage, plan)
	if err != nil {
		return err
	}
	sub.MonthlyCharges = charges.Monthly
	return nil
}

// recordHistory пишет операцию в журнал биллинга. Ошибка журнала не
// прерывает выполнение.
func (ss *SubscriptionService) recordHistory(schoolID uuid.UUID, subscriptionID, invoiceID *uint, operation string, amount decimal.Decimal, description string) {
	history := models.BillingHistory{
		SchoolID:       schoolID,
		SubscriptionID: subscriptionID,
		InvoiceID:      invoiceID,
		Operation:      operation,
		Amount:         amount,
		Description:    description,
		Status:         "completed",
	}
	if err := ss.Repo.DB().Create(&history).Error; err != nil {
		log.Printf("⚠️  Ошибка записи в журнал биллинга: %v", err)
	}
}

// notify отправляет уведомление в лучшем случае: ошибка логируется и
// никогда не влияет на результат перехода
func (ss *SubscriptionService) notify(schoolID uuid.UUID, notificationType string, data map[string]interface{}) {
	if ss.Notifier == nil {
		return
	}
	school, err := ss.Schools.Get(schoolID)
	if err != nil {
		log.Printf("⚠️  Уведомление %s не отправлено: %v", notificationType, err)
		return
	}
	data["SchoolName"] = school.Name

	recipient := Recipient{
		SchoolID:       school.ID,
		Email:          school.ContactEmail,
		Name:           school.ContactPerson,
		TelegramChatID: school.TelegramChatID,
	}
	if err := ss.Notifier.Send(recipient, notificationType, data); err != nil {
		log.Printf("⚠️  Уведомление %s не отправлено: %v", notificationType, err)
	}
}

func derefToken(token *string) string {
	if token == nil {
		return ""
	}
	return *token
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02.01.2006")
}
