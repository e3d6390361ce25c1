package services

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"backend_bilim/models"
	"backend_bilim/testutils"
)

// billingTestEnv собирает сервисный слой поверх SQLite в памяти с
// управляемым источником времени
type billingTestEnv struct {
	db       *gorm.DB
	service  *SubscriptionService
	invoices *InvoiceService
	repo     *SubscriptionRepository
	notifier *LogNotifier
	school   *models.School

	now time.Time
}

func newBillingTestEnv(t *testing.T) *billingTestEnv {
	db, err := testutils.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { testutils.CleanupTestDB(db) })

	// Одно соединение: конкурентные записи сериализуются, а не падают
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	env := &billingTestEnv{
		db:       db,
		repo:     NewSubscriptionRepository(db),
		notifier: &LogNotifier{},
		school:   testutils.CreateTestSchool(db),
		now:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NotNil(t, env.school)

	catalog := NewPlanCatalog(db)
	usage := NewGormUsageCounter(db)
	schools := NewGormSchoolDirectory(db)
	env.invoices = NewInvoiceService(db, catalog, usage)
	env.invoices.Now = func() time.Time { return env.now }
	env.service = NewSubscriptionService(env.repo, catalog, usage, schools, env.notifier, env.invoices)
	env.service.Now = func() time.Time { return env.now }

	return env
}

func (env *billingTestEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func TestSubscriptionService_SelectPlan(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	sub, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusPendingAcceptance, sub.Status)
	assert.Equal(t, "BASIC", sub.PlanName)
	require.NotNil(t, sub.AcceptanceToken)
	require.NotNil(t, sub.TokenExpiresAt)
	assert.Equal(t, env.now.Add(AcceptanceTokenTTL), *sub.TokenExpiresAt)

	// Без учеников и сотрудников начисления нулевые
	assert.True(t, sub.MonthlyCharges.IsZero())

	// Токен уходит в уведомлении о подтверждении
	require.Len(t, env.notifier.Sent, 1)
	assert.Equal(t, models.NotificationTypeSubscriptionConfirm, env.notifier.Sent[0].Type)
	assert.Equal(t, *sub.AcceptanceToken, env.notifier.Sent[0].Data["Token"])
}

func TestSubscriptionService_SelectPlan_UnknownPlan(t *testing.T) {
	env := newBillingTestEnv(t)

	_, err := env.service.SelectPlan(env.school.ID, "NONEXISTENT")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestSubscriptionService_SelectPlan_InactivePlan(t *testing.T) {
	env := newBillingTestEnv(t)
	plan := testutils.CreateTestPlan(env.db, "LEGACY", 300)
	require.NoError(t, env.db.Model(plan).Update("is_active", false).Error)

	_, err := env.service.SelectPlan(env.school.ID, "LEGACY")
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestSubscriptionService_SelectPlan_ReselectBeforeAcceptance(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	testutils.CreateTestPlan(env.db, "PREMIUM", 900)

	first, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	firstToken := *first.AcceptanceToken

	// Повторный выбор до принятия аннулирует прежний токен
	second, err := env.service.SelectPlan(env.school.ID, "PREMIUM")
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", second.PlanName)
	assert.NotEqual(t, firstToken, *second.AcceptanceToken)

	_, err = env.service.AcceptByToken(firstToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestSubscriptionService_AcceptByToken(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	sub, err := env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusGracePeriod, sub.Status)
	assert.Equal(t, models.GraceKindPaid, sub.GraceKind)
	assert.Nil(t, sub.AcceptanceToken)
	require.NotNil(t, sub.GracePeriodEndDate)
	assert.Equal(t, env.now.AddDate(0, 0, PaidGraceDays), *sub.GracePeriodEndDate)
	require.NotNil(t, sub.AcceptedAt)
	assert.Equal(t, env.now, *sub.AcceptedAt)
}

func TestSubscriptionService_AcceptByToken_Expired(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	env.advance(AcceptanceTokenTTL + time.Hour)

	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestSubscriptionService_AcceptByToken_ExactlyOnce(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	token := *selected.AcceptanceToken

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = env.service.AcceptByToken(token)
		}(i)
	}
	wg.Wait()

	// Ровно один вызов побеждает, остальные получают ошибку токена
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		}
	}
	assert.Equal(t, 1, succeeded)

	sub, err := env.repo.GetBySchool(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusGracePeriod, sub.Status)
}

func TestSubscriptionService_SelectPlan_AlreadyAccepted(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	_, err = env.service.SelectPlan(env.school.ID, "BASIC")
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestSubscriptionService_ChargesFollowUsage(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	require.NoError(t, testutils.SeedUsage(env.db, env.school.ID, 10, 2))

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	// (10 учеников + 2 сотрудника) * 500 = 6000
	assert.True(t, decimal.NewFromInt(6000).Equal(selected.MonthlyCharges),
		"ожидалось 6000, получено %s", selected.MonthlyCharges)

	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	details, err := env.service.GetDetails(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, details.Usage.Students)
	assert.Equal(t, 2, details.Usage.Staff)
	assert.True(t, decimal.NewFromInt(6000).Equal(details.Charges.Monthly))
	assert.True(t, decimal.NewFromInt(72000).Equal(details.Charges.Annual))
}

func TestSubscriptionService_ConfirmPayment(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	require.NoError(t, testutils.SeedUsage(env.db, env.school.ID, 10, 2))

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	sub, err := env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(6000), "TXN-001", "kaspi")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Empty(t, sub.GraceKind)
	require.NotNil(t, sub.RenewalDate)
	assert.Equal(t, env.now.AddDate(0, 0, 30), *sub.RenewalDate)
	require.NotNil(t, sub.LastPaymentDate)
	assert.True(t, decimal.NewFromInt(6000).Equal(sub.LastPaymentAmount))

	// По платежу создан завершенный счет на сумму платежа
	var invoice models.Invoice
	require.NoError(t, env.db.Where("school_id = ? AND transaction_id = ?", env.school.ID, "TXN-001").First(&invoice).Error)
	assert.Equal(t, models.InvoiceStatusCompleted, invoice.Status)
	assert.True(t, decimal.NewFromInt(6000).Equal(invoice.TotalAmount))
}

func TestSubscriptionService_ConfirmPayment_MissingFields(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	_, err = env.service.ConfirmPayment(env.school.ID, decimal.Zero, "TXN-002", "kaspi")
	assert.ErrorIs(t, err, ErrMissingPaymentFields)

	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "", "kaspi")
	assert.ErrorIs(t, err, ErrMissingPaymentFields)
}

func TestSubscriptionService_ConfirmPayment_RenewsActive(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-001", "kaspi")
	require.NoError(t, err)

	env.advance(10 * 24 * time.Hour)

	sub, err := env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-002", "kaspi")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, env.now.AddDate(0, 0, 30), *sub.RenewalDate)
}

func TestSubscriptionService_FreeTrialAndUpgrade(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestTrialPlan(env.db)
	testutils.CreateTestPlan(env.db, "PREMIUM", 900)

	sub, err := env.service.ClaimFreeTrial(env.school.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusGracePeriod, sub.Status)
	assert.Equal(t, models.GraceKindTrial, sub.GraceKind)
	assert.Equal(t, 100, sub.TrialMaxUnits)
	require.NotNil(t, sub.TrialEndDate)
	assert.Equal(t, env.now.AddDate(0, 0, 30), *sub.TrialEndDate)
	assert.Equal(t, *sub.TrialEndDate, *sub.GracePeriodEndDate)

	// Переход на платный тариф очищает пробные поля и дает 5 дней на оплату
	upgraded, err := env.service.UpgradeFromTrial(env.school.ID, "PREMIUM")
	require.NoError(t, err)

	assert.Equal(t, models.SubscriptionStatusGracePeriod, upgraded.Status)
	assert.Equal(t, models.GraceKindPaid, upgraded.GraceKind)
	assert.Equal(t, "PREMIUM", upgraded.PlanName)
	assert.Nil(t, upgraded.TrialStartDate)
	assert.Nil(t, upgraded.TrialEndDate)
	assert.Equal(t, 0, upgraded.TrialMaxUnits)
	assert.Equal(t, env.now.AddDate(0, 0, PaidGraceDays), *upgraded.GracePeriodEndDate)
}

func TestSubscriptionService_UpgradeFromTrial_NotOnTrial(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	testutils.CreateTestPlan(env.db, "PREMIUM", 900)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	_, err = env.service.UpgradeFromTrial(env.school.ID, "PREMIUM")
	assert.ErrorIs(t, err, ErrNotOnTrial)
}

func TestSubscriptionService_ReadStatus_FlipsOverdue(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	// Дедлайн льготного периода прошел без оплаты
	env.advance(time.Duration(PaidGraceDays+1) * 24 * time.Hour)

	sub, err := env.service.ReadStatus(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaymentOverdue, sub.Status)

	// Переход сохранен, повторное чтение идемпотентно
	persisted, err := env.repo.GetBySchool(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaymentOverdue, persisted.Status)

	again, err := env.service.ReadStatus(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaymentOverdue, again.Status)
}

func TestSubscriptionService_ReadStatus_PaymentBeatsDeadline(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-001", "kaspi")
	require.NoError(t, err)

	env.advance(time.Duration(PaidGraceDays+1) * 24 * time.Hour)

	sub, err := env.service.ReadStatus(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestSubscriptionService_ChangePlan(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	testutils.CreateTestPlan(env.db, "PREMIUM", 900)
	require.NoError(t, testutils.SeedUsage(env.db, env.school.ID, 4, 1))

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	// Смена тарифа доступна только активной подписке
	_, err = env.service.ChangePlan(env.school.ID, "PREMIUM")
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(2500), "TXN-001", "kaspi")
	require.NoError(t, err)

	sub, err := env.service.ChangePlan(env.school.ID, "PREMIUM")
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", sub.PlanName)
	// Начисления немедленно пересчитаны: 5 * 900 = 4500
	assert.True(t, decimal.NewFromInt(4500).Equal(sub.MonthlyCharges))
}

func TestSubscriptionService_SetBillingCycle(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	_, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	_, err = env.service.SetBillingCycle(env.school.ID, "weekly")
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)

	sub, err := env.service.SetBillingCycle(env.school.ID, models.BillingCycleQuarterly)
	require.NoError(t, err)
	assert.Equal(t, models.BillingCycleQuarterly, sub.BillingCycle)
}

func TestSubscriptionService_ExtendGracePeriod(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	accepted, err := env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	originalDeadline := *accepted.GracePeriodEndDate

	_, err = env.service.ExtendGracePeriod(env.school.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidDays)

	sub, err := env.service.ExtendGracePeriod(env.school.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusGracePeriod, sub.Status)
	assert.WithinDuration(t, originalDeadline.AddDate(0, 0, 7), *sub.GracePeriodEndDate, time.Second)
}

func TestSubscriptionService_ExtendGracePeriod_TrialKeepsCeiling(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestTrialPlan(env.db)

	claimed, err := env.service.ClaimFreeTrial(env.school.ID)
	require.NoError(t, err)
	originalEnd := *claimed.TrialEndDate

	sub, err := env.service.ExtendGracePeriod(env.school.ID, 10)
	require.NoError(t, err)

	// Продление двигает окно, но не расширяет лимит единиц
	assert.WithinDuration(t, originalEnd.AddDate(0, 0, 10), *sub.TrialEndDate, time.Second)
	assert.Equal(t, 100, sub.TrialMaxUnits)
	assert.Equal(t, models.GraceKindTrial, sub.GraceKind)
}

func TestSubscriptionService_Cancel(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	_, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)

	sub, err := env.service.Cancel(env.school.ID, "не устроили условия")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.Equal(t, "не устроили условия", sub.Notes)

	// Повторная отмена идемпотентна
	again, err := env.service.Cancel(env.school.ID, "повтор")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, again.Status)
	assert.Equal(t, "не устроили условия", again.Notes)

	// После отмены можно выбрать план заново
	reselected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPendingAcceptance, reselected.Status)
}

func TestSubscriptionService_ReadStatus_NoSubscription(t *testing.T) {
	env := newBillingTestEnv(t)

	_, err := env.service.ReadStatus(env.school.ID)
	assert.ErrorIs(t, err, ErrNoSubscription)
}

func TestSubscriptionService_HistoryJournal(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-001", "kaspi")
	require.NoError(t, err)

	var operations []string
	require.NoError(t, env.db.Model(&models.BillingHistory{}).
		Where("school_id = ?", env.school.ID).
		Order("id ASC").Pluck("operation", &operations).Error)
	assert.Equal(t, []string{"plan_selected", "accepted", "payment_received"}, operations)
}

func TestSubscriptionService_AdminOverride(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	testutils.CreateTestPlan(env.db, "PREMIUM", 900)
	require.NoError(t, testutils.SeedUsage(env.db, env.school.ID, 5, 0))

	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)

	badStatus := "FROZEN"
	_, err = env.service.AdminOverride(env.school.ID, &badStatus, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	// Смена тарифа пересчитывает снимок начислений
	premium := "PREMIUM"
	sub, err := env.service.AdminOverride(env.school.ID, nil, &premium, nil)
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM", sub.PlanName)
	assert.True(t, decimal.NewFromInt(4500).Equal(sub.MonthlyCharges))

	// EXPIRED достижим только через ручное изменение
	expired := models.SubscriptionStatusExpired
	notes := "договор не продлен"
	sub, err = env.service.AdminOverride(env.school.ID, &expired, nil, &notes)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, sub.Status)
	assert.Equal(t, "договор не продлен", sub.Notes)
	assert.Nil(t, sub.AcceptanceToken)

	var operations []string
	require.NoError(t, env.db.Model(&models.BillingHistory{}).
		Where("school_id = ? AND operation = ?", env.school.ID, "admin_override").
		Pluck("operation", &operations).Error)
	assert.Len(t, operations, 2)
}

func TestSubscriptionService_ReselectAfterPayment_OverdueStillDerived(t *testing.T) {
	env := newBillingTestEnv(t)
	testutils.CreateTestPlan(env.db, "BASIC", 500)

	// Первый жизненный цикл: выбор, принятие, оплата, отмена
	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	_, err = env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	_, err = env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-001", "kaspi")
	require.NoError(t, err)
	_, err = env.service.Cancel(env.school.ID, "смена условий")
	require.NoError(t, err)

	// Второй жизненный цикл на той же записи
	reselected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	assert.Nil(t, reselected.LastPaymentDate)
	assert.True(t, reselected.LastPaymentAmount.IsZero())

	sub, err := env.service.AcceptByToken(*reselected.AcceptanceToken)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusGracePeriod, sub.Status)

	// Платеж прошлого цикла не спасает новый льготный период от просрочки
	env.advance(6 * 24 * time.Hour)
	sub, err = env.service.ReadStatus(env.school.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaymentOverdue, sub.Status)
}
