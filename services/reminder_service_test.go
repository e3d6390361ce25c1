package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_bilim/models"
	"backend_bilim/testutils"
)

func newReminderTestEnv(t *testing.T) (*billingTestEnv, *ReminderService) {
	env := newBillingTestEnv(t)
	schools := NewGormSchoolDirectory(env.db)
	reminders := NewReminderService(env.repo, schools, env.notifier, env.invoices)
	return env, reminders
}

// setupGraceSubscription доводит подписку до льготного периода с дедлайном
// через 5 дней от env.now
func setupGraceSubscription(t *testing.T, env *billingTestEnv) *models.Subscription {
	testutils.CreateTestPlan(env.db, "BASIC", 500)
	selected, err := env.service.SelectPlan(env.school.ID, "BASIC")
	require.NoError(t, err)
	sub, err := env.service.AcceptByToken(*selected.AcceptanceToken)
	require.NoError(t, err)
	env.notifier.Sent = nil
	return sub
}

func TestReminderService_Day3Reminder(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	// За 3 дня до дедлайна отправляется первое напоминание
	env.advance(2 * 24 * time.Hour)

	result, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, env.notifier.Sent, 1)
	assert.Equal(t, models.NotificationTypeReminderDay3, env.notifier.Sent[0].Type)
	assert.Equal(t, 3, env.notifier.Sent[0].Data["DaysRemaining"])
}

func TestReminderService_PassIsIdempotent(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	env.advance(2 * 24 * time.Hour)

	first, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	// Повторный проход в тот же момент ничего не отправляет
	second, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, env.notifier.Sent, 1)
}

func TestReminderService_CriticalReminder(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	// День 3: первое напоминание
	env.advance(2 * 24 * time.Hour)
	_, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)

	// За день до дедлайна: критическое напоминание
	env.advance(2 * 24 * time.Hour)
	result, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)

	require.Len(t, env.notifier.Sent, 2)
	assert.Equal(t, models.NotificationTypeReminderCritical, env.notifier.Sent[1].Type)
	assert.Equal(t, 1, env.notifier.Sent[1].Data["DaysRemaining"])

	// Оба типа зафиксированы, третий проход молчит
	again, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Sent)
}

func TestReminderService_SkipsOutsideThresholds(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	// До порогов еще далеко: осталось 5 дней
	result, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, env.notifier.Sent)
}

func TestReminderService_PaidSubscriptionNotScanned(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	_, err := env.service.ConfirmPayment(env.school.ID, decimal.NewFromInt(100), "TXN-001", "kaspi")
	require.NoError(t, err)
	env.notifier.Sent = nil

	env.advance(2 * 24 * time.Hour)

	result, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Empty(t, env.notifier.Sent)
}

func TestReminderService_RecordsHistory(t *testing.T) {
	env, reminders := newReminderTestEnv(t)
	setupGraceSubscription(t, env)

	env.advance(2 * 24 * time.Hour)
	_, err := reminders.RunReminderPass(env.now)
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Model(&models.BillingHistory{}).
		Where("school_id = ? AND operation = ?", env.school.ID, "reminder_sent").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
