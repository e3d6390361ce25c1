package services

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"backend_bilim/database"
	"backend_bilim/models"
)

// Пороги напоминаний в днях до дедлайна льготного периода
const (
	reminderDay3Threshold     = 3
	reminderCriticalThreshold = 1
)

// ReminderPassResult содержит итоги одного прохода напоминаний
type ReminderPassResult struct {
	Scanned  int `json:"scanned"`
	Sent     int `json:"sent"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Overdues int `json:"overdue_invoices"`
}

// ReminderService выполняет проход напоминаний по подпискам в льготном
// периоде. Сервис не планирует сам себя: проход запускается внешним
// триггером (административный запрос) либо, опционально, cron-оберткой.
// Идемпотентность обеспечивается только записями о напоминаниях: повторный
// проход в ту же минуту ничего не отправит повторно.
type ReminderService struct {
	Repo     *SubscriptionRepository
	Schools  SchoolDirectory
	Notifier Notifier
	Invoices *InvoiceService

	cron *cron.Cron
}

// NewReminderService создает новый экземпляр ReminderService
func NewReminderService(repo *SubscriptionRepository, schools SchoolDirectory, notifier Notifier, invoices *InvoiceService) *ReminderService {
	return &ReminderService{Repo: repo, Schools: schools, Notifier: notifier, Invoices: invoices}
}

// RunReminderPass сканирует подписки в льготном периоде и отправляет
// пороговые напоминания. Ошибки по отдельным заведениям логируются и не
// прерывают обработку остальных.
func (rs *ReminderService) RunReminderPass(now time.Time) (*ReminderPassResult, error) {
	// Блокировка от параллельных проходов. Потеря блокировки не опасна:
	// повторную отправку исключают записи о напоминаниях.
	unlock, acquired := database.TryLock("billing:reminder_pass", 5*time.Minute)
	if !acquired {
		return nil, fmt.Errorf("проход напоминаний уже выполняется")
	}
	defer unlock()

	subs, err := rs.Repo.ListInGracePeriod()
	if err != nil {
		return nil, err
	}

	result := &ReminderPassResult{Scanned: len(subs)}
	for i := range subs {
		sub := &subs[i]
		days := sub.GraceDaysRemaining(now)

		var reminderType, notificationType string
		switch days {
		case reminderDay3Threshold:
			reminderType = models.ReminderTypeDay3
			notificationType = models.NotificationTypeReminderDay3
		case reminderCriticalThreshold:
			reminderType = models.ReminderTypeCritical
			notificationType = models.NotificationTypeReminderCritical
		default:
			result.Skipped++
			continue
		}

		if sub.HasReminder(reminderType) {
			result.Skipped++
			continue
		}

		// Сначала условная запись: только записавший проход отправляет
		appended, err := rs.Repo.AppendReminder(sub.ID, reminderType, now)
		if err != nil {
			log.Printf("⚠️  Ошибка записи напоминания %s для заведения %s: %v", reminderType, sub.SchoolID, err)
			result.Failed++
			continue
		}
		if !appended {
			result.Skipped++
			continue
		}

		if err := rs.sendReminder(sub, notificationType, days); err != nil {
			log.Printf("⚠️  Напоминание %s для заведения %s не отправлено: %v", reminderType, sub.SchoolID, err)
			result.Failed++
			continue
		}

		rs.recordReminderHistory(sub, reminderType)
		result.Sent++
	}

	// Попутно помечаем просроченные счета
	if rs.Invoices != nil {
		overdue, err := rs.Invoices.SweepOverdue(now)
		if err != nil {
			log.Printf("⚠️  Ошибка пометки просроченных счетов: %v", err)
		} else {
			result.Overdues = int(overdue)
		}
	}

	return result, nil
}

// sendReminder отправляет одно пороговое напоминание
func (rs *ReminderService) sendReminder(sub *models.Subscription, notificationType string, daysRemaining int) error {
	school, err := rs.Schools.Get(sub.SchoolID)
	if err != nil {
		return err
	}

	recipient := Recipient{
		SchoolID:       school.ID,
		Email:          school.ContactEmail,
		Name:           school.ContactPerson,
		TelegramChatID: school.TelegramChatID,
	}
	return rs.Notifier.Send(recipient, notificationType, map[string]interface{}{
		"SchoolName":    school.Name,
		"PlanName":      sub.PlanName,
		"Deadline":      formatDate(sub.GracePeriodEndDate),
		"DaysRemaining": daysRemaining,
	})
}

// recordReminderHistory пишет отправленное напоминание в журнал биллинга
func (rs *ReminderService) recordReminderHistory(sub *models.Subscription, reminderType string) {
	history := models.BillingHistory{
		SchoolID:       sub.SchoolID,
		SubscriptionID: &sub.ID,
		Operation:      "reminder_sent",
		Amount:         decimal.Zero,
		Description:    fmt.Sprintf("Отправлено напоминание %s, дедлайн %s", reminderType, formatDate(sub.GracePeriodEndDate)),
		Status:         "completed",
	}
	if err := rs.Repo.DB().Create(&history).Error; err != nil {
		log.Printf("⚠️  Ошибка записи в журнал биллинга: %v", err)
	}
}

// StartCron включает опциональный периодический запуск прохода. Ленивая
// проверка дедлайнов на чтении остается источником корректности, cron —
// лишь удобство эксплуатации.
func (rs *ReminderService) StartCron(spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if _, err := rs.RunReminderPass(time.Now()); err != nil {
			log.Printf("⚠️  Проход напоминаний завершился с ошибкой: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка настройки расписания напоминаний: %w", err)
	}
	c.Start()
	rs.cron = c
	log.Printf("✅ Периодический проход напоминаний включен: %s", spec)
	return nil
}

// StopCron останавливает периодический запуск
func (rs *ReminderService) StopCron() {
	if rs.cron != nil {
		rs.cron.Stop()
	}
}
