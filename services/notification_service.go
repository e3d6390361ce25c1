package services

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// Recipient описывает получателя биллингового уведомления
type Recipient struct {
	SchoolID       uuid.UUID
	Email          string
	Name           string
	TelegramChatID int64
}

// Notifier — порт отправки уведомлений. Отправка выполняется по принципу
// "отправил и забыл": вызывающая сторона логирует ошибку, но переход
// состояния подписки от результата отправки не зависит.
type Notifier interface {
	Send(recipient Recipient, notificationType string, data map[string]interface{}) error
}

// SMTPConfig содержит настройки почтового канала
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// NotificationService отправляет уведомления по шаблонам из БД и пишет
// каждую попытку в журнал notification_logs
type NotificationService struct {
	DB          *gorm.DB
	smtp        SMTPConfig
	telegramBot *tgbotapi.BotAPI
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(db *gorm.DB, smtpCfg SMTPConfig, telegramToken string) *NotificationService {
	ns := &NotificationService{DB: db, smtp: smtpCfg}

	if telegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(telegramToken)
		if err != nil {
			log.Printf("⚠️  Telegram-бот недоступен, канал отключен: %v", err)
		} else {
			ns.telegramBot = bot
		}
	}

	return ns
}

// Send отправляет уведомление по всем доступным каналам получателя.
// Успехом считается доставка хотя бы по одному каналу.
func (ns *NotificationService) Send(recipient Recipient, notificationType string, data map[string]interface{}) error {
	var errs []error
	delivered := false

	if recipient.Email != "" {
		if err := ns.sendChannel(recipient, notificationType, "email", data); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		} else {
			delivered = true
		}
	}

	if recipient.TelegramChatID != 0 && ns.telegramBot != nil {
		if err := ns.sendChannel(recipient, notificationType, "telegram", data); err != nil {
			errs = append(errs, fmt.Errorf("telegram: %w", err))
		} else {
			delivered = true
		}
	}

	if delivered {
		return nil
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return fmt.Errorf("у получателя нет доступных каналов уведомлений")
}

// sendChannel отправляет уведомление по одному каналу и журналирует попытку
func (ns *NotificationService) sendChannel(recipient Recipient, notificationType, channel string, data map[string]interface{}) error {
	tmpl, err := ns.getTemplate(notificationType, channel)
	if err != nil {
		return fmt.Errorf("шаблон не найден: %w", err)
	}

	subject, message, err := renderTemplate(tmpl, data)
	if err != nil {
		return fmt.Errorf("ошибка рендеринга шаблона: %w", err)
	}

	logEntry := models.NotificationLog{
		Type:      notificationType,
		Channel:   channel,
		Subject:   subject,
		Message:   message,
		Status:    "pending",
		SchoolID:  recipient.SchoolID,
		Recipient: recipient.Email,
	}

	var sendErr error
	switch channel {
	case "email":
		sendErr = ns.sendEmail(recipient.Email, subject, message)
	case "telegram":
		logEntry.Recipient = fmt.Sprintf("chat:%d", recipient.TelegramChatID)
		sendErr = ns.sendTelegram(recipient.TelegramChatID, message)
	default:
		sendErr = fmt.Errorf("неизвестный канал: %s", channel)
	}

	if sendErr != nil {
		logEntry.Status = "failed"
		logEntry.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		logEntry.Status = "sent"
		logEntry.SentAt = &now
	}

	if err := ns.DB.Create(&logEntry).Error; err != nil {
		log.Printf("⚠️  Ошибка записи в журнал уведомлений: %v", err)
	}

	return sendErr
}

// getTemplate получает активный шаблон уведомления
func (ns *NotificationService) getTemplate(notificationType, channel string) (*models.NotificationTemplate, error) {
	var tmpl models.NotificationTemplate
	err := ns.DB.Where("type = ? AND channel = ? AND is_active = ?", notificationType, channel, true).
		First(&tmpl).Error
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// renderTemplate рендерит тему и текст сообщения
func renderTemplate(tmpl *models.NotificationTemplate, data map[string]interface{}) (string, string, error) {
	var subject string
	if tmpl.Subject != "" {
		subjectTmpl, err := template.New("subject").Parse(tmpl.Subject)
		if err != nil {
			return "", "", fmt.Errorf("ошибка парсинга темы: %w", err)
		}
		var buf bytes.Buffer
		if err := subjectTmpl.Execute(&buf, data); err != nil {
			return "", "", fmt.Errorf("ошибка рендеринга темы: %w", err)
		}
		subject = buf.String()
	}

	messageTmpl, err := template.New("message").Parse(tmpl.Template)
	if err != nil {
		return "", "", fmt.Errorf("ошибка парсинга шаблона: %w", err)
	}
	var buf bytes.Buffer
	if err := messageTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("ошибка рендеринга сообщения: %w", err)
	}

	return subject, buf.String(), nil
}

// sendEmail отправляет письмо через SMTP
func (ns *NotificationService) sendEmail(to, subject, body string) error {
	if ns.smtp.Host == "" {
		return fmt.Errorf("SMTP не настроен")
	}

	addr := fmt.Sprintf("%s:%d", ns.smtp.Host, ns.smtp.Port)
	from := ns.smtp.FromEmail

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		ns.smtp.FromName, from, to, subject, body)

	var auth smtp.Auth
	if ns.smtp.Username != "" {
		auth = smtp.PlainAuth("", ns.smtp.Username, ns.smtp.Password, ns.smtp.Host)
	}

	if err := smtp.SendMail(addr, auth, from, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("ошибка отправки письма: %w", err)
	}
	return nil
}

// sendTelegram отправляет сообщение в Telegram-чат
func (ns *NotificationService) sendTelegram(chatID int64, message string) error {
	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := ns.telegramBot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки в Telegram: %w", err)
	}
	return nil
}

// SeedDefaultTemplates создает стандартные шаблоны биллинговых уведомлений,
// если их еще нет
func SeedDefaultTemplates(db *gorm.DB) error {
	defaults := []models.NotificationTemplate{
		{
			Name:     "billing_confirm_email",
			Type:     models.NotificationTypeSubscriptionConfirm,
			Channel:  "email",
			Subject:  "Подтвердите подписку на тариф {{.PlanName}}",
			Template: "<p>Здравствуйте, {{.SchoolName}}!</p><p>Для активации тарифа «{{.PlanName}}» подтвердите подписку по токену: <b>{{.Token}}</b>. Токен действителен 24 часа.</p>",
		},
		{
			Name:     "billing_reminder_day3_email",
			Type:     models.NotificationTypeReminderDay3,
			Channel:  "email",
			Subject:  "До окончания льготного периода осталось 3 дня",
			Template: "<p>{{.SchoolName}}, льготный период по тарифу «{{.PlanName}}» заканчивается {{.Deadline}}. Осталось дней: {{.DaysRemaining}}.</p>",
		},
		{
			Name:     "billing_reminder_critical_email",
			Type:     models.NotificationTypeReminderCritical,
			Channel:  "email",
			Subject:  "Завтра заканчивается льготный период",
			Template: "<p>{{.SchoolName}}, завтра ({{.Deadline}}) заканчивается льготный период по тарифу «{{.PlanName}}». Подтвердите оплату, чтобы не потерять доступ.</p>",
		},
		{
			Name:     "billing_payment_received_email",
			Type:     models.NotificationTypePaymentReceived,
			Channel:  "email",
			Subject:  "Платеж получен",
			Template: "<p>{{.SchoolName}}, платеж на сумму {{.Amount}} {{.Currency}} получен. Подписка на тариф «{{.PlanName}}» активна до {{.RenewalDate}}.</p>",
		},
	}

	for _, tmpl := range defaults {
		var count int64
		db.Model(&models.NotificationTemplate{}).Where("name = ?", tmpl.Name).Count(&count)
		if count > 0 {
			continue
		}
		if err := db.Create(&tmpl).Error; err != nil {
			return fmt.Errorf("ошибка создания шаблона %s: %w", tmpl.Name, err)
		}
	}
	return nil
}

// LogNotifier пишет уведомления только в журнал. Используется в тестах и
// при выключенных внешних каналах.
type LogNotifier struct {
	Sent []SentNotification
}

// SentNotification фиксирует одно отправленное уведомление
type SentNotification struct {
	Recipient Recipient
	Type      string
	Data      map[string]interface{}
}

// Send сохраняет уведомление в память
func (ln *LogNotifier) Send(recipient Recipient, notificationType string, data map[string]interface{}) error {
	ln.Sent = append(ln.Sent, SentNotification{Recipient: recipient, Type: notificationType, Data: data})
	return nil
}
