package services

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// Срок оплаты счета в днях
const InvoiceDueDays = 30

// InvoiceService создает и обслуживает счета. Счет — неизменяемый снимок
// подписки и счетчиков на момент выставления; подписку сервис никогда не
// мутирует.
type InvoiceService struct {
	db      *gorm.DB
	catalog *PlanCatalog
	usage   UsageCounter

	// Источник времени, подменяется в тестах
	Now func() time.Time
}

// NewInvoiceService создает новый экземпляр InvoiceService
func NewInvoiceService(db *gorm.DB, catalog *PlanCatalog, usage UsageCounter) *InvoiceService {
	return &InvoiceService{db: db, catalog: catalog, usage: usage, Now: time.Now}
}

// Generate выставляет счет по текущему состоянию подписки и живым
// счетчикам. Номер счета уникален даже при одновременной генерации;
// коллизия считается повторяемой ошибкой и повторяется один раз.
func (is *InvoiceService) Generate(sub *models.Subscription) (*models.Invoice, error) {
	plan, err := is.catalog.GetByName(sub.PlanName)
	if err != nil {
		return nil, err
	}
	usage, err := CollectUsage(is.usage, sub.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счетчиков: %w", err)
	}
	charges, err := CalculateCharges(usage, plan)
	if err != nil {
		return nil, err
	}

	now := is.Now()
	periodEnd := now.AddDate(0, 0, models.BillingCycleDays(sub.BillingCycle))
	subtotal := charges.ChargeForCycle(sub.BillingCycle)

	invoice := &models.Invoice{
		Title:              fmt.Sprintf("Счет за подписку «%s»", plan.Name),
		InvoiceDate:        now,
		DueDate:            now.AddDate(0, 0, InvoiceDueDays),
		SchoolID:           sub.SchoolID,
		SubscriptionID:     sub.ID,
		PlanName:           plan.Name,
		BillingPeriodStart: now,
		BillingPeriodEnd:   periodEnd,
		UnitCount:          usage.Total(),
		PricePerUnit:       plan.PricePerUnit,
		SubtotalAmount:     subtotal,
		TaxAmount:          decimal.Zero,
		DiscountAmount:     decimal.Zero,
		TotalAmount:        subtotal,
		Currency:           plan.Currency,
		Status:             models.InvoiceStatusSent,
		Items: []models.InvoiceItem{
			{
				Name:      "Ученики",
				Category:  UsageCategoryStudents,
				Quantity:  usage.Students,
				UnitPrice: plan.PricePerUnit,
				Amount:    plan.PricePerUnit.Mul(decimal.NewFromInt(int64(usage.Students))),
			},
			{
				Name:      "Сотрудники",
				Category:  UsageCategoryStaff,
				Quantity:  usage.Staff,
				UnitPrice: plan.PricePerUnit,
				Amount:    plan.PricePerUnit.Mul(decimal.NewFromInt(int64(usage.Staff))),
			},
		},
	}

	if err := is.createWithUniqueNumber(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// CreatePaymentInvoice создает счет по факту подтвержденного платежа со
// статусом COMPLETED
func (is *InvoiceService) CreatePaymentInvoice(sub *models.Subscription, amount decimal.Decimal, transactionID, paymentMethod string, paidAt time.Time) (*models.Invoice, error) {
	plan, err := is.catalog.GetByName(sub.PlanName)
	if err != nil {
		return nil, err
	}
	usage, err := CollectUsage(is.usage, sub.SchoolID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счетчиков: %w", err)
	}

	periodEnd := paidAt.AddDate(0, 0, models.BillingCycleDays(sub.BillingCycle))

	invoice := &models.Invoice{
		Title:              fmt.Sprintf("Оплата подписки «%s»", plan.Name),
		InvoiceDate:        paidAt,
		DueDate:            paidAt,
		SchoolID:           sub.SchoolID,
		SubscriptionID:     sub.ID,
		PlanName:           plan.Name,
		BillingPeriodStart: paidAt,
		BillingPeriodEnd:   periodEnd,
		UnitCount:          usage.Total(),
		PricePerUnit:       plan.PricePerUnit,
		SubtotalAmount:     amount,
		TaxAmount:          decimal.Zero,
		DiscountAmount:     decimal.Zero,
		TotalAmount:        amount,
		Currency:           plan.Currency,
		Status:             models.InvoiceStatusCompleted,
		TransactionID:      transactionID,
		PaymentMethod:      paymentMethod,
		PaidAt:             &paidAt,
	}

	if err := is.createWithUniqueNumber(invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// createWithUniqueNumber сохраняет счет, выводя номер из идентификатора
// заведения и наносекундной метки времени. При коллизии уникального
// индекса выполняется один повтор со свежей меткой.
func (is *InvoiceService) createWithUniqueNumber(invoice *models.Invoice) error {
	for attempt := 0; attempt < 2; attempt++ {
		stamp := is.Now()
		if attempt > 0 {
			// Повтор берет настенные часы: инжектированные могли не сдвинуться
			stamp = time.Now()
		}
		invoice.Number = buildInvoiceNumber(invoice.SchoolID, stamp)
		err := is.db.Create(invoice).Error
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return fmt.Errorf("ошибка создания счета: %w", err)
		}
		log.Printf("⚠️  Коллизия номера счета %s, повтор генерации", invoice.Number)
	}
	return fmt.Errorf("не удалось сгенерировать уникальный номер счета")
}

// buildInvoiceNumber формирует номер вида INV-<школа>-<наносекунды>
func buildInvoiceNumber(schoolID uuid.UUID, now time.Time) string {
	short := strings.ReplaceAll(schoolID.String(), "-", "")[:8]
	return fmt.Sprintf("INV-%s-%d", strings.ToUpper(short), now.UnixNano())
}

// isUniqueViolation распознает нарушение уникального индекса в Postgres и
// SQLite
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// List возвращает счета учебного заведения, новые первыми
func (is *InvoiceService) List(schoolID uuid.UUID) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := is.db.Preload("Items").
		Where("school_id = ?", schoolID).
		Order("invoice_date DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счетов: %w", err)
	}
	return invoices, nil
}

// Get возвращает счет заведения и отмечает просмотр отправленного счета
func (is *InvoiceService) Get(schoolID uuid.UUID, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := is.db.Preload("Items").
		Where("id = ? AND school_id = ?", invoiceID, schoolID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("счет не найден")
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения счета: %w", err)
	}

	if invoice.Status == models.InvoiceStatusSent {
		if err := is.db.Model(&invoice).Update("status", models.InvoiceStatusViewed).Error; err != nil {
			log.Printf("⚠️  Ошибка отметки просмотра счета %s: %v", invoice.Number, err)
		} else {
			invoice.Status = models.InvoiceStatusViewed
		}
	}

	return &invoice, nil
}

// SweepOverdue помечает просроченными отправленные и просмотренные счета с
// истекшим сроком оплаты
func (is *InvoiceService) SweepOverdue(now time.Time) (int64, error) {
	result := is.db.Model(&models.Invoice{}).
		Where("due_date < ? AND status IN ?", now, []string{models.InvoiceStatusSent, models.InvoiceStatusViewed}).
		Update("status", models.InvoiceStatusOverdue)
	if result.Error != nil {
		return 0, fmt.Errorf("ошибка обновления просроченных счетов: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// InvoiceStatistics содержит агрегаты по счетам заведения за год
type InvoiceStatistics struct {
	SchoolID          uuid.UUID       `json:"school_id"`
	Year              int             `json:"year"`
	TotalInvoices     int             `json:"total_invoices"`
	PaidInvoices      int             `json:"paid_invoices"`
	PendingInvoices   int             `json:"pending_invoices"`
	OverdueInvoices   int             `json:"overdue_invoices"`
	CancelledInvoices int             `json:"cancelled_invoices"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
}

// GetStatistics возвращает статистику счетов заведения за год
func (is *InvoiceService) GetStatistics(schoolID uuid.UUID, year int) (*InvoiceStatistics, error) {
	startDate := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(year, 12, 31, 23, 59, 59, 0, time.UTC)

	var invoices []models.Invoice
	if err := is.db.Where("school_id = ? AND invoice_date >= ? AND invoice_date <= ?",
		schoolID, startDate, endDate).Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("ошибка получения счетов для статистики: %w", err)
	}

	stats := &InvoiceStatistics{SchoolID: schoolID, Year: year}
	for _, invoice := range invoices {
		stats.TotalInvoices++
		stats.TotalAmount = stats.TotalAmount.Add(invoice.TotalAmount)

		switch invoice.Status {
		case models.InvoiceStatusPaid, models.InvoiceStatusCompleted:
			stats.PaidInvoices++
			stats.PaidAmount = stats.PaidAmount.Add(invoice.TotalAmount)
		case models.InvoiceStatusOverdue:
			stats.OverdueInvoices++
		case models.InvoiceStatusCancelled:
			stats.CancelledInvoices++
		default:
			stats.PendingInvoices++
		}
	}

	return stats, nil
}

// RenderPDF формирует PDF-представление счета
func (is *InvoiceService) RenderPDF(invoice *models.Invoice, school *models.School) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(120, 10, fmt.Sprintf("Invoice %s", invoice.Number))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.Cell(60, 7, fmt.Sprintf("Date: %s", invoice.InvoiceDate.Format("02.01.2006")))
	pdf.Ln(6)
	pdf.Cell(60, 7, fmt.Sprintf("Due date: %s", invoice.DueDate.Format("02.01.2006")))
	pdf.Ln(6)
	if school != nil {
		pdf.Cell(60, 7, fmt.Sprintf("Customer: %s", school.Name))
		pdf.Ln(6)
	}
	pdf.Cell(60, 7, fmt.Sprintf("Plan: %s", invoice.PlanName))
	pdf.Ln(6)
	pdf.Cell(60, 7, fmt.Sprintf("Period: %s - %s",
		invoice.BillingPeriodStart.Format("02.01.2006"), invoice.BillingPeriodEnd.Format("02.01.2006")))
	pdf.Ln(10)

	// Таблица позиций
	pdf.SetFont("Arial", "B", 9)
	pdf.Cell(70, 8, "Item")
	pdf.Cell(30, 8, "Qty")
	pdf.Cell(40, 8, "Unit price")
	pdf.Cell(40, 8, "Amount")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	for _, item := range invoice.Items {
		pdf.Cell(70, 7, item.Category)
		pdf.Cell(30, 7, fmt.Sprintf("%d", item.Quantity))
		pdf.Cell(40, 7, item.UnitPrice.StringFixed(2))
		pdf.Cell(40, 7, item.Amount.StringFixed(2))
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(140, 8, "Total:")
	pdf.Cell(40, 8, fmt.Sprintf("%s %s", invoice.TotalAmount.StringFixed(2), invoice.Currency))
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 9)
	pdf.Cell(120, 7, fmt.Sprintf("Status: %s", invoice.Status))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ошибка формирования PDF: %w", err)
	}
	return buf.Bytes(), nil
}
