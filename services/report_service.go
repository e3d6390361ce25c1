package services

import (
	"bytes"
	"fmt"
	"log"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"backend_bilim/models"
)

// ReportService формирует административные выгрузки по биллингу
type ReportService struct {
	db *gorm.DB
}

// NewReportService создает новый экземпляр ReportService
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// ExportSubscriptionsXLSX выгружает все подписки в Excel-файл
func (rs *ReportService) ExportSubscriptionsXLSX() ([]byte, error) {
	var subs []models.Subscription
	if err := rs.db.Order("created_at ASC").Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("ошибка выборки подписок для выгрузки: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("⚠️  Ошибка закрытия Excel-файла: %v", err)
		}
	}()

	sheetName := "Подписки"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{
		"Заведение", "Тариф", "Статус", "Вариант льготного периода",
		"Цикл", "Дедлайн льготного периода", "Дата продления",
		"Начисления в месяц", "Последний платеж", "Создана",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIdx, sub := range subs {
		values := []interface{}{
			sub.SchoolID.String(),
			sub.PlanName,
			sub.Status,
			sub.GraceKind,
			sub.BillingCycle,
			formatDate(sub.GracePeriodEndDate),
			formatDate(sub.RenewalDate),
			sub.MonthlyCharges.StringFixed(2),
			sub.LastPaymentAmount.StringFixed(2),
			sub.CreatedAt.Format("02.01.2006"),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	endCell, _ := excelize.CoordinatesToCellName(len(headers), len(subs)+1)
	f.AutoFilter(sheetName, "A1:"+endCell, []excelize.AutoFilterOptions{})

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("ошибка записи Excel-файла: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFileName возвращает имя файла выгрузки с текущей датой
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("subscriptions_%s.xlsx", now.Format("2006-01-02"))
}
