package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// DatabaseIndex представляет индекс базы данных
type DatabaseIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// PerformanceIndexes индексы для оптимизации частых выборок биллинга
var PerformanceIndexes = []DatabaseIndex{
	// Подписки: проход напоминаний и выборки по статусу
	{
		Name:    "idx_subscriptions_status",
		Table:   "subscriptions",
		Columns: []string{"status"},
	},
	{
		Name:    "idx_subscriptions_grace_deadline",
		Table:   "subscriptions",
		Columns: []string{"status", "grace_period_end_date"},
	},

	// Счета: списки по заведению и пометка просроченных
	{
		Name:    "idx_invoices_school_created",
		Table:   "invoices",
		Columns: []string{"school_id", "created_at"},
	},
	{
		Name:    "idx_invoices_status_due",
		Table:   "invoices",
		Columns: []string{"status", "due_date"},
	},

	// Журнал биллинга: история по заведению
	{
		Name:    "idx_billing_history_school_created",
		Table:   "billing_history",
		Columns: []string{"school_id", "created_at"},
	},

	// Журнал уведомлений: поиск по заведению и статусу
	{
		Name:    "idx_notification_logs_school_status",
		Table:   "notification_logs",
		Columns: []string{"school_id", "status"},
	},

	// Подсчет активных единиц
	{
		Name:    "idx_students_school_active",
		Table:   "students",
		Columns: []string{"school_id", "is_active"},
	},
	{
		Name:    "idx_staff_members_school_active",
		Table:   "staff_members",
		Columns: []string{"school_id", "is_active"},
	},
}

// CreatePerformanceIndexes создает индексы для оптимизации производительности
func CreatePerformanceIndexes(db *gorm.DB) error {
	log.Printf("Создание индексов производительности...")

	for _, index := range PerformanceIndexes {
		if err := CreateIndex(db, index); err != nil {
			log.Printf("⚠️  Не удалось создать индекс %s: %v", index.Name, err)
			// Продолжаем создание других индексов даже если один упал
			continue
		}
	}

	log.Printf("✅ Индексы производительности созданы")
	return nil
}

// CreateIndex создает отдельный индекс
func CreateIndex(db *gorm.DB, index DatabaseIndex) error {
	uniqueStr := ""
	if index.Unique {
		uniqueStr = "UNIQUE "
	}

	columns := ""
	for i, col := range index.Columns {
		if i > 0 {
			columns += ", "
		}
		columns += col
	}

	sql := fmt.Sprintf(
		"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		uniqueStr, index.Name, index.Table, columns,
	)
	return db.Exec(sql).Error
}

// DropIndex удаляет индекс
func DropIndex(db *gorm.DB, indexName string) error {
	sql := fmt.Sprintf("DROP INDEX IF EXISTS %s", indexName)
	return db.Exec(sql).Error
}
