package testutils

import (
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"backend_bilim/models"
)

// SetupTestDB создает и настраивает тестовую базу данных в памяти.
// Эта функция должна использоваться во всех тестах для обеспечения консистентности.
func SetupTestDB() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		// Заведения и единицы учета
		&models.School{},
		&models.Student{},
		&models.StaffMember{},

		// Биллинг
		&models.PricingPlan{},
		&models.Subscription{},
		&models.SubscriptionReminder{},

		// Счета
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.BillingHistory{},

		// Уведомления
		&models.NotificationTemplate{},
		&models.NotificationLog{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}

// CleanupTestDB очищает тестовую базу данных
func CleanupTestDB(db *gorm.DB) {
	if db != nil {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	}
}

// CreateTestSchool создает тестовое заведение. SQLite не генерирует UUID
// по умолчанию, поэтому ID задается явно.
func CreateTestSchool(db *gorm.DB) *models.School {
	school := &models.School{
		ID:            uuid.New(),
		Name:          "Гимназия №1",
		Domain:        fmt.Sprintf("gym1-%s.example.kz", uuid.NewString()[:8]),
		ContactEmail:  "director@example.kz",
		ContactPerson: "Айгуль Сапарова",
		City:          "Алматы",
		IsActive:      true,
		Currency:      "KZT",
	}

	if err := db.Create(school).Error; err != nil {
		log.Printf("Failed to create test school: %v", err)
		return nil
	}

	return school
}

// CreateTestPlan создает тестовый тарифный план с ценой за единицу
func CreateTestPlan(db *gorm.DB, name string, pricePerUnit int64) *models.PricingPlan {
	plan := &models.PricingPlan{
		Name:         name,
		Description:  "Тарифный план для тестов",
		PricePerUnit: decimal.NewFromInt(pricePerUnit),
		Currency:     "KZT",
		IsActive:     true,
	}

	if err := db.Create(plan).Error; err != nil {
		log.Printf("Failed to create test plan: %v", err)
		return nil
	}

	return plan
}

// CreateTestTrialPlan создает пробный тарифный план
func CreateTestTrialPlan(db *gorm.DB) *models.PricingPlan {
	plan := &models.PricingPlan{
		Name:          "TRIAL",
		Description:   "Бесплатный пробный период",
		PricePerUnit:  decimal.Zero,
		Currency:      "KZT",
		IsTrial:       true,
		TrialDays:     30,
		TrialMaxUnits: 100,
		IsActive:      true,
	}

	if err := db.Create(plan).Error; err != nil {
		log.Printf("Failed to create test trial plan: %v", err)
		return nil
	}

	return plan
}

// SeedUsage создает активных учеников и сотрудников заведения
func SeedUsage(db *gorm.DB, schoolID uuid.UUID, students, staff int) error {
	for i := 0; i < students; i++ {
		s := models.Student{
			SchoolID: schoolID,
			FullName: fmt.Sprintf("Ученик %d", i+1),
			IsActive: true,
		}
		if err := db.Create(&s).Error; err != nil {
			return err
		}
	}
	for i := 0; i < staff; i++ {
		m := models.StaffMember{
			SchoolID: schoolID,
			FullName: fmt.Sprintf("Сотрудник %d", i+1),
			Position: "Учитель",
			IsActive: true,
		}
		if err := db.Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}
