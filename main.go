package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"backend_bilim/api"
	"backend_bilim/config"
	"backend_bilim/database"
	"backend_bilim/middleware"
	"backend_bilim/services"
)

// initDB инициализирует подключение к базе данных
func initDB() {
	log.Println("🔧 Инициализация базы данных...")

	// Создаем базу данных, если она не существует
	if err := database.CreateDatabaseIfNotExists(); err != nil {
		log.Fatal("❌ Ошибка при создании базы данных:", err)
	}

	// Подключаемся к базе данных
	if err := database.ConnectDatabase(); err != nil {
		log.Fatal("❌ Ошибка подключения к базе данных:", err)
	}

	// Индексы для частых выборок биллинга
	if err := database.CreatePerformanceIndexes(database.GetDB()); err != nil {
		log.Printf("⚠️  Ошибка создания индексов: %v", err)
	}

	log.Println("✅ База данных успешно инициализирована")
}

func main() {
	// Загружаем конфигурацию (включая .env файл)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("❌ Ошибка загрузки конфигурации:", err)
	}
	cfg.LogConfig()

	// Инициализируем базу данных
	initDB()

	// Redis не обязателен: без него кэш и блокировки отключаются
	if err := database.InitRedis(); err != nil {
		log.Printf("⚠️  Redis недоступен, кэширование отключено: %v", err)
	}

	db := database.GetDB()

	// Шаблоны уведомлений по умолчанию
	if err := services.SeedDefaultTemplates(db); err != nil {
		log.Printf("⚠️  Ошибка создания шаблонов уведомлений: %v", err)
	}

	// Сервисный слой
	repo := services.NewSubscriptionRepository(db)
	catalog := services.NewPlanCatalog(db)
	usage := services.NewGormUsageCounter(db)
	schools := services.NewGormSchoolDirectory(db)
	notifier := services.NewNotificationService(db, services.SMTPConfig{
		Host:      cfg.External.SMTP.Host,
		Port:      cfg.External.SMTP.Port,
		Username:  cfg.External.SMTP.User,
		Password:  cfg.External.SMTP.Password,
		FromEmail: cfg.External.SMTP.From,
	}, cfg.External.TelegramBotToken)
	invoices := services.NewInvoiceService(db, catalog, usage)
	subscriptions := services.NewSubscriptionService(repo, catalog, usage, schools, notifier, invoices)
	reminders := services.NewReminderService(repo, schools, notifier, invoices)
	reports := services.NewReportService(db)

	// Опциональный периодический проход напоминаний
	if cfg.Billing.ReminderCronEnabled {
		if err := reminders.StartCron(cfg.Billing.ReminderCronSpec); err != nil {
			log.Printf("⚠️  Ошибка запуска расписания напоминаний: %v", err)
		}
		defer reminders.StopCron()
	}

	// Настраиваем Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(cors.Default()) // Для избежания CORS-ошибок

	// Базовые роуты
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":   "success",
			"message":  "pong",
			"database": "connected",
		})
	})

	auth := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer)

	plansAPI := api.NewPlansAPI(db, catalog)
	subscriptionsAPI := api.NewSubscriptionsAPI(subscriptions)
	invoicesAPI := api.NewInvoicesAPI(invoices, subscriptions, schools)
	adminAPI := api.NewAdminAPI(subscriptions, reminders, reports, repo)

	// Публичные маршруты: список тарифов и подтверждение по токену
	public := r.Group("/api")
	public.Use(middleware.LenientRateLimit())
	plansAPI.RegisterRoutes(public)

	accept := r.Group("/api")
	accept.Use(middleware.AcceptRateLimit())
	subscriptionsAPI.RegisterPublicRoutes(accept)

	// Маршруты заведения
	v1 := r.Group("/api")
	v1.Use(auth.RequireAuth(), middleware.ModerateRateLimit())
	subscriptionsAPI.RegisterRoutes(v1)
	invoicesAPI.RegisterRoutes(v1)

	// Административные маршруты
	admin := r.Group("/api/admin")
	admin.Use(auth.RequireAuth(), auth.RequireAdmin())
	plansAPI.RegisterAdminRoutes(admin)
	adminAPI.RegisterRoutes(admin)

	log.Printf("🚀 Сервер запущен на порту %s", cfg.App.Port)
	if err := r.Run(":" + cfg.App.Port); err != nil {
		log.Fatal("❌ Ошибка запуска сервера:", err)
	}
}
