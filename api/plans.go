package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"backend_bilim/models"
	"backend_bilim/services"
)

// PlansAPI предоставляет API для работы с тарифными планами
type PlansAPI struct {
	db      *gorm.DB
	catalog *services.PlanCatalog
}

// NewPlansAPI создает новый экземпляр PlansAPI
func NewPlansAPI(db *gorm.DB, catalog *services.PlanCatalog) *PlansAPI {
	return &PlansAPI{db: db, catalog: catalog}
}

// RegisterRoutes регистрирует публичные маршруты тарифных планов
func (pa *PlansAPI) RegisterRoutes(router *gin.RouterGroup) {
	plans := router.Group("/plans")
	{
		plans.GET("", pa.GetPlans)
		plans.GET("/:name", pa.GetPlan)
	}
}

// RegisterAdminRoutes регистрирует административные маршруты тарифных планов
func (pa *PlansAPI) RegisterAdminRoutes(router *gin.RouterGroup) {
	plans := router.Group("/plans")
	{
		plans.POST("", pa.CreatePlan)
		plans.PUT("/:name", pa.UpdatePlan)
		plans.DELETE("/:name", pa.DeactivatePlan)
	}
}

// GetPlans возвращает список активных тарифных планов
func (pa *PlansAPI) GetPlans(c *gin.Context) {
	plans, err := pa.catalog.ListActive()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при получении тарифных планов",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   plans,
		"count":  len(plans),
	})
}

// GetPlan возвращает тарифный план по имени
func (pa *PlansAPI) GetPlan(c *gin.Context) {
	plan, err := pa.catalog.GetByName(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, plan)
}

// CreatePlan создает новый тарифный план
func (pa *PlansAPI) CreatePlan(c *gin.Context) {
	var plan models.PricingPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	// Валидация обязательных полей
	if plan.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Название тарифного плана обязательно",
		})
		return
	}
	if plan.PricePerUnit.LessThan(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Цена за единицу не может быть отрицательной",
		})
		return
	}

	if err := pa.db.Create(&plan).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при создании тарифного плана",
		})
		return
	}

	pa.catalog.Invalidate(plan.Name)
	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   plan,
	})
}

// UpdatePlan обновляет существующий тарифный план
func (pa *PlansAPI) UpdatePlan(c *gin.Context) {
	name := c.Param("name")

	var plan models.PricingPlan
	if err := pa.db.Where("name = ?", name).First(&plan).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Тарифный план не найден",
		})
		return
	}

	var updateData models.PricingPlan
	if err := c.ShouldBindJSON(&updateData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}
	if updateData.PricePerUnit.LessThan(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Цена за единицу не может быть отрицательной",
		})
		return
	}

	if err := pa.db.Model(&plan).Updates(updateData).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при обновлении тарифного плана",
		})
		return
	}

	pa.catalog.Invalidate(name)
	respondOK(c, plan)
}

// DeactivatePlan деактивирует тарифный план. Существующие подписки на
// план продолжают действовать, новые выборы плана запрещаются.
func (pa *PlansAPI) DeactivatePlan(c *gin.Context) {
	name := c.Param("name")

	var plan models.PricingPlan
	if err := pa.db.Where("name = ?", name).First(&plan).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Тарифный план не найден",
		})
		return
	}

	if err := pa.db.Model(&plan).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при деактивации тарифного плана",
		})
		return
	}

	pa.catalog.Invalidate(name)
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Тарифный план деактивирован",
	})
}
