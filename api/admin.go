package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"backend_bilim/models"
	"backend_bilim/services"
)

// AdminAPI предоставляет административные операции биллинга
type AdminAPI struct {
	subscriptions *services.SubscriptionService
	reminders     *services.ReminderService
	reports       *services.ReportService
	repo          *services.SubscriptionRepository
}

// NewAdminAPI создает новый экземпляр AdminAPI
func NewAdminAPI(subscriptions *services.SubscriptionService, reminders *services.ReminderService, reports *services.ReportService, repo *services.SubscriptionRepository) *AdminAPI {
	return &AdminAPI{
		subscriptions: subscriptions,
		reminders:     reminders,
		reports:       reports,
		repo:          repo,
	}
}

// RegisterRoutes регистрирует административные маршруты
func (aa *AdminAPI) RegisterRoutes(router *gin.RouterGroup) {
	admin := router.Group("/subscriptions")
	{
		admin.GET("", aa.GetSubscriptions)
		admin.GET("/export", aa.ExportSubscriptions)
		admin.PUT("/:school_id", aa.UpdateSubscription)
		admin.POST("/:school_id/extend-grace", aa.ExtendGracePeriod)
		admin.POST("/:school_id/cancel", aa.CancelSubscription)
		admin.GET("/:school_id/history", aa.GetBillingHistory)
	}
	router.POST("/reminders/run", aa.RunReminderPass)
}

// GetSubscriptions возвращает все подписки
func (aa *AdminAPI) GetSubscriptions(c *gin.Context) {
	subs, err := aa.repo.ListAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при получении подписок",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   subs,
		"count":  len(subs),
	})
}

// ExportSubscriptions выгружает подписки в Excel
func (aa *AdminAPI) ExportSubscriptions(c *gin.Context) {
	data, err := aa.reports.ExportSubscriptionsXLSX()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при формировании выгрузки",
		})
		return
	}

	filename := services.ExportFileName(nowFunc())
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// UpdateSubscriptionRequest представляет запрос ручного изменения подписки.
// Незаполненные поля не меняются.
type UpdateSubscriptionRequest struct {
	Status   *string `json:"status"`
	PlanName *string `json:"plan_name"`
	Notes    *string `json:"notes"`
}

// UpdateSubscription принудительно меняет статус, тариф или примечания
// подписки заведения
func (aa *AdminAPI) UpdateSubscription(c *gin.Context) {
	schoolID, err := uuid.Parse(c.Param("school_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор заведения",
		})
		return
	}

	var req UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}
	if req.Status == nil && req.PlanName == nil && req.Notes == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Не указано ни одного поля для изменения",
		})
		return
	}

	sub, err := aa.subscriptions.AdminOverride(schoolID, req.Status, req.PlanName, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// ExtendGraceRequest представляет запрос продления льготного периода
type ExtendGraceRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// ExtendGracePeriod продлевает льготный период подписки заведения
func (aa *AdminAPI) ExtendGracePeriod(c *gin.Context) {
	schoolID, err := uuid.Parse(c.Param("school_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор заведения",
		})
		return
	}

	var req ExtendGraceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := aa.subscriptions.ExtendGracePeriod(schoolID, req.Days)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// CancelSubscription отменяет подписку заведения
func (aa *AdminAPI) CancelSubscription(c *gin.Context) {
	schoolID, err := uuid.Parse(c.Param("school_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор заведения",
		})
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := aa.subscriptions.Cancel(schoolID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// GetBillingHistory возвращает журнал операций биллинга заведения
func (aa *AdminAPI) GetBillingHistory(c *gin.Context) {
	schoolID, err := uuid.Parse(c.Param("school_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор заведения",
		})
		return
	}

	var history []models.BillingHistory
	if err := aa.repo.DB().Where("school_id = ?", schoolID).
		Order("created_at DESC").Limit(200).Find(&history).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при получении журнала биллинга",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   history,
		"count":  len(history),
	})
}

// RunReminderPass вручную запускает проход напоминаний
func (aa *AdminAPI) RunReminderPass(c *gin.Context) {
	result, err := aa.reminders.RunReminderPass(nowFunc())
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{
			"status": "error",
			"error":  err.Error(),
		})
		return
	}
	respondOK(c, result)
}
