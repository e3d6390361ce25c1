package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"backend_bilim/middleware"
	"backend_bilim/models"
	"backend_bilim/services"
)

// SubscriptionsAPI предоставляет API управления подпиской заведения
type SubscriptionsAPI struct {
	subscriptions *services.SubscriptionService
}

// NewSubscriptionsAPI создает новый экземпляр SubscriptionsAPI
func NewSubscriptionsAPI(subscriptions *services.SubscriptionService) *SubscriptionsAPI {
	return &SubscriptionsAPI{subscriptions: subscriptions}
}

// RegisterRoutes регистрирует маршруты подписки заведения
func (sa *SubscriptionsAPI) RegisterRoutes(router *gin.RouterGroup) {
	subs := router.Group("/subscription")
	{
		subs.POST("/select-plan", sa.SelectPlan)
		subs.POST("/free-trial", sa.ClaimFreeTrial)
		subs.POST("/upgrade", sa.UpgradeFromTrial)
		subs.PUT("/change-plan", sa.ChangePlan)
		subs.PUT("/billing-cycle", sa.SetBillingCycle)
		subs.POST("/payments", sa.ConfirmPayment)
		subs.GET("/status", sa.GetStatus)
		subs.GET("/grace-progress", sa.GetGraceProgress)
		subs.GET("/details", sa.GetDetails)
		subs.POST("/cancel", sa.Cancel)
	}
}

// RegisterPublicRoutes регистрирует маршруты, доступные без JWT:
// подтверждение подписки выполняется по одноразовому токену из письма
func (sa *SubscriptionsAPI) RegisterPublicRoutes(router *gin.RouterGroup) {
	router.POST("/subscription/accept", sa.AcceptByToken)
}

// SelectPlanRequest представляет запрос на выбор тарифного плана
type SelectPlanRequest struct {
	PlanName string `json:"plan_name" binding:"required"`
}

// SelectPlan выбирает тарифный план и отправляет токен подтверждения
func (sa *SubscriptionsAPI) SelectPlan(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req SelectPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := sa.subscriptions.SelectPlan(schoolID, req.PlanName)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   sub,
	})
}

// AcceptRequest представляет запрос подтверждения по токену
type AcceptRequest struct {
	Token string `json:"token"`
}

// AcceptByToken подтверждает подписку по одноразовому токену
func (sa *SubscriptionsAPI) AcceptByToken(c *gin.Context) {
	var req AcceptRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Token != "" {
		// Токен из тела запроса
	} else if token := c.Query("token"); token != "" {
		req.Token = token
	} else {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Токен подтверждения обязателен",
		})
		return
	}

	sub, err := sa.subscriptions.AcceptByToken(req.Token)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// ClaimFreeTrial активирует бесплатный пробный период
func (sa *SubscriptionsAPI) ClaimFreeTrial(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	sub, err := sa.subscriptions.ClaimFreeTrial(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   sub,
	})
}

// ChangePlanRequest представляет запрос на смену тарифного плана
type ChangePlanRequest struct {
	PlanName string `json:"plan_name" binding:"required"`
}

// UpgradeFromTrial переводит пробную подписку на платный тариф
func (sa *SubscriptionsAPI) UpgradeFromTrial(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := sa.subscriptions.UpgradeFromTrial(schoolID, req.PlanName)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// ChangePlan меняет тарифный план активной подписки
func (sa *SubscriptionsAPI) ChangePlan(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := sa.subscriptions.ChangePlan(schoolID, req.PlanName)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// BillingCycleRequest представляет запрос на смену платежного цикла
type BillingCycleRequest struct {
	BillingCycle string `json:"billing_cycle" binding:"required"`
}

// SetBillingCycle меняет платежный цикл подписки
func (sa *SubscriptionsAPI) SetBillingCycle(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req BillingCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := sa.subscriptions.SetBillingCycle(schoolID, req.BillingCycle)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// ConfirmPaymentRequest представляет запрос подтверждения оплаты
type ConfirmPaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
}

// ConfirmPayment фиксирует поступление оплаты и активирует подписку
func (sa *SubscriptionsAPI) ConfirmPayment(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Неверный формат данных",
		})
		return
	}

	sub, err := sa.subscriptions.ConfirmPayment(schoolID, req.Amount, req.TransactionID, req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// GetStatus возвращает подписку с актуальным статусом
func (sa *SubscriptionsAPI) GetStatus(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	sub, err := sa.subscriptions.ReadStatus(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data": gin.H{
			"subscription":         sub,
			"grace_days_remaining": graceDaysOrNil(sub),
		},
	})
}

// GetGraceProgress возвращает прогресс льготного периода: вид, дедлайн и
// остаток дней
func (sa *SubscriptionsAPI) GetGraceProgress(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	sub, err := sa.subscriptions.ReadStatus(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}

	inGrace := sub.Status == models.SubscriptionStatusGracePeriod
	progress := gin.H{
		"status":   sub.Status,
		"in_grace": inGrace,
	}
	if inGrace {
		progress["grace_kind"] = sub.GraceKind
		progress["deadline"] = sub.GracePeriodEndDate
		progress["days_remaining"] = sub.GraceDaysRemaining(nowFunc())
	}
	respondOK(c, progress)
}

// GetDetails возвращает подписку вместе с текущим использованием и
// расчетом начислений
func (sa *SubscriptionsAPI) GetDetails(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	details, err := sa.subscriptions.GetDetails(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, details)
}

// CancelRequest представляет запрос на отмену подписки
type CancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel отменяет подписку заведения
func (sa *SubscriptionsAPI) Cancel(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	var req CancelRequest
	_ = c.ShouldBindJSON(&req)

	sub, err := sa.subscriptions.Cancel(schoolID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, sub)
}

// graceDaysOrNil возвращает остаток дней льготного периода или nil вне его
func graceDaysOrNil(sub *models.Subscription) interface{} {
	if sub.Status != models.SubscriptionStatusGracePeriod {
		return nil
	}
	return sub.GraceDaysRemaining(nowFunc())
}
