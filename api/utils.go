package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backend_bilim/services"
)

// nowFunc подменяется в тестах
var nowFunc = time.Now

// respondError отображает ошибки сервисного слоя на HTTP статусы в общем
// формате ответа
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, services.ErrInvalidPlan),
		errors.Is(err, services.ErrInvalidDays),
		errors.Is(err, services.ErrInvalidBillingCycle),
		errors.Is(err, services.ErrMissingPaymentFields),
		errors.Is(err, services.ErrNotOnTrial),
		errors.Is(err, services.ErrNotActive),
		errors.Is(err, services.ErrInvalidStatus):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidOrExpiredToken):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrPlanNotFound),
		errors.Is(err, services.ErrNoSubscription):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyActive),
		errors.Is(err, services.ErrConflict):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"status": "error",
		"error":  err.Error(),
	})
}

// respondOK отправляет успешный ответ с данными
func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   data,
	})
}
