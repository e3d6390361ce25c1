package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"backend_bilim/middleware"
	"backend_bilim/services"
)

// InvoicesAPI предоставляет API для работы со счетами заведения
type InvoicesAPI struct {
	invoices      *services.InvoiceService
	subscriptions *services.SubscriptionService
	schools       services.SchoolDirectory
}

// NewInvoicesAPI создает новый экземпляр InvoicesAPI
func NewInvoicesAPI(invoices *services.InvoiceService, subscriptions *services.SubscriptionService, schools services.SchoolDirectory) *InvoicesAPI {
	return &InvoicesAPI{invoices: invoices, subscriptions: subscriptions, schools: schools}
}

// RegisterRoutes регистрирует маршруты счетов
func (ia *InvoicesAPI) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/invoices")
	{
		invoices.GET("", ia.GetInvoices)
		invoices.POST("/generate", ia.GenerateInvoice)
		invoices.GET("/statistics", ia.GetStatistics)
		invoices.GET("/:id", ia.GetInvoice)
		invoices.GET("/:id/pdf", ia.DownloadInvoicePDF)
	}
}

// GetInvoices возвращает счета заведения
func (ia *InvoicesAPI) GetInvoices(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	invoices, err := ia.invoices.List(schoolID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при получении счетов",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   invoices,
		"count":  len(invoices),
	})
}

// GenerateInvoice выставляет счет по текущей подписке и использованию
func (ia *InvoicesAPI) GenerateInvoice(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	sub, err := ia.subscriptions.ReadStatus(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}

	invoice, err := ia.invoices.Generate(sub)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status": "success",
		"data":   invoice,
	})
}

// GetInvoice возвращает счет по ID. Счет в статусе "отправлен" при
// первом просмотре помечается просмотренным.
func (ia *InvoicesAPI) GetInvoice(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	invoiceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор счета",
		})
		return
	}

	invoice, err := ia.invoices.Get(schoolID, uint(invoiceID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}
	respondOK(c, invoice)
}

// DownloadInvoicePDF возвращает счет в формате PDF
func (ia *InvoicesAPI) DownloadInvoicePDF(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	invoiceID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status": "error",
			"error":  "Некорректный идентификатор счета",
		})
		return
	}

	invoice, err := ia.invoices.Get(schoolID, uint(invoiceID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status": "error",
			"error":  "Счет не найден",
		})
		return
	}

	school, err := ia.schools.Get(schoolID)
	if err != nil {
		respondError(c, err)
		return
	}

	pdf, err := ia.invoices.RenderPDF(invoice, school)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при формировании PDF",
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.pdf", invoice.Number))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// GetStatistics возвращает статистику счетов заведения за год
func (ia *InvoicesAPI) GetStatistics(c *gin.Context) {
	schoolID, err := middleware.GetSchoolID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": err.Error()})
		return
	}

	year := nowFunc().Year()
	if yearStr := c.Query("year"); yearStr != "" {
		if parsed, err := strconv.Atoi(yearStr); err == nil {
			year = parsed
		}
	}

	stats, err := ia.invoices.GetStatistics(schoolID, year)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "error",
			"error":  "Ошибка при получении статистики счетов",
		})
		return
	}
	respondOK(c, stats)
}
