// controllers/report.go
package controllers

import (
	"net/http"

	"invoicely-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReportController handles all reporting functions
type ReportController struct {
	reports   *services.ReportService
	reminders *services.ReminderService
	logger    *zap.Logger
}

func NewReportController(reports *services.ReportService, reminders *services.ReminderService, logger *zap.Logger) *ReportController {
	return &ReportController{reports: reports, reminders: reminders, logger: logger}
}

// GetReportAnalytics returns revenue with growth against the previous period
func (rc *ReportController) GetReportAnalytics(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	report, err := rc.reports.Revenue(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type reminderQuery struct {
	Limit int `form:"limit" binding:"min=0,max=100"`
}

// GetReminders lists payment reminders sent for the user's invoices
func (rc *ReportController) GetReminders(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}
	var q reminderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}

	logs, err := rc.reminders.ListReminders(c.Request.Context(), ownerID, q.Limit)
	if err != nil {
		respondServiceError(c, rc.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": logs})
}
