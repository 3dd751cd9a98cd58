package controllers

import (
	"net/http"

	"invoicely-backend/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardController struct {
	invoices *services.InvoiceService
	logger   *zap.Logger
}

func NewDashboardController(invoices *services.InvoiceService, logger *zap.Logger) *DashboardController {
	return &DashboardController{invoices: invoices, logger: logger}
}

func (dc *DashboardController) GetDashboardOverview(c *gin.Context) {
	ownerID, ok := owner(c)
	if !ok {
		return
	}

	overview, err := dc.invoices.Dashboard(c.Request.Context(), ownerID)
	if err != nil {
		respondServiceError(c, dc.logger, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
