package routes

import (
	"net/http"
	"time"

	"invoicely-backend/config"
	"invoicely-backend/controllers"
	"invoicely-backend/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles the controllers the router dispatches to.
type Handlers struct {
	Sessions  utils.SessionVerifier
	Auth      *controllers.AuthController
	Invoices  *controllers.InvoiceController
	Dashboard *controllers.DashboardController
	Reports   *controllers.ReportController
}

func SetupRouter(cfg config.Config, logger *zap.Logger, h Handlers) *gin.Engine {
	utils.RegisterValidators()

	r := gin.New()
	r.Use(gin.Recovery())

	origins := cfg.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(config.PerformanceLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	requireSession := utils.AuthMiddleware(h.Sessions)

	auth := r.Group("/auth")
	{
		auth.POST("/signup", h.Auth.SignUp)
		auth.POST("/login", h.Auth.Login)

		auth.Use(requireSession)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", h.Auth.Me)
	}

	api := r.Group("/api")
	api.Use(requireSession)
	{
		// Invoice routes
		invoices := api.Group("/invoices")
		{
			invoices.POST("", h.Invoices.CreateInvoice)
			invoices.GET("", h.Invoices.GetInvoices)
			invoices.GET("/next-number", h.Invoices.NextNumber)
			invoices.GET("/export", h.Invoices.ExportInvoices)
			invoices.GET("/:id", h.Invoices.GetInvoice)
			invoices.PUT("/:id", h.Invoices.UpdateInvoice)
			invoices.DELETE("/:id", h.Invoices.DeleteInvoice)

			invoices.POST("/:id/items", h.Invoices.AddItem)
			invoices.PATCH("/:id/items/:index", h.Invoices.UpdateItem)
			invoices.DELETE("/:id/items/:index", h.Invoices.RemoveItem)

			invoices.POST("/:id/send", h.Invoices.SendInvoice)
			invoices.POST("/:id/pay", h.Invoices.MarkPaid)
		}

		api.GET("/dashboard", h.Dashboard.GetDashboardOverview)
		api.GET("/reports", h.Reports.GetReportAnalytics)
		api.GET("/reminders", h.Reports.GetReminders)
	}

	return r
}
