package handlers

import (
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {

	// Add health check route
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	setupAPIV1Routes(r, cfg, services)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
) {
	// Apply AuthMiddleware to the entire v1 group
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))

	RegisterUserRoutes(v1, service.User)
	RegisterBudgetRoutes(v1, service.Ledger)
	RegisterReportingRoutes(v1, service.Reporting)
	RegisterRequisitionRoutes(v1, service.Requisition)
	RegisterInvoiceRoutes(v1, service.Invoice)
	RegisterPaymentRoutes(v1, service.Payment)
	RegisterProcurementRoutes(v1, service.Procurement)
	RegisterWorkflowRoutes(v1, service.Workflow)
}
