package handlers

import (
	"net/http"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

// RegisterWorkflowRoutes exposes the transition history of approvable entities.
func RegisterWorkflowRoutes(rg *gin.RouterGroup, workflow portssvc.WorkflowEngineSvc) {
	rg.GET("/workflows/:entityType/:id/history", func(c *gin.Context) {
		entityType := domain.EntityType(c.Param("entityType"))
		switch entityType {
		case domain.EntityRequisition, domain.EntitySupplierInvoice, domain.EntityPayment, domain.EntityProcurementProcess:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown entity type " + string(entityType)})
			return
		}

		history, err := workflow.History(c.Request.Context(), entityType, c.Param("id"))
		if err != nil {
			respondError(c, err, "Failed to retrieve workflow history")
			return
		}
		c.JSON(http.StatusOK, history)
	})
}
