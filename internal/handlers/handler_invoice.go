package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/gin-gonic/gin"
)

type invoiceHandler struct {
	invoiceService portssvc.InvoiceSvc
}

// RegisterInvoiceRoutes registers supplier invoice routes.
func RegisterInvoiceRoutes(rg *gin.RouterGroup, invoiceService portssvc.InvoiceSvc) {
	h := &invoiceHandler{invoiceService: invoiceService}

	invoices := rg.Group("/invoices")
	{
		invoices.POST("", h.createInvoice)
		invoices.GET("/:id", h.getInvoice)
		invoices.POST("/:id/submit", h.submitInvoice)
		invoices.POST("/:id/verify", h.verifyInvoice)
		invoices.POST("/:id/approve", h.approveInvoice)
		invoices.POST("/:id/reject", h.rejectInvoice)
	}
}

func (h *invoiceHandler) createInvoice(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.CreateInvoice(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to record invoice")
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *invoiceHandler) getInvoice(c *gin.Context) {
	inv, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *invoiceHandler) submitInvoice(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	inv, err := h.invoiceService.SubmitInvoice(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to submit invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// verifyInvoice godoc
// @Summary Three-way match an invoice
// @Description Compares the invoice with its purchase order and the goods received
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   id path string true "Invoice ID"
// @Param   verification body dto.VerifyInvoiceRequest true "Goods received"
// @Success 200 {object} domain.SupplierInvoice
// @Failure 400 {object} map[string]string "Variance above tolerance without justification"
// @Failure 403 {object} map[string]string "Segregation of duties"
// @Security BearerAuth
// @Router /invoices/{id}/verify [post]
func (h *invoiceHandler) verifyInvoice(c *gin.Context) {
	var req dto.VerifyInvoiceRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.VerifyInvoice(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to verify invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *invoiceHandler) approveInvoice(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.ApproveInvoice(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to approve invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *invoiceHandler) rejectInvoice(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	inv, err := h.invoiceService.RejectInvoice(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to reject invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}
