package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

type paymentHandler struct {
	paymentService portssvc.PaymentSvc
}

// RegisterPaymentRoutes registers payment routes.
func RegisterPaymentRoutes(rg *gin.RouterGroup, paymentService portssvc.PaymentSvc) {
	h := &paymentHandler{paymentService: paymentService}

	payments := rg.Group("/payments")
	{
		payments.POST("", h.createPayment)
		payments.GET("/:id", h.getPayment)
		payments.POST("/:id/submit", h.submitPayment)
		payments.POST("/:id/approve", h.approvePayment)
		payments.POST("/:id/reject", h.rejectPayment)
		payments.POST("/:id/process", h.processPayment)
		payments.POST("/:id/cancel", h.cancelPayment)
	}
}

func (h *paymentHandler) createPayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.paymentService.CreatePayment(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to create payment")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *paymentHandler) getPayment(c *gin.Context) {
	p, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve payment")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *paymentHandler) submitPayment(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.paymentService.SubmitPayment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to submit payment")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *paymentHandler) approvePayment(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.paymentService.ApprovePayment(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to approve payment")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *paymentHandler) rejectPayment(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.paymentService.RejectPayment(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to reject payment")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *paymentHandler) cancelPayment(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.paymentService.CancelPayment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to cancel payment")
		return
	}
	c.JSON(http.StatusOK, p)
}

// processPayment godoc
// @Summary Release funds for an approved payment
// @Tags payments
// @Produce  json
// @Param   id path string true "Payment ID"
// @Success 200 {object} domain.Payment
// @Failure 403 {object} map[string]string "Processor also submitted or approved the payment"
// @Failure 409 {object} map[string]string "Payment is not approved"
// @Security BearerAuth
// @Router /payments/{id}/process [post]
func (h *paymentHandler) processPayment(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.paymentService.ProcessPayment(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to process payment")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Payment processed",
		slog.String("payment_id", p.PaymentID), slog.String("invoice_id", p.InvoiceID))
	c.JSON(http.StatusOK, p)
}
