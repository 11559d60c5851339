package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

// requisitionHandler handles requisitions and the purchase orders they turn into.
type requisitionHandler struct {
	requisitionService portssvc.RequisitionSvc
}

func newRequisitionHandler(rs portssvc.RequisitionSvc) *requisitionHandler {
	return &requisitionHandler{requisitionService: rs}
}

// RegisterRequisitionRoutes registers requisition and purchase order routes.
func RegisterRequisitionRoutes(rg *gin.RouterGroup, requisitionService portssvc.RequisitionSvc) {
	h := newRequisitionHandler(requisitionService)

	requisitions := rg.Group("/requisitions")
	{
		requisitions.POST("", h.createRequisition)
		requisitions.GET("", h.listRequisitions)
		requisitions.GET("/:id", h.getRequisition)
		requisitions.GET("/:id/approvals", h.approvalHistory)
		requisitions.POST("/:id/submit", h.submitRequisition)
		requisitions.POST("/:id/approve", h.approveRequisition)
		requisitions.POST("/:id/reject", h.rejectRequisition)
		requisitions.POST("/:id/cancel", h.cancelRequisition)
		requisitions.POST("/:id/purchase-order", h.convertToPurchaseOrder)
	}

	orders := rg.Group("/purchase-orders")
	{
		orders.GET("/:id", h.getPurchaseOrder)
		orders.POST("/:id/cancel", h.cancelPurchaseOrder)
	}
}

// createRequisition godoc
// @Summary Raise a requisition
// @Description Creates a draft requisition against a budget line
// @Tags requisitions
// @Accept  json
// @Produce  json
// @Param   requisition body dto.CreateRequisitionRequest true "Requisition details"
// @Success 201 {object} domain.Requisition
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /requisitions [post]
func (h *requisitionHandler) createRequisition(c *gin.Context) {
	var req dto.CreateRequisitionRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	r, err := h.requisitionService.CreateRequisition(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to create requisition")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Requisition created", slog.String("requisition_id", r.RequisitionID))
	c.JSON(http.StatusCreated, r)
}

func (h *requisitionHandler) getRequisition(c *gin.Context) {
	r, err := h.requisitionService.GetRequisition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve requisition")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *requisitionHandler) listRequisitions(c *gin.Context) {
	var params dto.ListRequisitionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	list, err := h.requisitionService.ListRequisitions(c.Request.Context(), params.Status, params.Limit, params.Offset)
	if err != nil {
		respondError(c, err, "Failed to list requisitions")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *requisitionHandler) approvalHistory(c *gin.Context) {
	records, err := h.requisitionService.ApprovalHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve approval history")
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *requisitionHandler) submitRequisition(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	r, err := h.requisitionService.SubmitRequisition(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to submit requisition")
		return
	}
	c.JSON(http.StatusOK, r)
}

// approveRequisition godoc
// @Summary Approve a requisition at its current level
// @Tags requisitions
// @Accept  json
// @Produce  json
// @Param   id path string true "Requisition ID"
// @Param   decision body dto.DecisionRequest false "Comments"
// @Success 200 {object} domain.Requisition
// @Failure 403 {object} map[string]string "Approver lacks role or limit, or segregation of duties"
// @Failure 409 {object} map[string]string "Requisition is not pending approval"
// @Security BearerAuth
// @Router /requisitions/{id}/approve [post]
func (h *requisitionHandler) approveRequisition(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	r, err := h.requisitionService.ApproveRequisition(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to approve requisition")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *requisitionHandler) rejectRequisition(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	r, err := h.requisitionService.RejectRequisition(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to reject requisition")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *requisitionHandler) cancelRequisition(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	r, err := h.requisitionService.CancelRequisition(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to cancel requisition")
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *requisitionHandler) convertToPurchaseOrder(c *gin.Context) {
	var req dto.CreatePurchaseOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	po, err := h.requisitionService.ConvertToPurchaseOrder(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to issue purchase order")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Purchase order issued",
		slog.String("purchase_order_id", po.PurchaseOrderID), slog.String("po_number", po.PONumber))
	c.JSON(http.StatusCreated, po)
}

func (h *requisitionHandler) getPurchaseOrder(c *gin.Context) {
	po, err := h.requisitionService.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve purchase order")
		return
	}
	c.JSON(http.StatusOK, po)
}

func (h *requisitionHandler) cancelPurchaseOrder(c *gin.Context) {
	var req dto.CancelRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	po, err := h.requisitionService.CancelPurchaseOrder(c.Request.Context(), c.Param("id"), req.Reason, userID)
	if err != nil {
		respondError(c, err, "Failed to cancel purchase order")
		return
	}
	c.JSON(http.StatusOK, po)
}
