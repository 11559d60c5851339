package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

// procurementHandler handles competitive sourcing: processes, bids, evaluations and awards.
type procurementHandler struct {
	procurementService portssvc.ProcurementSvc
}

func newProcurementHandler(ps portssvc.ProcurementSvc) *procurementHandler {
	return &procurementHandler{procurementService: ps}
}

// RegisterProcurementRoutes registers procurement process routes.
func RegisterProcurementRoutes(rg *gin.RouterGroup, procurementService portssvc.ProcurementSvc) {
	h := newProcurementHandler(procurementService)

	processes := rg.Group("/procurement/processes")
	{
		processes.POST("", h.createProcess)
		processes.GET("/:id", h.getProcess)
		processes.POST("/:id/publish", h.publishProcess)
		processes.GET("/:id/bids", h.listBids)
		processes.POST("/:id/bids", h.submitBid)
		processes.POST("/:id/close", h.closeBidding)
		processes.POST("/:id/evaluations", h.evaluateBids)
		processes.POST("/:id/award", h.awardContract)
		processes.POST("/:id/complete", h.completeProcess)
		processes.POST("/:id/cancel", h.cancelProcess)
	}
	rg.POST("/procurement/conflict-declarations", h.declareConflict)
}

func (h *procurementHandler) createProcess(c *gin.Context) {
	var req dto.CreateProcessRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.procurementService.CreateProcess(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to create procurement process")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Procurement process created",
		slog.String("process_id", p.ProcessID), slog.String("method", p.Method))
	c.JSON(http.StatusCreated, p)
}

func (h *procurementHandler) getProcess(c *gin.Context) {
	p, err := h.procurementService.GetProcess(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve procurement process")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *procurementHandler) publishProcess(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.procurementService.PublishProcess(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to publish procurement process")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *procurementHandler) listBids(c *gin.Context) {
	bids, err := h.procurementService.ListBids(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to list bids")
		return
	}
	c.JSON(http.StatusOK, bids)
}

func (h *procurementHandler) submitBid(c *gin.Context) {
	var req dto.SubmitBidRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	bid, err := h.procurementService.SubmitBid(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to submit bid")
		return
	}
	c.JSON(http.StatusCreated, bid)
}

func (h *procurementHandler) declareConflict(c *gin.Context) {
	var req dto.DeclareConflictRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	d, err := h.procurementService.DeclareConflict(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to record declaration")
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *procurementHandler) closeBidding(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.procurementService.CloseBidding(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to close bidding")
		return
	}
	c.JSON(http.StatusOK, p)
}

// evaluateBids godoc
// @Summary Score every bid of a process
// @Description Records one evaluation per bid for the calling evaluator, all or nothing
// @Tags procurement
// @Accept  json
// @Produce  json
// @Param   id path string true "Process ID"
// @Param   sheet body dto.EvaluateBidsRequest true "Scores"
// @Success 201 {array} domain.BidEvaluation
// @Failure 403 {object} map[string]string "Conflict of interest"
// @Failure 422 {object} map[string]string "Too few quotes for the cash band"
// @Security BearerAuth
// @Router /procurement/processes/{id}/evaluations [post]
func (h *procurementHandler) evaluateBids(c *gin.Context) {
	var req dto.EvaluateBidsRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	evaluations, err := h.procurementService.EvaluateBids(c.Request.Context(), c.Param("id"), req, userID)
	if err != nil {
		respondError(c, err, "Failed to evaluate bids")
		return
	}
	c.JSON(http.StatusCreated, evaluations)
}

func (h *procurementHandler) awardContract(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.procurementService.AwardContract(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to award contract")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Contract awarded",
		slog.String("process_id", p.ProcessID), slog.String("bid_id", p.AwardedBidID))
	c.JSON(http.StatusOK, p)
}

func (h *procurementHandler) completeProcess(c *gin.Context) {
	userID, ok := actingUser(c)
	if !ok {
		return
	}
	p, err := h.procurementService.CompleteProcess(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err, "Failed to complete procurement process")
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *procurementHandler) cancelProcess(c *gin.Context) {
	var req dto.CancelRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	p, err := h.procurementService.CancelProcess(c.Request.Context(), c.Param("id"), req.Reason, userID)
	if err != nil {
		respondError(c, err, "Failed to cancel procurement process")
		return
	}
	c.JSON(http.StatusOK, p)
}
