package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/middleware"
	"github.com/gin-gonic/gin"
)

// budgetHandler exposes the commitment ledger.
type budgetHandler struct {
	ledger portssvc.BudgetLedgerSvcFacade
}

func newBudgetHandler(ledger portssvc.BudgetLedgerSvcFacade) *budgetHandler {
	return &budgetHandler{ledger: ledger}
}

// RegisterBudgetRoutes registers budget line and ledger routes.
func RegisterBudgetRoutes(rg *gin.RouterGroup, ledger portssvc.BudgetLedgerSvcFacade) {
	h := newBudgetHandler(ledger)

	budgets := rg.Group("/budgets")
	{
		budgets.POST("", h.allocate)
		budgets.GET("", h.listBudgetLines)
		budgets.POST("/reallocate", h.reallocate)
		budgets.POST("/fiscal-years/:year/close", h.closeFiscalYear)
		budgets.GET("/:id", h.getBudgetLine)
		budgets.GET("/:id/transactions", h.listTransactions)
		budgets.POST("/:id/commit", h.commit)
		budgets.POST("/:id/release", h.release)
		budgets.POST("/:id/expend", h.expend)
	}
}

// allocate godoc
// @Summary Allocate a budget line
// @Description Opens a budget line for a department cost center and fiscal year
// @Tags budgets
// @Accept  json
// @Produce  json
// @Param   line body dto.AllocateBudgetRequest true "Allocation"
// @Success 201 {object} dto.BudgetLineResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 409 {object} map[string]string "Line already exists"
// @Security BearerAuth
// @Router /budgets [post]
func (h *budgetHandler) allocate(c *gin.Context) {
	var req dto.AllocateBudgetRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	line, err := h.ledger.Allocate(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, err, "Failed to allocate budget")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Budget line allocated", slog.String("budget_line_id", line.BudgetLineID))
	c.JSON(http.StatusCreated, dto.ToBudgetLineResponse(line))
}

func (h *budgetHandler) getBudgetLine(c *gin.Context) {
	line, err := h.ledger.GetBudgetLine(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve budget line")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetLineResponse(line))
}

// listBudgetLines godoc
// @Summary List budget lines
// @Tags budgets
// @Produce  json
// @Param   fiscalYear query int false "Fiscal year"
// @Param   departmentID query string false "Department"
// @Param   category query string false "OPERATIONAL or CAPITAL"
// @Success 200 {array} dto.BudgetLineResponse
// @Security BearerAuth
// @Router /budgets [get]
func (h *budgetHandler) listBudgetLines(c *gin.Context) {
	var params dto.ListBudgetLinesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	lines, err := h.ledger.ListBudgetLines(c.Request.Context(), domain.BudgetLineFilter{
		FiscalYear:   params.FiscalYear,
		DepartmentID: params.DepartmentID,
		Category:     domain.BudgetCategory(params.Category),
	})
	if err != nil {
		respondError(c, err, "Failed to list budget lines")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetLineResponses(lines))
}

func (h *budgetHandler) listTransactions(c *gin.Context) {
	var params dto.ListTransactionsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	txns, next, err := h.ledger.ListTransactions(c.Request.Context(), c.Param("id"), params.Limit, params.NextToken)
	if err != nil {
		respondError(c, err, "Failed to list budget transactions")
		return
	}
	c.JSON(http.StatusOK, dto.ListBudgetTransactionsResponse{Transactions: txns, NextToken: next})
}

func (h *budgetHandler) reallocate(c *gin.Context) {
	var req dto.ReallocateBudgetRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	err := h.ledger.Reallocate(c.Request.Context(), req.FromBudgetLineID, req.ToBudgetLineID, req.Amount, req.Reason, userID)
	if err != nil {
		respondError(c, err, "Failed to reallocate budget")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *budgetHandler) commit(c *gin.Context) {
	var req dto.LedgerMutationRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	line, err := h.ledger.Commit(c.Request.Context(), c.Param("id"), req.Amount, req.ToReference(), userID)
	if err != nil {
		respondError(c, err, "Failed to commit funds")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetLineResponse(line))
}

func (h *budgetHandler) release(c *gin.Context) {
	var req dto.LedgerMutationRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	released, err := h.ledger.ReleaseCommitment(ctx, c.Param("id"), req.Amount, req.ToReference(), userID)
	if err != nil {
		respondError(c, err, "Failed to release commitment")
		return
	}
	line, err := h.ledger.GetBudgetLine(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve budget line")
		return
	}
	c.JSON(http.StatusOK, dto.ReleaseCommitmentResponse{Released: released, Line: dto.ToBudgetLineResponse(line)})
}

func (h *budgetHandler) expend(c *gin.Context) {
	var req dto.LedgerMutationRequest
	if !bindJSON(c, &req) {
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	line, err := h.ledger.RecordExpenditure(c.Request.Context(), c.Param("id"), req.Amount, req.ToReference(), userID)
	if err != nil {
		respondError(c, err, "Failed to record expenditure")
		return
	}
	c.JSON(http.StatusOK, dto.ToBudgetLineResponse(line))
}

func (h *budgetHandler) closeFiscalYear(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fiscal year must be a number"})
		return
	}
	userID, ok := actingUser(c)
	if !ok {
		return
	}

	locked, err := h.ledger.CloseFiscalYear(c.Request.Context(), year, userID)
	if err != nil {
		respondError(c, err, "Failed to close fiscal year")
		return
	}
	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Fiscal year closed", slog.Int("fiscal_year", year), slog.Int64("lines_locked", locked))
	c.JSON(http.StatusOK, dto.CloseFiscalYearResponse{FiscalYear: year, LinesLocked: locked})
}
