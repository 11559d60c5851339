package handlers

import (
	"net/http"
	"strconv"

	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/gin-gonic/gin"
)

// reportingHandler handles HTTP requests for fiscal-year budget reports
type reportingHandler struct {
	reportingService portssvc.BudgetReportingSvc
}

func newReportingHandler(rs portssvc.BudgetReportingSvc) *reportingHandler {
	return &reportingHandler{reportingService: rs}
}

// RegisterReportingRoutes registers routes related to budget reports
func RegisterReportingRoutes(rg *gin.RouterGroup, reportingService portssvc.BudgetReportingSvc) {
	h := newReportingHandler(reportingService)

	reports := rg.Group("/reports/:year")
	{
		reports.GET("/departments", h.departmentReport)
		reports.GET("/variance", h.varianceAnalysis)
		reports.GET("/categories", h.budgetByCategory)
	}
}

func fiscalYearParam(c *gin.Context) (int, bool) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fiscal year must be a positive number"})
		return 0, false
	}
	return year, true
}

// departmentReport godoc
// @Summary Department budget report
// @Description Allocated, committed, spent and available amounts per department
// @Tags reports
// @Produce json
// @Param year path int true "Fiscal year"
// @Success 200 {array} domain.DepartmentBudgetSummary
// @Security BearerAuth
// @Router /reports/{year}/departments [get]
func (h *reportingHandler) departmentReport(c *gin.Context) {
	year, ok := fiscalYearParam(c)
	if !ok {
		return
	}
	report, err := h.reportingService.DepartmentBudgetReport(c.Request.Context(), year)
	if err != nil {
		respondError(c, err, "Failed to generate department report")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *reportingHandler) varianceAnalysis(c *gin.Context) {
	year, ok := fiscalYearParam(c)
	if !ok {
		return
	}
	report, err := h.reportingService.VarianceAnalysis(c.Request.Context(), year)
	if err != nil {
		respondError(c, err, "Failed to generate variance analysis")
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *reportingHandler) budgetByCategory(c *gin.Context) {
	year, ok := fiscalYearParam(c)
	if !ok {
		return
	}
	report, err := h.reportingService.BudgetByCategory(c.Request.Context(), year)
	if err != nil {
		respondError(c, err, "Failed to generate category report")
		return
	}
	c.JSON(http.StatusOK, report)
}
