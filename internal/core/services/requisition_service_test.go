package services_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/stretchr/testify/suite"
)

type RequisitionServiceTestSuite struct {
	P2PTestSuite
	budget    *domain.BudgetLine
	requester domain.User
	hod       domain.User
	fm        domain.User
	officer   domain.User
}

func TestRequisitionServiceTestSuite(t *testing.T) {
	suite.Run(t, new(RequisitionServiceTestSuite))
}

func (s *RequisitionServiceTestSuite) SetupTest() {
	s.P2PTestSuite.SetupTest()
	s.budget = s.allocate("ict", "CC-ICT", 2025, "1000000")
	s.requester = s.user("ict", "0", domain.RoleStaff)
	s.hod = s.user("ict", "100000", domain.RoleHOD)
	s.fm = s.user("finance", "600000", domain.RoleFinanceManager)
	s.officer = s.user("procurement", "0", domain.RoleProcurementOfficer)
}

func (s *RequisitionServiceTestSuite) submitted(amount string) *domain.Requisition {
	r, err := s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "ict",
		BudgetLineID: s.budget.BudgetLineID,
		Title:        "Laptops",
		Amount:       dec(amount),
	}, s.requester.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionDraft, r.Status)

	r, err = s.svc.Requisition.SubmitRequisition(s.ctx, r.RequisitionID, s.requester.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, r.Status)
	s.Equal(domain.LevelHeadOfDepartment, r.CurrentApprovalLevel)
	return r
}

func (s *RequisitionServiceTestSuite) TestCreate_Validation() {
	var vErr *apperrors.ValidationError
	_, err := s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "ict", BudgetLineID: s.budget.BudgetLineID, Title: "x", Amount: dec("-5"),
	}, s.requester.UserID)
	s.ErrorAs(err, &vErr)

	_, err = s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "hr", BudgetLineID: s.budget.BudgetLineID, Title: "x", Amount: dec("5"),
	}, s.requester.UserID)
	s.ErrorAs(err, &vErr)

	_, err = s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "ict", BudgetLineID: s.budget.BudgetLineID, Title: "x", Amount: dec("5"),
	}, "ghost")
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *RequisitionServiceTestSuite) TestApprove_SmallAmountIsFinalAtHOD() {
	r := s.submitted("50000")

	r, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{Comments: "ok"}, s.hod.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionHODApproved, r.Status)
	s.Equal(s.hod.UserID, r.ApprovedBy)
	s.NotNil(r.ApprovedAt)

	approved := s.notifier.sent(domain.NotifyRequisitionApproved)
	s.Require().Len(approved, 1)
	s.Equal([]string{s.requester.UserID}, approved[0].Recipients)
}

func (s *RequisitionServiceTestSuite) TestApprove_RoutesToFinanceManager() {
	r := s.submitted("300000")

	// The HOD's limit is below the amount, but only the final approval is limit checked.
	r, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, r.Status)
	s.Equal(domain.LevelFinanceManager, r.CurrentApprovalLevel)
	s.Empty(r.ApprovedBy)

	required := s.notifier.sent(domain.NotifyApprovalRequired)
	s.Require().NotEmpty(required)
	s.Equal([]string{s.fm.UserID}, required[len(required)-1].Recipients)

	// The HOD cannot sign the next level too.
	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)

	r, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{Comments: "funded"}, s.fm.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionHODApproved, r.Status)
	s.Equal(s.fm.UserID, r.ApprovedBy)

	history, err := s.svc.Requisition.ApprovalHistory(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(domain.LevelHeadOfDepartment, history[0].Level)
	s.Equal(1, history[0].Sequence)
	s.Equal(domain.LevelFinanceManager, history[1].Level)
	s.Equal(2, history[1].Sequence)

	transitions, err := s.svc.Workflow.History(s.ctx, domain.EntityRequisition, r.RequisitionID)
	s.Require().NoError(err)
	events := make([]string, 0, len(transitions))
	for _, t := range transitions {
		events = append(events, t.Event)
	}
	s.Equal([]string{"submit", "approve", "approve_partial", "approve"}, events)
}

func (s *RequisitionServiceTestSuite) TestApprove_SameUserAtTwoLevels() {
	both := s.user("ict", "10000000", domain.RoleHOD, domain.RoleFinanceManager)
	r := s.submitted("300000")

	_, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, both.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, both.UserID)
	s.ErrorIs(err, apperrors.ErrSegregationOfDuties)
}

func (s *RequisitionServiceTestSuite) TestApprove_FinalApprovalOverLimit() {
	r := s.submitted("300000")
	lowFM := s.user("finance", "200000", domain.RoleFinanceManager)

	_, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, lowFM.UserID)
	var authErr *apperrors.AuthorizationError
	s.Require().ErrorAs(err, &authErr)
	s.True(authErr.Limit.Equal(dec("200000")))

	got, err := s.svc.Requisition.GetRequisition(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, got.Status)
	s.Equal(domain.LevelFinanceManager, got.CurrentApprovalLevel)
}

func (s *RequisitionServiceTestSuite) TestApprove_SubmitterCannotApprove() {
	selfApprover := s.user("ict", "1000000", domain.RoleHOD)
	r, err := s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "ict", BudgetLineID: s.budget.BudgetLineID, Title: "Chairs", Amount: dec("1000"),
	}, selfApprover.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.SubmitRequisition(s.ctx, r.RequisitionID, selfApprover.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, selfApprover.UserID)
	s.ErrorIs(err, apperrors.ErrSegregationOfDuties)
}

func (s *RequisitionServiceTestSuite) TestApprove_HODFromAnotherDepartment() {
	otherHOD := s.user("hr", "1000000", domain.RoleHOD)
	r := s.submitted("1000")

	_, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, otherHOD.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)
}

func (s *RequisitionServiceTestSuite) TestReject_ThenApproveIsInvalid() {
	r := s.submitted("1000")

	_, err := s.svc.Requisition.RejectRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	var vErr *apperrors.ValidationError
	s.Require().ErrorAs(err, &vErr)

	r, err = s.svc.Requisition.RejectRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{Comments: "no budget case"}, s.hod.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionRejected, r.Status)
	s.Equal("no budget case", r.RejectionReason)
	s.Len(s.notifier.sent(domain.NotifyRequisitionRejected), 1)

	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	var invalid *apperrors.InvalidTransitionError
	s.Require().ErrorAs(err, &invalid)
	s.Equal(domain.RequisitionRejected, invalid.CurrentState)
}

func (s *RequisitionServiceTestSuite) TestCancel() {
	r := s.submitted("1000")

	_, err := s.svc.Requisition.CancelRequisition(s.ctx, r.RequisitionID, s.hod.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)

	r, err = s.svc.Requisition.CancelRequisition(s.ctx, r.RequisitionID, s.requester.UserID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionCancelled, r.Status)

	_, err = s.svc.Requisition.CancelRequisition(s.ctx, r.RequisitionID, s.requester.UserID)
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (s *RequisitionServiceTestSuite) TestConcurrentApprovals_OneWins() {
	secondHOD := s.user("ict", "100000", domain.RoleHOD)
	r := s.submitted("1000")

	approvers := []string{s.hod.UserID, secondHOD.UserID}
	errs := make([]error, len(approvers))
	var wg sync.WaitGroup
	for i, id := range approvers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, id)
		}()
	}
	wg.Wait()

	wins, invalid := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperrors.ErrInvalidTransition):
			invalid++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, invalid)

	history, err := s.svc.Requisition.ApprovalHistory(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *RequisitionServiceTestSuite) approved(amount string) *domain.Requisition {
	r := s.submitted(amount)
	r, err := s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, s.hod.UserID)
	s.Require().NoError(err)
	s.Require().Equal(domain.RequisitionHODApproved, r.Status)
	return r
}

func (s *RequisitionServiceTestSuite) TestConvertToPurchaseOrder_CommitsBudget() {
	r := s.approved("40000")

	_, err := s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, s.requester.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)

	po, err := s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.PurchaseOrderIssued, po.Status)
	s.True(po.Amount.Equal(dec("40000")))

	line := s.line(s.budget.BudgetLineID)
	s.True(line.CommittedAmount.Equal(dec("40000")))

	got, err := s.svc.Requisition.GetRequisition(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPOCreated, got.Status)
	s.Equal(po.PurchaseOrderID, got.PurchaseOrderID)

	_, err = s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, s.officer.UserID)
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (s *RequisitionServiceTestSuite) TestConvertToPurchaseOrder_InsufficientFundsRollsBack() {
	r := s.approved("40000")
	admin := s.user("ict", "0", domain.RoleSuperAdmin)
	_, err := s.svc.Ledger.Commit(s.ctx, s.budget.BudgetLineID, dec("980000"), ref("PO-OTHER"), admin.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, s.officer.UserID)
	s.ErrorIs(err, apperrors.ErrInsufficientFunds)

	got, err := s.svc.Requisition.GetRequisition(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionHODApproved, got.Status)
	s.Empty(got.PurchaseOrderID)
	s.True(s.line(s.budget.BudgetLineID).CommittedAmount.Equal(dec("980000")))

	logs, err := s.repos.AuditRepo.ListAuditLogs(s.ctx, "purchase_order", "")
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *RequisitionServiceTestSuite) TestCancelPurchaseOrder_ReleasesCommitment() {
	r := s.approved("40000")
	po, err := s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, s.officer.UserID)
	s.Require().NoError(err)

	po, err = s.svc.Requisition.CancelPurchaseOrder(s.ctx, po.PurchaseOrderID, "supplier withdrew", s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.PurchaseOrderCancelled, po.Status)
	s.True(s.line(s.budget.BudgetLineID).CommittedAmount.IsZero())

	_, err = s.svc.Requisition.CancelPurchaseOrder(s.ctx, po.PurchaseOrderID, "again", s.officer.UserID)
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (s *RequisitionServiceTestSuite) TestListRequisitions_FiltersByStatus() {
	s.submitted("1000")
	s.approved("2000")

	pending, err := s.svc.Requisition.ListRequisitions(s.ctx, domain.RequisitionPendingApproval, 0, 0)
	s.Require().NoError(err)
	s.Len(pending, 1)

	all, err := s.svc.Requisition.ListRequisitions(s.ctx, "", 10, 0)
	s.Require().NoError(err)
	s.Len(all, 2)
}
