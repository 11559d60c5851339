package services_test

import (
	"context"
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/core/services"
	"github.com/SscSPs/procure_to_pay/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(l domain.ApprovalLevel) *domain.ApprovalLevel { return &l }

func TestRouteNextApprovalLevel(t *testing.T) {
	authority := services.NewApprovalAuthority(nil, false)

	tests := []struct {
		amount string
		want   *domain.ApprovalLevel
	}{
		{"0", nil},
		{"50000", nil},
		{"50000.01", level(domain.LevelFinanceManager)},
		{"50001", level(domain.LevelFinanceManager)},
		{"500000", level(domain.LevelFinanceManager)},
		{"500001", level(domain.LevelProcurementOfficer)},
		{"2000000", level(domain.LevelProcurementOfficer)},
		{"2000001", level(domain.LevelSuperAdmin)},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got := authority.RouteNextApprovalLevel(dec(tt.amount))
			assert.Equal(t, tt.want, got)
			// Same input, same answer.
			assert.Equal(t, got, authority.RouteNextApprovalLevel(dec(tt.amount)))
		})
	}
}

func TestNextApprovalLevel(t *testing.T) {
	authority := services.NewApprovalAuthority(nil, false)

	assert.Nil(t, authority.NextApprovalLevel(domain.LevelHeadOfDepartment, dec("50000")))
	assert.Equal(t, level(domain.LevelFinanceManager), authority.NextApprovalLevel(domain.LevelHeadOfDepartment, dec("300000")))
	assert.Nil(t, authority.NextApprovalLevel(domain.LevelFinanceManager, dec("300000")))
	// Levels between the current one and the routed one are skipped.
	assert.Equal(t, level(domain.LevelSuperAdmin), authority.NextApprovalLevel(domain.LevelHeadOfDepartment, dec("3000000")))
	assert.Nil(t, authority.NextApprovalLevel(domain.LevelSuperAdmin, dec("3000000")))
}

func TestCheckApproverRoleAndLimit(t *testing.T) {
	authority := services.NewApprovalAuthority(nil, false)
	fm := domain.User{UserID: "fm", Roles: []domain.Role{domain.RoleFinanceManager}, ApprovalLimit: dec("100000")}
	admin := domain.User{UserID: "root", Roles: []domain.Role{domain.RoleSuperAdmin}, ApprovalLimit: dec("0")}

	assert.NoError(t, authority.CheckApproverRole(fm, domain.LevelFinanceManager))
	assert.ErrorIs(t, authority.CheckApproverRole(fm, domain.LevelHeadOfDepartment), apperrors.ErrForbidden)
	assert.NoError(t, authority.CheckApproverRole(admin, domain.LevelProcurementOfficer))

	assert.NoError(t, authority.CheckAuthorityLimit(fm, dec("100000")))
	err := authority.CheckAuthorityLimit(fm, dec("100000.01"))
	var authErr *apperrors.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	require.NotNil(t, authErr.Limit)
	assert.True(t, authErr.Limit.Equal(dec("100000")))
	assert.NoError(t, authority.CheckAuthorityLimit(admin, dec("99999999")))
}

func TestCheckSegregationOfDuties(t *testing.T) {
	authority := services.NewApprovalAuthority(nil, false)

	payment := &domain.Payment{PaymentID: "pay-1", SubmittedBy: "U1"}
	err := authority.CheckSegregationOfDuties(payment, "U1", domain.ActorApprover)
	var sod *apperrors.SegregationOfDutiesViolation
	require.ErrorAs(t, err, &sod)
	assert.Equal(t, string(domain.ActorApprover), sod.Role)
	assert.Equal(t, string(domain.ActorSubmitter), sod.ConflictsWith)
	assert.NoError(t, authority.CheckSegregationOfDuties(payment, "U2", domain.ActorApprover))

	payment.ApprovedBy = "U2"
	assert.ErrorIs(t, authority.CheckSegregationOfDuties(payment, "U1", domain.ActorProcessor), apperrors.ErrSegregationOfDuties)
	assert.ErrorIs(t, authority.CheckSegregationOfDuties(payment, "U2", domain.ActorProcessor), apperrors.ErrSegregationOfDuties)
	assert.NoError(t, authority.CheckSegregationOfDuties(payment, "U3", domain.ActorProcessor))

	invoice := &domain.SupplierInvoice{InvoiceID: "inv-1", SubmittedBy: "A", VerifiedBy: "B"}
	err = authority.CheckSegregationOfDuties(invoice, "B", domain.ActorApprover)
	require.ErrorAs(t, err, &sod)
	assert.Equal(t, string(domain.ActorVerifier), sod.ConflictsWith)
	assert.NoError(t, authority.CheckSegregationOfDuties(invoice, "C", domain.ActorApprover))
}

func TestCheckMinimumQuotes(t *testing.T) {
	authority := services.NewApprovalAuthority(nil, false)

	tests := []struct {
		estimate string
		bids     int
		band     string
		required int
	}{
		{"50000", 1, "direct", 1},
		{"50001", 2, "rfq", 3},
		{"1000000", 3, "rfq", 3},
		{"5000000", 4, "rfp", 5},
		{"5000001", 6, "open_tender", 7},
	}
	for _, tt := range tests {
		t.Run(tt.estimate, func(t *testing.T) {
			process := domain.ProcurementProcess{ProcessID: "p", EstimatedAmount: dec(tt.estimate)}
			bids := make([]domain.Bid, tt.bids)
			err := authority.CheckMinimumQuotes(process, bids)
			if tt.bids >= tt.required {
				assert.NoError(t, err)
				return
			}
			var mq *apperrors.MinimumQuotesError
			require.ErrorAs(t, err, &mq)
			assert.Equal(t, tt.band, mq.Band)
			assert.Equal(t, tt.required, mq.Required)
			assert.Equal(t, tt.bids, mq.Actual)
		})
	}
}

func TestCheckConflictOfInterest(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	conflicts := memory.NewConflictOfInterestRepository(store)
	require.NoError(t, conflicts.SaveDeclaration(ctx, domain.ConflictOfInterestDeclaration{
		DeclarationID: "d1", UserID: "ev", TargetType: domain.ConflictTargetSupplier, TargetID: "S", HasConflict: true,
	}))
	require.NoError(t, conflicts.SaveDeclaration(ctx, domain.ConflictOfInterestDeclaration{
		DeclarationID: "d2", UserID: "ev", TargetType: domain.ConflictTargetSupplier, TargetID: "T", HasConflict: false,
	}))

	process := domain.ProcurementProcess{ProcessID: "P"}
	withS := []domain.Bid{{BidID: "b1", SupplierID: "S"}, {BidID: "b2", SupplierID: "X"}}
	withT := []domain.Bid{{BidID: "b3", SupplierID: "T"}}

	enabled := services.NewApprovalAuthority(conflicts, true)
	err := enabled.CheckConflictOfInterest(ctx, "ev", process, withS)
	var coi *apperrors.ConflictOfInterestError
	require.ErrorAs(t, err, &coi)
	assert.Equal(t, []string{"S"}, coi.SupplierIDs)
	assert.NoError(t, enabled.CheckConflictOfInterest(ctx, "ev", process, withT), "a declaration without conflict is not a conflict")
	assert.NoError(t, enabled.CheckConflictOfInterest(ctx, "other", process, withS))

	require.NoError(t, conflicts.SaveDeclaration(ctx, domain.ConflictOfInterestDeclaration{
		DeclarationID: "d3", UserID: "ev2", TargetType: domain.ConflictTargetProcess, TargetID: "P", HasConflict: true,
	}))
	err = enabled.CheckConflictOfInterest(ctx, "ev2", process, nil)
	require.ErrorAs(t, err, &coi)
	assert.Empty(t, coi.SupplierIDs)

	disabled := services.NewApprovalAuthority(conflicts, false)
	assert.NoError(t, disabled.CheckConflictOfInterest(ctx, "ev", process, withS))
}
