//go:build integration

package pgsql_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/core/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/platform/audit"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/SscSPs/procure_to_pay/internal/platform/lock"
	"github.com/SscSPs/procure_to_pay/internal/platform/notify"
	"github.com/SscSPs/procure_to_pay/internal/repositories/database/pgsql"
	"github.com/SscSPs/procure_to_pay/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const migrationsPath = "file://../../../../migrations"

// setupPostgresContainer starts a disposable PostgreSQL container, applies the
// migrations and returns a pool plus a teardown function.
func setupPostgresContainer(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("p2p"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	changed, err := database.RunMigrations(dsn, migrationsPath)
	require.NoError(t, err)
	require.True(t, changed, "fresh database should receive migrations")

	pool, err := database.NewPgxPool(ctx, dsn, true)
	require.NoError(t, err)

	return pool, func() {
		database.ClosePgxPool(pool)
		require.NoError(t, container.Terminate(ctx))
	}
}

type PgsqlIntegrationSuite struct {
	suite.Suite
	ctx     context.Context
	pool    *pgxpool.Pool
	cleanup func()
	repos   portsrepo.RepositoryProvider
	svc     *portssvc.ServiceContainer
}

func TestPgsqlIntegration(t *testing.T) {
	suite.Run(t, new(PgsqlIntegrationSuite))
}

func (s *PgsqlIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pool, s.cleanup = setupPostgresContainer(s.T())
	s.repos = pgsql.NewRepositoryProvider(s.pool)
	s.svc = services.NewServiceContainer(&config.Config{
		BudgetAlertThresholdPercent:    decimal.NewFromInt(90),
		ConflictOfInterestCheckEnabled: true,
		InvoiceMatchTolerancePercent:   decimal.NewFromInt(5),
	}, s.repos, services.Dependencies{
		Locker:   lock.NewLocalLocker(),
		Audit:    audit.NewRecorder(s.repos.AuditRepo),
		Notifier: notify.LogNotifier{},
	})
}

func (s *PgsqlIntegrationSuite) TearDownSuite() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func (s *PgsqlIntegrationSuite) user(dept, limit string, roles ...domain.Role) domain.User {
	now := time.Now().UTC()
	u := domain.User{
		UserID:        uuid.NewString(),
		Name:          "user-" + uuid.NewString()[:6],
		Email:         uuid.NewString()[:8] + "@example.org",
		DepartmentID:  dept,
		Roles:         roles,
		ApprovalLimit: decimal.RequireFromString(limit),
		IsActive:      true,
		AuditFields:   domain.AuditFields{CreatedAt: now, CreatedBy: "test", LastUpdatedAt: now, LastUpdatedBy: "test"},
	}
	s.Require().NoError(s.repos.UserRepo.SaveUser(s.ctx, u))
	return u
}

func (s *PgsqlIntegrationSuite) allocate(dept, amount string) *domain.BudgetLine {
	admin := s.user(dept, "0", domain.RoleSuperAdmin)
	line, err := s.svc.Ledger.Allocate(s.ctx, dto.AllocateBudgetRequest{
		DepartmentID:  dept,
		CostCenter:    "CC-" + uuid.NewString()[:8],
		FiscalYear:    2025,
		Amount:        decimal.RequireFromString(amount),
		IsOperational: true,
	}, admin.UserID)
	s.Require().NoError(err)
	return line
}

func (s *PgsqlIntegrationSuite) TestUsers_RolesRoundTrip() {
	hod := s.user("ict", "250000.50", domain.RoleHOD, domain.RoleEvaluator)

	found, err := s.repos.UserRepo.FindUserByID(s.ctx, hod.UserID)
	s.Require().NoError(err)
	s.ElementsMatch(hod.Roles, found.Roles)
	s.True(found.ApprovalLimit.Equal(hod.ApprovalLimit))

	evaluators, err := s.repos.UserRepo.FindUsersByRole(s.ctx, domain.RoleEvaluator)
	s.Require().NoError(err)
	var ids []string
	for _, u := range evaluators {
		ids = append(ids, u.UserID)
	}
	s.Contains(ids, hod.UserID)

	_, err = s.repos.UserRepo.FindUserByID(s.ctx, "missing")
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *PgsqlIntegrationSuite) TestBudgetLine_DuplicateScope() {
	line := s.allocate("hr", "1000")

	dup := *line
	dup.BudgetLineID = uuid.NewString()
	err := s.repos.BudgetRepo.SaveBudgetLine(s.ctx, dup)
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

func (s *PgsqlIntegrationSuite) TestWithinTx_RollbackLeavesNothing() {
	line := s.allocate("legal", "1000")
	boom := errors.New("boom")

	err := s.repos.TxManager.WithinTx(s.ctx, func(ctx context.Context) error {
		l, err := s.repos.BudgetRepo.FindBudgetLineForUpdate(ctx, line.BudgetLineID)
		if err != nil {
			return err
		}
		l.CommittedAmount = decimal.NewFromInt(500)
		if err := s.repos.BudgetRepo.UpdateBudgetLineBalances(ctx, *l); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := s.repos.BudgetRepo.FindBudgetLineByID(s.ctx, line.BudgetLineID)
	s.Require().NoError(err)
	s.True(stored.CommittedAmount.IsZero())
}

func (s *PgsqlIntegrationSuite) TestCommit_ConcurrentCallersNeverOverdraw() {
	line := s.allocate("works", "1000")
	actor := s.user("works", "0", domain.RoleFinanceManager)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.svc.Ledger.Commit(s.ctx, line.BudgetLineID, decimal.NewFromInt(150),
				domain.LedgerReference{Type: "purchase_order", ID: uuid.NewString()}, actor.UserID)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			s.ErrorIs(err, apperrors.ErrInsufficientFunds)
		}(i)
	}
	wg.Wait()

	s.Equal(6, succeeded)
	stored, err := s.svc.Ledger.GetBudgetLine(s.ctx, line.BudgetLineID)
	s.Require().NoError(err)
	s.True(stored.CommittedAmount.Equal(decimal.NewFromInt(900)))

	txns, next, err := s.svc.Ledger.ListTransactions(s.ctx, line.BudgetLineID, 4, nil)
	s.Require().NoError(err)
	s.Len(txns, 4)
	s.Require().NotNil(next)
	rest, next, err := s.svc.Ledger.ListTransactions(s.ctx, line.BudgetLineID, 10, next)
	s.Require().NoError(err)
	s.Nil(next)
	s.Len(rest, 3) // six commitments plus the allocation

	balances := domain.ReplayBalances(append(txns, rest...))
	s.True(balances.Allocated.Equal(stored.AllocatedAmount))
	s.True(balances.Committed.Equal(stored.CommittedAmount))
}

func (s *PgsqlIntegrationSuite) TestStatusCompareAndSet() {
	line := s.allocate("fleet", "5000")
	requester := s.user("fleet", "0", domain.RoleStaff)

	r, err := s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "fleet", BudgetLineID: line.BudgetLineID, Title: "Tyres", Amount: decimal.NewFromInt(400),
	}, requester.UserID)
	s.Require().NoError(err)

	now := time.Now().UTC()
	swapped, err := s.repos.StatusRepo.CompareAndSetStatus(s.ctx, domain.EntityRequisition, r.RequisitionID,
		domain.RequisitionPendingApproval, domain.RequisitionHODApproved, requester.UserID, now)
	s.Require().NoError(err)
	s.False(swapped)

	swapped, err = s.repos.StatusRepo.CompareAndSetStatus(s.ctx, domain.EntityRequisition, r.RequisitionID,
		domain.RequisitionDraft, domain.RequisitionPendingApproval, requester.UserID, now)
	s.Require().NoError(err)
	s.True(swapped)

	status, err := s.repos.StatusRepo.FindEntityStatus(s.ctx, domain.EntityRequisition, r.RequisitionID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, status)

	_, err = s.repos.StatusRepo.FindEntityStatus(s.ctx, domain.EntityPayment, "missing")
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *PgsqlIntegrationSuite) TestProcureToPay_EndToEnd() {
	line := s.allocate("ops", "1000000")
	requester := s.user("ops", "0", domain.RoleStaff)
	hod := s.user("ops", "1000000", domain.RoleHOD)
	fm := s.user("finance", "1000000", domain.RoleFinanceManager)
	fm2 := s.user("finance", "1000000", domain.RoleFinanceManager)
	officer := s.user("procurement", "0", domain.RoleProcurementOfficer)
	clerk := s.user("finance", "0", domain.RoleStaff)
	accountant := s.user("finance", "0", domain.RoleAccountant)

	r, err := s.svc.Requisition.CreateRequisition(s.ctx, dto.CreateRequisitionRequest{
		DepartmentID: "ops", BudgetLineID: line.BudgetLineID, Title: "Generators", Amount: decimal.NewFromInt(300000),
	}, requester.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.SubmitRequisition(s.ctx, r.RequisitionID, requester.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{}, hod.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Requisition.ApproveRequisition(s.ctx, r.RequisitionID, dto.DecisionRequest{Comments: "ok"}, fm2.UserID)
	s.Require().NoError(err)
	po, err := s.svc.Requisition.ConvertToPurchaseOrder(s.ctx, r.RequisitionID, dto.CreatePurchaseOrderRequest{SupplierID: "sup-1"}, officer.UserID)
	s.Require().NoError(err)

	records, err := s.svc.Requisition.ApprovalHistory(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Len(records, 2)

	inv, err := s.svc.Invoice.CreateInvoice(s.ctx, dto.CreateInvoiceRequest{
		InvoiceNumber: "INV-1", SupplierID: "sup-1", PurchaseOrderID: po.PurchaseOrderID, Amount: decimal.NewFromInt(300000),
	}, clerk.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Invoice.SubmitInvoice(s.ctx, inv.InvoiceID, clerk.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Invoice.VerifyInvoice(s.ctx, inv.InvoiceID, dto.VerifyInvoiceRequest{GoodsReceivedAmount: decimal.NewFromInt(300000)}, fm.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Invoice.ApproveInvoice(s.ctx, inv.InvoiceID, dto.DecisionRequest{}, fm2.UserID)
	s.Require().NoError(err)

	stored, err := s.svc.Ledger.GetBudgetLine(s.ctx, line.BudgetLineID)
	s.Require().NoError(err)
	s.True(stored.CommittedAmount.IsZero())
	s.True(stored.SpentAmount.Equal(decimal.NewFromInt(300000)))
	closed, err := s.svc.Requisition.GetPurchaseOrder(s.ctx, po.PurchaseOrderID)
	s.Require().NoError(err)
	s.Equal(domain.PurchaseOrderClosed, closed.Status)

	p, err := s.svc.Payment.CreatePayment(s.ctx, dto.CreatePaymentRequest{InvoiceID: inv.InvoiceID, Method: "BANK_TRANSFER"}, clerk.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Payment.SubmitPayment(s.ctx, p.PaymentID, clerk.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Payment.ApprovePayment(s.ctx, p.PaymentID, dto.DecisionRequest{}, fm.UserID)
	s.Require().NoError(err)
	p, err = s.svc.Payment.ProcessPayment(s.ctx, p.PaymentID, accountant.UserID)
	s.Require().NoError(err)
	s.Equal(domain.PaymentPaid, p.Status)

	inv, err = s.svc.Invoice.GetInvoice(s.ctx, inv.InvoiceID)
	s.Require().NoError(err)
	s.Equal(domain.InvoicePaid, inv.Status)

	history, err := s.svc.Workflow.History(s.ctx, domain.EntitySupplierInvoice, inv.InvoiceID)
	s.Require().NoError(err)
	s.Require().Len(history, 4)
	s.Equal(domain.InvoicePaid, history[3].ToState)

	logs, err := s.repos.AuditRepo.ListAuditLogs(s.ctx, string(domain.EntityPayment), p.PaymentID)
	s.Require().NoError(err)
	s.NotEmpty(logs)
}

func (s *PgsqlIntegrationSuite) TestEvaluations_AllOrNothing() {
	officer := s.user("procurement", "0", domain.RoleProcurementOfficer)
	evaluator := s.user("procurement", "0", domain.RoleEvaluator)

	closing := time.Now().Add(time.Hour)
	p, err := s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
		ReferenceNumber: "RFQ-" + uuid.NewString()[:6], Title: "Laptops", EstimatedAmount: decimal.NewFromInt(40000), ClosingDate: &closing,
	}, officer.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.PublishProcess(s.ctx, p.ProcessID, officer.UserID)
	s.Require().NoError(err)
	bid, err := s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S1", Amount: decimal.NewFromInt(39000)}, officer.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S1", Amount: decimal.NewFromInt(38000)}, officer.UserID)
	s.ErrorIs(err, apperrors.ErrDuplicate)

	_, err = s.svc.Procurement.CloseBidding(s.ctx, p.ProcessID, officer.UserID)
	s.Require().NoError(err)

	sheet := dto.EvaluateBidsRequest{Scores: []dto.BidScoreRequest{{
		BidID: bid.BidID, TechnicalScore: decimal.NewFromInt(60), FinancialScore: decimal.NewFromInt(25),
	}}}
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, sheet, evaluator.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, sheet, evaluator.UserID)
	s.ErrorIs(err, apperrors.ErrDuplicate)

	evaluations, err := s.repos.ProcurementRepo.ListBidEvaluations(s.ctx, p.ProcessID)
	s.Require().NoError(err)
	s.Require().Len(evaluations, 1)
	s.True(evaluations[0].TotalScore.Equal(decimal.NewFromInt(85)))

	awarded, err := s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, officer.UserID)
	s.Require().NoError(err)
	s.Equal(bid.BidID, awarded.AwardedBidID)
}
