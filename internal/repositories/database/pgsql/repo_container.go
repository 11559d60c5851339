package pgsql

import (
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewRepositoryProvider(dbPool *pgxpool.Pool) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:       NewTxManager(dbPool),
		BudgetRepo:      newPgxBudgetRepository(dbPool),
		StatusRepo:      newPgxEntityStatusRepository(dbPool),
		TransitionRepo:  newPgxStateTransitionRepository(dbPool),
		ApprovalRepo:    newPgxApprovalRecordRepository(dbPool),
		RequisitionRepo: newPgxRequisitionRepository(dbPool),
		InvoiceRepo:     newPgxInvoiceRepository(dbPool),
		PaymentRepo:     newPgxPaymentRepository(dbPool),
		ProcurementRepo: newPgxProcurementRepository(dbPool),
		ConflictRepo:    newPgxConflictOfInterestRepository(dbPool),
		UserRepo:        newPgxUserRepository(dbPool),
		AuditRepo:       newPgxAuditLogRepository(dbPool),
	}
}
