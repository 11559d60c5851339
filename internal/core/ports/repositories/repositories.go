package repositories

// RepositoryProvider holds all repository interfaces needed by services.
// This makes passing dependencies to the service container constructor cleaner.
type RepositoryProvider struct {
	TxManager       TransactionManager
	BudgetRepo      BudgetRepositoryFacade
	StatusRepo      EntityStatusRepository
	TransitionRepo  StateTransitionRepository
	ApprovalRepo    ApprovalRecordRepository
	RequisitionRepo RequisitionRepository
	InvoiceRepo     InvoiceRepository
	PaymentRepo     PaymentRepository
	ProcurementRepo ProcurementRepository
	ConflictRepo    ConflictOfInterestRepository
	UserRepo        UserRepository
	AuditRepo       AuditLogRepository
}
