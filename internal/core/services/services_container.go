package services

import (
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
)

// Dependencies are the side-effect adapters the services are built on.
type Dependencies struct {
	Locker   portssvc.Locker
	Audit    portssvc.AuditSink
	Notifier portssvc.Notifier
	Clock    func() time.Time
}

// NewServiceContainer creates a new service container with properly initialized dependencies
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, deps Dependencies) *portssvc.ServiceContainer {
	base := BaseService{
		TxManager: repos.TxManager,
		Audit:     deps.Audit,
		Notifier:  deps.Notifier,
		Clock:     deps.Clock,
	}
	container := &portssvc.ServiceContainer{}

	// The ledger, engine and authority are shared by every orchestrator.
	ledgerOpts := []LedgerOption{}
	if cfg != nil {
		ledgerOpts = append(ledgerOpts, WithAlertThreshold(cfg.BudgetAlertThresholdPercent))
	}
	container.Ledger = NewLedgerService(base, repos.BudgetRepo, repos.UserRepo, deps.Locker, ledgerOpts...)
	container.Workflow = NewWorkflowEngine(base, repos.StatusRepo, repos.TransitionRepo, domain.Workflows()...)

	coiEnabled, tolerance := true, DefaultMatchTolerance
	if cfg != nil {
		coiEnabled = cfg.ConflictOfInterestCheckEnabled
		tolerance = cfg.InvoiceMatchTolerancePercent
	}
	container.Authority = NewApprovalAuthority(repos.ConflictRepo, coiEnabled)

	container.Reporting = NewReportingService(base, repos.BudgetRepo)
	container.User = NewUserService(base, repos.UserRepo)
	container.Requisition = NewRequisitionService(base, repos, container.Ledger, container.Workflow, container.Authority, deps.Locker)
	container.Invoice = NewInvoiceService(base, repos, container.Ledger, container.Workflow, container.Authority, deps.Locker, tolerance)
	container.Payment = NewPaymentService(base, repos, container.Workflow, container.Authority)
	container.Procurement = NewProcurementService(base, repos, container.Workflow, container.Authority)

	return container
}
