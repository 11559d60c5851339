package services

// ServiceContainer holds instances of all the application services.
// This is the main entry point for accessing service functionality and
// is used throughout the application, particularly in the handlers.
type ServiceContainer struct {
	Ledger      BudgetLedgerSvcFacade
	Reporting   BudgetReportingSvc
	Workflow    WorkflowEngineSvc
	Authority   ApprovalAuthoritySvc
	Requisition RequisitionSvc
	Invoice     InvoiceSvc
	Payment     PaymentSvc
	Procurement ProcurementSvc
	User        UserSvc
}
