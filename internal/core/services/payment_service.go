package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type paymentService struct {
	BaseService
	payments  portsrepo.PaymentRepository
	invoices  portsrepo.InvoiceRepository
	approvals portsrepo.ApprovalRecordRepository
	users     portsrepo.UserRepository
	workflow  portssvc.WorkflowEngineSvc
	authority portssvc.ApprovalAuthoritySvc
}

// NewPaymentService creates the payment orchestrator.
func NewPaymentService(base BaseService, repos portsrepo.RepositoryProvider, workflow portssvc.WorkflowEngineSvc, authority portssvc.ApprovalAuthoritySvc) portssvc.PaymentSvc {
	return &paymentService{
		BaseService: base,
		payments:    repos.PaymentRepo,
		invoices:    repos.InvoiceRepo,
		approvals:   repos.ApprovalRepo,
		users:       repos.UserRepo,
		workflow:    workflow,
		authority:   authority,
	}
}

var _ portssvc.PaymentSvc = (*paymentService)(nil)

func (s *paymentService) audit(ctx context.Context, p *domain.Payment, action, actorID, description string) {
	s.recordAudit(ctx, domain.AuditLog{
		ActorID:     actorID,
		Action:      action,
		ModelType:   string(domain.EntityPayment),
		ModelID:     p.PaymentID,
		Description: description,
		Metadata:    map[string]any{"status": p.Status, "amount": p.Amount.StringFixed(2), "invoice_id": p.InvoiceID},
	})
}

func (s *paymentService) inTx(ctx context.Context, paymentID string, fn func(ctx context.Context, p *domain.Payment) error) (*domain.Payment, error) {
	var out *domain.Payment
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.payments.FindPaymentForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := fn(ctx, p); err != nil {
			return err
		}
		p.LastUpdatedAt = s.now()
		if err := s.payments.UpdatePayment(ctx, *p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *paymentService) CreatePayment(ctx context.Context, req dto.CreatePaymentRequest, actorID string) (*domain.Payment, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	method := domain.PaymentMethod(req.Method)
	switch method {
	case domain.PaymentMethodBankTransfer, domain.PaymentMethodCheque, domain.PaymentMethodMobileMoney:
	default:
		return nil, apperrors.NewValidationError("method", fmt.Sprintf("unsupported payment method %q", req.Method))
	}
	inv, err := s.invoices.FindInvoiceByID(ctx, req.InvoiceID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("invoiceID", "invoice does not exist")
		}
		return nil, err
	}
	if inv.Status != domain.InvoiceApproved {
		return nil, apperrors.NewValidationError("invoiceID", fmt.Sprintf("invoice is %s, only approved invoices can be paid", inv.Status))
	}

	now := s.now()
	p := domain.Payment{
		PaymentID:  uuid.NewString(),
		InvoiceID:  inv.InvoiceID,
		SupplierID: inv.SupplierID,
		Amount:     inv.Amount,
		Method:     method,
		Reference:  req.Reference,
		Status:     domain.PaymentDraft,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorID,
			LastUpdatedAt: now,
			LastUpdatedBy: actorID,
		},
	}
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.payments.SavePayment(ctx, p); err != nil {
			return err
		}
		s.audit(ctx, &p, "payment.create", actorID, string(p.Method))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	return s.payments.FindPaymentByID(ctx, paymentID)
}

func (s *paymentService) SubmitPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	return s.inTx(ctx, paymentID, func(ctx context.Context, p *domain.Payment) error {
		if _, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
			Workflow:     domain.WorkflowPayment,
			Event:        "submit",
			ExpectedFrom: domain.PaymentDraft,
			ActorID:      actorID,
		}); err != nil {
			return err
		}
		p.SubmittedBy = actorID
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "payment.submit", actorID, "")
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleFinanceManager, ""), domain.Notification{
			Type:      domain.NotifyApprovalRequired,
			Message:   fmt.Sprintf("Payment of %s awaits approval", p.Amount.StringFixed(2)),
			ModelType: string(domain.EntityPayment),
			ModelID:   p.PaymentID,
		})
		return nil
	})
}

// ApprovePayment enforces submitter != approver and the approver's limit before approving.
func (s *paymentService) ApprovePayment(ctx context.Context, paymentID string, req dto.DecisionRequest, actorID string) (p *domain.Payment, err error) {
	ctx, span := s.startSpan(ctx, "payment.Approve", attribute.String("payment_id", paymentID))
	defer func() { endSpan(span, err) }()

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "payment approval", domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	return s.inTx(ctx, paymentID, func(ctx context.Context, p *domain.Payment) error {
		if err := s.authority.CheckSegregationOfDuties(p, actorID, domain.ActorApprover); err != nil {
			return err
		}
		if err := s.authority.CheckAuthorityLimit(*actor, p.Amount); err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
			Workflow:      domain.WorkflowPayment,
			Event:         "approve",
			ExpectedFrom:  domain.PaymentPendingApproval,
			ActorID:       actorID,
			Justification: req.Comments,
		}); err != nil {
			return err
		}
		now := s.now()
		if _, err := appendDecision(ctx, s.approvals, p, domain.LevelFinanceManager, actorID, domain.DecisionApproved, req.Comments, now); err != nil {
			return err
		}
		p.ApprovedBy = actorID
		p.ApprovedAt = timePtr(now)
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "payment.approve", actorID, req.Comments)
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleAccountant, ""), domain.Notification{
			Type:      domain.NotifyPaymentApproved,
			Message:   fmt.Sprintf("Payment of %s approved for processing", p.Amount.StringFixed(2)),
			ModelType: string(domain.EntityPayment),
			ModelID:   p.PaymentID,
		})
		return nil
	})
}

func (s *paymentService) RejectPayment(ctx context.Context, paymentID string, req dto.DecisionRequest, actorID string) (*domain.Payment, error) {
	if req.Comments == "" {
		return nil, apperrors.NewValidationError("comments", "a rejection reason is required")
	}
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "payment rejection", domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	return s.inTx(ctx, paymentID, func(ctx context.Context, p *domain.Payment) error {
		if err := s.authority.CheckSegregationOfDuties(p, actorID, domain.ActorRejecter); err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
			Workflow:      domain.WorkflowPayment,
			Event:         "reject",
			ExpectedFrom:  domain.PaymentPendingApproval,
			ActorID:       actorID,
			Justification: req.Comments,
		}); err != nil {
			return err
		}
		if _, err := appendDecision(ctx, s.approvals, p, domain.LevelFinanceManager, actorID, domain.DecisionRejected, req.Comments, s.now()); err != nil {
			return err
		}
		p.RejectedBy = actorID
		p.RejectionReason = req.Comments
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "payment.reject", actorID, req.Comments)
		return nil
	})
}

// CancelPayment withdraws a draft payment. Only its creator or a super admin may cancel.
func (s *paymentService) CancelPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	return s.inTx(ctx, paymentID, func(ctx context.Context, p *domain.Payment) error {
		if p.CreatedBy != actorID && !actor.IsSuperAdmin() {
			return &apperrors.AuthorizationError{UserID: actorID, Reason: "only the creator may cancel a payment"}
		}
		if _, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
			Workflow:     domain.WorkflowPayment,
			Event:        "cancel",
			ExpectedFrom: domain.PaymentDraft,
			ActorID:      actorID,
		}); err != nil {
			return err
		}
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "payment.cancel", actorID, "")
		return nil
	})
}

// ProcessPayment releases an approved payment and marks its invoice paid.
func (s *paymentService) ProcessPayment(ctx context.Context, paymentID string, actorID string) (*domain.Payment, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "payment processing", domain.RoleAccountant, domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	p, err := s.inTx(ctx, paymentID, func(ctx context.Context, p *domain.Payment) error {
		if err := s.authority.CheckSegregationOfDuties(p, actorID, domain.ActorProcessor); err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
			Workflow:     domain.WorkflowPayment,
			Event:        "process",
			ExpectedFrom: domain.PaymentApproved,
			ActorID:      actorID,
		}); err != nil {
			return err
		}

		inv, err := s.invoices.FindInvoiceForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, inv, domain.TransitionRequest{
			Workflow: domain.WorkflowInvoice,
			Event:    "mark_paid",
			ActorID:  actorID,
		}); err != nil {
			return err
		}
		now := s.now()
		inv.LastUpdatedAt = now
		inv.LastUpdatedBy = actorID
		if err := s.invoices.UpdateInvoice(ctx, *inv); err != nil {
			return err
		}

		p.ProcessedBy = actorID
		p.ProcessedAt = timePtr(now)
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "payment.process", actorID, p.Reference)
		s.notifyAfterCommit(ctx, nil, domain.Notification{
			Recipients: []string{p.SubmittedBy, p.ApprovedBy},
			Type:       domain.NotifyPaymentProcessed,
			Message:    fmt.Sprintf("Payment of %s for invoice %s has been processed", p.Amount.StringFixed(2), inv.InvoiceNumber),
			ModelType:  string(domain.EntityPayment),
			ModelID:    p.PaymentID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.LogInfo(ctx, "Payment processed", slog.String("payment_id", p.PaymentID), slog.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}
