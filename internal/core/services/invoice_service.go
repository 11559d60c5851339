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
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMatchTolerance is the three-way match variance, in percent, accepted without justification.
var DefaultMatchTolerance = decimal.NewFromInt(5)

type invoiceService struct {
	BaseService
	invoices  portsrepo.InvoiceRepository
	orders    portsrepo.RequisitionRepository
	approvals portsrepo.ApprovalRecordRepository
	users     portsrepo.UserRepository
	ledger    portssvc.BudgetLedgerWriterSvc
	workflow  portssvc.WorkflowEngineSvc
	authority portssvc.ApprovalAuthoritySvc
	locker    portssvc.Locker
	tolerance decimal.Decimal
}

// NewInvoiceService creates the supplier invoice orchestrator. tolerance is the
// three-way match variance percentage above which verification needs a justification.
func NewInvoiceService(
	base BaseService,
	repos portsrepo.RepositoryProvider,
	ledger portssvc.BudgetLedgerWriterSvc,
	workflow portssvc.WorkflowEngineSvc,
	authority portssvc.ApprovalAuthoritySvc,
	locker portssvc.Locker,
	tolerance decimal.Decimal,
) portssvc.InvoiceSvc {
	return &invoiceService{
		BaseService: base,
		invoices:    repos.InvoiceRepo,
		orders:      repos.RequisitionRepo,
		approvals:   repos.ApprovalRepo,
		users:       repos.UserRepo,
		ledger:      ledger,
		workflow:    workflow,
		authority:   authority,
		locker:      locker,
		tolerance:   tolerance,
	}
}

var _ portssvc.InvoiceSvc = (*invoiceService)(nil)

func (s *invoiceService) audit(ctx context.Context, inv *domain.SupplierInvoice, action, actorID, description string) {
	s.recordAudit(ctx, domain.AuditLog{
		ActorID:     actorID,
		Action:      action,
		ModelType:   string(domain.EntitySupplierInvoice),
		ModelID:     inv.InvoiceID,
		Description: description,
		Metadata:    map[string]any{"status": inv.Status, "amount": inv.Amount.StringFixed(2), "invoice_number": inv.InvoiceNumber},
	})
}

func (s *invoiceService) inTx(ctx context.Context, invoiceID string, fn func(ctx context.Context, inv *domain.SupplierInvoice) error) (*domain.SupplierInvoice, error) {
	var out *domain.SupplierInvoice
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.FindInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := fn(ctx, inv); err != nil {
			return err
		}
		inv.LastUpdatedAt = s.now()
		if err := s.invoices.UpdateInvoice(ctx, *inv); err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, actorID string) (*domain.SupplierInvoice, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	if err := validateAmount("amount", req.Amount, true); err != nil {
		return nil, err
	}
	po, err := s.orders.FindPurchaseOrderByID(ctx, req.PurchaseOrderID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("purchaseOrderID", "purchase order does not exist")
		}
		return nil, err
	}
	if po.Status != domain.PurchaseOrderIssued {
		return nil, apperrors.NewValidationError("purchaseOrderID", fmt.Sprintf("purchase order is %s", po.Status))
	}
	if po.SupplierID != req.SupplierID {
		return nil, apperrors.NewValidationError("supplierID", "supplier does not match the purchase order")
	}

	now := s.now()
	inv := domain.SupplierInvoice{
		InvoiceID:            uuid.NewString(),
		InvoiceNumber:        req.InvoiceNumber,
		SupplierID:           req.SupplierID,
		PurchaseOrderID:      po.PurchaseOrderID,
		BudgetLineID:         po.BudgetLineID,
		Amount:               req.Amount,
		GoodsReceivedAmount:  decimal.Zero,
		MatchVariancePercent: decimal.Zero,
		Status:               domain.InvoiceDraft,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorID,
			LastUpdatedAt: now,
			LastUpdatedBy: actorID,
		},
	}
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.invoices.SaveInvoice(ctx, inv); err != nil {
			return err
		}
		s.audit(ctx, &inv, "invoice.create", actorID, inv.InvoiceNumber)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (*domain.SupplierInvoice, error) {
	return s.invoices.FindInvoiceByID(ctx, invoiceID)
}

func (s *invoiceService) SubmitInvoice(ctx context.Context, invoiceID string, actorID string) (*domain.SupplierInvoice, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	return s.inTx(ctx, invoiceID, func(ctx context.Context, inv *domain.SupplierInvoice) error {
		if _, err := s.workflow.Transition(ctx, inv, domain.TransitionRequest{
			Workflow:     domain.WorkflowInvoice,
			Event:        "submit",
			ExpectedFrom: domain.InvoiceDraft,
			ActorID:      actorID,
		}); err != nil {
			return err
		}
		inv.SubmittedBy = actorID
		inv.LastUpdatedBy = actorID
		s.audit(ctx, inv, "invoice.submit", actorID, inv.InvoiceNumber)
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleAccountant, ""), domain.Notification{
			Type:      domain.NotifyApprovalRequired,
			Message:   fmt.Sprintf("Invoice %s awaits verification", inv.InvoiceNumber),
			ModelType: string(domain.EntitySupplierInvoice),
			ModelID:   inv.InvoiceID,
		})
		return nil
	})
}

// VerifyInvoice runs the three-way match between the PO, the goods received and the invoice.
func (s *invoiceService) VerifyInvoice(ctx context.Context, invoiceID string, req dto.VerifyInvoiceRequest, actorID string) (*domain.SupplierInvoice, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "invoice verification", domain.RoleAccountant, domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	if err := validateAmount("goodsReceivedAmount", req.GoodsReceivedAmount, false); err != nil {
		return nil, err
	}
	return s.inTx(ctx, invoiceID, func(ctx context.Context, inv *domain.SupplierInvoice) error {
		if err := s.authority.CheckSegregationOfDuties(inv, actorID, domain.ActorVerifier); err != nil {
			return err
		}
		po, err := s.orders.FindPurchaseOrderByID(ctx, inv.PurchaseOrderID)
		if err != nil {
			return err
		}
		variance := domain.ThreeWayMatchVariance(po.Amount, req.GoodsReceivedAmount, inv.Amount)
		if variance.GreaterThan(s.tolerance) && req.VarianceJustification == "" {
			return apperrors.NewValidationError("varianceJustification",
				fmt.Sprintf("three-way match variance of %s%% exceeds the %s%% tolerance", variance.StringFixed(2), s.tolerance.String()))
		}
		if _, err := s.workflow.Transition(ctx, inv, domain.TransitionRequest{
			Workflow:      domain.WorkflowInvoice,
			Event:         "verify",
			ExpectedFrom:  domain.InvoiceSubmitted,
			ActorID:       actorID,
			Justification: req.VarianceJustification,
		}); err != nil {
			return err
		}
		inv.GoodsReceivedAmount = req.GoodsReceivedAmount
		inv.MatchVariancePercent = variance
		inv.VarianceJustification = req.VarianceJustification
		inv.VerifiedBy = actorID
		inv.VerifiedAt = timePtr(s.now())
		inv.LastUpdatedBy = actorID
		s.audit(ctx, inv, "invoice.verify", actorID, fmt.Sprintf("three-way match variance %s%%", variance.StringFixed(2)))
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleFinanceManager, ""), domain.Notification{
			Type:      domain.NotifyApprovalRequired,
			Message:   fmt.Sprintf("Invoice %s awaits approval", inv.InvoiceNumber),
			ModelType: string(domain.EntitySupplierInvoice),
			ModelID:   inv.InvoiceID,
		})
		return nil
	})
}

// ApproveInvoice approves a verified invoice and records its amount as spend on the
// PO's budget line, releasing the matching commitment. The PO is closed in the same
// transaction, so it can be neither cancelled nor invoiced again.
func (s *invoiceService) ApproveInvoice(ctx context.Context, invoiceID string, req dto.DecisionRequest, actorID string) (out *domain.SupplierInvoice, err error) {
	ctx, span := s.startSpan(ctx, "invoice.Approve", attribute.String("invoice_id", invoiceID))
	defer func() { endSpan(span, err) }()

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "invoice approval", domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	current, err := s.invoices.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	err = s.locker.WithLock(ctx, []string{domain.BudgetLineLockKey(current.BudgetLineID)}, func(ctx context.Context) error {
		out, err = s.inTx(ctx, invoiceID, func(ctx context.Context, inv *domain.SupplierInvoice) error {
			if err := s.authority.CheckSegregationOfDuties(inv, actorID, domain.ActorApprover); err != nil {
				return err
			}
			if err := s.authority.CheckAuthorityLimit(*actor, inv.Amount); err != nil {
				return err
			}
			if _, err := s.workflow.Transition(ctx, inv, domain.TransitionRequest{
				Workflow:      domain.WorkflowInvoice,
				Event:         "approve",
				ExpectedFrom:  domain.InvoiceVerified,
				ActorID:       actorID,
				Justification: req.Comments,
			}); err != nil {
				return err
			}
			// The first approved invoice consumes the PO.
			po, err := s.orders.FindPurchaseOrderForUpdate(ctx, inv.PurchaseOrderID)
			if err != nil {
				return err
			}
			if po.Status != domain.PurchaseOrderIssued {
				return &apperrors.InvalidTransitionError{
					Workflow:     "PurchaseOrder",
					EntityType:   "purchase_order",
					EntityID:     po.PurchaseOrderID,
					CurrentState: po.Status,
					Attempted:    "invoice",
				}
			}
			now := s.now()
			if _, err := appendDecision(ctx, s.approvals, inv, domain.LevelFinanceManager, actorID, domain.DecisionApproved, req.Comments, now); err != nil {
				return err
			}
			if _, err := s.ledger.RecordExpenditure(ctx, inv.BudgetLineID, inv.Amount, domain.LedgerReference{
				Type:        "purchase_order",
				ID:          inv.PurchaseOrderID,
				Description: fmt.Sprintf("Invoice %s", inv.InvoiceNumber),
			}, actorID); err != nil {
				return err
			}
			po.Status = domain.PurchaseOrderClosed
			po.LastUpdatedAt = now
			po.LastUpdatedBy = actorID
			if err := s.orders.UpdatePurchaseOrder(ctx, *po); err != nil {
				return err
			}
			inv.ApprovedBy = actorID
			inv.ApprovedAt = timePtr(now)
			inv.LastUpdatedBy = actorID
			s.audit(ctx, inv, "invoice.approve", actorID, req.Comments)
			s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleAccountant, ""), domain.Notification{
				Recipients: []string{inv.SubmittedBy},
				Type:       domain.NotifyInvoiceApproved,
				Message:    fmt.Sprintf("Invoice %s approved for payment", inv.InvoiceNumber),
				ModelType:  string(domain.EntitySupplierInvoice),
				ModelID:    inv.InvoiceID,
			})
			return nil
		})
		return err
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to approve invoice", slog.String("invoice_id", invoiceID))
		return nil, err
	}
	return out, nil
}

func (s *invoiceService) RejectInvoice(ctx context.Context, invoiceID string, req dto.DecisionRequest, actorID string) (*domain.SupplierInvoice, error) {
	if req.Comments == "" {
		return nil, apperrors.NewValidationError("comments", "a rejection reason is required")
	}
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "invoice rejection", domain.RoleAccountant, domain.RoleFinanceManager); err != nil {
		return nil, err
	}
	return s.inTx(ctx, invoiceID, func(ctx context.Context, inv *domain.SupplierInvoice) error {
		if err := s.authority.CheckSegregationOfDuties(inv, actorID, domain.ActorRejecter); err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, inv, domain.TransitionRequest{
			Workflow:      domain.WorkflowInvoice,
			Event:         "reject",
			ActorID:       actorID,
			Justification: req.Comments,
		}); err != nil {
			return err
		}
		if _, err := appendDecision(ctx, s.approvals, inv, domain.LevelFinanceManager, actorID, domain.DecisionRejected, req.Comments, s.now()); err != nil {
			return err
		}
		inv.RejectedBy = actorID
		inv.RejectionReason = req.Comments
		inv.LastUpdatedBy = actorID
		s.audit(ctx, inv, "invoice.reject", actorID, req.Comments)
		return nil
	})
}
