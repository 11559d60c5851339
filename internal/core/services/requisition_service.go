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

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type requisitionService struct {
	BaseService
	requisitions portsrepo.RequisitionRepository
	budgets      portsrepo.BudgetLineReader
	approvals    portsrepo.ApprovalRecordRepository
	users        portsrepo.UserRepository
	ledger       portssvc.BudgetLedgerWriterSvc
	workflow     portssvc.WorkflowEngineSvc
	authority    portssvc.ApprovalAuthoritySvc
	locker       portssvc.Locker
}

// NewRequisitionService creates the requisition orchestrator.
func NewRequisitionService(
	base BaseService,
	repos portsrepo.RepositoryProvider,
	ledger portssvc.BudgetLedgerWriterSvc,
	workflow portssvc.WorkflowEngineSvc,
	authority portssvc.ApprovalAuthoritySvc,
	locker portssvc.Locker,
) portssvc.RequisitionSvc {
	return &requisitionService{
		BaseService:  base,
		requisitions: repos.RequisitionRepo,
		budgets:      repos.BudgetRepo,
		approvals:    repos.ApprovalRepo,
		users:        repos.UserRepo,
		ledger:       ledger,
		workflow:     workflow,
		authority:    authority,
		locker:       locker,
	}
}

var _ portssvc.RequisitionSvc = (*requisitionService)(nil)

func (s *requisitionService) audit(ctx context.Context, r *domain.Requisition, action, actorID, description string) {
	s.recordAudit(ctx, domain.AuditLog{
		ActorID:     actorID,
		Action:      action,
		ModelType:   string(domain.EntityRequisition),
		ModelID:     r.RequisitionID,
		Description: description,
		Metadata:    map[string]any{"status": r.Status, "amount": r.Amount.StringFixed(2)},
	})
}

// inTx loads the requisition for update inside a transaction and hands it to fn.
func (s *requisitionService) inTx(ctx context.Context, requisitionID string, fn func(ctx context.Context, r *domain.Requisition) error) (*domain.Requisition, error) {
	var out *domain.Requisition
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.requisitions.FindRequisitionForUpdate(ctx, requisitionID)
		if err != nil {
			return err
		}
		if err := fn(ctx, r); err != nil {
			return err
		}
		r.LastUpdatedAt = s.now()
		if err := s.requisitions.UpdateRequisition(ctx, *r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *requisitionService) CreateRequisition(ctx context.Context, req dto.CreateRequisitionRequest, actorID string) (*domain.Requisition, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	if err := validateAmount("amount", req.Amount, true); err != nil {
		return nil, err
	}
	line, err := s.budgets.FindBudgetLineByID(ctx, req.BudgetLineID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("budgetLineID", "budget line does not exist")
		}
		return nil, err
	}
	if line.DepartmentID != req.DepartmentID {
		return nil, apperrors.NewValidationError("budgetLineID", "budget line belongs to another department")
	}
	if !line.CanMutate() {
		return nil, apperrors.NewValidationError("budgetLineID", "budget line is closed")
	}

	now := s.now()
	r := domain.Requisition{
		RequisitionID: uuid.NewString(),
		DepartmentID:  req.DepartmentID,
		BudgetLineID:  req.BudgetLineID,
		Title:         req.Title,
		Justification: req.Justification,
		Amount:        req.Amount,
		Status:        domain.RequisitionDraft,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorID,
			LastUpdatedAt: now,
			LastUpdatedBy: actorID,
		},
	}
	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requisitions.SaveRequisition(ctx, r); err != nil {
			return err
		}
		s.audit(ctx, &r, "requisition.create", actorID, r.Title)
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to create requisition", slog.String("budget_line_id", req.BudgetLineID))
		return nil, err
	}
	return &r, nil
}

func (s *requisitionService) GetRequisition(ctx context.Context, requisitionID string) (*domain.Requisition, error) {
	return s.requisitions.FindRequisitionByID(ctx, requisitionID)
}

func (s *requisitionService) ListRequisitions(ctx context.Context, status string, limit int, offset int) ([]domain.Requisition, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.requisitions.ListRequisitions(ctx, status, limit, offset)
}

func (s *requisitionService) SubmitRequisition(ctx context.Context, requisitionID string, actorID string) (*domain.Requisition, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	return s.inTx(ctx, requisitionID, func(ctx context.Context, r *domain.Requisition) error {
		if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
			Workflow:     domain.WorkflowRequisition,
			Event:        "submit",
			ExpectedFrom: domain.RequisitionDraft,
			ActorID:      actorID,
		}); err != nil {
			return err
		}
		r.SubmittedBy = actorID
		r.SubmittedAt = timePtr(s.now())
		r.CurrentApprovalLevel = domain.LevelHeadOfDepartment
		r.LastUpdatedBy = actorID

		s.audit(ctx, r, "requisition.submit", actorID, r.Title)
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleHOD, r.DepartmentID), domain.Notification{
			Type:      domain.NotifyApprovalRequired,
			Message:   fmt.Sprintf("Requisition %q awaits head of department approval", r.Title),
			ModelType: string(domain.EntityRequisition),
			ModelID:   r.RequisitionID,
		})
		return nil
	})
}

// ApproveRequisition signs the requisition at its current level. Only the final
// approval is checked against the approver's limit.
func (s *requisitionService) ApproveRequisition(ctx context.Context, requisitionID string, req dto.DecisionRequest, actorID string) (r *domain.Requisition, err error) {
	ctx, span := s.startSpan(ctx, "requisition.Approve", attribute.String("requisition_id", requisitionID))
	defer func() { endSpan(span, err) }()

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	return s.inTx(ctx, requisitionID, func(ctx context.Context, r *domain.Requisition) error {
		level := r.CurrentApprovalLevel
		if r.Status != domain.RequisitionPendingApproval {
			return &apperrors.InvalidTransitionError{
				Workflow:     domain.WorkflowRequisition,
				EntityType:   string(domain.EntityRequisition),
				EntityID:     r.RequisitionID,
				CurrentState: r.Status,
				Attempted:    "approve",
			}
		}
		if err := s.authority.CheckApproverRole(*actor, level); err != nil {
			return err
		}
		if level == domain.LevelHeadOfDepartment && !actor.IsSuperAdmin() && actor.DepartmentID != r.DepartmentID {
			return &apperrors.AuthorizationError{UserID: actorID, Reason: "head of department approval must come from the requisition's department"}
		}
		if err := s.authority.CheckSegregationOfDuties(r, actorID, domain.ActorApprover); err != nil {
			return err
		}
		if err := checkNotPriorApprover(ctx, s.approvals, r, actorID); err != nil {
			return err
		}
		next := s.authority.NextApprovalLevel(level, r.Amount)
		if next == nil {
			if err := s.authority.CheckAuthorityLimit(*actor, r.Amount); err != nil {
				return err
			}
		}

		if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
			Workflow:      domain.WorkflowRequisition,
			Event:         "approve",
			ExpectedFrom:  domain.RequisitionPendingApproval,
			ActorID:       actorID,
			Justification: req.Comments,
		}); err != nil {
			return err
		}
		now := s.now()
		if _, err := appendDecision(ctx, s.approvals, r, level, actorID, domain.DecisionApproved, req.Comments, now); err != nil {
			return err
		}
		r.LastUpdatedBy = actorID

		if next != nil {
			if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
				Workflow:      domain.WorkflowRequisition,
				Event:         "approve_partial",
				ActorID:       actorID,
				Justification: fmt.Sprintf("routed to approval level %d", *next),
			}); err != nil {
				return err
			}
			r.CurrentApprovalLevel = *next
			s.audit(ctx, r, "requisition.approve_level", actorID, fmt.Sprintf("approved at level %d", level))
			s.notifyAfterCommit(ctx, usersWithRole(s.users, next.RequiredRole(), ""), domain.Notification{
				Type:      domain.NotifyApprovalRequired,
				Message:   fmt.Sprintf("Requisition %q awaits level %d approval", r.Title, *next),
				ModelType: string(domain.EntityRequisition),
				ModelID:   r.RequisitionID,
			})
			return nil
		}

		r.ApprovedBy = actorID
		r.ApprovedAt = timePtr(now)
		s.audit(ctx, r, "requisition.approve", actorID, req.Comments)
		s.notifyAfterCommit(ctx, nil, domain.Notification{
			Recipients: []string{r.SubmittedBy},
			Type:       domain.NotifyRequisitionApproved,
			Message:    fmt.Sprintf("Requisition %q has been approved", r.Title),
			ModelType:  string(domain.EntityRequisition),
			ModelID:    r.RequisitionID,
		})
		return nil
	})
}

func (s *requisitionService) RejectRequisition(ctx context.Context, requisitionID string, req dto.DecisionRequest, actorID string) (*domain.Requisition, error) {
	if req.Comments == "" {
		return nil, apperrors.NewValidationError("comments", "a rejection reason is required")
	}
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	return s.inTx(ctx, requisitionID, func(ctx context.Context, r *domain.Requisition) error {
		level := r.CurrentApprovalLevel
		if level > 0 {
			if err := s.authority.CheckApproverRole(*actor, level); err != nil {
				return err
			}
		}
		if err := s.authority.CheckSegregationOfDuties(r, actorID, domain.ActorRejecter); err != nil {
			return err
		}
		if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
			Workflow:      domain.WorkflowRequisition,
			Event:         "reject",
			ExpectedFrom:  domain.RequisitionPendingApproval,
			ActorID:       actorID,
			Justification: req.Comments,
		}); err != nil {
			return err
		}
		if _, err := appendDecision(ctx, s.approvals, r, level, actorID, domain.DecisionRejected, req.Comments, s.now()); err != nil {
			return err
		}
		r.RejectedBy = actorID
		r.RejectionReason = req.Comments
		r.LastUpdatedBy = actorID

		s.audit(ctx, r, "requisition.reject", actorID, req.Comments)
		s.notifyAfterCommit(ctx, nil, domain.Notification{
			Recipients: []string{r.SubmittedBy},
			Type:       domain.NotifyRequisitionRejected,
			Message:    fmt.Sprintf("Requisition %q was rejected: %s", r.Title, req.Comments),
			ModelType:  string(domain.EntityRequisition),
			ModelID:    r.RequisitionID,
		})
		return nil
	})
}

func (s *requisitionService) CancelRequisition(ctx context.Context, requisitionID string, actorID string) (*domain.Requisition, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	return s.inTx(ctx, requisitionID, func(ctx context.Context, r *domain.Requisition) error {
		if r.CreatedBy != actorID && !actor.IsSuperAdmin() {
			return &apperrors.AuthorizationError{UserID: actorID, Reason: "only the requester may cancel a requisition"}
		}
		if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
			Workflow: domain.WorkflowRequisition,
			Event:    "cancel",
			ActorID:  actorID,
		}); err != nil {
			return err
		}
		r.LastUpdatedBy = actorID
		s.audit(ctx, r, "requisition.cancel", actorID, r.Title)
		return nil
	})
}

// ConvertToPurchaseOrder issues a PO for a fully approved requisition and commits its
// amount on the budget line in the same transaction.
func (s *requisitionService) ConvertToPurchaseOrder(ctx context.Context, requisitionID string, req dto.CreatePurchaseOrderRequest, actorID string) (po *domain.PurchaseOrder, err error) {
	ctx, span := s.startSpan(ctx, "requisition.ConvertToPurchaseOrder", attribute.String("requisition_id", requisitionID))
	defer func() { endSpan(span, err) }()

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "purchase order issue", domain.RoleProcurementOfficer); err != nil {
		return nil, err
	}
	if req.SupplierID == "" {
		return nil, apperrors.NewValidationError("supplierID", "a supplier is required")
	}
	current, err := s.requisitions.FindRequisitionByID(ctx, requisitionID)
	if err != nil {
		return nil, err
	}
	amount := current.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if err := validateAmount("amount", amount, true); err != nil {
		return nil, err
	}

	err = s.locker.WithLock(ctx, []string{domain.BudgetLineLockKey(current.BudgetLineID)}, func(ctx context.Context) error {
		_, err := s.inTx(ctx, requisitionID, func(ctx context.Context, r *domain.Requisition) error {
			if _, err := s.workflow.Transition(ctx, r, domain.TransitionRequest{
				Workflow:     domain.WorkflowRequisition,
				Event:        "convert_to_po",
				ExpectedFrom: domain.RequisitionHODApproved,
				ActorID:      actorID,
			}); err != nil {
				return err
			}
			now := s.now()
			order := domain.PurchaseOrder{
				PurchaseOrderID: uuid.NewString(),
				PONumber:        fmt.Sprintf("PO-%d-%s", now.Year(), uuid.NewString()[:8]),
				RequisitionID:   r.RequisitionID,
				BudgetLineID:    r.BudgetLineID,
				SupplierID:      req.SupplierID,
				Amount:          amount,
				Status:          domain.PurchaseOrderIssued,
				AuditFields: domain.AuditFields{
					CreatedAt:     now,
					CreatedBy:     actorID,
					LastUpdatedAt: now,
					LastUpdatedBy: actorID,
				},
			}
			if err := s.requisitions.SavePurchaseOrder(ctx, order); err != nil {
				return err
			}
			if _, err := s.ledger.Commit(ctx, r.BudgetLineID, amount, domain.LedgerReference{
				Type:        "purchase_order",
				ID:          order.PurchaseOrderID,
				Description: fmt.Sprintf("Commitment for %s", order.PONumber),
			}, actorID); err != nil {
				return err
			}
			r.PurchaseOrderID = order.PurchaseOrderID
			r.LastUpdatedBy = actorID
			s.audit(ctx, r, "requisition.convert_to_po", actorID, order.PONumber)
			s.recordAudit(ctx, domain.AuditLog{
				ActorID:     actorID,
				Action:      "purchase_order.issue",
				ModelType:   "purchase_order",
				ModelID:     order.PurchaseOrderID,
				Description: order.PONumber,
				Metadata:    map[string]any{"amount": amount.StringFixed(2), "supplier_id": order.SupplierID},
			})
			po = &order
			return nil
		})
		return err
	})
	if err != nil {
		s.LogError(ctx, err, "Failed to convert requisition", slog.String("requisition_id", requisitionID))
		return nil, err
	}
	s.LogInfo(ctx, "Purchase order issued", slog.String("purchase_order_id", po.PurchaseOrderID), slog.String("requisition_id", requisitionID))
	return po, nil
}

// CancelPurchaseOrder cancels an issued PO and releases whatever of its commitment remains.
func (s *requisitionService) CancelPurchaseOrder(ctx context.Context, purchaseOrderID string, reason string, actorID string) (*domain.PurchaseOrder, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "purchase order cancellation", domain.RoleProcurementOfficer); err != nil {
		return nil, err
	}
	current, err := s.requisitions.FindPurchaseOrderByID(ctx, purchaseOrderID)
	if err != nil {
		return nil, err
	}

	var out *domain.PurchaseOrder
	err = s.locker.WithLock(ctx, []string{domain.BudgetLineLockKey(current.BudgetLineID)}, func(ctx context.Context) error {
		return s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
			po, err := s.requisitions.FindPurchaseOrderForUpdate(ctx, purchaseOrderID)
			if err != nil {
				return err
			}
			if po.Status != domain.PurchaseOrderIssued {
				return &apperrors.InvalidTransitionError{
					Workflow:     "PurchaseOrder",
					EntityType:   "purchase_order",
					EntityID:     po.PurchaseOrderID,
					CurrentState: po.Status,
					Attempted:    "cancel",
				}
			}
			released, err := s.ledger.ReleaseCommitment(ctx, po.BudgetLineID, po.Amount, domain.LedgerReference{
				Type:        "purchase_order",
				ID:          po.PurchaseOrderID,
				Description: fmt.Sprintf("%s cancelled: %s", po.PONumber, reason),
			}, actorID)
			if err != nil {
				return err
			}
			po.Status = domain.PurchaseOrderCancelled
			po.LastUpdatedAt = s.now()
			po.LastUpdatedBy = actorID
			if err := s.requisitions.UpdatePurchaseOrder(ctx, *po); err != nil {
				return err
			}
			s.recordAudit(ctx, domain.AuditLog{
				ActorID:     actorID,
				Action:      "purchase_order.cancel",
				ModelType:   "purchase_order",
				ModelID:     po.PurchaseOrderID,
				Description: reason,
				Metadata:    map[string]any{"released": released.StringFixed(2)},
			})
			out = po
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *requisitionService) GetPurchaseOrder(ctx context.Context, purchaseOrderID string) (*domain.PurchaseOrder, error) {
	return s.requisitions.FindPurchaseOrderByID(ctx, purchaseOrderID)
}

func (s *requisitionService) ApprovalHistory(ctx context.Context, requisitionID string) ([]domain.ApprovalRecord, error) {
	if _, err := s.requisitions.FindRequisitionByID(ctx, requisitionID); err != nil {
		return nil, err
	}
	return s.approvals.ListApprovalRecords(ctx, domain.EntityRequisition, requisitionID)
}
