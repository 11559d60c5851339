package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

type procurementService struct {
	BaseService
	procurement portsrepo.ProcurementRepository
	conflicts   portsrepo.ConflictOfInterestRepository
	users       portsrepo.UserRepository
	workflow    portssvc.WorkflowEngineSvc
	authority   portssvc.ApprovalAuthoritySvc
}

// NewProcurementService creates the competitive sourcing orchestrator.
func NewProcurementService(base BaseService, repos portsrepo.RepositoryProvider, workflow portssvc.WorkflowEngineSvc, authority portssvc.ApprovalAuthoritySvc) portssvc.ProcurementSvc {
	return &procurementService{
		BaseService: base,
		procurement: repos.ProcurementRepo,
		conflicts:   repos.ConflictRepo,
		users:       repos.UserRepo,
		workflow:    workflow,
		authority:   authority,
	}
}

var _ portssvc.ProcurementSvc = (*procurementService)(nil)

func (s *procurementService) audit(ctx context.Context, p *domain.ProcurementProcess, action, actorID, description string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = p.Status
	meta["reference_number"] = p.ReferenceNumber
	s.recordAudit(ctx, domain.AuditLog{
		ActorID:     actorID,
		Action:      action,
		ModelType:   string(domain.EntityProcurementProcess),
		ModelID:     p.ProcessID,
		Description: description,
		Metadata:    meta,
	})
}

func (s *procurementService) officer(ctx context.Context, actorID, action string) (*domain.User, error) {
	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, action, domain.RoleProcurementOfficer); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *procurementService) inTx(ctx context.Context, processID string, fn func(ctx context.Context, p *domain.ProcurementProcess) error) (*domain.ProcurementProcess, error) {
	var out *domain.ProcurementProcess
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.procurement.FindProcessForUpdate(ctx, processID)
		if err != nil {
			return err
		}
		if err := fn(ctx, p); err != nil {
			return err
		}
		p.LastUpdatedAt = s.now()
		if err := s.procurement.UpdateProcess(ctx, *p); err != nil {
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

func (s *procurementService) transition(ctx context.Context, p *domain.ProcurementProcess, event, expectedFrom, actorID, justification string) error {
	_, err := s.workflow.Transition(ctx, p, domain.TransitionRequest{
		Workflow:      domain.WorkflowProcurement,
		Event:         event,
		ExpectedFrom:  expectedFrom,
		ActorID:       actorID,
		Justification: justification,
	})
	return err
}

// CreateProcess opens a draft process whose sourcing method follows the cash band of its estimate.
func (s *procurementService) CreateProcess(ctx context.Context, req dto.CreateProcessRequest, actorID string) (*domain.ProcurementProcess, error) {
	if _, err := s.officer(ctx, actorID, "procurement process creation"); err != nil {
		return nil, err
	}
	if err := validateAmount("estimatedAmount", req.EstimatedAmount, true); err != nil {
		return nil, err
	}
	now := s.now()
	if req.ClosingDate != nil && !req.ClosingDate.After(now) {
		return nil, apperrors.NewValidationError("closingDate", "must be in the future")
	}

	band := domain.CashBandFor(req.EstimatedAmount)
	p := domain.ProcurementProcess{
		ProcessID:       uuid.NewString(),
		ReferenceNumber: req.ReferenceNumber,
		RequisitionID:   req.RequisitionID,
		Title:           req.Title,
		EstimatedAmount: req.EstimatedAmount,
		Method:          band.Label,
		Status:          domain.ProcessDraft,
		ClosingDate:     req.ClosingDate,
		AuditFields: domain.AuditFields{
			CreatedAt:     now,
			CreatedBy:     actorID,
			LastUpdatedAt: now,
			LastUpdatedBy: actorID,
		},
	}
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.procurement.SaveProcess(ctx, p); err != nil {
			return err
		}
		s.audit(ctx, &p, "procurement.create", actorID, p.Title,
			map[string]any{"method": band.Label, "minimum_quotes": band.MinimumQuotes})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *procurementService) GetProcess(ctx context.Context, processID string) (*domain.ProcurementProcess, error) {
	return s.procurement.FindProcessByID(ctx, processID)
}

func (s *procurementService) PublishProcess(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error) {
	if _, err := s.officer(ctx, actorID, "procurement process publication"); err != nil {
		return nil, err
	}
	return s.inTx(ctx, processID, func(ctx context.Context, p *domain.ProcurementProcess) error {
		if err := s.transition(ctx, p, "publish", domain.ProcessDraft, actorID, ""); err != nil {
			return err
		}
		p.PublishedBy = actorID
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "procurement.publish", actorID, p.Title, nil)
		return nil
	})
}

// SubmitBid records a supplier quotation while the process is open for bidding.
func (s *procurementService) SubmitBid(ctx context.Context, processID string, req dto.SubmitBidRequest, actorID string) (*domain.Bid, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	if err := validateAmount("amount", req.Amount, true); err != nil {
		return nil, err
	}
	if req.SupplierID == "" {
		return nil, apperrors.NewValidationError("supplierID", "a supplier is required")
	}

	var bid domain.Bid
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.procurement.FindProcessForUpdate(ctx, processID)
		if err != nil {
			return err
		}
		if p.Status != domain.ProcessPublished {
			return apperrors.NewValidationError("processID", fmt.Sprintf("process is %s, bids are accepted only while published", p.Status))
		}
		now := s.now()
		if p.ClosingDate != nil && now.After(*p.ClosingDate) {
			return apperrors.NewValidationError("processID", "bidding has closed")
		}
		bid = domain.Bid{
			BidID:       uuid.NewString(),
			ProcessID:   p.ProcessID,
			SupplierID:  req.SupplierID,
			Amount:      req.Amount,
			Notes:       req.Notes,
			SubmittedAt: now,
		}
		if err := s.procurement.SaveBid(ctx, bid); err != nil {
			return err
		}
		s.audit(ctx, p, "procurement.bid", actorID, req.SupplierID,
			map[string]any{"bid_id": bid.BidID, "amount": bid.Amount.StringFixed(2)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

func (s *procurementService) ListBids(ctx context.Context, processID string) ([]domain.Bid, error) {
	if _, err := s.procurement.FindProcessByID(ctx, processID); err != nil {
		return nil, err
	}
	return s.procurement.ListBidsByProcess(ctx, processID)
}

// DeclareConflict records the actor's declaration for a process or supplier.
func (s *procurementService) DeclareConflict(ctx context.Context, req dto.DeclareConflictRequest, actorID string) (*domain.ConflictOfInterestDeclaration, error) {
	if _, err := loadActor(ctx, s.users, actorID); err != nil {
		return nil, err
	}
	target := domain.ConflictTargetType(req.TargetType)
	switch target {
	case domain.ConflictTargetProcess:
		if _, err := s.procurement.FindProcessByID(ctx, req.TargetID); err != nil {
			if apperrors.IsNotFound(err) {
				return nil, apperrors.NewValidationError("targetID", "procurement process does not exist")
			}
			return nil, err
		}
	case domain.ConflictTargetSupplier:
		if req.TargetID == "" {
			return nil, apperrors.NewValidationError("targetID", "a supplier is required")
		}
	default:
		return nil, apperrors.NewValidationError("targetType", fmt.Sprintf("unsupported target type %q", req.TargetType))
	}

	d := domain.ConflictOfInterestDeclaration{
		DeclarationID: uuid.NewString(),
		UserID:        actorID,
		TargetType:    target,
		TargetID:      req.TargetID,
		HasConflict:   req.HasConflict,
		Details:       req.Details,
		DeclaredAt:    s.now(),
	}
	err := s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.conflicts.SaveDeclaration(ctx, d); err != nil {
			return err
		}
		s.recordAudit(ctx, domain.AuditLog{
			ActorID:     actorID,
			Action:      "procurement.declare_conflict",
			ModelType:   string(target),
			ModelID:     req.TargetID,
			Description: req.Details,
			Metadata:    map[string]any{"has_conflict": req.HasConflict},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *procurementService) CloseBidding(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error) {
	if _, err := s.officer(ctx, actorID, "closing bidding"); err != nil {
		return nil, err
	}
	return s.inTx(ctx, processID, func(ctx context.Context, p *domain.ProcurementProcess) error {
		if err := s.transition(ctx, p, "close_bidding", domain.ProcessPublished, actorID, ""); err != nil {
			return err
		}
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "procurement.close_bidding", actorID, p.Title, nil)
		return nil
	})
}

// EvaluateBids scores bids on behalf of one evaluator. The conflict of interest gate
// runs before the minimum quotes gate, and either failure writes nothing.
func (s *procurementService) EvaluateBids(ctx context.Context, processID string, req dto.EvaluateBidsRequest, actorID string) (evals []domain.BidEvaluation, err error) {
	ctx, span := s.startSpan(ctx, "procurement.EvaluateBids", attribute.String("process_id", processID))
	defer func() { endSpan(span, err) }()

	actor, err := loadActor(ctx, s.users, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireAnyRole(actor, "bid evaluation", domain.RoleEvaluator, domain.RoleProcurementOfficer); err != nil {
		return nil, err
	}
	if len(req.Scores) == 0 {
		return nil, apperrors.NewValidationError("scores", "at least one score is required")
	}
	for i, sc := range req.Scores {
		field := fmt.Sprintf("scores[%d]", i)
		if sc.TechnicalScore.IsNegative() || sc.TechnicalScore.GreaterThan(domain.MaxTechnicalScore) {
			return nil, apperrors.NewValidationError(field+".technicalScore", "must be between 0 and 70")
		}
		if sc.FinancialScore.IsNegative() || sc.FinancialScore.GreaterThan(domain.MaxFinancialScore) {
			return nil, apperrors.NewValidationError(field+".financialScore", "must be between 0 and 30")
		}
	}

	err = s.TxManager.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.procurement.FindProcessForUpdate(ctx, processID)
		if err != nil {
			return err
		}
		if p.Status != domain.ProcessEvaluation {
			return &apperrors.InvalidTransitionError{
				Workflow:     domain.WorkflowProcurement,
				EntityType:   string(domain.EntityProcurementProcess),
				EntityID:     p.ProcessID,
				CurrentState: p.Status,
				Attempted:    "evaluate",
			}
		}
		bids, err := s.procurement.ListBidsByProcess(ctx, p.ProcessID)
		if err != nil {
			return err
		}
		if err := s.authority.CheckConflictOfInterest(ctx, actorID, *p, bids); err != nil {
			return err
		}
		if err := s.authority.CheckMinimumQuotes(*p, bids); err != nil {
			return err
		}

		existing, err := s.procurement.ListBidEvaluations(ctx, p.ProcessID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.EvaluatorID == actorID {
				return fmt.Errorf("evaluator %s already scored process %s: %w", actorID, p.ProcessID, apperrors.ErrDuplicate)
			}
		}

		known := make(map[string]bool, len(bids))
		for _, b := range bids {
			known[b.BidID] = true
		}
		seen := map[string]bool{}
		now := s.now()
		rows := make([]domain.BidEvaluation, 0, len(req.Scores))
		for i, sc := range req.Scores {
			if !known[sc.BidID] {
				return apperrors.NewValidationError(fmt.Sprintf("scores[%d].bidID", i), "bid does not belong to the process")
			}
			if seen[sc.BidID] {
				return apperrors.NewValidationError(fmt.Sprintf("scores[%d].bidID", i), "bid scored twice")
			}
			seen[sc.BidID] = true
			rows = append(rows, domain.BidEvaluation{
				EvaluationID:   uuid.NewString(),
				ProcessID:      p.ProcessID,
				BidID:          sc.BidID,
				EvaluatorID:    actorID,
				TechnicalScore: sc.TechnicalScore,
				FinancialScore: sc.FinancialScore,
				TotalScore:     sc.TechnicalScore.Add(sc.FinancialScore),
				Comments:       sc.Comments,
				CreatedAt:      now,
			})
		}
		if err := s.procurement.SaveBidEvaluations(ctx, rows); err != nil {
			return err
		}
		s.audit(ctx, p, "procurement.evaluate", actorID, fmt.Sprintf("%d bids scored", len(rows)), nil)
		evals = rows
		return nil
	})
	if err != nil {
		s.LogError(ctx, err, "Bid evaluation rejected", slog.String("process_id", processID), slog.String("evaluator_id", actorID))
		return nil, err
	}
	return evals, nil
}

type bidStanding struct {
	bid   domain.Bid
	total decimal.Decimal
	count int64
}

func (b bidStanding) mean() decimal.Decimal {
	return b.total.Div(decimal.NewFromInt(b.count))
}

// rankBids orders evaluated bids by mean total score, then lower amount, then earlier submission.
func rankBids(bids []domain.Bid, evaluations []domain.BidEvaluation) []bidStanding {
	byBid := make(map[string]*bidStanding, len(bids))
	for _, b := range bids {
		byBid[b.BidID] = &bidStanding{bid: b, total: decimal.Zero}
	}
	for _, e := range evaluations {
		if st, ok := byBid[e.BidID]; ok {
			st.total = st.total.Add(e.TotalScore)
			st.count++
		}
	}
	ranked := make([]bidStanding, 0, len(byBid))
	for _, st := range byBid {
		if st.count > 0 {
			ranked = append(ranked, *st)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		mi, mj := ranked[i].mean(), ranked[j].mean()
		if !mi.Equal(mj) {
			return mi.GreaterThan(mj)
		}
		if !ranked[i].bid.Amount.Equal(ranked[j].bid.Amount) {
			return ranked[i].bid.Amount.LessThan(ranked[j].bid.Amount)
		}
		return ranked[i].bid.SubmittedAt.Before(ranked[j].bid.SubmittedAt)
	})
	return ranked
}

// AwardContract awards the process to the best ranked bid. Evaluators of the process may not award it.
func (s *procurementService) AwardContract(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error) {
	if _, err := s.officer(ctx, actorID, "contract award"); err != nil {
		return nil, err
	}
	return s.inTx(ctx, processID, func(ctx context.Context, p *domain.ProcurementProcess) error {
		evaluations, err := s.procurement.ListBidEvaluations(ctx, p.ProcessID)
		if err != nil {
			return err
		}
		for _, e := range evaluations {
			if e.EvaluatorID == actorID {
				return &apperrors.SegregationOfDutiesViolation{
					EntityType:    string(domain.EntityProcurementProcess),
					EntityID:      p.ProcessID,
					UserID:        actorID,
					Role:          "awarded_by",
					ConflictsWith: "evaluator",
				}
			}
		}
		bids, err := s.procurement.ListBidsByProcess(ctx, p.ProcessID)
		if err != nil {
			return err
		}
		ranked := rankBids(bids, evaluations)
		if p.Status == domain.ProcessEvaluation && len(ranked) == 0 {
			return apperrors.NewValidationError("processID", "no evaluated bids to award")
		}
		if err := s.transition(ctx, p, "award", domain.ProcessEvaluation, actorID, ""); err != nil {
			return err
		}
		winner := ranked[0]
		now := s.now()
		p.AwardedBidID = winner.bid.BidID
		p.AwardedBy = actorID
		p.AwardedAt = timePtr(now)
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "procurement.award", actorID, winner.bid.SupplierID, map[string]any{
			"bid_id":     winner.bid.BidID,
			"amount":     winner.bid.Amount.StringFixed(2),
			"mean_score": winner.mean().StringFixed(2),
		})
		s.notifyAfterCommit(ctx, usersWithRole(s.users, domain.RoleProcurementOfficer, ""), domain.Notification{
			Type:      domain.NotifyContractAwarded,
			Message:   fmt.Sprintf("%s awarded to supplier %s", p.ReferenceNumber, winner.bid.SupplierID),
			ModelType: string(domain.EntityProcurementProcess),
			ModelID:   p.ProcessID,
			Metadata:  map[string]any{"bid_id": winner.bid.BidID},
		})
		return nil
	})
}

func (s *procurementService) CompleteProcess(ctx context.Context, processID string, actorID string) (*domain.ProcurementProcess, error) {
	if _, err := s.officer(ctx, actorID, "procurement completion"); err != nil {
		return nil, err
	}
	return s.inTx(ctx, processID, func(ctx context.Context, p *domain.ProcurementProcess) error {
		if err := s.transition(ctx, p, "complete", domain.ProcessAwarded, actorID, ""); err != nil {
			return err
		}
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "procurement.complete", actorID, p.Title, nil)
		return nil
	})
}

func (s *procurementService) CancelProcess(ctx context.Context, processID string, reason string, actorID string) (*domain.ProcurementProcess, error) {
	if reason == "" {
		return nil, apperrors.NewValidationError("reason", "a cancellation reason is required")
	}
	if _, err := s.officer(ctx, actorID, "procurement cancellation"); err != nil {
		return nil, err
	}
	return s.inTx(ctx, processID, func(ctx context.Context, p *domain.ProcurementProcess) error {
		if err := s.transition(ctx, p, "cancel", "", actorID, reason); err != nil {
			return err
		}
		p.LastUpdatedBy = actorID
		s.audit(ctx, p, "procurement.cancel", actorID, reason, nil)
		return nil
	})
}
