package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type workflowEngine struct {
	BaseService
	statuses    portsrepo.EntityStatusRepository
	transitions portsrepo.StateTransitionRepository
	definitions map[string]domain.WorkflowDefinition
}

// NewWorkflowEngine creates an engine that knows the given workflow definitions.
func NewWorkflowEngine(base BaseService, statuses portsrepo.EntityStatusRepository, transitions portsrepo.StateTransitionRepository, definitions ...domain.WorkflowDefinition) portssvc.WorkflowEngineSvc {
	defs := make(map[string]domain.WorkflowDefinition, len(definitions))
	for _, d := range definitions {
		defs[d.Name] = d
	}
	return &workflowEngine{
		BaseService: base,
		statuses:    statuses,
		transitions: transitions,
		definitions: defs,
	}
}

var _ portssvc.WorkflowEngineSvc = (*workflowEngine)(nil)

func (e *workflowEngine) invalid(def domain.WorkflowDefinition, entity domain.Approvable, current, attempted string) error {
	return &apperrors.InvalidTransitionError{
		Workflow:     def.Name,
		EntityType:   string(entity.EntityType()),
		EntityID:     entity.EntityID(),
		CurrentState: current,
		Attempted:    attempted,
	}
}

// Transition moves entity along one edge of req.Workflow. The status swap and the
// history row are written in the caller's transaction.
func (e *workflowEngine) Transition(ctx context.Context, entity domain.Approvable, req domain.TransitionRequest) (st *domain.StateTransition, err error) {
	ctx, span := e.startSpan(ctx, "workflow.Transition",
		attribute.String("workflow", req.Workflow), attribute.String("entity_id", entity.EntityID()),
		attribute.String("event", req.Event), attribute.String("to_state", req.ToState))
	defer func() { endSpan(span, err) }()

	def, ok := e.definitions[req.Workflow]
	if !ok {
		return nil, apperrors.NewValidationError("workflow", fmt.Sprintf("unknown workflow %q", req.Workflow))
	}
	if def.EntityType != entity.EntityType() {
		return nil, apperrors.NewValidationError("workflow",
			fmt.Sprintf("workflow %s does not apply to %s", def.Name, entity.EntityType()))
	}
	if req.Event == "" && req.ToState == "" {
		return nil, apperrors.NewValidationError("event", "either an event or a target state is required")
	}
	if req.ActorID == "" {
		return nil, apperrors.NewValidationError("actorID", "acting user is required")
	}
	attempted := req.Event
	if attempted == "" {
		attempted = req.ToState
	}

	current, err := e.statuses.FindEntityStatus(ctx, entity.EntityType(), entity.EntityID())
	if err != nil {
		return nil, err
	}
	if req.ExpectedFrom != "" && req.ExpectedFrom != current {
		return nil, e.invalid(def, entity, current, attempted)
	}
	if def.IsTerminal(current) {
		return nil, e.invalid(def, entity, current, attempted)
	}

	var edge domain.WorkflowEdge
	if req.Event != "" {
		edge, ok = def.EdgeForEvent(req.Event, current)
		if ok && req.ToState != "" && edge.To != req.ToState {
			ok = false
		}
	} else {
		edge, ok = def.EdgeToState(current, req.ToState)
	}
	if !ok {
		return nil, e.invalid(def, entity, current, attempted)
	}

	now := e.now()
	swapped, err := e.statuses.CompareAndSetStatus(ctx, entity.EntityType(), entity.EntityID(), current, edge.To, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		// Lost a race with another transition; report what is stored now.
		latest, ferr := e.statuses.FindEntityStatus(ctx, entity.EntityType(), entity.EntityID())
		if ferr != nil {
			latest = current
		}
		return nil, e.invalid(def, entity, latest, attempted)
	}

	transition := domain.StateTransition{
		TransitionID:  uuid.NewString(),
		EntityType:    entity.EntityType(),
		EntityID:      entity.EntityID(),
		Workflow:      def.Name,
		Event:         edge.Event,
		FromState:     current,
		ToState:       edge.To,
		ActorID:       req.ActorID,
		Justification: req.Justification,
		CreatedAt:     now,
	}
	if err := e.transitions.SaveStateTransition(ctx, transition); err != nil {
		return nil, err
	}
	entity.SetStatus(edge.To)

	e.LogDebug(ctx, "Workflow transition applied",
		slog.String("workflow", def.Name),
		slog.String("entity_id", entity.EntityID()),
		slog.String("from", current),
		slog.String("to", edge.To))
	return &transition, nil
}

func (e *workflowEngine) History(ctx context.Context, entityType domain.EntityType, entityID string) ([]domain.StateTransition, error) {
	return e.transitions.ListStateTransitions(ctx, entityType, entityID)
}
