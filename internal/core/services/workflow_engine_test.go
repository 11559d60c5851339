package services_test

import (
	"testing"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/stretchr/testify/suite"
)

type WorkflowEngineTestSuite struct {
	P2PTestSuite
}

func TestWorkflowEngineTestSuite(t *testing.T) {
	suite.Run(t, new(WorkflowEngineTestSuite))
}

func (s *WorkflowEngineTestSuite) draftRequisition() *domain.Requisition {
	r := &domain.Requisition{RequisitionID: "req-1", Title: "Laptops", Amount: dec("1000"), Status: domain.RequisitionDraft}
	s.Require().NoError(s.repos.RequisitionRepo.SaveRequisition(s.ctx, *r))
	return r
}

func (s *WorkflowEngineTestSuite) TestTransition_AppliesEdgeAndRecordsHistory() {
	r := s.draftRequisition()

	st, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{
		Workflow: domain.WorkflowRequisition, Event: "submit", ActorID: "u1",
	})
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, r.Status)
	s.Equal(domain.RequisitionDraft, st.FromState)
	s.Equal(domain.RequisitionPendingApproval, st.ToState)

	stored, err := s.repos.RequisitionRepo.FindRequisitionByID(s.ctx, r.RequisitionID)
	s.Require().NoError(err)
	s.Equal(domain.RequisitionPendingApproval, stored.Status)

	// Target state alone selects the edge too.
	_, err = s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{
		Workflow: domain.WorkflowRequisition, ToState: domain.RequisitionRejected, ActorID: "u2",
	})
	s.Require().NoError(err)

	history, err := s.svc.Workflow.History(s.ctx, domain.EntityRequisition, r.RequisitionID)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("submit", history[0].Event)
	s.Equal("reject", history[1].Event)
	s.Equal("u2", history[1].ActorID)
}

func (s *WorkflowEngineTestSuite) TestTransition_RejectedRequisitionCannotBeApproved() {
	r := s.draftRequisition()
	for _, event := range []string{"submit", "reject"} {
		_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, Event: event, ActorID: "u1"})
		s.Require().NoError(err)
	}

	_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, Event: "approve", ActorID: "u2"})
	var invalid *apperrors.InvalidTransitionError
	s.Require().ErrorAs(err, &invalid)
	s.Equal(domain.RequisitionRejected, invalid.CurrentState)
	s.Equal("approve", invalid.Attempted)
}

func (s *WorkflowEngineTestSuite) TestTransition_UsesPersistedStatus() {
	r := s.draftRequisition()
	stale := *r
	_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, Event: "submit", ActorID: "u1"})
	s.Require().NoError(err)

	// The stale copy still says draft but the stored row is pending_approval.
	_, err = s.svc.Workflow.Transition(s.ctx, &stale, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, Event: "submit", ActorID: "u1"})
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
	s.Equal(domain.RequisitionDraft, stale.Status)
}

func (s *WorkflowEngineTestSuite) TestTransition_ExpectedFromMismatch() {
	r := s.draftRequisition()
	_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{
		Workflow: domain.WorkflowRequisition, Event: "cancel", ExpectedFrom: domain.RequisitionPendingApproval, ActorID: "u1",
	})
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (s *WorkflowEngineTestSuite) TestTransition_EventAndStateMustAgree() {
	r := s.draftRequisition()
	_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{
		Workflow: domain.WorkflowRequisition, Event: "submit", ToState: domain.RequisitionCancelled, ActorID: "u1",
	})
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
	s.Equal(domain.RequisitionDraft, r.Status)
}

func (s *WorkflowEngineTestSuite) TestTransition_WorkflowValidation() {
	r := s.draftRequisition()
	var vErr *apperrors.ValidationError

	_, err := s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: "Nope", Event: "submit", ActorID: "u1"})
	s.ErrorAs(err, &vErr)
	_, err = s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowPayment, Event: "submit", ActorID: "u1"})
	s.ErrorAs(err, &vErr)
	_, err = s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, ActorID: "u1"})
	s.ErrorAs(err, &vErr)
	_, err = s.svc.Workflow.Transition(s.ctx, r, domain.TransitionRequest{Workflow: domain.WorkflowRequisition, Event: "submit"})
	s.ErrorAs(err, &vErr)

	history, err := s.svc.Workflow.History(s.ctx, domain.EntityRequisition, r.RequisitionID)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *WorkflowEngineTestSuite) TestTransition_UnknownEntity() {
	missing := &domain.Payment{PaymentID: "nope"}
	_, err := s.svc.Workflow.Transition(s.ctx, missing, domain.TransitionRequest{Workflow: domain.WorkflowPayment, Event: "submit", ActorID: "u1"})
	s.ErrorIs(err, apperrors.ErrNotFound)
}
