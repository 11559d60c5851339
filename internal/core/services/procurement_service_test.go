package services_test

import (
	"testing"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/apperrors"
	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/stretchr/testify/suite"
)

type ProcurementServiceTestSuite struct {
	P2PTestSuite
	officer    domain.User
	evaluator  domain.User
	evaluator2 domain.User
}

func TestProcurementServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ProcurementServiceTestSuite))
}

func (s *ProcurementServiceTestSuite) SetupTest() {
	s.P2PTestSuite.SetupTest()
	s.officer = s.user("procurement", "0", domain.RoleProcurementOfficer)
	s.evaluator = s.user("ict", "0", domain.RoleEvaluator)
	s.evaluator2 = s.user("finance", "0", domain.RoleEvaluator)
}

// openProcess publishes a process and collects one bid per supplier amount, in order.
func (s *ProcurementServiceTestSuite) openProcess(estimate string, amounts map[string]string, order ...string) (*domain.ProcurementProcess, map[string]domain.Bid) {
	p, err := s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
		ReferenceNumber: "TND-" + estimate, Title: "Office supplies", EstimatedAmount: dec(estimate),
	}, s.officer.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.PublishProcess(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)

	bids := map[string]domain.Bid{}
	for _, supplier := range order {
		b, err := s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: supplier, Amount: dec(amounts[supplier])}, s.officer.UserID)
		s.Require().NoError(err)
		bids[supplier] = *b
	}
	return p, bids
}

func (s *ProcurementServiceTestSuite) closedProcess(estimate string, amounts map[string]string, order ...string) (*domain.ProcurementProcess, map[string]domain.Bid) {
	p, bids := s.openProcess(estimate, amounts, order...)
	p, err := s.svc.Procurement.CloseBidding(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.ProcessEvaluation, p.Status)
	return p, bids
}

func score(bid domain.Bid, technical, financial string) dto.BidScoreRequest {
	return dto.BidScoreRequest{BidID: bid.BidID, TechnicalScore: dec(technical), FinancialScore: dec(financial)}
}

func (s *ProcurementServiceTestSuite) TestCreateProcess_MethodFollowsCashBand() {
	cases := map[string]string{"40000": "direct", "200000": "rfq", "3000000": "rfp", "9000000": "open_tender"}
	for estimate, method := range cases {
		p, err := s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
			ReferenceNumber: "REF-" + estimate, Title: "x", EstimatedAmount: dec(estimate),
		}, s.officer.UserID)
		s.Require().NoError(err)
		s.Equal(method, p.Method, estimate)
		s.Equal(domain.ProcessDraft, p.Status)
	}
}

func (s *ProcurementServiceTestSuite) TestCreateProcess_RequiresOfficer() {
	_, err := s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
		ReferenceNumber: "REF-1", Title: "x", EstimatedAmount: dec("100"),
	}, s.evaluator.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)

	past := s.clock.Now().Add(-time.Hour)
	_, err = s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
		ReferenceNumber: "REF-2", Title: "x", EstimatedAmount: dec("100"), ClosingDate: &past,
	}, s.officer.UserID)
	var vErr *apperrors.ValidationError
	s.ErrorAs(err, &vErr)
}

func (s *ProcurementServiceTestSuite) TestSubmitBid_Rules() {
	closing := s.clock.Now().Add(time.Hour)
	p, err := s.svc.Procurement.CreateProcess(s.ctx, dto.CreateProcessRequest{
		ReferenceNumber: "REF-3", Title: "x", EstimatedAmount: dec("100"), ClosingDate: &closing,
	}, s.officer.UserID)
	s.Require().NoError(err)

	var vErr *apperrors.ValidationError
	_, err = s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S1", Amount: dec("90")}, s.officer.UserID)
	s.ErrorAs(err, &vErr, "draft processes take no bids")

	_, err = s.svc.Procurement.PublishProcess(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S1", Amount: dec("90")}, s.officer.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S1", Amount: dec("80")}, s.officer.UserID)
	s.ErrorIs(err, apperrors.ErrDuplicate)

	s.clock.Advance(2 * time.Hour)
	_, err = s.svc.Procurement.SubmitBid(s.ctx, p.ProcessID, dto.SubmitBidRequest{SupplierID: "S2", Amount: dec("85")}, s.officer.UserID)
	s.ErrorAs(err, &vErr)

	bids, err := s.svc.Procurement.ListBids(s.ctx, p.ProcessID)
	s.Require().NoError(err)
	s.Len(bids, 1)
}

// An evaluator with a declared conflict against a bidding supplier is refused and nothing is written.
func (s *ProcurementServiceTestSuite) TestEvaluate_ConflictOfInterest() {
	p, bids := s.closedProcess("40000", map[string]string{"S1": "39000", "S2": "38000"}, "S1", "S2")
	_, err := s.svc.Procurement.DeclareConflict(s.ctx, dto.DeclareConflictRequest{
		TargetType: string(domain.ConflictTargetSupplier), TargetID: "S1", HasConflict: true, Details: "sibling is a director",
	}, s.evaluator.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25"), score(bids["S2"], "50", "28")},
	}, s.evaluator.UserID)
	var coi *apperrors.ConflictOfInterestError
	s.Require().ErrorAs(err, &coi)
	s.Equal([]string{"S1"}, coi.SupplierIDs)

	evals, err := s.repos.ProcurementRepo.ListBidEvaluations(s.ctx, p.ProcessID)
	s.Require().NoError(err)
	s.Empty(evals)

	evals, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25"), score(bids["S2"], "50", "28")},
	}, s.evaluator2.UserID)
	s.Require().NoError(err)
	s.Len(evals, 2)
	s.True(evals[0].TotalScore.Equal(dec("85")))
}

func (s *ProcurementServiceTestSuite) TestEvaluate_ConflictWithProcess() {
	p, bids := s.closedProcess("40000", map[string]string{"S1": "39000"}, "S1")
	_, err := s.svc.Procurement.DeclareConflict(s.ctx, dto.DeclareConflictRequest{
		TargetType: string(domain.ConflictTargetProcess), TargetID: p.ProcessID, HasConflict: true,
	}, s.evaluator.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, s.evaluator.UserID)
	var coi *apperrors.ConflictOfInterestError
	s.Require().ErrorAs(err, &coi)
	s.Empty(coi.SupplierIDs)
}

func (s *ProcurementServiceTestSuite) TestEvaluate_MinimumQuotes() {
	p, bids := s.closedProcess("200000", map[string]string{"S1": "190000", "S2": "180000"}, "S1", "S2")

	_, err := s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, s.evaluator.UserID)
	var mq *apperrors.MinimumQuotesError
	s.Require().ErrorAs(err, &mq)
	s.Equal("rfq", mq.Band)
	s.Equal(3, mq.Required)
	s.Equal(2, mq.Actual)
}

func (s *ProcurementServiceTestSuite) TestEvaluate_ConflictCheckedBeforeQuotes() {
	p, bids := s.closedProcess("200000", map[string]string{"S1": "190000"}, "S1")
	_, err := s.svc.Procurement.DeclareConflict(s.ctx, dto.DeclareConflictRequest{
		TargetType: string(domain.ConflictTargetSupplier), TargetID: "S1", HasConflict: true,
	}, s.evaluator.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, s.evaluator.UserID)
	s.ErrorIs(err, apperrors.ErrConflictOfInterest)
	s.NotErrorIs(err, apperrors.ErrMinimumQuotes)
}

func (s *ProcurementServiceTestSuite) TestEvaluate_Validation() {
	p, bids := s.openProcess("40000", map[string]string{"S1": "39000"}, "S1")

	_, err := s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, s.evaluator.UserID)
	var itErr *apperrors.InvalidTransitionError
	s.Require().ErrorAs(err, &itErr, "bidding is still open")
	s.Equal("evaluate", itErr.Attempted)
	s.Equal(domain.ProcessPublished, itErr.CurrentState)

	_, err = s.svc.Procurement.CloseBidding(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)

	var vErr *apperrors.ValidationError
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "71", "25")},
	}, s.evaluator.UserID)
	s.ErrorAs(err, &vErr)
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{{BidID: "not-a-bid", TechnicalScore: dec("10"), FinancialScore: dec("10")}},
	}, s.evaluator.UserID)
	s.ErrorAs(err, &vErr)

	staff := s.user("ict", "0", domain.RoleStaff)
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, staff.UserID)
	s.ErrorIs(err, apperrors.ErrForbidden)

	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "25")},
	}, s.evaluator.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "50", "25")},
	}, s.evaluator.UserID)
	s.ErrorIs(err, apperrors.ErrDuplicate)
}

// Equal mean scores fall back to the lower bid amount.
func (s *ProcurementServiceTestSuite) TestAward_TieBreaksOnAmount() {
	p, bids := s.closedProcess("40000", map[string]string{"S1": "30000", "S2": "28000"}, "S1", "S2")
	_, err := s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "20"), score(bids["S2"], "50", "30")},
	}, s.evaluator.UserID)
	s.Require().NoError(err)
	_, err = s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "40", "20"), score(bids["S2"], "45", "15")},
	}, s.evaluator2.UserID)
	s.Require().NoError(err)

	p, err = s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.ProcessAwarded, p.Status)
	s.Equal(bids["S2"].BidID, p.AwardedBidID)
	s.Equal(s.officer.UserID, p.AwardedBy)
	s.Len(s.notifier.sent(domain.NotifyContractAwarded), 1)

	p, err = s.svc.Procurement.CompleteProcess(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.ProcessCompleted, p.Status)
}

func (s *ProcurementServiceTestSuite) TestAward_HighestMeanWins() {
	p, bids := s.closedProcess("40000", map[string]string{"S1": "30000", "S2": "28000"}, "S1", "S2")
	_, err := s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "65", "25"), score(bids["S2"], "50", "30")},
	}, s.evaluator.UserID)
	s.Require().NoError(err)

	p, err = s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(bids["S1"].BidID, p.AwardedBidID)
}

func (s *ProcurementServiceTestSuite) TestAward_EvaluatorCannotAward() {
	p, bids := s.closedProcess("40000", map[string]string{"S1": "30000"}, "S1")
	_, err := s.svc.Procurement.EvaluateBids(s.ctx, p.ProcessID, dto.EvaluateBidsRequest{
		Scores: []dto.BidScoreRequest{score(bids["S1"], "60", "20")},
	}, s.officer.UserID)
	s.Require().NoError(err)

	_, err = s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, s.officer.UserID)
	var sod *apperrors.SegregationOfDutiesViolation
	s.Require().ErrorAs(err, &sod)
	s.Equal("evaluator", sod.ConflictsWith)

	other := s.user("procurement", "0", domain.RoleProcurementOfficer)
	p, err = s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, other.UserID)
	s.Require().NoError(err)
	s.Equal(bids["S1"].BidID, p.AwardedBidID)
}

func (s *ProcurementServiceTestSuite) TestAward_RequiresEvaluations() {
	p, _ := s.closedProcess("40000", map[string]string{"S1": "30000"}, "S1")
	_, err := s.svc.Procurement.AwardContract(s.ctx, p.ProcessID, s.officer.UserID)
	var vErr *apperrors.ValidationError
	s.ErrorAs(err, &vErr)
}

func (s *ProcurementServiceTestSuite) TestCancelProcess() {
	p, _ := s.openProcess("40000", nil)
	_, err := s.svc.Procurement.CancelProcess(s.ctx, p.ProcessID, "", s.officer.UserID)
	var vErr *apperrors.ValidationError
	s.ErrorAs(err, &vErr)

	p, err = s.svc.Procurement.CancelProcess(s.ctx, p.ProcessID, "requirement withdrawn", s.officer.UserID)
	s.Require().NoError(err)
	s.Equal(domain.ProcessCancelled, p.Status)

	_, err = s.svc.Procurement.CancelProcess(s.ctx, p.ProcessID, "again", s.officer.UserID)
	s.ErrorIs(err, apperrors.ErrInvalidTransition)
}
