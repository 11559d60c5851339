package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/procure_to_pay/internal/core/ports/services"
	"github.com/SscSPs/procure_to_pay/internal/core/services"
	"github.com/SscSPs/procure_to_pay/internal/dto"
	"github.com/SscSPs/procure_to_pay/internal/platform/audit"
	"github.com/SscSPs/procure_to_pay/internal/platform/config"
	"github.com/SscSPs/procure_to_pay/internal/platform/lock"
	"github.com/SscSPs/procure_to_pay/internal/repositories/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// MockNotifier is a mock type for the Notifier port
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) {
	m.Called(ctx, n)
}

// sent returns the notifications of type t dispatched so far.
func (m *MockNotifier) sent(t domain.NotificationType) []domain.Notification {
	var out []domain.Notification
	for _, c := range m.Calls {
		if c.Method != "Notify" {
			continue
		}
		if n := c.Arguments.Get(1).(domain.Notification); n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// testClock is shared by every service of a fixture. Each reading moves it forward
// a millisecond so rows written in sequence never share a timestamp.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// P2PTestSuite wires every service over a fresh memory store for each test.
type P2PTestSuite struct {
	suite.Suite
	ctx      context.Context
	cfg      *config.Config
	repos    portsrepo.RepositoryProvider
	svc      *portssvc.ServiceContainer
	notifier *MockNotifier
	clock    *testClock
}

func (s *P2PTestSuite) SetupTest() {
	s.ctx = context.Background()
	if s.cfg == nil {
		s.cfg = &config.Config{
			BudgetAlertThresholdPercent:    decimal.NewFromInt(90),
			ConflictOfInterestCheckEnabled: true,
			InvoiceMatchTolerancePercent:   decimal.NewFromInt(5),
		}
	}
	s.repos = memory.NewRepositoryProvider(memory.NewStore())
	s.notifier = new(MockNotifier)
	s.notifier.On("Notify", mock.Anything, mock.Anything).Return().Maybe()
	s.clock = &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.svc = services.NewServiceContainer(s.cfg, s.repos, services.Dependencies{
		Locker:   lock.NewLocalLocker(),
		Audit:    audit.NewRecorder(s.repos.AuditRepo),
		Notifier: s.notifier,
		Clock:    s.clock.Now,
	})
}

// user stores an active user directly, bypassing the admin check of the user service.
func (s *P2PTestSuite) user(dept string, limit string, roles ...domain.Role) domain.User {
	u := domain.User{
		UserID:        uuid.NewString(),
		Name:          "user-" + uuid.NewString()[:6],
		Email:         uuid.NewString()[:8] + "@example.org",
		DepartmentID:  dept,
		Roles:         roles,
		ApprovalLimit: dec(limit),
		IsActive:      true,
	}
	s.Require().NoError(s.repos.UserRepo.SaveUser(s.ctx, u))
	return u
}

func (s *P2PTestSuite) allocate(dept, costCenter string, fy int, amount string) *domain.BudgetLine {
	admin := s.user(dept, "0", domain.RoleSuperAdmin)
	line, err := s.svc.Ledger.Allocate(s.ctx, dto.AllocateBudgetRequest{
		DepartmentID:  dept,
		CostCenter:    costCenter,
		FiscalYear:    fy,
		Amount:        dec(amount),
		IsOperational: true,
	}, admin.UserID)
	s.Require().NoError(err)
	return line
}

func (s *P2PTestSuite) line(id string) *domain.BudgetLine {
	l, err := s.svc.Ledger.GetBudgetLine(s.ctx, id)
	s.Require().NoError(err)
	return l
}

func (s *P2PTestSuite) transactions(lineID string) []domain.BudgetTransaction {
	txns, _, err := s.svc.Ledger.ListTransactions(s.ctx, lineID, 100, nil)
	s.Require().NoError(err)
	return txns
}

func ref(id string) domain.LedgerReference {
	return domain.LedgerReference{Type: "purchase_order", ID: id, Description: "test " + id}
}
