// Package memory provides an in-process transactional store implementing every
// repository port. Each transaction works on a clone of the committed state and
// replaces it on commit, so a failed unit of work leaves nothing behind.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/SscSPs/procure_to_pay/internal/core/domain"
	portsrepo "github.com/SscSPs/procure_to_pay/internal/core/ports/repositories"
)

type memoryState struct {
	budgetLines    map[string]domain.BudgetLine
	budgetTxns     []domain.BudgetTransaction
	transitions    []domain.StateTransition
	approvals      []domain.ApprovalRecord
	requisitions   map[string]domain.Requisition
	purchaseOrders map[string]domain.PurchaseOrder
	invoices       map[string]domain.SupplierInvoice
	payments       map[string]domain.Payment
	processes      map[string]domain.ProcurementProcess
	bids           []domain.Bid
	evaluations    []domain.BidEvaluation
	declarations   []domain.ConflictOfInterestDeclaration
	users          map[string]domain.User
	auditLogs      []domain.AuditLog
}

func newMemoryState() memoryState {
	return memoryState{
		budgetLines:    map[string]domain.BudgetLine{},
		requisitions:   map[string]domain.Requisition{},
		purchaseOrders: map[string]domain.PurchaseOrder{},
		invoices:       map[string]domain.SupplierInvoice{},
		payments:       map[string]domain.Payment{},
		processes:      map[string]domain.ProcurementProcess{},
		users:          map[string]domain.User{},
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		budgetLines:    maps.Clone(s.budgetLines),
		budgetTxns:     slices.Clone(s.budgetTxns),
		transitions:    slices.Clone(s.transitions),
		approvals:      slices.Clone(s.approvals),
		requisitions:   maps.Clone(s.requisitions),
		purchaseOrders: maps.Clone(s.purchaseOrders),
		invoices:       maps.Clone(s.invoices),
		payments:       maps.Clone(s.payments),
		processes:      maps.Clone(s.processes),
		bids:           slices.Clone(s.bids),
		evaluations:    slices.Clone(s.evaluations),
		declarations:   slices.Clone(s.declarations),
		users:          maps.Clone(s.users),
		auditLogs:      slices.Clone(s.auditLogs),
	}
}

// Store is the shared state behind the memory repositories. Transactions are
// serialized, which gives every unit of work the isolation of a row lock on
// everything it touches.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state memoryState
}

func NewStore() *Store {
	return &Store{state: newMemoryState()}
}

type txKey struct{}

type memTx struct {
	store       *Store
	state       memoryState
	afterCommit []func(ctx context.Context)
}

func (s *Store) txFrom(ctx context.Context) *memTx {
	tx, ok := ctx.Value(txKey{}).(*memTx)
	if !ok || tx.store != s {
		return nil
	}
	return tx
}

// WithinTx implements repositories.TransactionManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	released := false
	defer func() {
		if !released {
			s.txMu.Unlock()
		}
	}()

	s.mu.RLock()
	tx := &memTx{store: s, state: s.state.clone()}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = tx.state
	s.mu.Unlock()
	released = true
	s.txMu.Unlock()

	for _, f := range tx.afterCommit {
		f(ctx)
	}
	return nil
}

// AfterCommit implements repositories.TransactionManager.
func (s *Store) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if tx := s.txFrom(ctx); tx != nil {
		tx.afterCommit = append(tx.afterCommit, fn)
		return
	}
	fn(ctx)
}

// view runs fn against the transaction's working state, or the committed state outside one.
func (s *Store) view(ctx context.Context, fn func(st *memoryState) error) error {
	if tx := s.txFrom(ctx); tx != nil {
		return fn(&tx.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&s.state)
}

// update runs fn inside the caller's transaction, or in a transaction of its own.
func (s *Store) update(ctx context.Context, fn func(st *memoryState) error) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(&s.txFrom(ctx).state)
	})
}

// NewRepositoryProvider wires every memory repository over one store.
func NewRepositoryProvider(store *Store) portsrepo.RepositoryProvider {
	return portsrepo.RepositoryProvider{
		TxManager:       store,
		BudgetRepo:      NewBudgetRepository(store),
		StatusRepo:      NewEntityStatusRepository(store),
		TransitionRepo:  NewStateTransitionRepository(store),
		ApprovalRepo:    NewApprovalRecordRepository(store),
		RequisitionRepo: NewRequisitionRepository(store),
		InvoiceRepo:     NewInvoiceRepository(store),
		PaymentRepo:     NewPaymentRepository(store),
		ProcurementRepo: NewProcurementRepository(store),
		ConflictRepo:    NewConflictOfInterestRepository(store),
		UserRepo:        NewUserRepository(store),
		AuditRepo:       NewAuditLogRepository(store),
	}
}
