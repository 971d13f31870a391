package escrow_test

import (
	"context"
	"database/sql"
	"sync"

	"github.com/goliatone/go-escrow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockEscrows implements escrow.Escrows
type MockEscrows struct {
	mock.Mock
}

func (m *MockEscrows) GetByID(ctx context.Context, id uuid.UUID) (*escrow.Escrow, error) {
	args := m.Called(ctx, id)
	return escrowArg(args, 0), args.Error(1)
}

func (m *MockEscrows) GetByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*escrow.Escrow, error) {
	args := m.Called(ctx, tx, id)
	return escrowArg(args, 0), args.Error(1)
}

func (m *MockEscrows) GetByJoinCode(ctx context.Context, code string) (*escrow.Escrow, error) {
	args := m.Called(ctx, code)
	return escrowArg(args, 0), args.Error(1)
}

// Create echoes the input record unless the expectation returns one.
func (m *MockEscrows) Create(ctx context.Context, record *escrow.Escrow) (*escrow.Escrow, error) {
	args := m.Called(ctx, record)
	if out := escrowArg(args, 0); out != nil {
		return out, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockEscrows) CreateTx(ctx context.Context, tx bun.IDB, record *escrow.Escrow) (*escrow.Escrow, error) {
	args := m.Called(ctx, tx, record)
	if out := escrowArg(args, 0); out != nil {
		return out, args.Error(1)
	}
	return record, args.Error(1)
}

func (m *MockEscrows) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected, target escrow.EscrowStatus, opts ...escrow.StatusUpdateOption) (*escrow.Escrow, error) {
	args := m.Called(ctx, id, expected, target, opts)
	return escrowArg(args, 0), args.Error(1)
}

func (m *MockEscrows) UpdateStatusIfTx(ctx context.Context, tx bun.IDB, id uuid.UUID, expected, target escrow.EscrowStatus, opts ...escrow.StatusUpdateOption) (*escrow.Escrow, error) {
	args := m.Called(ctx, tx, id, expected, target, opts)
	return escrowArg(args, 0), args.Error(1)
}

func (m *MockEscrows) ListByParty(ctx context.Context, userID uuid.UUID) ([]*escrow.Escrow, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]*escrow.Escrow)
	return records, args.Error(1)
}

func (m *MockEscrows) ListByStatus(ctx context.Context, status escrow.EscrowStatus, limit int) ([]*escrow.Escrow, error) {
	args := m.Called(ctx, status, limit)
	records, _ := args.Get(0).([]*escrow.Escrow)
	return records, args.Error(1)
}

func escrowArg(args mock.Arguments, i int) *escrow.Escrow {
	record, _ := args.Get(i).(*escrow.Escrow)
	return record
}

// MockStatusLogs implements escrow.StatusLogs
type MockStatusLogs struct {
	mock.Mock
}

func (m *MockStatusLogs) Append(ctx context.Context, entry *escrow.StatusLog) (*escrow.StatusLog, error) {
	args := m.Called(ctx, entry)
	record, _ := args.Get(0).(*escrow.StatusLog)
	return record, args.Error(1)
}

func (m *MockStatusLogs) AppendTx(ctx context.Context, tx bun.IDB, entry *escrow.StatusLog) (*escrow.StatusLog, error) {
	args := m.Called(ctx, tx, entry)
	record, _ := args.Get(0).(*escrow.StatusLog)
	return record, args.Error(1)
}

func (m *MockStatusLogs) ListByEscrow(ctx context.Context, escrowID uuid.UUID) ([]*escrow.StatusLog, error) {
	args := m.Called(ctx, escrowID)
	records, _ := args.Get(0).([]*escrow.StatusLog)
	return records, args.Error(1)
}

// MockRepositoryManager implements escrow.RepositoryManager
type MockRepositoryManager struct {
	escrows *MockEscrows
	logs    *MockStatusLogs
	txErr   error
}

func newMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		escrows: &MockEscrows{},
		logs:    &MockStatusLogs{},
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }

func (m *MockRepositoryManager) MustValidate() {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	if m.txErr != nil {
		return m.txErr
	}
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Escrows() escrow.Escrows { return m.escrows }

func (m *MockRepositoryManager) StatusLogs() escrow.StatusLogs { return m.logs }

// MockStateMachine implements escrow.EscrowStateMachine
type MockStateMachine struct {
	mock.Mock
}

func (m *MockStateMachine) Apply(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID, action escrow.Action, opts ...escrow.TransitionOption) (*escrow.TransitionResult, error) {
	args := m.Called(ctx, actor, escrowID, action)
	return resultArg(args), args.Error(1)
}

func (m *MockStateMachine) SetStatus(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID, target escrow.EscrowStatus, opts ...escrow.TransitionOption) (*escrow.TransitionResult, error) {
	args := m.Called(ctx, actor, escrowID, target)
	return resultArg(args), args.Error(1)
}

func (m *MockStateMachine) ForceComplete(ctx context.Context, actor escrow.Actor, escrowID uuid.UUID, opts ...escrow.TransitionOption) (*escrow.TransitionResult, error) {
	args := m.Called(ctx, actor, escrowID)
	return resultArg(args), args.Error(1)
}

func (m *MockStateMachine) Join(ctx context.Context, actor escrow.Actor, joinCode string, opts ...escrow.TransitionOption) (*escrow.TransitionResult, error) {
	args := m.Called(ctx, actor, joinCode)
	return resultArg(args), args.Error(1)
}

func resultArg(args mock.Arguments) *escrow.TransitionResult {
	result, _ := args.Get(0).(*escrow.TransitionResult)
	return result
}

// MockEscrowReader implements escrow.EscrowReader
type MockEscrowReader struct {
	mock.Mock
}

func (m *MockEscrowReader) Get(ctx context.Context, actor escrow.Actor, id uuid.UUID) (*escrow.Escrow, error) {
	args := m.Called(ctx, actor, id)
	return escrowArg(args, 0), args.Error(1)
}

func (m *MockEscrowReader) List(ctx context.Context, actor escrow.Actor) ([]*escrow.Escrow, error) {
	args := m.Called(ctx, actor)
	records, _ := args.Get(0).([]*escrow.Escrow)
	return records, args.Error(1)
}

func (m *MockEscrowReader) ListByStatus(ctx context.Context, actor escrow.Actor, status escrow.EscrowStatus, limit int) ([]*escrow.Escrow, error) {
	args := m.Called(ctx, actor, status, limit)
	records, _ := args.Get(0).([]*escrow.Escrow)
	return records, args.Error(1)
}

func (m *MockEscrowReader) Logs(ctx context.Context, actor escrow.Actor, id uuid.UUID) ([]*escrow.StatusLog, error) {
	args := m.Called(ctx, actor, id)
	records, _ := args.Get(0).([]*escrow.StatusLog)
	return records, args.Error(1)
}

// recordingNotifier captures notifications and can be told to fail.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []escrow.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg escrow.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *recordingNotifier) Sent() []escrow.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]escrow.Notification{}, n.sent...)
}

// recordingSink captures activity events.
type recordingSink struct {
	mu     sync.Mutex
	events []escrow.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event escrow.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Events() []escrow.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]escrow.ActivityEvent{}, s.events...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
