package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTx records how a transaction ended. Any other pgx.Tx method panics.
type fakeTx struct {
	pgx.Tx
	mu         sync.Mutex
	committed  bool
	rolledBack bool
	commitErr  error
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.commitErr != nil {
		return tx.commitErr
	}
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type fakeTxManager struct {
	mu  sync.Mutex
	txs []*fakeTx
}

func (m *fakeTxManager) BeginTx(context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &fakeTx{}
	m.txs = append(m.txs, tx)
	return tx, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	args := m.Called(ctx, exchange, routingKey, body)
	return args.Error(0)
}

func pendingEvent(payload string) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: "bid.placed",
		Payload:   []byte(payload),
		Status:    OutboxStatusPending,
		CreatedAt: time.Now(),
	}
}

func TestOutboxRelay_ProcessBatch(t *testing.T) {
	first, second := pendingEvent("a"), pendingEvent("b")

	tests := []struct {
		name         string
		setup        func(*MockOutboxRepository, *MockPublisher)
		wantN        int
		wantErr      bool
		wantCommit   bool
		wantRollback bool
	}{
		{
			name: "publishes and marks every event",
			setup: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("GetPendingEvents", mock.Anything, mock.Anything, 10).Return([]*OutboxEvent{first, second}, nil)
				pub.On("Publish", mock.Anything, AuctionExchange, "bid.placed", []byte("a")).Return(nil)
				pub.On("Publish", mock.Anything, AuctionExchange, "bid.placed", []byte("b")).Return(nil)
				repo.On("UpdateEventStatus", mock.Anything, mock.Anything, first.ID, OutboxStatusPublished).Return(nil)
				repo.On("UpdateEventStatus", mock.Anything, mock.Anything, second.ID, OutboxStatusPublished).Return(nil)
			},
			wantN:      2,
			wantCommit: true,
		},
		{
			name: "empty outbox",
			setup: func(repo *MockOutboxRepository, _ *MockPublisher) {
				repo.On("GetPendingEvents", mock.Anything, mock.Anything, 10).Return([]*OutboxEvent{}, nil)
			},
			wantRollback: true,
		},
		{
			name: "publish failure leaves the batch pending",
			setup: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("GetPendingEvents", mock.Anything, mock.Anything, 10).Return([]*OutboxEvent{first, second}, nil)
				pub.On("Publish", mock.Anything, AuctionExchange, "bid.placed", []byte("a")).Return(errors.New("channel closed"))
			},
			wantErr:      true,
			wantRollback: true,
		},
		{
			name: "status update failure rolls back",
			setup: func(repo *MockOutboxRepository, pub *MockPublisher) {
				repo.On("GetPendingEvents", mock.Anything, mock.Anything, 10).Return([]*OutboxEvent{first}, nil)
				pub.On("Publish", mock.Anything, AuctionExchange, "bid.placed", []byte("a")).Return(nil)
				repo.On("UpdateEventStatus", mock.Anything, mock.Anything, first.ID, OutboxStatusPublished).Return(errors.New("deadlock"))
			},
			wantErr:      true,
			wantRollback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockOutboxRepository)
			pub := new(MockPublisher)
			txm := &fakeTxManager{}
			tt.setup(repo, pub)

			relay := NewOutboxRelay(repo, pub, txm, 10, time.Second, AuctionExchange, nil)
			n, err := relay.processBatch(context.Background())

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantN, n)

			require.Len(t, txm.txs, 1)
			assert.Equal(t, tt.wantCommit, txm.txs[0].committed)
			assert.Equal(t, tt.wantRollback, txm.txs[0].rolledBack)
			repo.AssertExpectations(t)
			pub.AssertExpectations(t)
		})
	}
}

func TestOutboxRelay_TickDrainsBacklog(t *testing.T) {
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)
	txm := &fakeTxManager{}

	full := []*OutboxEvent{pendingEvent("1"), pendingEvent("2")}
	rest := []*OutboxEvent{pendingEvent("3")}
	repo.On("GetPendingEvents", mock.Anything, mock.Anything, 2).Return(full, nil).Once()
	repo.On("GetPendingEvents", mock.Anything, mock.Anything, 2).Return(rest, nil).Once()
	pub.On("Publish", mock.Anything, AuctionExchange, "bid.placed", mock.Anything).Return(nil)
	repo.On("UpdateEventStatus", mock.Anything, mock.Anything, mock.Anything, OutboxStatusPublished).Return(nil)

	relay := NewOutboxRelay(repo, pub, txm, 2, time.Hour, AuctionExchange, nil)
	relay.tick(context.Background())

	assert.Len(t, txm.txs, 2, "a full batch is followed immediately by another")
	pub.AssertNumberOfCalls(t, "Publish", 3)
	repo.AssertExpectations(t)
}

func TestOutboxRelay_RunStopsOnCancel(t *testing.T) {
	repo := new(MockOutboxRepository)
	repo.On("GetPendingEvents", mock.Anything, mock.Anything, 10).Return([]*OutboxEvent{}, nil)

	relay := NewOutboxRelay(repo, new(MockPublisher), &fakeTxManager{}, 10, 5*time.Millisecond, AuctionExchange, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
