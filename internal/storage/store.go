package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/delinquency"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

// SnapshotStore defines operations for per-epoch validator snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap ValidatorSnapshot) error
	ReferenceSnapshot(ctx context.Context, voteAccount string, beforeEpoch uint64) (*ValidatorSnapshot, error)
	ListEpochSnapshots(ctx context.Context, epoch uint64) ([]ValidatorSnapshot, error)
	ListValidatorSnapshots(ctx context.Context, voteAccount string, limit int) ([]ValidatorSnapshot, error)
	LatestEpoch(ctx context.Context) (uint64, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// EventStore defines the append-only event ledger and its deduplicating
// read views.
type EventStore interface {
	InsertEventOnce(ctx context.Context, ev CommissionEvent) (CommissionEvent, bool, error)
	ListValidatorEvents(ctx context.Context, voteAccount string, limit int) ([]CommissionEvent, error)
	ListClassifiedEvents(ctx context.Context, classification classifier.Classification) ([]CommissionEvent, error)
	ListRecentEvents(ctx context.Context, limit int) ([]CommissionEvent, error)
	CountEvents(ctx context.Context) (int64, error)
}

// UptimeStore defines the per-check liveness ledger.
type UptimeStore interface {
	RecordUptimeCheck(ctx context.Context, check UptimeCheck) error
	ListUptimeDays(ctx context.Context, voteAccount string, days int) ([]UptimeDay, error)
}

// SubscriptionStore defines global and per-validator subscription access.
type SubscriptionStore interface {
	UpsertSubscriber(ctx context.Context, sub Subscriber) error
	DeleteSubscriber(ctx context.Context, email string) error
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
	UpsertEntitySubscription(ctx context.Context, sub EntitySubscription) error
	DeleteEntitySubscription(ctx context.Context, email, voteAccount string) error
	DeleteEntitySubscriptionsByEmail(ctx context.Context, email string) error
	ListValidatorSubscriptions(ctx context.Context, voteAccount string) ([]EntitySubscription, error)
}

// DelinquencyStateStore defines the compare-and-set state persistence used
// for alert suppression.
type DelinquencyStateStore interface {
	GetOrInitDelinquencyState(ctx context.Context, voteAccount string) (delinquency.State, error)
	TransitionDelinquencyState(ctx context.Context, voteAccount string, from, to delinquency.State) (bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to all tables behind one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ SnapshotStore         = (*Store)(nil)
	_ EventStore            = (*Store)(nil)
	_ UptimeStore           = (*Store)(nil)
	_ SubscriptionStore     = (*Store)(nil)
	_ DelinquencyStateStore = (*Store)(nil)
	_ AdvisoryLocker        = (*Store)(nil)
)

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema applies the idempotent DDL. Safe to run on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, Schema); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. The lock pins processing of a tick bucket to one process.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort; dropping the session releases the lock anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}
