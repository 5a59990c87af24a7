package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/pkg/retry"
)

// Advisory lock keys. Application wide, held for the transaction only.
const (
	advisoryGlobal int64 = 0x616c656d_0001
	advisoryEvents int64 = 0x616c656d_0002
)

// Store is a ledger.Store on PostgreSQL.
//
// Per-user and per-item serialization uses SELECT ... FOR UPDATE on the
// rows in id order. The global and active-event locks are transaction-scoped
// advisory locks taken shared or exclusive. Serialization failures and
// deadlocks replay the whole callback.
type Store struct {
	conn    *Connection
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewStore wraps an open connection.
func NewStore(conn *Connection, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{conn: conn, logger: logger}
	s.retrier = retry.Transactions(IsTransient,
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("replaying ledger transaction", "attempt", attempt, "delay", delay, "error", err)
		}),
	)
	return s
}

var _ ledger.Store = (*Store)(nil)

// Update runs fn under the scope's locks in one transaction.
func (s *Store) Update(ctx context.Context, scope ledger.Scope, fn func(tx ledger.Tx) error) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, DefaultTxOptions(), func(pgTx pgx.Tx) error {
			if err := s.lock(ctx, pgTx, scope); err != nil {
				return err
			}
			return fn(&tx{q: pgTx})
		})
	})
	return mapError("Update", err)
}

// View runs fn in a read-only repeatable-read transaction.
func (s *Store) View(ctx context.Context, fn func(tx ledger.Tx) error) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, SnapshotTxOptions(), func(pgTx pgx.Tx) error {
			return fn(&tx{q: pgTx, readOnly: true})
		})
	})
	return mapError("View", err)
}

// Close closes the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

// lock acquires global, events, users then items, like the memory store.
func (s *Store) lock(ctx context.Context, q pgx.Tx, scope ledger.Scope) error {
	globalSQL := "SELECT pg_advisory_xact_lock_shared($1)"
	if scope.ExclusiveGlobal {
		globalSQL = "SELECT pg_advisory_xact_lock($1)"
	}
	if _, err := q.Exec(ctx, globalSQL, advisoryGlobal); err != nil {
		return err
	}

	switch scope.Events {
	case ledger.LockShared:
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock_shared($1)", advisoryEvents); err != nil {
			return err
		}
	case ledger.LockExclusive:
		if _, err := q.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryEvents); err != nil {
			return err
		}
	}

	if users := scope.SortedUsers(); len(users) > 0 {
		ids := make([]string, len(users))
		for i, id := range users {
			ids[i] = string(id)
		}
		if _, err := q.Exec(ctx, `
			SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE
		`, ids); err != nil {
			return err
		}
	}

	if items := scope.SortedItems(); len(items) > 0 {
		ids := make([]string, len(items))
		for i, id := range items {
			ids[i] = string(id)
		}
		if _, err := q.Exec(ctx, `
			SELECT id FROM shop_items WHERE id = ANY($1) ORDER BY id FOR UPDATE
		`, ids); err != nil {
			return err
		}
	}

	return nil
}

// mapError gives driver failures a ledger kind. Domain errors from the
// callback pass through untouched.
func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConnectionClosed):
		return shared.ErrStoreClosed
	case IsTransient(err), IsLockNotAvailable(err):
		return shared.WrapError("ledger", op, shared.ErrConsistency, "transaction lost a concurrent race", err)
	case IsCheckViolation(err):
		return shared.WrapError("ledger", op, shared.ErrConsistency, "invariant rejected by database", err)
	default:
		return shared.Storage("ledger", op, err)
	}
}
