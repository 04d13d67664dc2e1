package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

const (
	insertEventSQL = `INSERT INTO commission_events (
        vote_account,
        epoch,
        metric,
        classification,
        from_value,
        to_value,
        delta
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (vote_account, epoch, metric, from_value, to_value) DO NOTHING
    RETURNING id, created_at;`

	listValidatorEventsSQL = `SELECT DISTINCT ON (epoch, metric)
        id,
        vote_account,
        epoch,
        metric,
        classification,
        from_value,
        to_value,
        delta,
        created_at
    FROM commission_events
    WHERE vote_account = $1
    ORDER BY epoch DESC, metric, created_at DESC
    LIMIT $2;`

	listClassifiedEventsSQL = `SELECT DISTINCT ON (vote_account, epoch, metric)
        id,
        vote_account,
        epoch,
        metric,
        classification,
        from_value,
        to_value,
        delta,
        created_at
    FROM commission_events
    WHERE classification = $1
    ORDER BY vote_account, epoch, metric, created_at DESC;`

	listRecentEventsSQL = `SELECT
        id,
        vote_account,
        epoch,
        metric,
        classification,
        from_value,
        to_value,
        delta,
        created_at
    FROM commission_events
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	countEventsSQL = `SELECT COUNT(*) FROM commission_events;`
)

// InsertEventOnce appends an event unless the same transition was already
// recorded for the epoch. The bool reports whether this call created the
// row; callers only notify on true.
func (s *Store) InsertEventOnce(ctx context.Context, ev CommissionEvent) (CommissionEvent, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return CommissionEvent{}, false, err
	}

	var delta interface{}
	if ev.Delta.Valid {
		delta = ev.Delta.Decimal.String()
	}

	row := pool.QueryRow(ctx, insertEventSQL,
		ev.VoteAccount,
		int64(ev.Epoch),
		string(ev.Metric),
		string(ev.Classification),
		ev.FromValue.String(),
		ev.ToValue.String(),
		delta,
	)
	if scanErr := row.Scan(&ev.ID, &ev.CreatedAt); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return ev, false, nil
		}
		return CommissionEvent{}, false, fmt.Errorf("insert event: %w", scanErr)
	}
	return ev, true, nil
}

// ListValidatorEvents returns one representative event per (epoch, metric)
// for a validator, newest epochs first. When a metric flipped more than once
// within an epoch the latest row represents it.
func (s *Store) ListValidatorEvents(ctx context.Context, voteAccount string, limit int) ([]CommissionEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listValidatorEventsSQL, voteAccount, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list validator events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, limit)
}

// ListClassifiedEvents returns the representative events of one
// classification across the whole history, for aggregation.
func (s *Store) ListClassifiedEvents(ctx context.Context, classification classifier.Classification) ([]CommissionEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listClassifiedEventsSQL, string(classification))
	if queryErr != nil {
		return nil, fmt.Errorf("list classified events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, 0)
}

// ListRecentEvents returns the raw ledger tail, undeduplicated.
func (s *Store) ListRecentEvents(ctx context.Context, limit int) ([]CommissionEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	return collectEvents(rows, limit)
}

// CountEvents counts all ledger rows.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countEventsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count events: %w", scanErr)
	}
	return count, nil
}

func collectEvents(rows pgx.Rows, sizeHint int) ([]CommissionEvent, error) {
	events := make([]CommissionEvent, 0, sizeHint)
	for rows.Next() {
		ev, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

func scanEvent(rows pgx.Rows) (CommissionEvent, error) {
	var (
		ev       CommissionEvent
		epoch    int64
		metric   string
		class    string
		fromStr  string
		toStr    string
		deltaStr sql.NullString
	)
	if err := rows.Scan(
		&ev.ID,
		&ev.VoteAccount,
		&epoch,
		&metric,
		&class,
		&fromStr,
		&toStr,
		&deltaStr,
		&ev.CreatedAt,
	); err != nil {
		return CommissionEvent{}, err
	}
	ev.Epoch = uint64(epoch)

	var err error
	if ev.Metric, err = classifier.ParseMetricType(metric); err != nil {
		return CommissionEvent{}, err
	}
	if ev.Classification, err = classifier.ParseClassification(class); err != nil {
		return CommissionEvent{}, err
	}
	if ev.FromValue, err = classifier.ParseCommissionValue(fromStr); err != nil {
		return CommissionEvent{}, err
	}
	if ev.ToValue, err = classifier.ParseCommissionValue(toStr); err != nil {
		return CommissionEvent{}, err
	}
	if deltaStr.Valid {
		delta, convErr := decimal.NewFromString(deltaStr.String)
		if convErr != nil {
			return CommissionEvent{}, fmt.Errorf("parse delta: %w", convErr)
		}
		ev.Delta = decimal.NewNullDecimal(delta)
	}
	return ev, nil
}
