package storage

import (
	"context"
	"fmt"
)

const (
	upsertSubscriberSQL = `INSERT INTO subscribers (email, preference)
    VALUES ($1, $2)
    ON CONFLICT (email) DO UPDATE
    SET preference = EXCLUDED.preference;`

	deleteSubscriberSQL = `DELETE FROM subscribers WHERE email = $1;`

	listSubscribersSQL = `SELECT email, preference, created_at
    FROM subscribers
    ORDER BY email;`

	upsertEntitySubscriptionSQL = `INSERT INTO entity_subscriptions (
        email,
        vote_account,
        commission_alerts,
        delinquency_alerts
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (email, vote_account) DO UPDATE
    SET commission_alerts  = EXCLUDED.commission_alerts,
        delinquency_alerts = EXCLUDED.delinquency_alerts;`

	deleteEntitySubscriptionSQL = `DELETE FROM entity_subscriptions
    WHERE email = $1 AND vote_account = $2;`

	deleteEntitySubscriptionsByEmailSQL = `DELETE FROM entity_subscriptions
    WHERE email = $1;`

	listValidatorSubscriptionsSQL = `SELECT
        email,
        vote_account,
        commission_alerts,
        delinquency_alerts,
        created_at
    FROM entity_subscriptions
    WHERE vote_account = $1
    ORDER BY email;`
)

// UpsertSubscriber creates or updates a global subscription.
func (s *Store) UpsertSubscriber(ctx context.Context, sub Subscriber) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, upsertSubscriberSQL, sub.Email, string(sub.Preference)); execErr != nil {
		return fmt.Errorf("upsert subscriber: %w", execErr)
	}
	return nil
}

// DeleteSubscriber removes a global subscription. Per-validator rows for the
// same email are independent and unaffected.
func (s *Store) DeleteSubscriber(ctx context.Context, email string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteSubscriberSQL, email); execErr != nil {
		return fmt.Errorf("delete subscriber: %w", execErr)
	}
	return nil
}

// ListSubscribers lists all global subscriptions.
func (s *Store) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSubscribersSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list subscribers: %w", queryErr)
	}
	defer rows.Close()

	subs := make([]Subscriber, 0)
	for rows.Next() {
		var (
			sub  Subscriber
			pref string
		)
		if scanErr := rows.Scan(&sub.Email, &pref, &sub.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		preference, parseErr := ParsePreference(pref)
		if parseErr != nil {
			return nil, parseErr
		}
		sub.Preference = preference
		subs = append(subs, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}

// UpsertEntitySubscription creates or updates a per-validator subscription.
func (s *Store) UpsertEntitySubscription(ctx context.Context, sub EntitySubscription) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	_, execErr := pool.Exec(ctx, upsertEntitySubscriptionSQL,
		sub.Email,
		sub.VoteAccount,
		sub.CommissionAlerts,
		sub.DelinquencyAlerts,
	)
	if execErr != nil {
		return fmt.Errorf("upsert entity subscription: %w", execErr)
	}
	return nil
}

// DeleteEntitySubscription removes one per-validator subscription.
func (s *Store) DeleteEntitySubscription(ctx context.Context, email, voteAccount string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteEntitySubscriptionSQL, email, voteAccount); execErr != nil {
		return fmt.Errorf("delete entity subscription: %w", execErr)
	}
	return nil
}

// DeleteEntitySubscriptionsByEmail removes all per-validator subscriptions
// of one email.
func (s *Store) DeleteEntitySubscriptionsByEmail(ctx context.Context, email string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteEntitySubscriptionsByEmailSQL, email); execErr != nil {
		return fmt.Errorf("delete entity subscriptions by email: %w", execErr)
	}
	return nil
}

// ListValidatorSubscriptions lists the per-validator subscriptions of one
// validator.
func (s *Store) ListValidatorSubscriptions(ctx context.Context, voteAccount string) ([]EntitySubscription, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listValidatorSubscriptionsSQL, voteAccount)
	if queryErr != nil {
		return nil, fmt.Errorf("list validator subscriptions: %w", queryErr)
	}
	defer rows.Close()

	subs := make([]EntitySubscription, 0)
	for rows.Next() {
		var sub EntitySubscription
		if scanErr := rows.Scan(
			&sub.Email,
			&sub.VoteAccount,
			&sub.CommissionAlerts,
			&sub.DelinquencyAlerts,
			&sub.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, sub)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return subs, nil
}
