package storage

import (
	"context"
	"fmt"

	"validator-commission-alerts/internal/delinquency"
)

const (
	initDelinquencyStateSQL = `INSERT INTO delinquency_alert_state (vote_account, state)
    VALUES ($1, $2)
    ON CONFLICT (vote_account) DO NOTHING;`

	getDelinquencyStateSQL = `SELECT state
    FROM delinquency_alert_state
    WHERE vote_account = $1;`

	transitionDelinquencyStateSQL = `UPDATE delinquency_alert_state
    SET state = $3, updated_at = now()
    WHERE vote_account = $1 AND state = $2;`
)

// GetOrInitDelinquencyState returns the validator's alerting state, creating
// the row as clear on first sight.
func (s *Store) GetOrInitDelinquencyState(ctx context.Context, voteAccount string) (delinquency.State, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	if _, execErr := pool.Exec(ctx, initDelinquencyStateSQL, voteAccount, string(delinquency.StateClear)); execErr != nil {
		return "", fmt.Errorf("init delinquency state: %w", execErr)
	}

	var raw string
	if scanErr := pool.QueryRow(ctx, getDelinquencyStateSQL, voteAccount).Scan(&raw); scanErr != nil {
		return "", fmt.Errorf("get delinquency state: %w", scanErr)
	}
	return delinquency.ParseState(raw)
}

// TransitionDelinquencyState moves the validator from one state to another
// only if it is still in the expected state. The bool reports whether this
// call won the transition; concurrent ticks race here and exactly one wins.
func (s *Store) TransitionDelinquencyState(ctx context.Context, voteAccount string, from, to delinquency.State) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, transitionDelinquencyStateSQL,
		voteAccount,
		string(from),
		string(to),
	)
	if execErr != nil {
		return false, fmt.Errorf("transition delinquency state: %w", execErr)
	}
	return tag.RowsAffected() > 0, nil
}
