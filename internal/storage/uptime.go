package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	insertUptimeCheckSQL = `INSERT INTO uptime_checks (
        vote_account,
        bucket_ts,
        day,
        delinquent
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (vote_account, bucket_ts) DO NOTHING;`

	listUptimeDaysSQL = `SELECT
        vote_account,
        day,
        COUNT(*)                            AS total_checks,
        COUNT(*) FILTER (WHERE delinquent)  AS delinquent_checks
    FROM uptime_checks
    WHERE vote_account = $1
    GROUP BY vote_account, day
    ORDER BY day DESC
    LIMIT $2;`
)

// RecordUptimeCheck stores one liveness observation. Replaying the same tick
// bucket is a no-op, which keeps day counters correct under retried ticks.
func (s *Store) RecordUptimeCheck(ctx context.Context, check UptimeCheck) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	day := check.Bucket.UTC().Truncate(24 * time.Hour)
	_, execErr := pool.Exec(ctx, insertUptimeCheckSQL,
		check.VoteAccount,
		check.Bucket,
		day,
		check.Delinquent,
	)
	if execErr != nil {
		return fmt.Errorf("record uptime check: %w", execErr)
	}
	return nil
}

// ListUptimeDays aggregates a validator's checks per UTC day, newest first.
// Days without any check produce no row, so "never checked" is
// distinguishable from "0% uptime".
func (s *Store) ListUptimeDays(ctx context.Context, voteAccount string, days int) ([]UptimeDay, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUptimeDaysSQL, voteAccount, days)
	if queryErr != nil {
		return nil, fmt.Errorf("list uptime days: %w", queryErr)
	}
	defer rows.Close()

	result := make([]UptimeDay, 0, days)
	for rows.Next() {
		var d UptimeDay
		if scanErr := rows.Scan(
			&d.VoteAccount,
			&d.Day,
			&d.TotalChecks,
			&d.DelinquentChecks,
		); scanErr != nil {
			return nil, scanErr
		}
		result = append(result, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return result, nil
}
