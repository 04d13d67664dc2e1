package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

const (
	upsertSnapshotSQL = `INSERT INTO validator_snapshots (
        vote_account,
        epoch,
        identity,
        version,
        commission,
        mev_commission,
        delinquent,
        captured_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (vote_account, epoch) DO UPDATE
    SET
        commission     = EXCLUDED.commission,
        mev_commission = CASE
            WHEN EXCLUDED.mev_commission = 'unknown' THEN validator_snapshots.mev_commission
            ELSE EXCLUDED.mev_commission
        END,
        delinquent     = EXCLUDED.delinquent,
        captured_at    = EXCLUDED.captured_at,
        identity       = COALESCE(NULLIF(EXCLUDED.identity, ''), validator_snapshots.identity),
        version        = COALESCE(NULLIF(EXCLUDED.version, ''), validator_snapshots.version);`

	referenceSnapshotSQL = `SELECT
        vote_account,
        epoch,
        identity,
        version,
        commission,
        mev_commission,
        delinquent,
        captured_at,
        created_at
    FROM validator_snapshots
    WHERE vote_account = $1
      AND epoch < $2
    ORDER BY epoch DESC
    LIMIT 1;`

	listEpochSnapshotsSQL = `SELECT
        vote_account,
        epoch,
        identity,
        version,
        commission,
        mev_commission,
        delinquent,
        captured_at,
        created_at
    FROM validator_snapshots
    WHERE epoch = $1
    ORDER BY vote_account;`

	listValidatorSnapshotsSQL = `SELECT
        vote_account,
        epoch,
        identity,
        version,
        commission,
        mev_commission,
        delinquent,
        captured_at,
        created_at
    FROM validator_snapshots
    WHERE vote_account = $1
    ORDER BY epoch DESC
    LIMIT $2;`

	latestEpochSQL = `SELECT COALESCE(MAX(epoch), 0) FROM validator_snapshots;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM validator_snapshots;`
)

// UpsertSnapshot persists or updates the validator's row for the epoch.
// Metric fields take the newest reading, except that an unknown MEV value
// never overwrites a known one: unknown means the MEV source had nothing to
// report this tick, not that the stream changed. Identity and version are
// kept from an earlier reading when the new one is empty.
func (s *Store) UpsertSnapshot(ctx context.Context, snap ValidatorSnapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		snap.VoteAccount,
		int64(snap.Epoch),
		snap.Identity,
		snap.Version,
		snap.Commission.String(),
		snap.Mev.String(),
		snap.Delinquent,
		snap.CapturedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// ReferenceSnapshot returns the validator's row for the most recent epoch
// strictly before the given one, or nil when the validator has no earlier
// history. The current epoch's own row never qualifies.
func (s *Store) ReferenceSnapshot(ctx context.Context, voteAccount string, beforeEpoch uint64) (*ValidatorSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, referenceSnapshotSQL, voteAccount, int64(beforeEpoch))
	snap, scanErr := scanSnapshotRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reference snapshot: %w", scanErr)
	}
	return &snap, nil
}

// ListEpochSnapshots lists every validator's row for one epoch.
func (s *Store) ListEpochSnapshots(ctx context.Context, epoch uint64) ([]ValidatorSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listEpochSnapshotsSQL, int64(epoch))
	if queryErr != nil {
		return nil, fmt.Errorf("list epoch snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]ValidatorSnapshot, 0)
	for rows.Next() {
		snap, scanErr := scanSnapshotRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// ListValidatorSnapshots returns one validator's per-epoch history, newest
// epoch first.
func (s *Store) ListValidatorSnapshots(ctx context.Context, voteAccount string, limit int) ([]ValidatorSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listValidatorSnapshotsSQL, voteAccount, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list validator snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]ValidatorSnapshot, 0, limit)
	for rows.Next() {
		snap, scanErr := scanSnapshotRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// LatestEpoch returns the highest epoch with any snapshot, 0 when empty.
func (s *Store) LatestEpoch(ctx context.Context) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var epoch int64
	if scanErr := pool.QueryRow(ctx, latestEpochSQL).Scan(&epoch); scanErr != nil {
		return 0, fmt.Errorf("latest epoch: %w", scanErr)
	}
	return uint64(epoch), nil
}

// CountSnapshots counts stored snapshot rows.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

func scanSnapshotRow(row pgx.Row) (ValidatorSnapshot, error) {
	var (
		snap          ValidatorSnapshot
		epoch         int64
		commissionStr string
		mevStr        string
	)
	if err := row.Scan(
		&snap.VoteAccount,
		&epoch,
		&snap.Identity,
		&snap.Version,
		&commissionStr,
		&mevStr,
		&snap.Delinquent,
		&snap.CapturedAt,
		&snap.CreatedAt,
	); err != nil {
		return ValidatorSnapshot{}, err
	}
	snap.Epoch = uint64(epoch)

	commission, err := decimal.NewFromString(commissionStr)
	if err != nil {
		return ValidatorSnapshot{}, fmt.Errorf("parse commission: %w", err)
	}
	snap.Commission = commission

	mev, err := classifier.ParseCommissionValue(mevStr)
	if err != nil {
		return ValidatorSnapshot{}, fmt.Errorf("parse mev commission: %w", err)
	}
	snap.Mev = mev

	return snap, nil
}
