package storage

// Schema holds the idempotent DDL for all tables. EnsureSchema applies it on
// startup; there is no separate migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS validator_snapshots (
    vote_account   TEXT        NOT NULL,
    epoch          BIGINT      NOT NULL,
    identity       TEXT        NOT NULL DEFAULT '',
    version        TEXT        NOT NULL DEFAULT '',
    commission     NUMERIC     NOT NULL,
    mev_commission TEXT        NOT NULL DEFAULT 'unknown',
    delinquent     BOOLEAN     NOT NULL DEFAULT FALSE,
    captured_at    TIMESTAMPTZ NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (vote_account, epoch)
);

CREATE INDEX IF NOT EXISTS validator_snapshots_epoch ON validator_snapshots (epoch);

CREATE TABLE IF NOT EXISTS commission_events (
    id             BIGSERIAL PRIMARY KEY,
    vote_account   TEXT        NOT NULL,
    epoch          BIGINT      NOT NULL,
    metric         TEXT        NOT NULL,
    classification TEXT        NOT NULL,
    from_value     TEXT        NOT NULL,
    to_value       TEXT        NOT NULL,
    delta          NUMERIC,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS commission_events_transition_key
    ON commission_events (vote_account, epoch, metric, from_value, to_value);
CREATE INDEX IF NOT EXISTS commission_events_classification
    ON commission_events (classification, epoch);
CREATE INDEX IF NOT EXISTS commission_events_vote_account
    ON commission_events (vote_account, created_at DESC);

CREATE TABLE IF NOT EXISTS uptime_checks (
    vote_account TEXT        NOT NULL,
    bucket_ts    TIMESTAMPTZ NOT NULL,
    day          DATE        NOT NULL,
    delinquent   BOOLEAN     NOT NULL,
    PRIMARY KEY (vote_account, bucket_ts)
);

CREATE INDEX IF NOT EXISTS uptime_checks_day ON uptime_checks (vote_account, day);

CREATE TABLE IF NOT EXISTS subscribers (
    email      TEXT        PRIMARY KEY,
    preference TEXT        NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS entity_subscriptions (
    email              TEXT        NOT NULL,
    vote_account       TEXT        NOT NULL,
    commission_alerts  BOOLEAN     NOT NULL DEFAULT TRUE,
    delinquency_alerts BOOLEAN     NOT NULL DEFAULT TRUE,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (email, vote_account)
);

CREATE INDEX IF NOT EXISTS entity_subscriptions_vote_account
    ON entity_subscriptions (vote_account);

CREATE TABLE IF NOT EXISTS delinquency_alert_state (
    vote_account TEXT        PRIMARY KEY,
    state        TEXT        NOT NULL DEFAULT 'clear',
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
