package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/delinquency"
)

// ValidatorSnapshot is the last-seen metric set for one validator in one
// epoch. Repeated observations within the epoch update the row in place.
type ValidatorSnapshot struct {
	VoteAccount string
	Epoch       uint64
	// Identity and Version are descriptive and kept from earlier
	// observations when a later reading arrives without them.
	Identity   string
	Version    string
	Commission decimal.Decimal
	Mev        classifier.CommissionValue
	Delinquent bool
	CapturedAt time.Time
	CreatedAt  time.Time
}

// CommissionEvent is one classified commission change. Rows are immutable;
// the transition key (vote account, epoch, metric, from, to) dedupes
// replayed ticks.
type CommissionEvent struct {
	ID             int64
	VoteAccount    string
	Epoch          uint64
	Metric         classifier.MetricType
	Classification classifier.Classification
	FromValue      classifier.CommissionValue
	ToValue        classifier.CommissionValue
	// Delta is null for enable/disable transitions.
	Delta     decimal.NullDecimal
	CreatedAt time.Time
}

// UptimeCheck is one immutable liveness observation. The bucket timestamp
// keys the row, so replaying a tick cannot double-count.
type UptimeCheck struct {
	VoteAccount string
	Bucket      time.Time
	Delinquent  bool
}

// UptimeDay aggregates a validator's checks for one UTC day. Days without
// checks have no row.
type UptimeDay struct {
	VoteAccount      string
	Day              time.Time
	TotalChecks      int64
	DelinquentChecks int64
}

// UptimePercent derives the day's uptime, rounded to two decimal places.
func (d UptimeDay) UptimePercent() decimal.Decimal {
	if d.TotalChecks <= 0 {
		return decimal.Zero
	}
	healthy := decimal.NewFromInt(d.TotalChecks - d.DelinquentChecks)
	return healthy.Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(d.TotalChecks), 2)
}

// Preference is a subscriber's global notification filter.
type Preference string

const (
	PreferenceRugsOnly        Preference = "rugs_only"
	PreferenceRugsAndCautions Preference = "rugs_and_cautions"
	PreferenceAll             Preference = "all"
)

// ParsePreference validates a preference from external input.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case PreferenceRugsOnly, PreferenceRugsAndCautions, PreferenceAll:
		return Preference(s), nil
	}
	return "", fmt.Errorf("unknown preference %q", s)
}

// Subscriber holds a global subscription.
type Subscriber struct {
	Email      string
	Preference Preference
	CreatedAt  time.Time
}

// EntitySubscription holds a per-validator subscription. It is independent
// of any Subscriber row for the same email.
type EntitySubscription struct {
	Email             string
	VoteAccount       string
	CommissionAlerts  bool
	DelinquencyAlerts bool
	CreatedAt         time.Time
}

// DelinquencyStateRow is the persisted per-validator alerting state.
type DelinquencyStateRow struct {
	VoteAccount string
	State       delinquency.State
	UpdatedAt   time.Time
}
