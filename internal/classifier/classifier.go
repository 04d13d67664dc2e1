// Package classifier turns pairs of per-epoch commission observations into
// classified changes. It is pure: no I/O, no clock, deterministic output.
package classifier

import "github.com/shopspring/decimal"

// Thresholds holds the tunable boundaries of the severity tiers.
type Thresholds struct {
	// Rug is the minimum increase, in percentage points, classified as a rug.
	Rug decimal.Decimal
	// Caution is the minimum increase classified as at least a caution.
	Caution decimal.Decimal
	// MaxCommission is the ceiling of the commission range.
	MaxCommission decimal.Decimal
	// RugAtMax promotes any inflation move onto the ceiling to a rug,
	// regardless of the size of the step.
	RugAtMax bool
	// MevRugAtMax does the same for the MEV commission.
	MevRugAtMax bool
}

// DefaultThresholds returns the standard tiers: +50 points is a rug,
// +5 points is a caution, and landing on 100 is always a rug.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Rug:           decimal.NewFromInt(50),
		Caution:       decimal.NewFromInt(5),
		MaxCommission: decimal.NewFromInt(100),
		RugAtMax:      true,
		MevRugAtMax:   true,
	}
}

// Observation is one validator's commission readings for a single epoch.
type Observation struct {
	// Commission is the inflation commission percentage.
	Commission decimal.Decimal
	// Mev is the MEV commission, which may be disabled or unknown.
	Mev CommissionValue
}

// Change is a classified difference in one metric between two observations.
type Change struct {
	Metric         MetricType
	Classification Classification
	From           CommissionValue
	To             CommissionValue
	// Delta is To minus From in percentage points. It is null when either
	// side is non-numeric, i.e. for enable/disable flips.
	Delta decimal.NullDecimal
}

// Classify compares a validator's reference observation against the current
// one and returns at most one Change per metric. Metrics are independent: an
// inflation move never influences how the MEV move is classified. A metric
// with no effective change, or with an unknown value on either side,
// produces nothing.
func Classify(ref, cur Observation, th Thresholds) []Change {
	changes := make([]Change, 0, 2)
	if ch, ok := classifyPair(MetricInflation, Numeric(ref.Commission), Numeric(cur.Commission), th, th.RugAtMax); ok {
		changes = append(changes, ch)
	}
	if ch, ok := classifyPair(MetricMev, ref.Mev, cur.Mev, th, th.MevRugAtMax); ok {
		changes = append(changes, ch)
	}
	return changes
}

func classifyPair(metric MetricType, from, to CommissionValue, th Thresholds, rugAtMax bool) (Change, bool) {
	// A side that was never observed cannot anchor a comparison.
	if from.State() == StateUnknown || to.State() == StateUnknown {
		return Change{}, false
	}
	// Enable/disable flips are state transitions, not numeric moves. They
	// carry no delta and are always informational.
	if from.State() != to.State() {
		return Change{
			Metric:         metric,
			Classification: ClassificationInfo,
			From:           from,
			To:             to,
		}, true
	}
	if from.State() == StateDisabled {
		return Change{}, false
	}
	fromAmount, _ := from.Amount()
	toAmount, _ := to.Amount()
	delta := toAmount.Sub(fromAmount)
	if delta.IsZero() {
		return Change{}, false
	}
	return Change{
		Metric:         metric,
		Classification: classifyDelta(fromAmount, toAmount, delta, th, rugAtMax),
		From:           from,
		To:             to,
		Delta:          decimal.NewNullDecimal(delta),
	}, true
}

func classifyDelta(from, to, delta decimal.Decimal, th Thresholds, rugAtMax bool) Classification {
	switch {
	case rugAtMax && to.Equal(th.MaxCommission) && from.LessThan(th.MaxCommission):
		return ClassificationRug
	case delta.GreaterThanOrEqual(th.Rug):
		return ClassificationRug
	case delta.GreaterThanOrEqual(th.Caution):
		return ClassificationCaution
	default:
		return ClassificationInfo
	}
}
