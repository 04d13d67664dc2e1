package classifier

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MetricType identifies which commission stream a change belongs to.
type MetricType string

const (
	// MetricInflation is the vote-account fee commission.
	MetricInflation MetricType = "inflation"
	// MetricMev is the Jito MEV commission.
	MetricMev MetricType = "mev"
)

// Classification is the severity tier assigned to a commission change.
type Classification string

const (
	ClassificationRug     Classification = "rug"
	ClassificationCaution Classification = "caution"
	ClassificationInfo    Classification = "info"
)

// ValueState tags a commission observation.
type ValueState string

const (
	StateEnabled  ValueState = "enabled"
	StateDisabled ValueState = "disabled"
	StateUnknown  ValueState = "unknown"
)

// ParseMetricType validates a metric name from external input.
func ParseMetricType(s string) (MetricType, error) {
	switch MetricType(s) {
	case MetricInflation, MetricMev:
		return MetricType(s), nil
	}
	return "", fmt.Errorf("unknown metric type %q", s)
}

// ParseClassification validates a classification name from external input.
func ParseClassification(s string) (Classification, error) {
	switch Classification(s) {
	case ClassificationRug, ClassificationCaution, ClassificationInfo:
		return Classification(s), nil
	}
	return "", fmt.Errorf("unknown classification %q", s)
}

// CommissionValue is a single commission observation: a numeric percentage
// when the stream is enabled, or an explicit disabled/unknown marker.
// Disabled and unknown are distinct states: disabled is reported by the
// source, unknown means the source had nothing to report.
type CommissionValue struct {
	state  ValueState
	amount decimal.Decimal
}

// Numeric builds an enabled commission value from a percentage.
func Numeric(amount decimal.Decimal) CommissionValue {
	return CommissionValue{state: StateEnabled, amount: amount}
}

// Disabled builds the explicitly-disabled commission value.
func Disabled() CommissionValue {
	return CommissionValue{state: StateDisabled}
}

// Unknown builds the never-observed commission value.
func Unknown() CommissionValue {
	return CommissionValue{state: StateUnknown}
}

// State returns the variant tag.
func (v CommissionValue) State() ValueState {
	if v.state == "" {
		return StateUnknown
	}
	return v.state
}

// Amount returns the numeric percentage and whether the value carries one.
func (v CommissionValue) Amount() (decimal.Decimal, bool) {
	if v.State() != StateEnabled {
		return decimal.Decimal{}, false
	}
	return v.amount, true
}

// Equal reports whether two observations are the same state and, for enabled
// values, numerically equal percentages.
func (v CommissionValue) Equal(o CommissionValue) bool {
	if v.State() != o.State() {
		return false
	}
	if v.State() != StateEnabled {
		return true
	}
	return v.amount.Equal(o.amount)
}

// String encodes the value for storage and display: the decimal percentage
// for enabled values, otherwise the state name.
func (v CommissionValue) String() string {
	switch v.State() {
	case StateEnabled:
		return v.amount.String()
	case StateDisabled:
		return string(StateDisabled)
	default:
		return string(StateUnknown)
	}
}

// ParseCommissionValue is the inverse of String.
func ParseCommissionValue(s string) (CommissionValue, error) {
	switch s {
	case string(StateDisabled):
		return Disabled(), nil
	case string(StateUnknown), "":
		return Unknown(), nil
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return CommissionValue{}, fmt.Errorf("parse commission value %q: %w", s, err)
	}
	return Numeric(amount), nil
}
