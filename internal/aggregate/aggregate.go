// Package aggregate builds per-epoch and all-time statistics from the
// deduplicated event history. Everything here is recomputed from the rows it
// is handed; there is no incremental state.
package aggregate

import (
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

// EventRef is the slice of an event the aggregator needs. Duplicate
// references for the same (validator, epoch, metric) collapse into one.
type EventRef struct {
	VoteAccount string
	Epoch       uint64
	Metric      classifier.MetricType
}

// EpochRow is the per-epoch breakdown of offending validators.
type EpochRow struct {
	Epoch uint64 `json:"epoch"`
	// Unique counts validators with an event in either metric.
	Unique int `json:"uniqueValidators"`
	// Commission counts validators with an inflation-commission event.
	Commission int `json:"commissionValidators"`
	// Mev counts validators with a MEV-commission event.
	Mev int `json:"mevValidators"`
	// Both counts validators present in both metrics.
	Both int `json:"bothMetrics"`
}

// Report bundles the requested epoch window with statistics computed over
// the full history the caller supplied.
type Report struct {
	FromEpoch uint64 `json:"fromEpoch"`
	ToEpoch   uint64 `json:"toEpoch"`
	// Rows covers every epoch of the window in ascending order. Epochs
	// without events are present with zero counts.
	Rows []EpochRow `json:"rows"`
	// RepeatOffenders counts validators with events in more than one
	// distinct epoch anywhere in the history.
	RepeatOffenders int `json:"repeatOffenders"`
	// TotalValidators counts distinct offenders across the history.
	TotalValidators int `json:"totalValidators"`
	// TotalEpochsTracked spans first to last observed epoch, inclusive.
	TotalEpochsTracked uint64 `json:"totalEpochsTracked"`
	// PeakPerEpoch is the largest Unique of any observed epoch.
	PeakPerEpoch int `json:"peakPerEpoch"`
	// AvgPerEpoch is TotalValidators divided by TotalEpochsTracked.
	AvgPerEpoch decimal.Decimal `json:"avgPerEpoch"`
}

type epochSets struct {
	commission map[string]struct{}
	mev        map[string]struct{}
}

func (s *epochSets) unique() int {
	union := make(map[string]struct{}, len(s.commission)+len(s.mev))
	for v := range s.commission {
		union[v] = struct{}{}
	}
	for v := range s.mev {
		union[v] = struct{}{}
	}
	return len(union)
}

func (s *epochSets) both() int {
	n := 0
	for v := range s.commission {
		if _, ok := s.mev[v]; ok {
			n++
		}
	}
	return n
}

// Build computes a Report. events must be the full filtered history, not
// just the requested window; window rows are carved out of it, the
// repeat-offender and global numbers use all of it. Callers are expected to
// have bounded the window size already.
func Build(events []EventRef, fromEpoch, toEpoch uint64) Report {
	perEpoch := make(map[uint64]*epochSets)
	epochsPerValidator := make(map[string]map[uint64]struct{})
	var minEpoch, maxEpoch uint64
	seenAny := false

	for _, ev := range events {
		sets, ok := perEpoch[ev.Epoch]
		if !ok {
			sets = &epochSets{
				commission: make(map[string]struct{}),
				mev:        make(map[string]struct{}),
			}
			perEpoch[ev.Epoch] = sets
		}
		switch ev.Metric {
		case classifier.MetricInflation:
			sets.commission[ev.VoteAccount] = struct{}{}
		case classifier.MetricMev:
			sets.mev[ev.VoteAccount] = struct{}{}
		default:
			continue
		}
		epochs, ok := epochsPerValidator[ev.VoteAccount]
		if !ok {
			epochs = make(map[uint64]struct{})
			epochsPerValidator[ev.VoteAccount] = epochs
		}
		epochs[ev.Epoch] = struct{}{}
		if !seenAny || ev.Epoch < minEpoch {
			minEpoch = ev.Epoch
		}
		if !seenAny || ev.Epoch > maxEpoch {
			maxEpoch = ev.Epoch
		}
		seenAny = true
	}

	report := Report{FromEpoch: fromEpoch, ToEpoch: toEpoch}
	if fromEpoch <= toEpoch {
		report.Rows = make([]EpochRow, 0, toEpoch-fromEpoch+1)
		for epoch := fromEpoch; ; epoch++ {
			row := EpochRow{Epoch: epoch}
			if sets, ok := perEpoch[epoch]; ok {
				row.Unique = sets.unique()
				row.Commission = len(sets.commission)
				row.Mev = len(sets.mev)
				row.Both = sets.both()
			}
			report.Rows = append(report.Rows, row)
			if epoch == toEpoch {
				break
			}
		}
	}

	for _, epochs := range epochsPerValidator {
		if len(epochs) > 1 {
			report.RepeatOffenders++
		}
	}
	report.TotalValidators = len(epochsPerValidator)

	if seenAny {
		report.TotalEpochsTracked = maxEpoch - minEpoch + 1
		for _, sets := range perEpoch {
			if u := sets.unique(); u > report.PeakPerEpoch {
				report.PeakPerEpoch = u
			}
		}
		report.AvgPerEpoch = decimal.NewFromInt(int64(report.TotalValidators)).
			DivRound(decimal.NewFromInt(int64(report.TotalEpochsTracked)), 2)
	}
	return report
}
