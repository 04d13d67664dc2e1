package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"validator-commission-alerts/internal/aggregate"
	"validator-commission-alerts/internal/classifier"
)

const defaultReportSpan = 10

// EpochReport prints the per-epoch offender breakdown plus all-time
// statistics. The window defaults to the last ten observed epochs; the
// classification filter defaults to rug.
func (a *App) EpochReport(ctx context.Context, opts EpochReportOptions) error {
	class := classifier.ClassificationRug
	if opts.Classification != "" {
		parsed, err := classifier.ParseClassification(opts.Classification)
		if err != nil {
			return err
		}
		class = parsed
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	from, to := opts.FromEpoch, opts.ToEpoch
	if to == 0 {
		latest, err := store.LatestEpoch(ctx)
		if err != nil {
			return err
		}
		if latest == 0 {
			fmt.Fprintln(os.Stdout, "no snapshots recorded yet")
			return nil
		}
		to = latest
	}
	if from == 0 && to >= defaultReportSpan {
		from = to - defaultReportSpan + 1
	}
	if from > to {
		return errors.New("--from must not exceed --to")
	}

	events, err := store.ListClassifiedEvents(ctx, class)
	if err != nil {
		return err
	}

	refs := make([]aggregate.EventRef, 0, len(events))
	for _, ev := range events {
		refs = append(refs, aggregate.EventRef{
			VoteAccount: ev.VoteAccount,
			Epoch:       ev.Epoch,
			Metric:      ev.Metric,
		})
	}
	report := aggregate.Build(refs, from, to)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Epoch\tUnique\tCommission\tMEV\tBoth")
	for _, row := range report.Rows {
		fmt.Fprintf(writer, "%d\t%d\t%d\t%d\t%d\n", row.Epoch, row.Unique, row.Commission, row.Mev, row.Both)
	}
	writer.Flush()

	fmt.Fprintf(
		os.Stdout,
		"\noffenders=%d repeat=%d peak/epoch=%d avg/epoch=%s epochs_tracked=%d\n",
		report.TotalValidators,
		report.RepeatOffenders,
		report.PeakPerEpoch,
		report.AvgPerEpoch,
		report.TotalEpochsTracked,
	)
	return nil
}
