package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
)

// Uptime prints per-day liveness aggregates for one validator, newest first.
// Days without any check are absent rather than shown as zero.
func (a *App) Uptime(ctx context.Context, opts UptimeOptions) error {
	if opts.VoteAccount == "" {
		return errors.New("--vote-account is required")
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	days, err := store.ListUptimeDays(ctx, opts.VoteAccount, opts.Days)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		fmt.Fprintln(os.Stdout, "no uptime history found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Day\tChecks\tDelinquent\tUptime%")

	for _, day := range days {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%d\t%s\n",
			day.Day.UTC().Format("2006-01-02"),
			day.TotalChecks,
			day.DelinquentChecks,
			day.UptimePercent(),
		)
	}

	writer.Flush()
	return nil
}
