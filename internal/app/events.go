package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/storage"
)

// Events prints recorded commission events, newest first. With a vote account
// the deduplicated per-validator view is used; within one epoch only the most
// recent row per transition shows up.
func (a *App) Events(ctx context.Context, opts EventsOptions) error {
	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := a.loadEvents(ctx, store, opts)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "no events found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tVote Account\tEpoch\tMetric\tClass\tFrom\tTo\tDelta")

	for _, ev := range events {
		delta := ""
		if ev.Delta.Valid {
			delta = ev.Delta.Decimal.String()
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			ev.CreatedAt.UTC().Format(time.RFC3339),
			ev.VoteAccount,
			ev.Epoch,
			ev.Metric,
			ev.Classification,
			ev.FromValue,
			ev.ToValue,
			delta,
		)
	}

	writer.Flush()
	return nil
}

func (a *App) loadEvents(ctx context.Context, store *storage.Store, opts EventsOptions) ([]storage.CommissionEvent, error) {
	var class classifier.Classification
	if opts.Classification != "" {
		parsed, err := classifier.ParseClassification(opts.Classification)
		if err != nil {
			return nil, err
		}
		class = parsed
	}

	if opts.VoteAccount != "" {
		events, err := store.ListValidatorEvents(ctx, opts.VoteAccount, opts.Limit)
		if err != nil || class == "" {
			return events, err
		}
		filtered := events[:0]
		for _, ev := range events {
			if ev.Classification == class {
				filtered = append(filtered, ev)
			}
		}
		return filtered, nil
	}

	if class != "" {
		return store.ListClassifiedEvents(ctx, class)
	}
	return store.ListRecentEvents(ctx, opts.Limit)
}
