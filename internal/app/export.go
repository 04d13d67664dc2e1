package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"validator-commission-alerts/internal/storage"
)

// Export renders one validator's history as CSV and/or PNG. The CSV carries
// the per-day uptime aggregates; the chart additionally plots the commission
// trajectory from the per-epoch snapshots.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.VoteAccount == "" {
		return errors.New("--vote-account is required")
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.requireStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	days, err := store.ListUptimeDays(ctx, opts.VoteAccount, opts.Days)
	if err != nil {
		return err
	}
	snapshots, err := store.ListValidatorSnapshots(ctx, opts.VoteAccount, opts.MaxPoints)
	if err != nil {
		return err
	}
	if len(days) == 0 && len(snapshots) == 0 {
		a.Logger.Info().Str("vote_account", opts.VoteAccount).Msg("no history found for export")
		return nil
	}

	// Both queries return newest first; charts and CSV read better ascending.
	slices.Reverse(days)
	slices.Reverse(snapshots)

	days = downsample(days, opts.MaxPoints)
	snapshots = downsample(snapshots, opts.MaxPoints)
	a.Logger.Info().
		Int("uptime_days", len(days)).
		Int("snapshots", len(snapshots)).
		Msg("exporting history")

	if opts.CSVPath != "" {
		if err := writeUptimeCSV(opts.CSVPath, days); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, days, snapshots); err != nil {
			return err
		}
	}

	return nil
}

func downsample[T any](rows []T, max int) []T {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]T, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeUptimeCSV(path string, days []storage.UptimeDay) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"day", "total_checks", "delinquent_checks", "uptime_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, day := range days {
		record := []string{
			day.Day.UTC().Format("2006-01-02"),
			strconv.FormatInt(day.TotalChecks, 10),
			strconv.FormatInt(day.DelinquentChecks, 10),
			day.UptimePercent().String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, days []storage.UptimeDay, snapshots []storage.ValidatorSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var series []chart.Series

	commissionX := make([]time.Time, 0, len(snapshots))
	commission := make([]float64, 0, len(snapshots))
	mevX := make([]time.Time, 0, len(snapshots))
	mev := make([]float64, 0, len(snapshots))
	for _, snap := range snapshots {
		commissionX = append(commissionX, snap.CapturedAt)
		commission = append(commission, snap.Commission.InexactFloat64())
		if amount, ok := snap.Mev.Amount(); ok {
			mevX = append(mevX, snap.CapturedAt)
			mev = append(mev, amount.InexactFloat64())
		}
	}
	if len(commission) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Commission %",
			XValues: commissionX,
			YValues: commission,
		})
	}
	if len(mev) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "MEV Commission %",
			XValues: mevX,
			YValues: mev,
		})
	}

	uptimeX := make([]time.Time, 0, len(days))
	uptime := make([]float64, 0, len(days))
	for _, day := range days {
		uptimeX = append(uptimeX, day.Day)
		uptime = append(uptime, day.UptimePercent().InexactFloat64())
	}
	if len(uptime) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Uptime %",
			XValues: uptimeX,
			YValues: uptime,
			YAxis:   chart.YAxisSecondary,
		})
	}

	if len(series) == 0 {
		return errors.New("not enough data points to chart")
	}

	pctFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Commission (%)",
			ValueFormatter: pctFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Uptime (%)",
			ValueFormatter: pctFormatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
