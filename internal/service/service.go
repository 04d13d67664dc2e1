// Package service runs the per-tick pipeline: fetch the validator
// population, diff each validator against its previous epoch, persist
// snapshots and events, track liveness, and hand new events to alerting.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"validator-commission-alerts/internal/alerting"
	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/config"
	"validator-commission-alerts/internal/delinquency"
	"validator-commission-alerts/internal/fetcher"
	"validator-commission-alerts/internal/scheduler"
	"validator-commission-alerts/internal/storage"
)

// ErrInvalidReading marks a malformed per-validator reading. The validator
// is skipped; the rest of the batch continues.
var ErrInvalidReading = errors.New("invalid validator reading")

// Alerter delivers notifications for newly recorded events. Delivery is a
// best-effort side effect: failures are counted, never rolled back.
type Alerter interface {
	DispatchCommissionEvent(ctx context.Context, notice alerting.CommissionNotice) error
	DispatchDelinquencyAlert(ctx context.Context, notice alerting.DelinquencyNotice) error
}

// Stores bundles the persistence interfaces the watcher writes through.
type Stores struct {
	Snapshots   storage.SnapshotStore
	Events      storage.EventStore
	Uptime      storage.UptimeStore
	Delinquency storage.DelinquencyStateStore
}

// Watcher orchestrates the tick pipeline.
type Watcher struct {
	scheduler *scheduler.Scheduler
	chain     fetcher.ChainStateFetcher
	mev       fetcher.MevCommissionFetcher
	stores    Stores
	alerter   Alerter
	metrics   *Metrics
	logger    zerolog.Logger

	thresholds classifier.Thresholds
	workers    int
	locker     storage.AdvisoryLocker
	lockKey    int64
}

// New constructs the watcher. alerter may be nil when no delivery channel is
// configured; events are still persisted.
func New(cfg *config.Config, sched *scheduler.Scheduler, chain fetcher.ChainStateFetcher, mev fetcher.MevCommissionFetcher, stores Stores, alerter Alerter, metrics *Metrics, logger zerolog.Logger) *Watcher {
	if metrics == nil {
		metrics = NewMetrics()
	}

	workers := cfg.Scheduler.Workers
	if workers <= 0 {
		workers = 1
	}

	var locker storage.AdvisoryLocker
	if l, ok := stores.Snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Watcher{
		scheduler:  sched,
		chain:      chain,
		mev:        mev,
		stores:     stores,
		alerter:    alerter,
		metrics:    metrics,
		logger:     logger.With().Str("component", "watcher").Logger(),
		thresholds: cfg.Classifier.Thresholds(),
		workers:    workers,
		locker:     locker,
		lockKey:    cfg.Scheduler.AdvisoryLockKey,
	}
}

// Run begins the aligned check loop.
func (w *Watcher) Run(ctx context.Context) error {
	if w.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return w.scheduler.Run(ctx, w.ProcessTick)
}

// ProcessTick 执行单个时间桶的检查逻辑。整个 tick 由顾问锁守护,
// 同一时刻只有一个副本在处理。
func (w *Watcher) ProcessTick(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := w.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		w.metrics.Ticks.WithLabelValues(MetricTickLocked).Inc()
		w.logger.Debug().Time("bucket", bucket).Msg("skip tick because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	return w.executeTick(ctx, bucket)
}

func (w *Watcher) executeTick(ctx context.Context, bucket time.Time) error {
	started := time.Now()

	snapshot, err := w.chain.FetchChainState(ctx)
	if err != nil {
		w.metrics.Ticks.WithLabelValues(MetricTickFailed).Inc()
		return fmt.Errorf("fetch chain state: %w", err)
	}

	mevCommissions := w.fetchMevCommissions(ctx)

	var processed, skipped, failed atomic.Int64
	skipped.Add(int64(snapshot.Skipped))

	pool := pond.NewPool(w.workers, pond.WithQueueSize(len(snapshot.Validators)))
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, reading := range snapshot.Validators {
		if mev, ok := mevCommissions[reading.VoteAccount]; ok {
			reading.Mev = mev
		}
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			if err := w.processValidator(groupCtx, bucket, snapshot.Epoch, reading); err != nil {
				if errors.Is(err, ErrInvalidReading) {
					skipped.Add(1)
					w.metrics.Validators.WithLabelValues(MetricValidatorSkipped).Inc()
					w.logger.Warn().Err(err).
						Str("vote_account", reading.VoteAccount).
						Msg("skipping malformed reading")
					return
				}
				failed.Add(1)
				w.metrics.Validators.WithLabelValues(MetricValidatorFailed).Inc()
				w.logger.Error().Err(err).
					Str("vote_account", reading.VoteAccount).
					Uint64("epoch", snapshot.Epoch).
					Msg("validator processing failed")
				return
			}
			processed.Add(1)
			w.metrics.Validators.WithLabelValues(MetricValidatorProcessed).Inc()
		})
	}

	waitErr := group.Wait()
	pool.StopAndWait()
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) && !errors.Is(waitErr, pond.ErrGroupStopped) {
		w.metrics.Ticks.WithLabelValues(MetricTickFailed).Inc()
		return fmt.Errorf("tick worker group: %w", waitErr)
	}
	if ctx.Err() != nil {
		w.metrics.Ticks.WithLabelValues(MetricTickFailed).Inc()
		return ctx.Err()
	}

	w.metrics.Ticks.WithLabelValues(MetricTickCompleted).Inc()
	w.logger.Info().
		Time("bucket", bucket).
		Uint64("epoch", snapshot.Epoch).
		Int("validators", len(snapshot.Validators)).
		Int64("processed", processed.Load()).
		Int64("skipped", skipped.Load()).
		Int64("failed", failed.Load()).
		Bool("mev_available", mevCommissions != nil).
		Dur("elapsed", time.Since(started)).
		Msg("tick complete")

	return nil
}

// fetchMevCommissions degrades to nil on failure: the tick proceeds with
// every MEV value unknown, which the classifier treats as silent.
func (w *Watcher) fetchMevCommissions(ctx context.Context) map[string]classifier.CommissionValue {
	if w.mev == nil {
		return nil
	}
	commissions, err := w.mev.FetchMevCommissions(ctx)
	if err != nil {
		w.metrics.MevSourceErrors.Inc()
		w.logger.Warn().Err(err).Msg("mev source unavailable, tick continues without mev commissions")
		return nil
	}
	return commissions
}

func (w *Watcher) processValidator(ctx context.Context, bucket time.Time, epoch uint64, reading fetcher.ValidatorReading) error {
	if err := validateReading(reading); err != nil {
		return err
	}

	ref, err := w.stores.Snapshots.ReferenceSnapshot(ctx, reading.VoteAccount, epoch)
	if err != nil {
		return err
	}

	if err := w.stores.Snapshots.UpsertSnapshot(ctx, storage.ValidatorSnapshot{
		VoteAccount: reading.VoteAccount,
		Epoch:       epoch,
		Identity:    reading.Identity,
		Version:     reading.Version,
		Commission:  reading.Commission,
		Mev:         reading.Mev,
		Delinquent:  reading.Delinquent,
		CapturedAt:  bucket,
	}); err != nil {
		return err
	}

	// Without a prior epoch the reading only seeds history.
	if ref != nil {
		if err := w.classifyAndRecord(ctx, epoch, reading, ref); err != nil {
			return err
		}
	}

	if err := w.stores.Uptime.RecordUptimeCheck(ctx, storage.UptimeCheck{
		VoteAccount: reading.VoteAccount,
		Bucket:      bucket,
		Delinquent:  reading.Delinquent,
	}); err != nil {
		return err
	}

	return w.stepDelinquency(ctx, bucket, epoch, reading)
}

func (w *Watcher) classifyAndRecord(ctx context.Context, epoch uint64, reading fetcher.ValidatorReading, ref *storage.ValidatorSnapshot) error {
	changes := classifier.Classify(
		classifier.Observation{Commission: ref.Commission, Mev: ref.Mev},
		classifier.Observation{Commission: reading.Commission, Mev: reading.Mev},
		w.thresholds,
	)

	for _, change := range changes {
		event, inserted, err := w.stores.Events.InsertEventOnce(ctx, storage.CommissionEvent{
			VoteAccount:    reading.VoteAccount,
			Epoch:          epoch,
			Metric:         change.Metric,
			Classification: change.Classification,
			FromValue:      change.From,
			ToValue:        change.To,
			Delta:          change.Delta,
		})
		if err != nil {
			return err
		}
		if !inserted {
			continue
		}

		w.metrics.CommissionEvents.WithLabelValues(string(event.Metric), string(event.Classification)).Inc()
		w.logger.Info().
			Str("vote_account", reading.VoteAccount).
			Uint64("epoch", epoch).
			Str("metric", string(event.Metric)).
			Str("classification", string(event.Classification)).
			Str("from", event.FromValue.String()).
			Str("to", event.ToValue.String()).
			Msg("commission event recorded")

		w.notifyCommission(ctx, reading, event)
	}
	return nil
}

func (w *Watcher) stepDelinquency(ctx context.Context, bucket time.Time, epoch uint64, reading fetcher.ValidatorReading) error {
	state, err := w.stores.Delinquency.GetOrInitDelinquencyState(ctx, reading.VoteAccount)
	if err != nil {
		return err
	}

	decision := delinquency.Step(state, reading.Delinquent)
	if !decision.Changed {
		return nil
	}

	won, err := w.stores.Delinquency.TransitionDelinquencyState(ctx, reading.VoteAccount, state, decision.Next)
	if err != nil {
		return err
	}
	// A lost transition means a concurrent tick already applied it,
	// alert included.
	if !won || !decision.Alert {
		return nil
	}

	w.metrics.DelinquencyAlerts.Inc()
	w.logger.Info().
		Str("vote_account", reading.VoteAccount).
		Uint64("epoch", epoch).
		Msg("delinquency episode started")

	w.notifyDelinquency(ctx, reading, epoch, bucket)
	return nil
}

// notifyCommission is fire-and-forget: the event is already persisted, a
// delivery failure only bumps a counter.
func (w *Watcher) notifyCommission(ctx context.Context, reading fetcher.ValidatorReading, event storage.CommissionEvent) {
	if w.alerter == nil {
		return
	}
	err := w.alerter.DispatchCommissionEvent(ctx, alerting.CommissionNotice{
		VoteAccount:    event.VoteAccount,
		Identity:       reading.Identity,
		Epoch:          event.Epoch,
		Metric:         event.Metric,
		Classification: event.Classification,
		From:           event.FromValue,
		To:             event.ToValue,
		Delta:          event.Delta,
	})
	if err != nil {
		w.metrics.DeliveryFailures.Inc()
	}
}

func (w *Watcher) notifyDelinquency(ctx context.Context, reading fetcher.ValidatorReading, epoch uint64, bucket time.Time) {
	if w.alerter == nil {
		return
	}
	err := w.alerter.DispatchDelinquencyAlert(ctx, alerting.DelinquencyNotice{
		VoteAccount: reading.VoteAccount,
		Identity:    reading.Identity,
		Epoch:       epoch,
		ObservedAt:  bucket,
	})
	if err != nil {
		w.metrics.DeliveryFailures.Inc()
	}
}

func validateReading(reading fetcher.ValidatorReading) error {
	if reading.VoteAccount == "" {
		return fmt.Errorf("%w: missing vote account", ErrInvalidReading)
	}
	if reading.Commission.IsNegative() {
		return fmt.Errorf("%w: negative commission %s", ErrInvalidReading, reading.Commission)
	}
	return nil
}

func (w *Watcher) acquireLock(ctx context.Context) (func(), bool, error) {
	if w.lockKey == 0 || w.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := w.locker.TryAdvisoryLock(ctx, w.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
