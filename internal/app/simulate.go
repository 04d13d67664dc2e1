package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/delinquency"
	"validator-commission-alerts/internal/fetcher"
	"validator-commission-alerts/internal/service"
	"validator-commission-alerts/internal/storage"
)

const simulatedEpoch uint64 = 1000

// SimulateAlert 用给定的前后佣金值走一遍完整的检测/分类/投递流程,
// 用于验证告警通道配置。订阅数据优先使用真实数据库, 这样才能验证
// 真实的收件人路由; 快照与事件则写入一次性的内存存储。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting 未启用")
	}

	metric := classifier.MetricInflation
	if opts.Metric != "" {
		parsed, err := classifier.ParseMetricType(opts.Metric)
		if err != nil {
			return err
		}
		metric = parsed
	}

	from, err := classifier.ParseCommissionValue(opts.FromValue)
	if err != nil {
		return fmt.Errorf("parse --from: %w", err)
	}
	to, err := classifier.ParseCommissionValue(opts.ToValue)
	if err != nil {
		return fmt.Errorf("parse --to: %w", err)
	}

	voteAccount := opts.VoteAccount
	if voteAccount == "" {
		voteAccount = "Simu1ateVa1idator111111111111111111111111111"
	}

	reference, reading, err := buildSimulatedPair(voteAccount, metric, from, to, opts.MarkDelinquent)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	var subs storage.SubscriptionStore
	if store != nil {
		defer closeStore()
		subs = store
	} else {
		a.Logger.Warn().Msg("database not configured; simulating with broadcast channel only")
		subs = emptySubscriptionStore{}
	}

	dispatcher := a.newDispatcher(subs)
	if dispatcher == nil {
		return errors.New("未配置任何告警通道")
	}

	snapshots := newSimSnapshotStore()
	if err := snapshots.UpsertSnapshot(ctx, reference); err != nil {
		return err
	}

	chain := &staticChainFetcher{snapshot: fetcher.ChainSnapshot{
		Epoch:      simulatedEpoch,
		Validators: []fetcher.ValidatorReading{reading},
	}}

	svc := service.New(a.Config, nil, chain, nil, service.Stores{
		Snapshots:   snapshots,
		Events:      &simEventStore{},
		Uptime:      &simUptimeStore{},
		Delinquency: newSimDelinquencyStore(),
	}, dispatcher, service.NewMetrics(), a.Logger)

	bucket := time.Now().UTC().Truncate(a.Config.Scheduler.Interval)
	return svc.ProcessTick(ctx, bucket)
}

// buildSimulatedPair 构造上一个 epoch 的参照快照与当前读数,
// 保证只有被模拟的指标产生变更。
func buildSimulatedPair(voteAccount string, metric classifier.MetricType, from, to classifier.CommissionValue, markDelinquent bool) (storage.ValidatorSnapshot, fetcher.ValidatorReading, error) {
	reference := storage.ValidatorSnapshot{
		VoteAccount: voteAccount,
		Epoch:       simulatedEpoch - 1,
		Identity:    "simulated-identity",
		Version:     "0.0.0",
		CapturedAt:  time.Now().UTC(),
	}
	reading := fetcher.ValidatorReading{
		VoteAccount: voteAccount,
		Identity:    "simulated-identity",
		Version:     "0.0.0",
		Delinquent:  markDelinquent,
	}

	if metric == classifier.MetricMev {
		reference.Commission = decimal.Zero
		reference.Mev = from
		reading.Commission = decimal.Zero
		reading.Mev = to
		return reference, reading, nil
	}

	fromAmount, ok := from.Amount()
	if !ok {
		return reference, reading, errors.New("inflation commission 不支持 disabled/unknown 取值")
	}
	toAmount, ok := to.Amount()
	if !ok {
		return reference, reading, errors.New("inflation commission 不支持 disabled/unknown 取值")
	}
	reference.Commission = fromAmount
	reference.Mev = classifier.Unknown()
	reading.Commission = toAmount
	reading.Mev = classifier.Unknown()
	return reference, reading, nil
}

type staticChainFetcher struct {
	snapshot fetcher.ChainSnapshot
}

func (s *staticChainFetcher) FetchChainState(ctx context.Context) (fetcher.ChainSnapshot, error) {
	return s.snapshot, nil
}

// simSnapshotStore 只为单次模拟保存参照快照。
type simSnapshotStore struct {
	rows map[uint64]storage.ValidatorSnapshot
}

func newSimSnapshotStore() *simSnapshotStore {
	return &simSnapshotStore{rows: make(map[uint64]storage.ValidatorSnapshot)}
}

func (s *simSnapshotStore) UpsertSnapshot(ctx context.Context, snap storage.ValidatorSnapshot) error {
	s.rows[snap.Epoch] = snap
	return nil
}

func (s *simSnapshotStore) ReferenceSnapshot(ctx context.Context, voteAccount string, beforeEpoch uint64) (*storage.ValidatorSnapshot, error) {
	var best *storage.ValidatorSnapshot
	for epoch, row := range s.rows {
		if row.VoteAccount != voteAccount || epoch >= beforeEpoch {
			continue
		}
		if best == nil || epoch > best.Epoch {
			candidate := row
			best = &candidate
		}
	}
	return best, nil
}

func (s *simSnapshotStore) ListEpochSnapshots(ctx context.Context, epoch uint64) ([]storage.ValidatorSnapshot, error) {
	return nil, nil
}

func (s *simSnapshotStore) ListValidatorSnapshots(ctx context.Context, voteAccount string, limit int) ([]storage.ValidatorSnapshot, error) {
	return nil, nil
}

func (s *simSnapshotStore) LatestEpoch(ctx context.Context) (uint64, error) {
	return simulatedEpoch, nil
}

func (s *simSnapshotStore) CountSnapshots(ctx context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type simEventStore struct {
	rows []storage.CommissionEvent
}

func (s *simEventStore) InsertEventOnce(ctx context.Context, ev storage.CommissionEvent) (storage.CommissionEvent, bool, error) {
	ev.ID = int64(len(s.rows) + 1)
	ev.CreatedAt = time.Now().UTC()
	s.rows = append(s.rows, ev)
	return ev, true, nil
}

func (s *simEventStore) ListValidatorEvents(ctx context.Context, voteAccount string, limit int) ([]storage.CommissionEvent, error) {
	return s.rows, nil
}

func (s *simEventStore) ListClassifiedEvents(ctx context.Context, classification classifier.Classification) ([]storage.CommissionEvent, error) {
	return s.rows, nil
}

func (s *simEventStore) ListRecentEvents(ctx context.Context, limit int) ([]storage.CommissionEvent, error) {
	return s.rows, nil
}

func (s *simEventStore) CountEvents(ctx context.Context) (int64, error) {
	return int64(len(s.rows)), nil
}

type simUptimeStore struct{}

func (simUptimeStore) RecordUptimeCheck(ctx context.Context, check storage.UptimeCheck) error {
	return nil
}

func (simUptimeStore) ListUptimeDays(ctx context.Context, voteAccount string, days int) ([]storage.UptimeDay, error) {
	return nil, nil
}

type simDelinquencyStore struct {
	states map[string]delinquency.State
}

func newSimDelinquencyStore() *simDelinquencyStore {
	return &simDelinquencyStore{states: make(map[string]delinquency.State)}
}

func (s *simDelinquencyStore) GetOrInitDelinquencyState(ctx context.Context, voteAccount string) (delinquency.State, error) {
	state, ok := s.states[voteAccount]
	if !ok {
		s.states[voteAccount] = delinquency.StateClear
		return delinquency.StateClear, nil
	}
	return state, nil
}

func (s *simDelinquencyStore) TransitionDelinquencyState(ctx context.Context, voteAccount string, fromState, toState delinquency.State) (bool, error) {
	if s.states[voteAccount] != fromState {
		return false, nil
	}
	s.states[voteAccount] = toState
	return true, nil
}

type emptySubscriptionStore struct{}

func (emptySubscriptionStore) UpsertSubscriber(ctx context.Context, sub storage.Subscriber) error {
	return errors.New("read-only")
}

func (emptySubscriptionStore) DeleteSubscriber(ctx context.Context, email string) error {
	return errors.New("read-only")
}

func (emptySubscriptionStore) ListSubscribers(ctx context.Context) ([]storage.Subscriber, error) {
	return nil, nil
}

func (emptySubscriptionStore) UpsertEntitySubscription(ctx context.Context, sub storage.EntitySubscription) error {
	return errors.New("read-only")
}

func (emptySubscriptionStore) DeleteEntitySubscription(ctx context.Context, email, voteAccount string) error {
	return errors.New("read-only")
}

func (emptySubscriptionStore) DeleteEntitySubscriptionsByEmail(ctx context.Context, email string) error {
	return errors.New("read-only")
}

func (emptySubscriptionStore) ListValidatorSubscriptions(ctx context.Context, voteAccount string) ([]storage.EntitySubscription, error) {
	return nil, nil
}

var (
	_ fetcher.ChainStateFetcher     = (*staticChainFetcher)(nil)
	_ storage.SnapshotStore         = (*simSnapshotStore)(nil)
	_ storage.EventStore            = (*simEventStore)(nil)
	_ storage.UptimeStore           = (simUptimeStore{})
	_ storage.DelinquencyStateStore = (*simDelinquencyStore)(nil)
	_ storage.SubscriptionStore     = (emptySubscriptionStore{})
)
