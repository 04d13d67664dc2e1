package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/aggregate"
	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/storage"
)

type fakeSnapshotStore struct {
	latest    uint64
	snapshots []storage.ValidatorSnapshot
	gotVote   string
	err       error
}

func (f *fakeSnapshotStore) UpsertSnapshot(ctx context.Context, snap storage.ValidatorSnapshot) error {
	return errors.New("read-only")
}

func (f *fakeSnapshotStore) ReferenceSnapshot(ctx context.Context, voteAccount string, beforeEpoch uint64) (*storage.ValidatorSnapshot, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) ListEpochSnapshots(ctx context.Context, epoch uint64) ([]storage.ValidatorSnapshot, error) {
	return f.snapshots, f.err
}

func (f *fakeSnapshotStore) ListValidatorSnapshots(ctx context.Context, voteAccount string, limit int) ([]storage.ValidatorSnapshot, error) {
	f.gotVote = voteAccount
	return f.snapshots, f.err
}

func (f *fakeSnapshotStore) LatestEpoch(ctx context.Context) (uint64, error) {
	return f.latest, f.err
}

func (f *fakeSnapshotStore) CountSnapshots(ctx context.Context) (int64, error) {
	return int64(len(f.snapshots)), nil
}

type fakeEventStore struct {
	recent     []storage.CommissionEvent
	validator  []storage.CommissionEvent
	classified []storage.CommissionEvent
	gotVote    string
	gotLimit   int
	gotClass   classifier.Classification
	err        error
}

func (f *fakeEventStore) InsertEventOnce(ctx context.Context, ev storage.CommissionEvent) (storage.CommissionEvent, bool, error) {
	return storage.CommissionEvent{}, false, errors.New("read-only")
}

func (f *fakeEventStore) ListValidatorEvents(ctx context.Context, voteAccount string, limit int) ([]storage.CommissionEvent, error) {
	f.gotVote = voteAccount
	f.gotLimit = limit
	return f.validator, f.err
}

func (f *fakeEventStore) ListClassifiedEvents(ctx context.Context, classification classifier.Classification) ([]storage.CommissionEvent, error) {
	f.gotClass = classification
	return f.classified, f.err
}

func (f *fakeEventStore) ListRecentEvents(ctx context.Context, limit int) ([]storage.CommissionEvent, error) {
	f.gotLimit = limit
	return f.recent, f.err
}

func (f *fakeEventStore) CountEvents(ctx context.Context) (int64, error) {
	return int64(len(f.recent)), nil
}

type fakeUptimeStore struct {
	days    []storage.UptimeDay
	gotVote string
	gotDays int
	err     error
}

func (f *fakeUptimeStore) RecordUptimeCheck(ctx context.Context, check storage.UptimeCheck) error {
	return errors.New("read-only")
}

func (f *fakeUptimeStore) ListUptimeDays(ctx context.Context, voteAccount string, days int) ([]storage.UptimeDay, error) {
	f.gotVote = voteAccount
	f.gotDays = days
	return f.days, f.err
}

func testEvent() storage.CommissionEvent {
	return storage.CommissionEvent{
		ID:             7,
		VoteAccount:    "vote-a",
		Epoch:          700,
		Metric:         classifier.MetricInflation,
		Classification: classifier.ClassificationRug,
		FromValue:      classifier.Numeric(decimal.NewFromInt(5)),
		ToValue:        classifier.Numeric(decimal.NewFromInt(100)),
		Delta:          decimal.NewNullDecimal(decimal.NewFromInt(95)),
		CreatedAt:      time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC),
	}
}

func newTestServer(snapshots *fakeSnapshotStore, events *fakeEventStore, uptime *fakeUptimeStore) *Server {
	return NewServer(":0", Stores{
		Snapshots: snapshots,
		Events:    events,
		Uptime:    uptime,
	}, zerolog.Nop())
}

func doRequest(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthRoute(t *testing.T) {
	s := newTestServer(&fakeSnapshotStore{}, &fakeEventStore{}, &fakeUptimeStore{})
	rec := doRequest(t, s, "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestValidatorEventsRoute(t *testing.T) {
	events := &fakeEventStore{validator: []storage.CommissionEvent{testEvent()}}
	s := newTestServer(&fakeSnapshotStore{}, events, &fakeUptimeStore{})

	rec := doRequest(t, s, "/api/validators/vote-a/events?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if events.gotVote != "vote-a" || events.gotLimit != 5 {
		t.Fatalf("store called with vote=%q limit=%d", events.gotVote, events.gotLimit)
	}

	var body []eventDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected one event, got %d", len(body))
	}
	ev := body[0]
	if ev.From != "5" || ev.To != "100" || ev.Classification != "rug" {
		t.Fatalf("unexpected event payload: %+v", ev)
	}
	if ev.Delta == nil || *ev.Delta != "95" {
		t.Fatalf("delta missing or wrong: %v", ev.Delta)
	}
}

func TestValidatorUptimeRoute(t *testing.T) {
	uptime := &fakeUptimeStore{days: []storage.UptimeDay{{
		VoteAccount:      "vote-a",
		Day:              time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		TotalChecks:      1440,
		DelinquentChecks: 12,
	}}}
	s := newTestServer(&fakeSnapshotStore{}, &fakeEventStore{}, uptime)

	rec := doRequest(t, s, "/api/validators/vote-a/uptime?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if uptime.gotVote != "vote-a" || uptime.gotDays != 7 {
		t.Fatalf("store called with vote=%q days=%d", uptime.gotVote, uptime.gotDays)
	}

	var body []uptimeDayDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 1 {
		t.Fatalf("expected one day, got %d", len(body))
	}
	if body[0].Day != "2026-08-20" {
		t.Fatalf("unexpected day %q", body[0].Day)
	}
	if body[0].UptimePercent != "99.17" {
		t.Fatalf("unexpected uptime percent %q", body[0].UptimePercent)
	}
}

func TestEpochReportRoute(t *testing.T) {
	rug := testEvent()
	events := &fakeEventStore{classified: []storage.CommissionEvent{rug}}
	s := newTestServer(&fakeSnapshotStore{latest: 700}, events, &fakeUptimeStore{})

	rec := doRequest(t, s, "/api/epochs/report?from=699&to=700")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if events.gotClass != classifier.ClassificationRug {
		t.Fatalf("默认应当查询 rug 级事件, got %s", events.gotClass)
	}

	var report aggregate.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if report.FromEpoch != 699 || report.ToEpoch != 700 {
		t.Fatalf("unexpected window %d..%d", report.FromEpoch, report.ToEpoch)
	}
	if len(report.Rows) != 2 {
		t.Fatalf("expected gap-filled rows, got %d", len(report.Rows))
	}
	if report.Rows[1].Unique != 1 || report.Rows[0].Unique != 0 {
		t.Fatalf("unexpected rows: %+v", report.Rows)
	}
}

func TestEpochReportDefaultWindow(t *testing.T) {
	events := &fakeEventStore{}
	s := newTestServer(&fakeSnapshotStore{latest: 700}, events, &fakeUptimeStore{})

	rec := doRequest(t, s, "/api/epochs/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var report aggregate.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if report.FromEpoch != 691 || report.ToEpoch != 700 {
		t.Fatalf("unexpected default window %d..%d", report.FromEpoch, report.ToEpoch)
	}
}

func TestEpochReportRejectsBadInput(t *testing.T) {
	s := newTestServer(&fakeSnapshotStore{latest: 700}, &fakeEventStore{}, &fakeUptimeStore{})

	for _, path := range []string{
		"/api/epochs/report?classification=bogus",
		"/api/epochs/report?from=700&to=699",
		"/api/epochs/report?from=abc",
	} {
		rec := doRequest(t, s, path)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestRecentEventsRejectsBadLimit(t *testing.T) {
	s := newTestServer(&fakeSnapshotStore{}, &fakeEventStore{}, &fakeUptimeStore{})
	rec := doRequest(t, s, "/api/events?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryFailureMapsTo500(t *testing.T) {
	events := &fakeEventStore{err: errors.New("pool exhausted")}
	s := newTestServer(&fakeSnapshotStore{}, events, &fakeUptimeStore{})
	rec := doRequest(t, s, "/api/events")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(&fakeSnapshotStore{}, &fakeEventStore{}, &fakeUptimeStore{})
	rec := doRequest(t, s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}
