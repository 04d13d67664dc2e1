// Package api exposes the read-only HTTP surface: the event ledger, uptime
// history, per-epoch reports, and prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"validator-commission-alerts/internal/aggregate"
	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/storage"
)

const (
	defaultEventLimit  = 50
	maxEventLimit      = 500
	defaultUptimeDays  = 30
	maxUptimeDays      = 365
	defaultReportSpan  = 10
	shutdownTimeout    = 5 * time.Second
	readHeaderTimeout  = 5 * time.Second
	defaultSnapshotCap = 50
)

// Stores groups the read interfaces the server queries.
type Stores struct {
	Snapshots storage.SnapshotStore
	Events    storage.EventStore
	Uptime    storage.UptimeStore
}

// Server serves the read-only API. Nothing here writes.
type Server struct {
	stores Stores
	logger zerolog.Logger
	router *mux.Router
	srv    *http.Server
}

// NewServer wires the routes. listen may be host:port or :port.
func NewServer(listen string, stores Stores, logger zerolog.Logger) *Server {
	s := &Server{
		stores: stores,
		logger: logger.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleRecentEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/validators/{voteAccount}/events", s.handleValidatorEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/validators/{voteAccount}/uptime", s.handleValidatorUptime).Methods(http.MethodGet)
	r.HandleFunc("/api/validators/{voteAccount}/snapshots", s.handleValidatorSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/api/epochs/report", s.handleEpochReport).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router = r
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           r,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run blocks serving requests until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("api shutdown incomplete")
		}
	}()

	s.logger.Info().Str("listen", s.srv.Addr).Msg("api listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

type eventDTO struct {
	ID             int64     `json:"id"`
	VoteAccount    string    `json:"voteAccount"`
	Epoch          uint64    `json:"epoch"`
	Metric         string    `json:"metric"`
	Classification string    `json:"classification"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Delta          *string   `json:"delta,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toEventDTO(ev storage.CommissionEvent) eventDTO {
	dto := eventDTO{
		ID:             ev.ID,
		VoteAccount:    ev.VoteAccount,
		Epoch:          ev.Epoch,
		Metric:         string(ev.Metric),
		Classification: string(ev.Classification),
		From:           ev.FromValue.String(),
		To:             ev.ToValue.String(),
		CreatedAt:      ev.CreatedAt,
	}
	if ev.Delta.Valid {
		delta := ev.Delta.Decimal.String()
		dto.Delta = &delta
	}
	return dto
}

type uptimeDayDTO struct {
	Day              string `json:"day"`
	TotalChecks      int64  `json:"totalChecks"`
	DelinquentChecks int64  `json:"delinquentChecks"`
	UptimePercent    string `json:"uptimePercent"`
}

type snapshotDTO struct {
	VoteAccount string    `json:"voteAccount"`
	Epoch       uint64    `json:"epoch"`
	Identity    string    `json:"identity,omitempty"`
	Version     string    `json:"version,omitempty"`
	Commission  string    `json:"commission"`
	Mev         string    `json:"mev"`
	Delinquent  bool      `json:"delinquent"`
	CapturedAt  time.Time `json:"capturedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEventLimit, maxEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.stores.Events.ListRecentEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list recent events")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, mapEvents(events))
}

func (s *Server) handleValidatorEvents(w http.ResponseWriter, r *http.Request) {
	voteAccount := mux.Vars(r)["voteAccount"]
	limit, err := queryInt(r, "limit", defaultEventLimit, maxEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.stores.Events.ListValidatorEvents(r.Context(), voteAccount, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("vote_account", voteAccount).Msg("list validator events")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, mapEvents(events))
}

func (s *Server) handleValidatorUptime(w http.ResponseWriter, r *http.Request) {
	voteAccount := mux.Vars(r)["voteAccount"]
	days, err := queryInt(r, "days", defaultUptimeDays, maxUptimeDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.stores.Uptime.ListUptimeDays(r.Context(), voteAccount, days)
	if err != nil {
		s.logger.Error().Err(err).Str("vote_account", voteAccount).Msg("list uptime days")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	out := make([]uptimeDayDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, uptimeDayDTO{
			Day:              row.Day.Format("2006-01-02"),
			TotalChecks:      row.TotalChecks,
			DelinquentChecks: row.DelinquentChecks,
			UptimePercent:    row.UptimePercent().String(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValidatorSnapshots(w http.ResponseWriter, r *http.Request) {
	voteAccount := mux.Vars(r)["voteAccount"]
	limit, err := queryInt(r, "limit", defaultSnapshotCap, maxEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.stores.Snapshots.ListValidatorSnapshots(r.Context(), voteAccount, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("vote_account", voteAccount).Msg("list validator snapshots")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	out := make([]snapshotDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, snapshotDTO{
			VoteAccount: row.VoteAccount,
			Epoch:       row.Epoch,
			Identity:    row.Identity,
			Version:     row.Version,
			Commission:  row.Commission.String(),
			Mev:         row.Mev.String(),
			Delinquent:  row.Delinquent,
			CapturedAt:  row.CapturedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleEpochReport builds the per-epoch offender report. The window defaults
// to the last ten observed epochs; the classification filter defaults to rug.
func (s *Server) handleEpochReport(w http.ResponseWriter, r *http.Request) {
	class := classifier.ClassificationRug
	if raw := r.URL.Query().Get("classification"); raw != "" {
		parsed, err := classifier.ParseClassification(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		class = parsed
	}

	from, to, err := s.resolveWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.stores.Events.ListClassifiedEvents(r.Context(), class)
	if err != nil {
		s.logger.Error().Err(err).Msg("list classified events")
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	refs := make([]aggregate.EventRef, 0, len(events))
	for _, ev := range events {
		refs = append(refs, aggregate.EventRef{
			VoteAccount: ev.VoteAccount,
			Epoch:       ev.Epoch,
			Metric:      ev.Metric,
		})
	}
	writeJSON(w, http.StatusOK, aggregate.Build(refs, from, to))
}

func (s *Server) resolveWindow(r *http.Request) (uint64, uint64, error) {
	query := r.URL.Query()

	to, ok, err := queryUint(query.Get("to"))
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		latest, err := s.stores.Snapshots.LatestEpoch(r.Context())
		if err != nil {
			return 0, 0, err
		}
		to = latest
	}

	from, ok, err := queryUint(query.Get("from"))
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		if to >= defaultReportSpan {
			from = to - defaultReportSpan + 1
		}
	}

	if from > to {
		return 0, 0, errors.New("from must not exceed to")
	}
	return from, to, nil
}

func queryUint(raw string) (uint64, bool, error) {
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, errors.New("epoch must be a non-negative integer")
	}
	return v, true, nil
}

func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.New(name + " must be a positive integer")
	}
	if v > max {
		v = max
	}
	return v, nil
}

func mapEvents(events []storage.CommissionEvent) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev))
	}
	return out
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
