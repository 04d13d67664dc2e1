package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

const (
	jitoValidatorsPath = "/api/v1/validators"
	jitoCacheKey       = "mev_commissions"
)

var decBpsPerPercent = decimal.NewFromInt(100)

// JitoOptions parameterise the MEV commission fetcher.
type JitoOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// CacheTTL bounds how long a fetched commission map is reused. The
	// Jito validator list changes far slower than the tick interval.
	CacheTTL time.Duration
}

// Jito fetches MEV commissions from the Jito validator API.
type Jito struct {
	opts    JitoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	cache   *ttlcache.Cache[string, map[string]classifier.CommissionValue]
	cacheMu sync.RWMutex
}

// NewJito constructs a MEV commission fetcher.
func NewJito(opts JitoOptions, logger zerolog.Logger) *Jito {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://kobe.mainnet.jito.network"
	}

	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	opts.CacheTTL = cacheTTL

	return &Jito{
		opts:    opts,
		logger:  logger.With().Str("component", "jito_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, map[string]classifier.CommissionValue](cacheTTL),
		),
	}
}

// FetchMevCommissions returns the MEV commission per vote account. A
// validator running Jito with a configured rate maps to its percentage; a
// validator known to the API but not running Jito maps to disabled.
// Validators absent from the API are absent from the map.
func (j *Jito) FetchMevCommissions(ctx context.Context) (map[string]classifier.CommissionValue, error) {
	if cached := j.cachedCommissions(); cached != nil {
		return cached, nil
	}

	endpoint := j.baseURL + jitoValidatorsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(j.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "valwatcher/1.0")
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseJitoError(resp.StatusCode, payload)
	}

	var listing jitoValidatorsResponse
	if err := json.Unmarshal(payload, &listing); err != nil {
		return nil, fmt.Errorf("decode jito validators: %w", err)
	}

	commissions := make(map[string]classifier.CommissionValue, len(listing.Validators))
	skipped := 0
	for _, v := range listing.Validators {
		if v.VoteAccount == "" {
			skipped++
			continue
		}
		commissions[v.VoteAccount] = v.commissionValue()
	}
	if skipped > 0 {
		j.logger.Warn().Int("skipped", skipped).Msg("jito entries without vote account skipped")
	}

	j.storeCommissions(commissions)
	return commissions, nil
}

func (j *Jito) cachedCommissions() map[string]classifier.CommissionValue {
	j.cacheMu.RLock()
	defer j.cacheMu.RUnlock()
	item := j.cache.Get(jitoCacheKey)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (j *Jito) storeCommissions(commissions map[string]classifier.CommissionValue) {
	j.cacheMu.Lock()
	defer j.cacheMu.Unlock()
	j.cache.Set(jitoCacheKey, commissions, j.opts.CacheTTL)
}

type jitoValidatorsResponse struct {
	Validators []jitoValidator `json:"validators"`
}

type jitoValidator struct {
	VoteAccount      string `json:"vote_account"`
	MevCommissionBps *int64 `json:"mev_commission_bps"`
	RunningJito      bool   `json:"running_jito"`
}

func (v jitoValidator) commissionValue() classifier.CommissionValue {
	if !v.RunningJito || v.MevCommissionBps == nil {
		return classifier.Disabled()
	}
	percent := decimal.NewFromInt(*v.MevCommissionBps).Div(decBpsPerPercent)
	return classifier.Numeric(percent)
}

type jitoErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseJitoError(status int, payload []byte) error {
	var apiErr jitoErrorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("jito api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("jito api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("jito api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("jito api error (%d)", status)
}

var _ MevCommissionFetcher = (*Jito)(nil)
