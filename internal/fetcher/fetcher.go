// Package fetcher reads the validator population and its commission metrics
// from the chain RPC and the Jito API.
package fetcher

import (
	"context"

	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

// ValidatorReading is one validator's raw metrics at the current tick. Mev
// starts unknown; the caller overlays it from the MEV source.
type ValidatorReading struct {
	VoteAccount    string
	Identity       string
	Version        string
	ActivatedStake uint64
	Commission     decimal.Decimal
	Mev            classifier.CommissionValue
	Delinquent     bool
}

// ChainSnapshot is the full population at one instant.
type ChainSnapshot struct {
	Epoch      uint64
	Validators []ValidatorReading
	// Skipped counts malformed per-validator entries dropped from the
	// batch.
	Skipped int
}

// ChainStateFetcher retrieves the current epoch and validator population.
type ChainStateFetcher interface {
	FetchChainState(ctx context.Context) (ChainSnapshot, error)
}

// MevCommissionFetcher retrieves MEV commissions keyed by vote account.
// Validators absent from the result have never been observed by the MEV
// source and stay unknown.
type MevCommissionFetcher interface {
	FetchMevCommissions(ctx context.Context) (map[string]classifier.CommissionValue, error)
}
