package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"validator-commission-alerts/internal/classifier"
)

// SolanaRPC is the subset of the RPC client the fetcher needs.
type SolanaRPC interface {
	GetEpochInfo(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetEpochInfoResult, error)
	GetVoteAccounts(ctx context.Context, opts *solanarpc.GetVoteAccountsOpts) (*solanarpc.GetVoteAccountsResult, error)
	GetClusterNodes(ctx context.Context) ([]*solanarpc.GetClusterNodesResult, error)
}

// SolanaOptions parameterise the chain-state fetcher.
type SolanaOptions struct {
	RPCURL     string
	Commitment string
	Timeout    time.Duration
}

func (o SolanaOptions) commitment() solanarpc.CommitmentType {
	switch o.Commitment {
	case "processed":
		return solanarpc.CommitmentProcessed
	case "confirmed":
		return solanarpc.CommitmentConfirmed
	default:
		return solanarpc.CommitmentFinalized
	}
}

// Solana reads the validator population via Solana RPC.
type Solana struct {
	opts      SolanaOptions
	logger    zerolog.Logger
	client    SolanaRPC
	clientMux sync.Mutex
}

// NewSolana builds a chain-state fetcher that dials lazily on first use.
func NewSolana(opts SolanaOptions, logger zerolog.Logger) *Solana {
	return &Solana{opts: opts, logger: logger.With().Str("component", "solana_fetcher").Logger()}
}

// NewSolanaWithClient builds a fetcher around an existing RPC client.
func NewSolanaWithClient(opts SolanaOptions, client SolanaRPC, logger zerolog.Logger) *Solana {
	s := NewSolana(opts, logger)
	s.client = client
	return s
}

// FetchChainState retrieves the current epoch and every vote account,
// current and delinquent. Node version is decoration: a gossip failure only
// loses versions, never the batch.
func (s *Solana) FetchChainState(ctx context.Context) (ChainSnapshot, error) {
	client, err := s.getClient()
	if err != nil {
		return ChainSnapshot{}, err
	}

	timeout := s.opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	commitment := s.opts.commitment()

	epochInfo, err := backoff.Retry(ctx, func() (*solanarpc.GetEpochInfoResult, error) {
		return client.GetEpochInfo(ctx, commitment)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		return ChainSnapshot{}, fmt.Errorf("get epoch info: %w", err)
	}
	if epochInfo == nil {
		return ChainSnapshot{}, errors.New("epoch info response is nil")
	}

	voteAccounts, err := backoff.Retry(ctx, func() (*solanarpc.GetVoteAccountsResult, error) {
		return client.GetVoteAccounts(ctx, &solanarpc.GetVoteAccountsOpts{Commitment: commitment})
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()))
	if err != nil {
		return ChainSnapshot{}, fmt.Errorf("get vote accounts: %w", err)
	}
	if voteAccounts == nil {
		return ChainSnapshot{}, errors.New("vote accounts response is nil")
	}

	versions := s.nodeVersions(ctx, client)

	snapshot := ChainSnapshot{Epoch: epochInfo.Epoch}
	snapshot.Validators = make([]ValidatorReading, 0, len(voteAccounts.Current)+len(voteAccounts.Delinquent))
	s.appendReadings(&snapshot, voteAccounts.Current, versions, false)
	s.appendReadings(&snapshot, voteAccounts.Delinquent, versions, true)

	return snapshot, nil
}

func (s *Solana) appendReadings(snapshot *ChainSnapshot, accounts []solanarpc.VoteAccountsResult, versions map[string]string, delinquent bool) {
	for _, acc := range accounts {
		if acc.VotePubkey.IsZero() {
			s.logger.Warn().
				Str("node_pubkey", acc.NodePubkey.String()).
				Msg("vote account without pubkey skipped")
			snapshot.Skipped++
			continue
		}
		identity := acc.NodePubkey.String()
		snapshot.Validators = append(snapshot.Validators, ValidatorReading{
			VoteAccount:    acc.VotePubkey.String(),
			Identity:       identity,
			Version:        versions[identity],
			ActivatedStake: acc.ActivatedStake,
			Commission:     decimal.NewFromInt(int64(acc.Commission)),
			Mev:            classifier.Unknown(),
			Delinquent:     delinquent,
		})
	}
}

func (s *Solana) nodeVersions(ctx context.Context, client SolanaRPC) map[string]string {
	nodes, err := client.GetClusterNodes(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("get cluster nodes failed, versions unavailable")
		return nil
	}
	versions := make(map[string]string, len(nodes))
	for _, node := range nodes {
		if node == nil || node.Version == nil {
			continue
		}
		versions[node.Pubkey.String()] = *node.Version
	}
	return versions
}

func (s *Solana) getClient() (SolanaRPC, error) {
	s.clientMux.Lock()
	defer s.clientMux.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if s.opts.RPCURL == "" {
		return nil, errors.New("solana rpc url not configured")
	}
	s.client = solanarpc.New(s.opts.RPCURL)
	return s.client, nil
}

var _ ChainStateFetcher = (*Solana)(nil)
