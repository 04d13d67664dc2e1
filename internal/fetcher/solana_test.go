package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

type fakeSolanaRPC struct {
	epochInfo    func() (*solanarpc.GetEpochInfoResult, error)
	voteAccounts func() (*solanarpc.GetVoteAccountsResult, error)
	clusterNodes func() ([]*solanarpc.GetClusterNodesResult, error)
}

func (f *fakeSolanaRPC) GetEpochInfo(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetEpochInfoResult, error) {
	return f.epochInfo()
}

func (f *fakeSolanaRPC) GetVoteAccounts(ctx context.Context, opts *solanarpc.GetVoteAccountsOpts) (*solanarpc.GetVoteAccountsResult, error) {
	return f.voteAccounts()
}

func (f *fakeSolanaRPC) GetClusterNodes(ctx context.Context) ([]*solanarpc.GetClusterNodesResult, error) {
	return f.clusterNodes()
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testPubkey(t *testing.T, seed byte) solana.PublicKey {
	t.Helper()
	var raw [32]byte
	raw[0] = seed
	return solana.PublicKeyFromBytes(raw[:])
}

func TestSolanaMissingRPCURL(t *testing.T) {
	s := NewSolana(SolanaOptions{}, noopLogger())
	if _, err := s.FetchChainState(context.Background()); err == nil {
		t.Fatal("未配置 RPC 时应报错")
	}
}

func TestSolanaFetchChainState(t *testing.T) {
	votePK := testPubkey(t, 1)
	nodePK := testPubkey(t, 2)
	delinquentVotePK := testPubkey(t, 3)
	delinquentNodePK := testPubkey(t, 4)
	version := "2.0.15"

	fake := &fakeSolanaRPC{
		epochInfo: func() (*solanarpc.GetEpochInfoResult, error) {
			return &solanarpc.GetEpochInfoResult{Epoch: 700}, nil
		},
		voteAccounts: func() (*solanarpc.GetVoteAccountsResult, error) {
			return &solanarpc.GetVoteAccountsResult{
				Current: []solanarpc.VoteAccountsResult{
					{VotePubkey: votePK, NodePubkey: nodePK, ActivatedStake: 5000, Commission: 8},
					// 缺失 vote pubkey 的条目应被跳过
					{NodePubkey: nodePK, Commission: 1},
				},
				Delinquent: []solanarpc.VoteAccountsResult{
					{VotePubkey: delinquentVotePK, NodePubkey: delinquentNodePK, Commission: 100},
				},
			}, nil
		},
		clusterNodes: func() ([]*solanarpc.GetClusterNodesResult, error) {
			return []*solanarpc.GetClusterNodesResult{
				{Pubkey: nodePK, Version: &version},
			}, nil
		},
	}

	s := NewSolanaWithClient(SolanaOptions{Timeout: time.Second}, fake, noopLogger())
	snapshot, err := s.FetchChainState(context.Background())
	if err != nil {
		t.Fatalf("FetchChainState 不应报错: %v", err)
	}
	if snapshot.Epoch != 700 {
		t.Fatalf("期望 epoch 700, 实际 %d", snapshot.Epoch)
	}
	if len(snapshot.Validators) != 2 {
		t.Fatalf("期望 2 个 validator, 实际 %d", len(snapshot.Validators))
	}
	if snapshot.Skipped != 1 {
		t.Fatalf("期望跳过 1 个条目, 实际 %d", snapshot.Skipped)
	}

	current := snapshot.Validators[0]
	if current.VoteAccount != votePK.String() || current.Delinquent {
		t.Fatalf("current validator 不正确: %+v", current)
	}
	if current.Commission.String() != "8" {
		t.Fatalf("期望 commission 8, 实际 %s", current.Commission)
	}
	if current.Version != version {
		t.Fatalf("期望 version %s, 实际 %s", version, current.Version)
	}

	delinquent := snapshot.Validators[1]
	if !delinquent.Delinquent || delinquent.Commission.String() != "100" {
		t.Fatalf("delinquent validator 不正确: %+v", delinquent)
	}
}

func TestSolanaClusterNodesFailureIsNotFatal(t *testing.T) {
	votePK := testPubkey(t, 1)
	fake := &fakeSolanaRPC{
		epochInfo: func() (*solanarpc.GetEpochInfoResult, error) {
			return &solanarpc.GetEpochInfoResult{Epoch: 1}, nil
		},
		voteAccounts: func() (*solanarpc.GetVoteAccountsResult, error) {
			return &solanarpc.GetVoteAccountsResult{
				Current: []solanarpc.VoteAccountsResult{{VotePubkey: votePK}},
			}, nil
		},
		clusterNodes: func() ([]*solanarpc.GetClusterNodesResult, error) {
			return nil, errors.New("gossip unavailable")
		},
	}

	s := NewSolanaWithClient(SolanaOptions{Timeout: time.Second}, fake, noopLogger())
	snapshot, err := s.FetchChainState(context.Background())
	if err != nil {
		t.Fatalf("gossip 失败不应中止: %v", err)
	}
	if len(snapshot.Validators) != 1 || snapshot.Validators[0].Version != "" {
		t.Fatalf("应返回无版本信息的 validator: %+v", snapshot.Validators)
	}
}
