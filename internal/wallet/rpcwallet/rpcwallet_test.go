package rpcwallet

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

func newTestService(t *testing.T, b *MemoryBackend) *Service {
	t.Helper()

	srv, err := NewMemoryServer(b)
	require.NoError(t, err)
	t.Cleanup(srv.Stop)

	svc := NewService(rpc.DialInProc(srv))
	t.Cleanup(svc.Close)
	return svc
}

func TestBuildForwardsConfig(t *testing.T) {
	b := &MemoryBackend{}
	svc := newTestService(t, b)

	cfg := config.Standalone()
	h, err := svc.Build(context.Background(), cfg, config.GenesisMintWalletSeed)
	require.NoError(t, err)
	require.Equal(t, "session-1", h.(*Handle).ID())

	calls := b.Calls()
	require.Len(t, calls.Builds, 1)
	require.Equal(t, BuildParams{
		Indexer:     cfg.Indexer,
		IndexerWS:   cfg.IndexerWS,
		Node:        cfg.Node,
		ProofServer: cfg.ProofServer,
		Seed:        config.GenesisMintWalletSeed,
		NetworkID:   config.NetworkUndeployed,
		LogLevel:    "warn",
	}, calls.Builds[0])
}

func TestBuildRejectsBadSeed(t *testing.T) {
	b := &MemoryBackend{}
	svc := newTestService(t, b)

	_, err := svc.Build(context.Background(), config.Standalone(), "not-a-seed")
	require.Error(t, err)
	require.Empty(t, b.Calls().Builds)
}

func TestBuildError(t *testing.T) {
	svc := newTestService(t, &MemoryBackend{BuildErr: errors.New("indexer unreachable")})

	_, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.ErrorContains(t, err, "wallet_build")
	require.ErrorContains(t, err, "indexer unreachable")
}

func TestLatestStateDecoding(t *testing.T) {
	balance, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)

	b := &MemoryBackend{
		Initial: wallet.State{
			Address:  "mn_shield-addr_undeployed1xyz",
			Balances: map[wallet.TokenType]*big.Int{wallet.NativeToken: balance},
			SyncProgress: &wallet.SyncProgress{
				Synced: false,
				Lag:    wallet.Lag{ApplyGap: 3, SourceGap: 7},
			},
			Transactions: []wallet.Transaction{{Hash: "0x01"}, {Hash: "0x02", Identifiers: []string{"id"}}},
		},
	}
	svc := newTestService(t, b)

	h, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)
	require.NoError(t, h.Start(context.Background()))

	state, err := h.LatestState(context.Background())
	require.NoError(t, err)
	require.Equal(t, b.Initial, state)
	require.Equal(t, 1, b.Calls().Starts)
}

func TestLatestStateWithoutSyncProgress(t *testing.T) {
	svc := newTestService(t, &MemoryBackend{})

	h, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	state, err := h.LatestState(context.Background())
	require.NoError(t, err)
	require.Nil(t, state.SyncProgress)
	require.False(t, state.Synced())
	require.Zero(t, state.Balance(wallet.NativeToken).Sign())
}

func TestSubscribeState(t *testing.T) {
	updates := []wallet.State{
		{Address: "a", SyncProgress: &wallet.SyncProgress{Lag: wallet.Lag{SourceGap: 10}}},
		{
			Address:      "a",
			Balances:     map[wallet.TokenType]*big.Int{wallet.NativeToken: big.NewInt(5)},
			SyncProgress: &wallet.SyncProgress{Synced: true},
		},
	}
	b := &MemoryBackend{Updates: updates}
	svc := newTestService(t, b)

	h, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	ch := make(chan wallet.State)
	sub, err := h.SubscribeState(context.Background(), ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for i, want := range updates {
		select {
		case got := <-ch:
			require.Equal(t, want.Address, got.Address)
			require.Equal(t, want.Synced(), got.Synced())
			require.Equal(t, 0, want.Balance(wallet.NativeToken).Cmp(got.Balance(wallet.NativeToken)))
		case err := <-sub.Err():
			t.Fatalf("subscription ended at update %d: %v", i, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for update %d", i)
		}
	}
	require.Equal(t, 1, b.Calls().Subscriptions)
}

func TestTransferLifecycle(t *testing.T) {
	b := &MemoryBackend{TxHash: "0xfeed"}
	svc := newTestService(t, b)
	ctx := context.Background()

	h, err := svc.Build(ctx, config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	amount := big.NewInt(1_000_000_000_000)
	recipe, err := h.TransferTransaction(ctx, []wallet.TransferRequest{{
		Amount:          amount,
		ReceiverAddress: "mn_shd_xyz",
		Type:            wallet.NativeToken,
	}})
	require.NoError(t, err)
	require.Equal(t, wallet.Recipe("recipe"), recipe)

	proven, err := h.ProveTransaction(ctx, recipe)
	require.NoError(t, err)
	require.Equal(t, wallet.ProvenTx("proven:recipe"), proven)

	hash, err := h.SubmitTransaction(ctx, proven)
	require.NoError(t, err)
	require.Equal(t, wallet.TxHash("0xfeed"), hash)

	require.NoError(t, h.Close(ctx))

	calls := b.Calls()
	require.Len(t, calls.Requests, 1)
	require.Equal(t, "mn_shd_xyz", calls.Requests[0].ReceiverAddress)
	require.Equal(t, string(wallet.NativeToken), calls.Requests[0].Type)
	require.Equal(t, 0, amount.Cmp(calls.Requests[0].Amount.ToInt()))
	require.Equal(t, 1, calls.Submitted)
	require.Equal(t, 1, calls.Closes)
}

func TestTransferRejectsInvalidRequest(t *testing.T) {
	b := &MemoryBackend{}
	svc := newTestService(t, b)

	h, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	_, err = h.TransferTransaction(context.Background(), []wallet.TransferRequest{{
		Amount:          big.NewInt(0),
		ReceiverAddress: "mn_shd_xyz",
	}})
	require.ErrorIs(t, err, wallet.ErrInvalidAmount)
	require.Empty(t, b.Calls().Requests)
}

func TestServiceErrorsAreWrapped(t *testing.T) {
	svc := newTestService(t, &MemoryBackend{ProveErr: errors.New("prover unavailable")})

	h, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	_, err = h.ProveTransaction(context.Background(), wallet.Recipe("r"))
	require.ErrorContains(t, err, "wallet_proveTransaction")
	require.ErrorContains(t, err, "prover unavailable")

	var rpcErr rpc.Error
	require.ErrorAs(t, err, &rpcErr)
}
