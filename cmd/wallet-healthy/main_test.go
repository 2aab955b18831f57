package main

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/require"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
	"github.com/metis-devops/midnight-transfer/internal/wallet/rpcwallet"
)

func getHealth(t *testing.T, m *monitor) (int, *HealthyResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	m.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		return rec.Code, nil
	}

	var resp HealthyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, &resp
}

func TestHealthBeforeFirstState(t *testing.T) {
	var m monitor

	code, _ := getHealth(t, &m)
	require.Equal(t, http.StatusInternalServerError, code)

	rec := httptest.NewRecorder()
	m.handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReportsSyncProgress(t *testing.T) {
	var m monitor
	now := time.Date(2025, 3, 16, 2, 12, 5, 0, time.UTC)

	m.refresh(wallet.State{
		Address:      "mn_shield-addr_undeployed1abc",
		SyncProgress: &wallet.SyncProgress{Lag: wallet.Lag{ApplyGap: 2, SourceGap: 40}},
		Transactions: []wallet.Transaction{{Hash: "0x01"}},
	}, now)

	code, resp := getHealth(t, &m)
	require.Equal(t, http.StatusOK, code)
	require.False(t, resp.Healthy)
	require.False(t, resp.Synced)
	require.Equal(t, uint64(40), uint64(resp.BackendLag))
	require.Equal(t, uint64(2), uint64(resp.WalletLag))
	require.Equal(t, 1, resp.Transactions)
	require.Zero(t, resp.Balance.ToInt().Sign())
	require.True(t, now.Equal(resp.Timestamp))

	m.refresh(wallet.State{
		Address:      "mn_shield-addr_undeployed1abc",
		Balances:     map[wallet.TokenType]*big.Int{wallet.NativeToken: big.NewInt(9_000)},
		SyncProgress: &wallet.SyncProgress{Synced: true},
	}, now.Add(time.Minute))

	_, resp = getHealth(t, &m)
	require.True(t, resp.Healthy)
	require.Equal(t, int64(9_000), resp.Balance.ToInt().Int64())
}

func TestFollowUpdatesMonitor(t *testing.T) {
	b := &rpcwallet.MemoryBackend{
		Updates: []wallet.State{{
			Address:      "mn_shield-addr_undeployed1abc",
			Balances:     map[wallet.TokenType]*big.Int{wallet.NativeToken: big.NewInt(1)},
			SyncProgress: &wallet.SyncProgress{Synced: true},
		}},
	}
	srv, err := rpcwallet.NewMemoryServer(b)
	require.NoError(t, err)
	defer srv.Stop()

	svc := rpcwallet.NewService(rpc.DialInProc(srv))
	defer svc.Close()

	handle, err := svc.Build(context.Background(), config.Standalone(), config.GenesisMintWalletSeed)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	var m monitor
	go func() { done <- m.follow(ctx, handle) }()

	require.Eventually(t, func() bool {
		code, resp := getHealth(t, &m)
		return code == http.StatusOK && resp.Synced
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
