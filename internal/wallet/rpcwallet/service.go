// Package rpcwallet talks to a wallet service over JSON-RPC. The service owns
// the keys, the sync with the indexer and the proof server; this package
// only drives a session.
package rpcwallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

const (
	namespace = "wallet"

	// serviceLogLevel is the verbosity the service uses for the session.
	serviceLogLevel = "warn"
)

type Service struct {
	client *rpc.Client
}

// Dial connects to the wallet service. Subscriptions need a websocket or
// IPC endpoint.
func Dial(basectx context.Context, endpoint string) (*Service, error) {
	newctx, cancel := context.WithTimeout(basectx, time.Second*5)
	defer cancel()

	slog.Info("connecting", "wallet-service", endpoint)
	client, err := rpc.DialContext(newctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial wallet service: %w", err)
	}
	return NewService(client), nil
}

func NewService(client *rpc.Client) *Service {
	return &Service{client: client}
}

func (s *Service) Close() {
	s.client.Close()
}

// Build creates a wallet session from seed against the endpoints in cfg.
func (s *Service) Build(ctx context.Context, cfg config.Config, seed string) (wallet.Handle, error) {
	if _, err := config.DecodeSeed(seed); err != nil {
		return nil, err
	}

	params := BuildParams{
		Indexer:     cfg.Indexer,
		IndexerWS:   cfg.IndexerWS,
		Node:        cfg.Node,
		ProofServer: cfg.ProofServer,
		Seed:        seed,
		NetworkID:   cfg.NetworkID,
		LogLevel:    serviceLogLevel,
	}

	var id string
	if err := s.client.CallContext(ctx, &id, namespace+"_build", params); err != nil {
		return nil, fmt.Errorf("wallet_build: %w", err)
	}
	if id == "" {
		return nil, fmt.Errorf("wallet_build: empty session id")
	}
	return &Handle{client: s.client, id: id}, nil
}
