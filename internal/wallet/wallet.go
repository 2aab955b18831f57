package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
)

// TokenType identifies an asset in a wallet's balance map.
type TokenType string

// NativeToken is the base currency of the ledger.
const NativeToken TokenType = "0200000000000000000000000000000000000000000000000000000000000000000000"

// Lag describes how far a wallet trails the canonical ledger state.
type Lag struct {
	// ApplyGap is the backlog the wallet itself still has to apply.
	ApplyGap uint64
	// SourceGap is the backlog the indexer has not ingested yet.
	SourceGap uint64
}

type SyncProgress struct {
	Synced bool
	Lag    Lag
}

type Transaction struct {
	Hash        string
	Identifiers []string
}

// State is one snapshot emitted by a wallet session. Balances are only
// authoritative when SyncProgress is present and Synced is set.
type State struct {
	Address      string
	Balances     map[TokenType]*big.Int
	SyncProgress *SyncProgress
	Transactions []Transaction
}

// Synced reports whether the snapshot's balances can be trusted.
func (s State) Synced() bool {
	return s.SyncProgress != nil && s.SyncProgress.Synced
}

// Balance returns the balance of token, zero when the key is absent. The
// returned value is a copy.
func (s State) Balance(token TokenType) *big.Int {
	if b, ok := s.Balances[token]; ok && b != nil {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

var (
	ErrInvalidAmount   = errors.New("transfer amount must be positive")
	ErrMissingReceiver = errors.New("transfer receiver address is required")
)

type TransferRequest struct {
	Amount          *big.Int
	ReceiverAddress string
	Type            TokenType
}

// Validate checks the request structurally. The receiver format is left to
// the wallet service.
func (r TransferRequest) Validate() error {
	if r.Amount == nil || r.Amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if r.ReceiverAddress == "" {
		return ErrMissingReceiver
	}
	return nil
}

// Recipe is an unproven transfer as serialized by the wallet service.
type Recipe []byte

// ProvenTx is a recipe together with its proof, ready for submission.
type ProvenTx []byte

type TxHash string

// Handle is a running wallet session.
type Handle interface {
	Start(ctx context.Context) error

	// LatestState returns the most recent snapshot without waiting for a
	// new emission.
	LatestState(ctx context.Context) (State, error)

	// SubscribeState delivers every snapshot the session emits until the
	// subscription is cancelled or fails.
	SubscribeState(ctx context.Context, ch chan<- State) (ethereum.Subscription, error)

	TransferTransaction(ctx context.Context, requests []TransferRequest) (Recipe, error)
	ProveTransaction(ctx context.Context, recipe Recipe) (ProvenTx, error)
	SubmitTransaction(ctx context.Context, tx ProvenTx) (TxHash, error)
	Close(ctx context.Context) error
}
