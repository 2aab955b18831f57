package rpcwallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

// Handle is one wallet session held by the service.
type Handle struct {
	client *rpc.Client
	id     string
}

var _ wallet.Handle = (*Handle)(nil)

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) call(ctx context.Context, result any, method string, args ...any) error {
	args = append([]any{h.id}, args...)
	if err := h.client.CallContext(ctx, result, namespace+"_"+method, args...); err != nil {
		return fmt.Errorf("%s_%s: %w", namespace, method, err)
	}
	return nil
}

func (h *Handle) Start(ctx context.Context) error {
	return h.call(ctx, nil, "start")
}

func (h *Handle) LatestState(ctx context.Context) (wallet.State, error) {
	var raw StateJSON
	if err := h.call(ctx, &raw, "latestState"); err != nil {
		return wallet.State{}, err
	}
	return raw.toState(), nil
}

// SubscribeState opens a wallet_subscribe("state") subscription and decodes
// every notification into ch.
func (h *Handle) SubscribeState(ctx context.Context, ch chan<- wallet.State) (ethereum.Subscription, error) {
	raw := make(chan *StateJSON)
	sub, err := h.client.Subscribe(ctx, namespace, raw, "state", h.id)
	if err != nil {
		return nil, fmt.Errorf("wallet_subscribe: %w", err)
	}

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case s := <-raw:
				if s == nil {
					continue
				}
				select {
				case ch <- s.toState():
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (h *Handle) TransferTransaction(ctx context.Context, requests []wallet.TransferRequest) (wallet.Recipe, error) {
	for _, r := range requests {
		if err := r.Validate(); err != nil {
			return nil, err
		}
	}

	var recipe hexutil.Bytes
	if err := h.call(ctx, &recipe, "transferTransaction", toRequestsJSON(requests)); err != nil {
		return nil, err
	}
	return wallet.Recipe(recipe), nil
}

func (h *Handle) ProveTransaction(ctx context.Context, recipe wallet.Recipe) (wallet.ProvenTx, error) {
	var proven hexutil.Bytes
	if err := h.call(ctx, &proven, "proveTransaction", hexutil.Bytes(recipe)); err != nil {
		return nil, err
	}
	return wallet.ProvenTx(proven), nil
}

func (h *Handle) SubmitTransaction(ctx context.Context, tx wallet.ProvenTx) (wallet.TxHash, error) {
	var hash string
	if err := h.call(ctx, &hash, "submitTransaction", hexutil.Bytes(tx)); err != nil {
		return "", err
	}
	if hash == "" {
		return "", fmt.Errorf("wallet_submitTransaction: empty transaction hash")
	}
	return wallet.TxHash(hash), nil
}

func (h *Handle) Close(ctx context.Context) error {
	return h.call(ctx, nil, "close")
}
