package rpcwallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

// MemoryBackend is an in-memory wallet service. It serves a single session
// whose first state is Initial and whose state subscriptions replay
// Updates. The error fields make the matching call fail.
type MemoryBackend struct {
	Initial wallet.State
	Updates []wallet.State
	TxHash  string

	BuildErr    error
	StartErr    error
	TransferErr error
	ProveErr    error
	SubmitErr   error
	CloseErr    error

	mu            sync.Mutex
	builds        []BuildParams
	starts        int
	closes        int
	subscriptions int
	requests      []TransferRequestJSON
	submitted     int
}

// MemoryCalls is a snapshot of what a MemoryBackend has been asked to do.
type MemoryCalls struct {
	Builds        []BuildParams
	Starts        int
	Closes        int
	Subscriptions int
	Requests      []TransferRequestJSON
	Submitted     int
}

func (b *MemoryBackend) Calls() MemoryCalls {
	b.mu.Lock()
	defer b.mu.Unlock()
	return MemoryCalls{
		Builds:        append([]BuildParams(nil), b.builds...),
		Starts:        b.starts,
		Closes:        b.closes,
		Subscriptions: b.subscriptions,
		Requests:      append([]TransferRequestJSON(nil), b.requests...),
		Submitted:     b.submitted,
	}
}

// NewMemoryServer exposes b under the wallet namespace.
func NewMemoryServer(b *MemoryBackend) (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName(namespace, &memoryAPI{b: b}); err != nil {
		return nil, err
	}
	return srv, nil
}

const memorySessionID = "session-1"

var errUnknownSession = errors.New("unknown wallet session")

type memoryAPI struct {
	b *MemoryBackend
}

func (api *memoryAPI) check(id string) error {
	if id != memorySessionID {
		return fmt.Errorf("%w %q", errUnknownSession, id)
	}
	return nil
}

func (api *memoryAPI) Build(ctx context.Context, params BuildParams) (string, error) {
	api.b.mu.Lock()
	api.b.builds = append(api.b.builds, params)
	api.b.mu.Unlock()

	if api.b.BuildErr != nil {
		return "", api.b.BuildErr
	}
	return memorySessionID, nil
}

func (api *memoryAPI) Start(ctx context.Context, id string) error {
	if err := api.check(id); err != nil {
		return err
	}
	api.b.mu.Lock()
	api.b.starts++
	api.b.mu.Unlock()
	return api.b.StartErr
}

func (api *memoryAPI) LatestState(ctx context.Context, id string) (*StateJSON, error) {
	if err := api.check(id); err != nil {
		return nil, err
	}
	return NewStateJSON(api.b.Initial), nil
}

// State is served as wallet_subscribe("state", id).
func (api *memoryAPI) State(ctx context.Context, id string) (*rpc.Subscription, error) {
	if err := api.check(id); err != nil {
		return nil, err
	}
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return nil, rpc.ErrNotificationsUnsupported
	}

	api.b.mu.Lock()
	api.b.subscriptions++
	api.b.mu.Unlock()

	sub := notifier.CreateSubscription()
	go func() {
		for _, s := range api.b.Updates {
			if err := notifier.Notify(sub.ID, NewStateJSON(s)); err != nil {
				return
			}
		}
		<-sub.Err()
	}()
	return sub, nil
}

func (api *memoryAPI) TransferTransaction(ctx context.Context, id string, requests []TransferRequestJSON) (hexutil.Bytes, error) {
	if err := api.check(id); err != nil {
		return nil, err
	}
	api.b.mu.Lock()
	api.b.requests = append(api.b.requests, requests...)
	api.b.mu.Unlock()

	if api.b.TransferErr != nil {
		return nil, api.b.TransferErr
	}
	return hexutil.Bytes("recipe"), nil
}

func (api *memoryAPI) ProveTransaction(ctx context.Context, id string, recipe hexutil.Bytes) (hexutil.Bytes, error) {
	if err := api.check(id); err != nil {
		return nil, err
	}
	if api.b.ProveErr != nil {
		return nil, api.b.ProveErr
	}
	return append(hexutil.Bytes("proven:"), recipe...), nil
}

func (api *memoryAPI) SubmitTransaction(ctx context.Context, id string, tx hexutil.Bytes) (string, error) {
	if err := api.check(id); err != nil {
		return "", err
	}
	if api.b.SubmitErr != nil {
		return "", api.b.SubmitErr
	}
	api.b.mu.Lock()
	api.b.submitted++
	api.b.mu.Unlock()

	if api.b.TxHash == "" {
		return "0x00000000000000000000000000000000000000000000000000000000000000aa", nil
	}
	return api.b.TxHash, nil
}

func (api *memoryAPI) Close(ctx context.Context, id string) error {
	if err := api.check(id); err != nil {
		return err
	}
	api.b.mu.Lock()
	api.b.closes++
	api.b.mu.Unlock()
	return api.b.CloseErr
}
