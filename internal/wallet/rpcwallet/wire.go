package rpcwallet

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/metis-devops/midnight-transfer/internal/config"
	"github.com/metis-devops/midnight-transfer/internal/wallet"
)

/*
	{
	  "address": "mn_shield-addr_undeployed1...",
	  "balances": {"02000000...": "0x1d1a94a2000"},
	  "syncProgress": {"synced": true, "lag": {"applyGap": "0x0", "sourceGap": "0x0"}},
	  "transactionHistory": [{"hash": "0x...", "identifiers": ["..."]}]
	}
*/

// BuildParams are the arguments of wallet_build.
type BuildParams struct {
	Indexer     string           `json:"indexer"`
	IndexerWS   string           `json:"indexerWS"`
	Node        string           `json:"node"`
	ProofServer string           `json:"proofServer"`
	Seed        string           `json:"seed"`
	NetworkID   config.NetworkID `json:"networkId"`
	LogLevel    string           `json:"logLevel"`
}

type StateJSON struct {
	Address            string                  `json:"address"`
	Balances           map[string]*hexutil.Big `json:"balances"`
	SyncProgress       *SyncProgressJSON       `json:"syncProgress,omitempty"`
	TransactionHistory []TransactionJSON       `json:"transactionHistory"`
}

type SyncProgressJSON struct {
	Synced bool    `json:"synced"`
	Lag    LagJSON `json:"lag"`
}

type LagJSON struct {
	ApplyGap  hexutil.Uint64 `json:"applyGap"`
	SourceGap hexutil.Uint64 `json:"sourceGap"`
}

type TransactionJSON struct {
	Hash        string   `json:"hash"`
	Identifiers []string `json:"identifiers,omitempty"`
}

type TransferRequestJSON struct {
	Amount          *hexutil.Big `json:"amount"`
	ReceiverAddress string       `json:"receiverAddress"`
	Type            string       `json:"type"`
}

func (s *StateJSON) toState() wallet.State {
	state := wallet.State{
		Address:  s.Address,
		Balances: make(map[wallet.TokenType]*big.Int, len(s.Balances)),
	}
	for token, amount := range s.Balances {
		if amount != nil {
			state.Balances[wallet.TokenType(token)] = new(big.Int).Set(amount.ToInt())
		}
	}
	if s.SyncProgress != nil {
		state.SyncProgress = &wallet.SyncProgress{
			Synced: s.SyncProgress.Synced,
			Lag: wallet.Lag{
				ApplyGap:  uint64(s.SyncProgress.Lag.ApplyGap),
				SourceGap: uint64(s.SyncProgress.Lag.SourceGap),
			},
		}
	}
	for _, tx := range s.TransactionHistory {
		state.Transactions = append(state.Transactions, wallet.Transaction{
			Hash:        tx.Hash,
			Identifiers: tx.Identifiers,
		})
	}
	return state
}

// NewStateJSON is the inverse of the client side decoding. It is used by
// wallet service implementations and test doubles.
func NewStateJSON(s wallet.State) *StateJSON {
	out := &StateJSON{
		Address:            s.Address,
		Balances:           make(map[string]*hexutil.Big, len(s.Balances)),
		TransactionHistory: []TransactionJSON{},
	}
	for token, amount := range s.Balances {
		out.Balances[string(token)] = (*hexutil.Big)(new(big.Int).Set(amount))
	}
	if s.SyncProgress != nil {
		out.SyncProgress = &SyncProgressJSON{
			Synced: s.SyncProgress.Synced,
			Lag: LagJSON{
				ApplyGap:  hexutil.Uint64(s.SyncProgress.Lag.ApplyGap),
				SourceGap: hexutil.Uint64(s.SyncProgress.Lag.SourceGap),
			},
		}
	}
	for _, tx := range s.Transactions {
		out.TransactionHistory = append(out.TransactionHistory, TransactionJSON{
			Hash:        tx.Hash,
			Identifiers: tx.Identifiers,
		})
	}
	return out
}

func toRequestsJSON(requests []wallet.TransferRequest) []TransferRequestJSON {
	out := make([]TransferRequestJSON, 0, len(requests))
	for _, r := range requests {
		out = append(out, TransferRequestJSON{
			Amount:          (*hexutil.Big)(r.Amount),
			ReceiverAddress: r.ReceiverAddress,
			Type:            string(r.Type),
		})
	}
	return out
}
