package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GenesisMintWalletSeed is the seed of the wallet that holds the genesis mint
// on a freshly started standalone network.
const GenesisMintWalletSeed = "0000000000000000000000000000000000000000000000000000000000000001"

// NetworkID selects the address and proof encoding used by the wallet
// service. It is carried in Config rather than set process wide.
type NetworkID string

const (
	NetworkUndeployed NetworkID = "undeployed"
	NetworkDevNet     NetworkID = "devnet"
	NetworkTestNet    NetworkID = "testnet"
	NetworkMainNet    NetworkID = "mainnet"
)

func ParseNetworkID(s string) (NetworkID, error) {
	switch id := NetworkID(strings.ToLower(strings.TrimSpace(s))); id {
	case NetworkUndeployed, NetworkDevNet, NetworkTestNet, NetworkMainNet:
		return id, nil
	default:
		return "", fmt.Errorf("unknown network id %q", s)
	}
}

// Config is the set of service endpoints a wallet session talks to.
type Config struct {
	Indexer     string
	IndexerWS   string
	Node        string
	ProofServer string
	NetworkID   NetworkID

	// WalletService is the JSON-RPC endpoint of the wallet service that
	// owns the session, keys and transaction building.
	WalletService string
}

// Standalone returns the endpoints of a local standalone network.
func Standalone() Config {
	return Config{
		Indexer:       "http://127.0.0.1:8088/api/v1/graphql",
		IndexerWS:     "ws://127.0.0.1:8088/api/v1/graphql/ws",
		Node:          "http://127.0.0.1:9944",
		ProofServer:   "http://127.0.0.1:6300",
		NetworkID:     NetworkUndeployed,
		WalletService: "ws://127.0.0.1:6400",
	}
}

func (c Config) Validate() error {
	endpoints := []struct {
		name, value string
	}{
		{"indexer", c.Indexer},
		{"indexer-ws", c.IndexerWS},
		{"node", c.Node},
		{"proof-server", c.ProofServer},
		{"wallet-service", c.WalletService},
	}
	for _, e := range endpoints {
		u, err := url.Parse(e.value)
		if err != nil {
			return fmt.Errorf("invalid %s endpoint: %w", e.name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s endpoint %q", e.name, e.value)
		}
	}
	if _, err := ParseNetworkID(string(c.NetworkID)); err != nil {
		return err
	}
	return nil
}

// DecodeSeed parses a 32 byte hex wallet seed, with or without 0x prefix.
func DecodeSeed(seed string) ([]byte, error) {
	seed = strings.TrimPrefix(strings.TrimSpace(seed), "0x")
	raw, err := hexutil.Decode("0x" + seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("invalid seed: want 32 bytes, got %d", len(raw))
	}
	return raw, nil
}
