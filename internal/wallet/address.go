package wallet

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	addressPrefix         = "mn_"
	shieldedAddressPrefix = "mn_shield-addr"
)

// CheckShieldedAddress returns a non-nil error describing why addr does not
// look like a shielded address. The check is advisory only.
func CheckShieldedAddress(addr string) error {
	if !strings.HasPrefix(addr, addressPrefix) {
		return fmt.Errorf("address %q does not start with %q", addr, addressPrefix)
	}

	hrp, _, err := bech32.DecodeNoLimit(addr)
	if err != nil {
		return fmt.Errorf("address %q is not bech32m encoded: %w", addr, err)
	}
	if !strings.HasPrefix(hrp, shieldedAddressPrefix) {
		return fmt.Errorf("address %q has human readable part %q, want %s*", addr, hrp, shieldedAddressPrefix)
	}
	return nil
}
