package docshield

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress brings a wallet address into its canonical lowercase
// hex form. All store keys use this form.
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("invalid wallet address: %s", address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// IsAddress reports whether s looks like a wallet address.
func IsAddress(s string) bool {
	return common.IsHexAddress(s)
}
