// Package validation rejects malformed pipeline input before any I/O happens.
package validation

import (
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/sui-wrapped/internal/model"
)

// Sui addresses are 32 bytes, hex encoded with a 0x prefix.
var suiAddressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{64}$`)

// IsValidAddress reports whether address has the canonical Sui address format.
func IsValidAddress(address string) bool {
	return suiAddressPattern.MatchString(address)
}

// NormalizeAddress validates address and returns its lowercase canonical form.
func NormalizeAddress(address string) (string, error) {
	if !IsValidAddress(address) {
		logrus.WithField("address", address).Debug("Rejected malformed address")
		return "", model.NewError(model.CodeInvalidAddress, nil, "invalid Sui address format: %q", address)
	}

	raw, err := hexutil.Decode(address)
	if err != nil {
		return "", model.NewError(model.CodeInvalidAddress, err, "invalid Sui address format: %q", address)
	}
	return common.BytesToHash(raw).Hex(), nil
}
