package domain

import (
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Derivation seeds. Changing either one relocates every stored record.
var (
	matchSeed = []byte("match")
	betSeed   = []byte("participant")
)

// DeriveMatchAddress locates the match owned by arbiter. Each arbiter has at
// most one match.
func DeriveMatchAddress(arbiter common.Address) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256(matchSeed, arbiter.Bytes()))
}

// DeriveBetAddress locates bettor's bet on match. Each bettor has at most one
// bet per match.
func DeriveBetAddress(match, bettor common.Address) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256(betSeed, match.Bytes(), bettor.Bytes()))
}

// ParseAddress decodes a 0x-prefixed hex address, rejecting malformed input
// that common.HexToAddress would silently accept.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}
