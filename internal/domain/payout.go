package domain

import (
	"math"
	"math/bits"

	"github.com/holiman/uint256"
)

// CheckedAdd returns a+b or ErrMathOverflow when the sum does not fit in 64 bits.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrInsufficientFunds when b exceeds a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrInsufficientFunds
	}
	return diff, nil
}

// WinnerStakeTotal is what the winning principal withdraws: both stakes.
func WinnerStakeTotal(stake uint64) (uint64, error) {
	if stake > math.MaxUint64/2 {
		return 0, ErrMathOverflow
	}
	return stake * 2, nil
}

// BetShare computes a winning bettor's cut of the side-bet pool:
//
//	pool  = totalA + totalB
//	share = floor(amount × pool / winningTotal)
//
// The product is formed in 256 bits so it never overflows; the quotient is
// then narrowed back to 64 bits. The floor leaves dust in the vault, which is
// never redistributed.
func BetShare(amount, totalA, totalB, winningTotal uint64) (uint64, error) {
	if winningTotal == 0 {
		return 0, ErrNoBetsOnWinnerSide
	}
	pool, err := CheckedAdd(totalA, totalB)
	if err != nil {
		return 0, err
	}

	share, overflow := new(uint256.Int).MulDivOverflow(
		uint256.NewInt(amount),
		uint256.NewInt(pool),
		uint256.NewInt(winningTotal),
	)
	if overflow || !share.IsUint64() {
		return 0, ErrMathOverflow
	}
	return share.Uint64(), nil
}
