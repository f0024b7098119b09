package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// TestBetShareWorkedExample validates the pool split used by ClaimBetPayout.
// No I/O, pure arithmetic.
//
//	Scenario:
//	  total_side_a = 300
//	  total_side_b = 700
//	  winner       = PlayerA
//
//	Expected for a side-A stake of 150:
//	  pool  = 300 + 700          = 1000
//	  share = floor(150×1000/300) = 500
func TestBetShareWorkedExample(t *testing.T) {
	got, err := domain.BetShare(150, 300, 700, 300)
	if err != nil {
		t.Fatalf("BetShare: unexpected error: %v", err)
	}
	if got != 500 {
		t.Errorf("share = %d, want 500", got)
	}

	// Remaining side-A bettors hold 150 between them and get the other 500.
	rest, err := domain.BetShare(150, 300, 700, 300)
	if err != nil {
		t.Fatalf("BetShare: unexpected error: %v", err)
	}
	if got+rest > 1000 {
		t.Errorf("sum of shares = %d, exceeds pool 1000", got+rest)
	}
}

// TestBetShareFloorsAndLeavesDust checks that uneven splits round down and the
// payouts never exceed the pool.
func TestBetShareFloorsAndLeavesDust(t *testing.T) {
	// Three equal bettors of 1 on side A, 1 on side B: pool 4, each gets 4/3.
	var total uint64
	for i := 0; i < 3; i++ {
		share, err := domain.BetShare(1, 3, 1, 3)
		if err != nil {
			t.Fatalf("BetShare: %v", err)
		}
		if share != 1 {
			t.Errorf("share = %d, want 1", share)
		}
		total += share
	}
	if dust := uint64(4) - total; dust != 1 {
		t.Errorf("dust = %d, want 1", dust)
	}
}

func TestBetShareWideIntermediate(t *testing.T) {
	// amount × pool overflows 64 bits but the quotient fits.
	amount := uint64(math.MaxUint64 / 2)
	share, err := domain.BetShare(amount, amount, amount, amount)
	if err != nil {
		t.Fatalf("BetShare: unexpected error: %v", err)
	}
	if want := amount * 2; share != want {
		t.Errorf("share = %d, want %d", share, want)
	}
}

func TestBetShareErrors(t *testing.T) {
	tests := []struct {
		name                          string
		amount, totalA, totalB, winTo uint64
		want                          error
	}{
		{"empty winning side", 10, 0, 100, 0, domain.ErrNoBetsOnWinnerSide},
		{"pool overflows", 1, math.MaxUint64, 1, math.MaxUint64, domain.ErrMathOverflow},
		{"share does not narrow", math.MaxUint64, math.MaxUint64 - 1, 1, 1, domain.ErrMathOverflow},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.BetShare(tc.amount, tc.totalA, tc.totalB, tc.winTo)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWinnerStakeTotal(t *testing.T) {
	got, err := domain.WinnerStakeTotal(100)
	if err != nil || got != 200 {
		t.Errorf("WinnerStakeTotal(100) = %d, %v, want 200, nil", got, err)
	}
	if _, err := domain.WinnerStakeTotal(math.MaxUint64/2 + 1); !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("err = %v, want ErrMathOverflow", err)
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := domain.CheckedAdd(math.MaxUint64, 1); !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("CheckedAdd overflow err = %v", err)
	}
	if _, err := domain.CheckedSub(1, 2); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("CheckedSub underflow err = %v", err)
	}
	if v, _ := domain.CheckedAdd(2, 3); v != 5 {
		t.Errorf("CheckedAdd(2,3) = %d, want 5", v)
	}
}
