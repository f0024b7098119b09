package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Bet is a spectator's side-wager on one principal of a match. Exactly one
// Bet exists per (match, bettor); its Address is derived from that pair.
type Bet struct {
	Address   common.Address `json:"address"`
	Match     common.Address `json:"match"`
	Bettor    common.Address `json:"bettor"`
	Side      Side           `json:"side"`
	Amount    uint64         `json:"amount,string"`
	Claimed   bool           `json:"claimed"`
	PlacedAt  time.Time      `json:"placed_at"`
	ClaimedAt *time.Time     `json:"claimed_at"`
}

// NewBet builds an unclaimed bet record for bettor on match.
func NewBet(match, bettor common.Address, side Side, amount uint64, now time.Time) *Bet {
	return &Bet{
		Address:  DeriveBetAddress(match, bettor),
		Match:    match,
		Bettor:   bettor,
		Side:     side,
		Amount:   amount,
		PlacedAt: now.UTC(),
	}
}

// CheckClaim validates a payout claim by caller against the resolved match m
// and returns the share owed.
func (b *Bet) CheckClaim(m *Match, caller common.Address) (uint64, error) {
	if !m.IsResolved() {
		return 0, ErrInvalidStatus
	}
	if m.Winner == nil {
		return 0, ErrNoWinner
	}
	if b.Match != m.Address {
		return 0, ErrBetMatchMismatch
	}
	if b.Side != *m.Winner {
		return 0, ErrWrongSide
	}
	if b.Bettor != caller {
		return 0, ErrNotBettor
	}
	if b.Claimed {
		return 0, ErrAlreadyClaimed
	}
	return BetShare(b.Amount, m.TotalSideA, m.TotalSideB, m.SideTotal(*m.Winner))
}

// ApplyClaim marks the bet as paid.
func (b *Bet) ApplyClaim(now time.Time) {
	t := now.UTC()
	b.Claimed = true
	b.ClaimedAt = &t
}
