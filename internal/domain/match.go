// Package domain defines the core entities of the escrow wagering engine:
// matches, side-bets, ledger accounts and the payout arithmetic that
// settles them.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MatchStatus represents the lifecycle state of a match.
type MatchStatus string

const (
	MatchCreated    MatchStatus = "Created"    // awaiting principal deposits
	MatchFunded     MatchStatus = "Funded"     // both principals deposited
	MatchInProgress MatchStatus = "InProgress" // declared; no operation enters it
	MatchResolved   MatchStatus = "Resolved"   // winner declared, payouts open
	MatchCancelled  MatchStatus = "Cancelled"  // declared; no operation enters it
)

// IsValid returns true if the status is one of the declared lifecycle states.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchCreated, MatchFunded, MatchInProgress, MatchResolved, MatchCancelled:
		return true
	}
	return false
}

// Side identifies one of the two principals of a match.
type Side string

const (
	SidePlayerA Side = "PlayerA"
	SidePlayerB Side = "PlayerB"
)

// IsValid returns true if the side is PlayerA or PlayerB.
func (s Side) IsValid() bool {
	return s == SidePlayerA || s == SidePlayerB
}

// ──────────────────────────────────────────────────────────────────────────────
// Match
// ──────────────────────────────────────────────────────────────────────────────

// Match is the escrow record for one contest between two principals. Its
// Address doubles as the vault account that custodies every deposited stake
// and side-bet.
type Match struct {
	Address          common.Address `json:"address"`
	ID               uint64         `json:"id,string"`
	Arbiter          common.Address `json:"arbiter"`
	PlayerA          common.Address `json:"player_a"`
	PlayerB          common.Address `json:"player_b"`
	Stake            uint64         `json:"stake,string"`
	TotalSideA       uint64         `json:"total_side_a,string"`
	TotalSideB       uint64         `json:"total_side_b,string"`
	Deadline         time.Time      `json:"deadline"`
	Status           MatchStatus    `json:"status"`
	Winner           *Side          `json:"winner"`
	PlayerADeposited bool           `json:"player_a_deposited"`
	PlayerBDeposited bool           `json:"player_b_deposited"`
	StakesWithdrawn  bool           `json:"stakes_withdrawn"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewMatch validates the creation parameters against now and returns a match
// in status Created with empty pools and cleared flags.
func NewMatch(arbiter, playerA, playerB common.Address, stake uint64, deadline time.Time, id uint64, now time.Time) (*Match, error) {
	if !deadline.After(now) {
		return nil, ErrInvalidDeadline
	}
	if stake == 0 {
		return nil, ErrInvalidStake
	}
	return &Match{
		Address:   DeriveMatchAddress(arbiter),
		ID:        id,
		Arbiter:   arbiter,
		PlayerA:   playerA,
		PlayerB:   playerB,
		Stake:     stake,
		Deadline:  deadline.UTC(),
		Status:    MatchCreated,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// PlayerFor returns the principal identity standing for side.
func (m *Match) PlayerFor(side Side) common.Address {
	if side == SidePlayerA {
		return m.PlayerA
	}
	return m.PlayerB
}

// SideTotal returns the pooled side-bet amount on side.
func (m *Match) SideTotal(side Side) uint64 {
	if side == SidePlayerA {
		return m.TotalSideA
	}
	return m.TotalSideB
}

// AcceptsDeposits reports whether principals may still join.
func (m *Match) AcceptsDeposits() bool {
	return m.Status == MatchCreated || m.Status == MatchFunded
}

// BettingOpen reports whether a side-bet placed at now would be accepted by
// status and deadline.
func (m *Match) BettingOpen(now time.Time) bool {
	return m.AcceptsDeposits() && now.Before(m.Deadline)
}

// CanResolve reports whether the status allows a winner declaration.
func (m *Match) CanResolve() bool {
	switch m.Status {
	case MatchCreated, MatchFunded, MatchInProgress:
		return true
	}
	return false
}

// IsResolved returns true once a winner has been declared.
func (m *Match) IsResolved() bool {
	return m.Status == MatchResolved
}

// markDeposited flips the deposit flag for side and advances the match to
// Funded once both principals are in.
func (m *Match) markDeposited(side Side) {
	if side == SidePlayerA {
		m.PlayerADeposited = true
	} else {
		m.PlayerBDeposited = true
	}
	if m.PlayerADeposited && m.PlayerBDeposited {
		m.Status = MatchFunded
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// State transitions
// ──────────────────────────────────────────────────────────────────────────────

// CheckJoin validates that caller may deposit their stake and returns the
// side they stand for. Player A is matched first, so a match configured with
// the same identity on both sides can only ever be funded on side A.
func (m *Match) CheckJoin(caller common.Address) (Side, error) {
	var side Side
	switch caller {
	case m.PlayerA:
		if m.PlayerADeposited {
			return "", ErrAlreadyDeposited
		}
		side = SidePlayerA
	case m.PlayerB:
		if m.PlayerBDeposited {
			return "", ErrAlreadyDeposited
		}
		side = SidePlayerB
	default:
		return "", ErrNotAPlayer
	}
	if !m.AcceptsDeposits() {
		return "", ErrInvalidStatus
	}
	return side, nil
}

// ApplyJoin records the deposit for side. Call only after CheckJoin and the
// stake transfer both succeeded.
func (m *Match) ApplyJoin(side Side, now time.Time) {
	m.markDeposited(side)
	m.UpdatedAt = now.UTC()
}

// CheckBet validates a side-bet of amount on side at now and returns the
// side's pool total after the bet is added.
func (m *Match) CheckBet(side Side, amount uint64, now time.Time) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if !side.IsValid() {
		return 0, ErrInvalidSide
	}
	if !m.AcceptsDeposits() {
		return 0, ErrInvalidStatus
	}
	if !now.Before(m.Deadline) {
		return 0, ErrBetsClosed
	}
	return CheckedAdd(m.SideTotal(side), amount)
}

// ApplyBet stores the new pool total computed by CheckBet.
func (m *Match) ApplyBet(side Side, newTotal uint64, now time.Time) {
	if side == SidePlayerA {
		m.TotalSideA = newTotal
	} else {
		m.TotalSideB = newTotal
	}
	m.UpdatedAt = now.UTC()
}

// Declare sets the winner and resolves the match. caller must be the arbiter
// and the deadline must have passed.
func (m *Match) Declare(caller common.Address, winner Side, now time.Time) error {
	if caller != m.Arbiter {
		return ErrNotArbiter
	}
	if !winner.IsValid() {
		return ErrInvalidSide
	}
	if m.Winner != nil || m.IsResolved() {
		return ErrAlreadyResolved
	}
	if !m.CanResolve() {
		return ErrInvalidStatus
	}
	if now.Before(m.Deadline) {
		return ErrTooEarly
	}
	w := winner
	m.Winner = &w
	m.Status = MatchResolved
	m.UpdatedAt = now.UTC()
	return nil
}

// CheckWithdraw validates that caller is the winning principal and returns the
// combined stake owed to them.
func (m *Match) CheckWithdraw(caller common.Address) (uint64, error) {
	if !m.IsResolved() {
		return 0, ErrInvalidStatus
	}
	if m.Winner == nil {
		return 0, ErrNoWinner
	}
	if caller != m.PlayerFor(*m.Winner) {
		return 0, ErrNotWinnerPlayer
	}
	if m.StakesWithdrawn {
		return 0, ErrStakesAlreadyWithdrawn
	}
	return WinnerStakeTotal(m.Stake)
}

// ApplyWithdraw marks the combined stake as paid out.
func (m *Match) ApplyWithdraw(now time.Time) {
	m.StakesWithdrawn = true
	m.UpdatedAt = now.UTC()
}
