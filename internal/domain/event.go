package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType names a committed change to a match.
type EventType string

const (
	EventMatchCreated   EventType = "match_created"
	EventPlayerJoined   EventType = "player_joined"
	EventMatchFunded    EventType = "match_funded"
	EventBetPlaced      EventType = "bet_placed"
	EventBettingClosed  EventType = "betting_closed"
	EventWinnerDeclared EventType = "winner_declared"
	EventStakeWithdrawn EventType = "stake_withdrawn"
	EventPayoutClaimed  EventType = "payout_claimed"
)

// MatchEvent is published after a match operation commits. It is a
// notification only; the ledger remains the source of truth.
type MatchEvent struct {
	Type       EventType      `json:"type"`
	Match      common.Address `json:"match"`
	Actor      common.Address `json:"actor"`
	Side       Side           `json:"side,omitempty"`
	Amount     uint64         `json:"amount,string"`
	Status     MatchStatus    `json:"status"`
	TotalSideA uint64         `json:"total_side_a,string"`
	TotalSideB uint64         `json:"total_side_b,string"`
	At         time.Time      `json:"at"`
}

// NewMatchEvent snapshots m into an event of type typ.
func NewMatchEvent(typ EventType, m *Match, actor common.Address, at time.Time) *MatchEvent {
	return &MatchEvent{
		Type:       typ,
		Match:      m.Address,
		Actor:      actor,
		Status:     m.Status,
		TotalSideA: m.TotalSideA,
		TotalSideB: m.TotalSideB,
		At:         at.UTC(),
	}
}
