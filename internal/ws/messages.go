// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs pushed to connected clients.
package ws

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMatchEvent MsgType = "match_event"
	MsgTypeWelcome    MsgType = "welcome"
	MsgTypeError      MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// MatchEventMessage: one committed match operation
// ──────────────────────────────────────────────────────────────────────────────

// MatchEventMessage wraps a domain.MatchEvent with display-unit amounts so
// browsers do not need to handle 64-bit integers.
type MatchEventMessage struct {
	Type          MsgType            `json:"type"`
	Event         *domain.MatchEvent `json:"event"`
	AmountDisplay string             `json:"amount_display"`
	SideADisplay  string             `json:"side_a_display"`
	SideBDisplay  string             `json:"side_b_display"`
	Timestamp     time.Time          `json:"timestamp"`
}

func newMatchEventMessage(ev *domain.MatchEvent, decimals int32) MatchEventMessage {
	return MatchEventMessage{
		Type:          MsgTypeMatchEvent,
		Event:         ev,
		AmountDisplay: domain.FormatUnits(ev.Amount, decimals),
		SideADisplay:  domain.FormatUnits(ev.TotalSideA, decimals),
		SideBDisplay:  domain.FormatUnits(ev.TotalSideB, decimals),
		Timestamp:     time.Now().UTC(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// WelcomeMessage: sent once after the upgrade
// ──────────────────────────────────────────────────────────────────────────────

// WelcomeMessage echoes what the connection was bound to. Identity is the
// zero address for anonymous clients; Match is zero when following all.
type WelcomeMessage struct {
	Type     MsgType        `json:"type"`
	Identity common.Address `json:"identity"`
	Match    common.Address `json:"match"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage: sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
