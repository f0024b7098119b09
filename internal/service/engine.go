package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into MatchEngine to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// Clock supplies the current instant for deadline checks.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Locker grants short-lived exclusive ownership of a key. Acquire must not
// wait: a held key fails with domain.ErrConflict. Implemented by
// LocalLocker and the Redis LockManager.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Publisher receives committed match events. Implemented by ws.Hub and the
// Redis EventBus.
type Publisher interface {
	PublishMatchEvent(ctx context.Context, ev *domain.MatchEvent) error
}

const publishTimeout = 3 * time.Second

// ──────────────────────────────────────────────────────────────────────────────
// MatchEngine
// ──────────────────────────────────────────────────────────────────────────────

// MatchEngine runs the match lifecycle: create, join, placeBet, declareWinner,
// withdrawWinnerStake and claimBetPayout. Each operation validates every
// precondition, moves funds and writes the records inside one ledger
// transaction, so a failure leaves no partial effect.
type MatchEngine struct {
	store      repository.Store
	locker     Locker
	clock      Clock
	publishers []Publisher
	lockTTL    time.Duration
	log        *slog.Logger
}

// NewMatchEngine creates a MatchEngine over store. locker may be nil, in
// which case only the store's own record locks serialise operations.
func NewMatchEngine(store repository.Store, locker Locker, cfg *config.Config, logger *slog.Logger) *MatchEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchEngine{
		store:   store,
		locker:  locker,
		clock:   SystemClock{},
		lockTTL: cfg.Ledger.LockTTL,
		log:     logger.With("component", "match_engine"),
	}
}

// SetClock replaces the time source; tests use it to cross the deadline.
func (e *MatchEngine) SetClock(c Clock) { e.clock = c }

// AddPublisher registers a sink for committed events.
func (e *MatchEngine) AddPublisher(p Publisher) { e.publishers = append(e.publishers, p) }

// Initialize is a readiness probe and has no side effects.
func (e *MatchEngine) Initialize(ctx context.Context) error {
	return ctx.Err()
}

// ──────────────────────────────────────────────────────────────────────────────
// Create
// ──────────────────────────────────────────────────────────────────────────────

// CreateMatchRequest carries the inputs for Create. Arbiter is the
// authenticated caller.
type CreateMatchRequest struct {
	Arbiter  common.Address
	PlayerA  common.Address
	PlayerB  common.Address
	Stake    uint64
	Deadline time.Time
	ID       uint64
}

// Create opens a new match owned by req.Arbiter together with its vault.
// An arbiter owns at most one match.
func (e *MatchEngine) Create(ctx context.Context, req CreateMatchRequest) (*domain.Match, error) {
	now := e.clock.Now()
	m, err := domain.NewMatch(req.Arbiter, req.PlayerA, req.PlayerB, req.Stake, req.Deadline, req.ID, now)
	if err != nil {
		return nil, fmt.Errorf("match_engine.Create: %w", err)
	}

	unlock, err := e.acquire(ctx, m.Address)
	if err != nil {
		return nil, fmt.Errorf("match_engine.Create: %w", err)
	}
	defer unlock()

	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		if err := tx.InsertMatch(ctx, m); err != nil {
			return err
		}
		return tx.OpenAccount(ctx, m.Address, domain.AccountVault)
	})
	if err != nil {
		return nil, fmt.Errorf("match_engine.Create: %w", err)
	}

	e.log.Info("match created",
		"match", m.Address.Hex(), "id", m.ID, "arbiter", m.Arbiter.Hex(),
		"stake", m.Stake, "deadline", m.Deadline)
	e.publish(ctx, domain.NewMatchEvent(domain.EventMatchCreated, m, m.Arbiter, now))
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Join
// ──────────────────────────────────────────────────────────────────────────────

// Join deposits caller's stake into the vault. caller must be one of the two
// principals and must not have deposited yet; the match becomes Funded once
// both have.
func (e *MatchEngine) Join(ctx context.Context, caller, matchAddr common.Address) (*domain.Match, error) {
	unlock, err := e.acquire(ctx, matchAddr)
	if err != nil {
		return nil, fmt.Errorf("match_engine.Join: %w", err)
	}
	defer unlock()

	now := e.clock.Now()
	var m *domain.Match
	var side domain.Side
	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		if m, err = tx.LockMatch(ctx, matchAddr); err != nil {
			return err
		}
		if side, err = m.CheckJoin(caller); err != nil {
			return err
		}
		if err = tx.Transfer(ctx, newTransfer(domain.TransferStakeDeposit, caller, m.Address, m.Stake, m.Address, now)); err != nil {
			return err
		}
		m.ApplyJoin(side, now)
		return tx.UpdateMatch(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("match_engine.Join: %w", err)
	}

	e.log.Info("player joined", "match", m.Address.Hex(), "player", caller.Hex(), "side", side, "status", m.Status)
	ev := domain.NewMatchEvent(domain.EventPlayerJoined, m, caller, now)
	ev.Side, ev.Amount = side, m.Stake
	e.publish(ctx, ev)
	if m.Status == domain.MatchFunded {
		e.publish(ctx, domain.NewMatchEvent(domain.EventMatchFunded, m, caller, now))
	}
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// PlaceBet
// ──────────────────────────────────────────────────────────────────────────────

// PlaceBet records caller's side-bet and moves amount into the vault. Bets
// are accepted strictly before the deadline, and a bettor may bet only once
// per match: a second attempt fails with ErrBetExists instead of topping up.
func (e *MatchEngine) PlaceBet(ctx context.Context, caller, matchAddr common.Address, side domain.Side, amount uint64) (*domain.Bet, error) {
	unlock, err := e.acquire(ctx, matchAddr)
	if err != nil {
		return nil, fmt.Errorf("match_engine.PlaceBet: %w", err)
	}
	defer unlock()

	now := e.clock.Now()
	var m *domain.Match
	var bet *domain.Bet
	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		if m, err = tx.LockMatch(ctx, matchAddr); err != nil {
			return err
		}
		newTotal, err := m.CheckBet(side, amount, now)
		if err != nil {
			return err
		}

		bet = domain.NewBet(m.Address, caller, side, amount, now)
		if _, err = tx.LockBet(ctx, bet.Address); err == nil {
			return domain.ErrBetExists
		} else if !errors.Is(err, domain.ErrBetNotFound) {
			return err
		}

		if err = tx.Transfer(ctx, newTransfer(domain.TransferBetPlaced, caller, m.Address, amount, m.Address, now)); err != nil {
			return err
		}
		if err = tx.InsertBet(ctx, bet); err != nil {
			return err
		}
		m.ApplyBet(side, newTotal, now)
		return tx.UpdateMatch(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("match_engine.PlaceBet: %w", err)
	}

	e.log.Info("bet placed", "match", m.Address.Hex(), "bettor", caller.Hex(), "side", side, "amount", amount)
	ev := domain.NewMatchEvent(domain.EventBetPlaced, m, caller, now)
	ev.Side, ev.Amount = side, amount
	e.publish(ctx, ev)
	return bet, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// DeclareWinner
// ──────────────────────────────────────────────────────────────────────────────

// DeclareWinner resolves the match in favour of winner. Only the arbiter may
// call it, only once, and only at or after the deadline.
func (e *MatchEngine) DeclareWinner(ctx context.Context, caller, matchAddr common.Address, winner domain.Side) (*domain.Match, error) {
	unlock, err := e.acquire(ctx, matchAddr)
	if err != nil {
		return nil, fmt.Errorf("match_engine.DeclareWinner: %w", err)
	}
	defer unlock()

	now := e.clock.Now()
	var m *domain.Match
	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		if m, err = tx.LockMatch(ctx, matchAddr); err != nil {
			return err
		}
		if err = m.Declare(caller, winner, now); err != nil {
			return err
		}
		return tx.UpdateMatch(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("match_engine.DeclareWinner: %w", err)
	}

	e.log.Info("winner declared", "match", m.Address.Hex(), "winner", winner)
	ev := domain.NewMatchEvent(domain.EventWinnerDeclared, m, caller, now)
	ev.Side = winner
	e.publish(ctx, ev)
	return m, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// WithdrawWinnerStake
// ──────────────────────────────────────────────────────────────────────────────

// WithdrawWinnerStake pays both stakes to the winning principal. The losing
// principal's deposit is forfeited to the winner; nothing goes to a house.
func (e *MatchEngine) WithdrawWinnerStake(ctx context.Context, caller, matchAddr common.Address) (uint64, error) {
	unlock, err := e.acquire(ctx, matchAddr)
	if err != nil {
		return 0, fmt.Errorf("match_engine.WithdrawWinnerStake: %w", err)
	}
	defer unlock()

	now := e.clock.Now()
	var m *domain.Match
	var total uint64
	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		if m, err = tx.LockMatch(ctx, matchAddr); err != nil {
			return err
		}
		if total, err = m.CheckWithdraw(caller); err != nil {
			return err
		}
		if err = tx.Transfer(ctx, newTransfer(domain.TransferStakePayout, m.Address, caller, total, m.Address, now)); err != nil {
			return err
		}
		m.ApplyWithdraw(now)
		return tx.UpdateMatch(ctx, m)
	})
	if err != nil {
		return 0, fmt.Errorf("match_engine.WithdrawWinnerStake: %w", err)
	}

	e.log.Info("stake withdrawn", "match", m.Address.Hex(), "winner", caller.Hex(), "amount", total)
	ev := domain.NewMatchEvent(domain.EventStakeWithdrawn, m, caller, now)
	ev.Side, ev.Amount = *m.Winner, total
	e.publish(ctx, ev)
	return total, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// ClaimBetPayout
// ──────────────────────────────────────────────────────────────────────────────

// ClaimBetPayout pays a winning bettor their share of the side-bet pool,
// floor(amount × pool / winningTotal). The remainder left by flooring stays
// in the vault.
func (e *MatchEngine) ClaimBetPayout(ctx context.Context, caller, matchAddr, betAddr common.Address) (uint64, error) {
	unlock, err := e.acquire(ctx, matchAddr)
	if err != nil {
		return 0, fmt.Errorf("match_engine.ClaimBetPayout: %w", err)
	}
	defer unlock()

	now := e.clock.Now()
	var m *domain.Match
	var bet *domain.Bet
	var share uint64
	err = e.store.Atomically(ctx, func(tx repository.Tx) error {
		var err error
		if m, err = tx.LockMatch(ctx, matchAddr); err != nil {
			return err
		}
		if bet, err = tx.LockBet(ctx, betAddr); err != nil {
			return err
		}
		if share, err = bet.CheckClaim(m, caller); err != nil {
			return err
		}
		if err = tx.Transfer(ctx, newTransfer(domain.TransferBetPayout, m.Address, caller, share, m.Address, now)); err != nil {
			return err
		}
		bet.ApplyClaim(now)
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return 0, fmt.Errorf("match_engine.ClaimBetPayout: %w", err)
	}

	e.log.Info("payout claimed", "match", m.Address.Hex(), "bettor", caller.Hex(), "amount", share)
	ev := domain.NewMatchEvent(domain.EventPayoutClaimed, m, caller, now)
	ev.Side, ev.Amount = bet.Side, share
	e.publish(ctx, ev)
	return share, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────────────────────────

// Match returns the committed state of a match.
func (e *MatchEngine) Match(ctx context.Context, addr common.Address) (*domain.Match, error) {
	return e.store.GetMatch(ctx, addr)
}

// Bet returns the committed state of a bet.
func (e *MatchEngine) Bet(ctx context.Context, addr common.Address) (*domain.Bet, error) {
	return e.store.GetBet(ctx, addr)
}

// Balance returns the balance of addr; accounts never credited read as zero.
func (e *MatchEngine) Balance(ctx context.Context, addr common.Address) (*domain.Account, error) {
	acc, err := e.store.GetAccount(ctx, addr)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return &domain.Account{Address: addr, Kind: domain.AccountExternal}, nil
	}
	return acc, err
}

// Transfers returns the audit trail of addr, newest first.
func (e *MatchEngine) Transfers(ctx context.Context, addr common.Address, limit, offset int) ([]*domain.Transfer, error) {
	return e.store.ListTransfers(ctx, addr, limit, offset)
}

// Now returns the engine clock reading.
func (e *MatchEngine) Now() time.Time { return e.clock.Now() }

// AnnounceClosedBetting publishes betting_closed for every unresolved match
// whose deadline fell in (after, upTo] and returns how many it announced.
// It reads state only; resolution remains the arbiter's call.
func (e *MatchEngine) AnnounceClosedBetting(ctx context.Context, after, upTo time.Time) (int, error) {
	matches, err := e.store.ListDeadlines(ctx, after, upTo)
	if err != nil {
		return 0, fmt.Errorf("match_engine.AnnounceClosedBetting: %w", err)
	}
	for _, m := range matches {
		e.publish(ctx, domain.NewMatchEvent(domain.EventBettingClosed, m, common.Address{}, m.Deadline))
	}
	return len(matches), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

// acquire takes the optional cross-process lock on a match.
func (e *MatchEngine) acquire(ctx context.Context, matchAddr common.Address) (func(), error) {
	if e.locker == nil {
		return func() {}, nil
	}
	return e.locker.Acquire(ctx, "match:"+matchAddr.Hex(), e.lockTTL)
}

// publish fans ev out to every publisher. Failures are logged and never
// affect the committed operation.
func (e *MatchEngine) publish(ctx context.Context, ev *domain.MatchEvent) {
	if len(e.publishers) == 0 {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	for _, p := range e.publishers {
		if err := p.PublishMatchEvent(pctx, ev); err != nil {
			e.log.Warn("publish event failed", "type", ev.Type, "match", ev.Match.Hex(), "err", err)
		}
	}
}

func newTransfer(typ domain.TransferType, from, to common.Address, amount uint64, match common.Address, now time.Time) *domain.Transfer {
	return &domain.Transfer{
		ID:        uuid.New(),
		Type:      typ,
		From:      from,
		To:        to,
		Amount:    amount,
		Match:     match,
		CreatedAt: now.UTC(),
	}
}
