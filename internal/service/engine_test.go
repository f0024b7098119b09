package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/config"
	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository/memory"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

var (
	arbiter = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	playerA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	playerB = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	bettor1 = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bettor2 = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	bettor3 = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.EventType
}

func (p *recordingPublisher) PublishMatchEvent(_ context.Context, ev *domain.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev.Type)
	return nil
}

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	engine   *service.MatchEngine
	treasury *service.TreasuryService
	clock    *fakeClock
	pub      *recordingPublisher
	deadline time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{Ledger: config.LedgerConfig{LockTTL: 5 * time.Second}}
	f := &fixture{
		ctx:   context.Background(),
		store: memory.NewStore(),
		clock: &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		pub:   &recordingPublisher{},
	}
	f.deadline = f.clock.Now().Add(time.Hour)
	f.engine = service.NewMatchEngine(f.store, service.NewLocalLocker(), cfg, nil)
	f.engine.SetClock(f.clock)
	f.engine.AddPublisher(f.pub)
	f.treasury = service.NewTreasuryService(f.store, nil)

	for _, who := range []common.Address{playerA, playerB, bettor1, bettor2, bettor3} {
		_, err := f.treasury.Credit(f.ctx, who, 10_000)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) create(t *testing.T, stake uint64) *domain.Match {
	t.Helper()
	m, err := f.engine.Create(f.ctx, service.CreateMatchRequest{
		Arbiter:  arbiter,
		PlayerA:  playerA,
		PlayerB:  playerB,
		Stake:    stake,
		Deadline: f.deadline,
		ID:       7,
	})
	require.NoError(t, err)
	return m
}

func (f *fixture) balance(t *testing.T, who common.Address) uint64 {
	t.Helper()
	acc, err := f.engine.Balance(f.ctx, who)
	require.NoError(t, err)
	return acc.Balance
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	require.Equal(t, domain.MatchCreated, m.Status)
	require.Equal(t, domain.DeriveMatchAddress(arbiter), m.Address)

	vault, err := f.store.GetAccount(f.ctx, m.Address)
	require.NoError(t, err)
	require.Equal(t, domain.AccountVault, vault.Kind)
	require.Zero(t, vault.Balance)

	_, err = f.engine.Create(f.ctx, service.CreateMatchRequest{
		Arbiter: arbiter, PlayerA: playerA, PlayerB: playerB, Stake: 1, Deadline: f.deadline,
	})
	require.ErrorIs(t, err, domain.ErrMatchExists)

	_, err = f.engine.Create(f.ctx, service.CreateMatchRequest{
		Arbiter: playerA, PlayerA: playerA, PlayerB: playerB, Stake: 1, Deadline: f.clock.Now(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidDeadline)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	_, err := f.engine.Join(f.ctx, bettor1, m.Address)
	require.ErrorIs(t, err, domain.ErrNotAPlayer)

	got, err := f.engine.Join(f.ctx, playerA, m.Address)
	require.NoError(t, err)
	require.True(t, got.PlayerADeposited)
	require.Equal(t, domain.MatchCreated, got.Status)
	require.EqualValues(t, 9_900, f.balance(t, playerA))

	_, err = f.engine.Join(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrAlreadyDeposited)
	require.EqualValues(t, 9_900, f.balance(t, playerA))

	got, err = f.engine.Join(f.ctx, playerB, m.Address)
	require.NoError(t, err)
	require.Equal(t, domain.MatchFunded, got.Status)
	require.EqualValues(t, 200, f.balance(t, m.Address))

	_, err = f.engine.Join(f.ctx, playerA, common.HexToAddress("0xdead"))
	require.ErrorIs(t, err, domain.ErrMatchNotFound)
}

func TestJoinWithoutFundsLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 20_000)

	_, err := f.engine.Join(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := f.engine.Match(f.ctx, m.Address)
	require.NoError(t, err)
	require.False(t, got.PlayerADeposited)
	require.EqualValues(t, 10_000, f.balance(t, playerA))
	require.Zero(t, f.balance(t, m.Address))
}

func TestPlaceBet(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	bet, err := f.engine.PlaceBet(f.ctx, bettor1, m.Address, domain.SidePlayerA, 300)
	require.NoError(t, err)
	require.Equal(t, domain.DeriveBetAddress(m.Address, bettor1), bet.Address)

	got, err := f.engine.Match(f.ctx, m.Address)
	require.NoError(t, err)
	require.EqualValues(t, 300, got.TotalSideA)
	require.Zero(t, got.TotalSideB)

	_, err = f.engine.PlaceBet(f.ctx, bettor1, m.Address, domain.SidePlayerB, 50)
	require.ErrorIs(t, err, domain.ErrBetExists)
	require.EqualValues(t, 9_700, f.balance(t, bettor1))

	_, err = f.engine.PlaceBet(f.ctx, bettor2, m.Address, domain.SidePlayerA, 0)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	f.clock.Set(f.deadline)
	_, err = f.engine.PlaceBet(f.ctx, bettor2, m.Address, domain.SidePlayerA, 10)
	require.ErrorIs(t, err, domain.ErrBetsClosed)
	require.EqualValues(t, 10_000, f.balance(t, bettor2))
}

func TestDeclareWinner(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	_, err := f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.ErrorIs(t, err, domain.ErrTooEarly)

	f.clock.Set(f.deadline)
	_, err = f.engine.DeclareWinner(f.ctx, playerA, m.Address, domain.SidePlayerA)
	require.ErrorIs(t, err, domain.ErrNotArbiter)

	// No deposits and no bets: resolution is still allowed.
	got, err := f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerB)
	require.NoError(t, err)
	require.Equal(t, domain.MatchResolved, got.Status)

	_, err = f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.ErrorIs(t, err, domain.ErrAlreadyResolved)

	_, err = f.engine.Join(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

// TestSettlementWorkedExample runs a full match:
//
//	stake = 100, side A = 150 + 150, side B = 700, winner = PlayerA
//	winner stake = 200, each side-A bettor gets floor(150×1000/300) = 500
func TestSettlementWorkedExample(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	_, err := f.engine.Join(f.ctx, playerA, m.Address)
	require.NoError(t, err)
	_, err = f.engine.Join(f.ctx, playerB, m.Address)
	require.NoError(t, err)

	_, err = f.engine.PlaceBet(f.ctx, bettor1, m.Address, domain.SidePlayerA, 150)
	require.NoError(t, err)
	_, err = f.engine.PlaceBet(f.ctx, bettor2, m.Address, domain.SidePlayerA, 150)
	require.NoError(t, err)
	_, err = f.engine.PlaceBet(f.ctx, bettor3, m.Address, domain.SidePlayerB, 700)
	require.NoError(t, err)

	_, err = f.engine.WithdrawWinnerStake(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	f.clock.Set(f.deadline.Add(time.Minute))
	_, err = f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.NoError(t, err)

	_, err = f.engine.WithdrawWinnerStake(f.ctx, playerB, m.Address)
	require.ErrorIs(t, err, domain.ErrNotWinnerPlayer)
	paid, err := f.engine.WithdrawWinnerStake(f.ctx, playerA, m.Address)
	require.NoError(t, err)
	require.EqualValues(t, 200, paid)
	require.EqualValues(t, 10_100, f.balance(t, playerA))
	_, err = f.engine.WithdrawWinnerStake(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrStakesAlreadyWithdrawn)

	loser := domain.DeriveBetAddress(m.Address, bettor3)
	_, err = f.engine.ClaimBetPayout(f.ctx, bettor3, m.Address, loser)
	require.ErrorIs(t, err, domain.ErrWrongSide)

	bet1 := domain.DeriveBetAddress(m.Address, bettor1)
	_, err = f.engine.ClaimBetPayout(f.ctx, bettor2, m.Address, bet1)
	require.ErrorIs(t, err, domain.ErrNotBettor)

	share, err := f.engine.ClaimBetPayout(f.ctx, bettor1, m.Address, bet1)
	require.NoError(t, err)
	require.EqualValues(t, 500, share)
	require.EqualValues(t, 10_350, f.balance(t, bettor1))

	_, err = f.engine.ClaimBetPayout(f.ctx, bettor1, m.Address, bet1)
	require.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	share, err = f.engine.ClaimBetPayout(f.ctx, bettor2, m.Address, domain.DeriveBetAddress(m.Address, bettor2))
	require.NoError(t, err)
	require.EqualValues(t, 500, share)

	require.Zero(t, f.balance(t, m.Address))
	audit, err := f.treasury.AuditMatch(f.ctx, m.Address)
	require.NoError(t, err)
	require.True(t, audit.Balanced)
	require.EqualValues(t, 1_200, audit.Deposited)
	require.EqualValues(t, 1_200, audit.PaidOut)
	require.Zero(t, audit.Dust)

	require.Equal(t, []domain.EventType{
		domain.EventMatchCreated,
		domain.EventPlayerJoined,
		domain.EventPlayerJoined, domain.EventMatchFunded,
		domain.EventBetPlaced, domain.EventBetPlaced, domain.EventBetPlaced,
		domain.EventWinnerDeclared,
		domain.EventStakeWithdrawn,
		domain.EventPayoutClaimed, domain.EventPayoutClaimed,
	}, f.pub.events)
}

// TestConservationLeavesDust checks that value out never exceeds value in and
// the floor remainder stays in the vault.
func TestConservationLeavesDust(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	for _, who := range []common.Address{playerA, playerB} {
		_, err := f.engine.Join(f.ctx, who, m.Address)
		require.NoError(t, err)
	}
	for _, who := range []common.Address{bettor1, bettor2, bettor3} {
		_, err := f.engine.PlaceBet(f.ctx, who, m.Address, domain.SidePlayerA, 1)
		require.NoError(t, err)
	}
	_, err := f.engine.PlaceBet(f.ctx, playerA, m.Address, domain.SidePlayerB, 1)
	require.NoError(t, err)

	f.clock.Set(f.deadline)
	_, err = f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.NoError(t, err)

	var out uint64
	for _, who := range []common.Address{bettor1, bettor2, bettor3} {
		share, err := f.engine.ClaimBetPayout(f.ctx, who, m.Address, domain.DeriveBetAddress(m.Address, who))
		require.NoError(t, err)
		out += share
	}
	require.EqualValues(t, 3, out)
	require.EqualValues(t, 201, f.balance(t, m.Address))

	audit, err := f.treasury.AuditMatch(f.ctx, m.Address)
	require.NoError(t, err)
	require.True(t, audit.Balanced)
	require.EqualValues(t, 1, audit.Dust)
}

func TestClaimFailsWhenWinningSideEmpty(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	_, err := f.engine.PlaceBet(f.ctx, bettor1, m.Address, domain.SidePlayerB, 10)
	require.NoError(t, err)
	f.clock.Set(f.deadline)
	_, err = f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.NoError(t, err)

	_, err = f.engine.ClaimBetPayout(f.ctx, bettor1, m.Address, domain.DeriveBetAddress(m.Address, bettor1))
	require.ErrorIs(t, err, domain.ErrWrongSide)

	_, err = f.engine.ClaimBetPayout(f.ctx, bettor2, m.Address, domain.DeriveBetAddress(m.Address, bettor2))
	require.ErrorIs(t, err, domain.ErrBetNotFound)
}

func TestConflictingOperationIsRejected(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	locker := service.NewLocalLocker()
	cfg := &config.Config{Ledger: config.LedgerConfig{LockTTL: time.Minute}}
	engine := service.NewMatchEngine(f.store, locker, cfg, nil)

	unlock, err := locker.Acquire(f.ctx, "match:"+m.Address.Hex(), time.Minute)
	require.NoError(t, err)

	_, err = engine.Join(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrConflict)
	require.True(t, domain.IsConflict(err))

	unlock()
	_, err = engine.Join(f.ctx, playerA, m.Address)
	require.NoError(t, err)
}
