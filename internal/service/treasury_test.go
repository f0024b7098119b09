package service_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/service"
)

func TestTreasuryCredit(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	acc, err := f.treasury.Credit(f.ctx, bettor1, 250)
	require.NoError(t, err)
	require.EqualValues(t, 10_250, acc.Balance)
	require.Equal(t, domain.AccountExternal, acc.Kind)

	_, err = f.treasury.Credit(f.ctx, bettor1, 0)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.treasury.Credit(f.ctx, common.Address{}, 1)
	require.ErrorIs(t, err, domain.ErrInvalidAddress)
	_, err = f.treasury.Credit(f.ctx, m.Address, 1)
	require.ErrorIs(t, err, domain.ErrInvalidAddress)

	transfers, err := f.engine.Transfers(f.ctx, bettor1, 10, 0)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	require.Equal(t, domain.TransferAdminCredit, transfers[0].Type)
	require.True(t, transfers[0].IsMint())
}

func TestAuditReportsShortfallForUnfundedStake(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 100)

	_, err := f.engine.Join(f.ctx, playerA, m.Address)
	require.NoError(t, err)
	f.clock.Set(f.deadline)
	_, err = f.engine.DeclareWinner(f.ctx, arbiter, m.Address, domain.SidePlayerA)
	require.NoError(t, err)

	audit, err := f.treasury.AuditMatch(f.ctx, m.Address)
	require.NoError(t, err)
	require.True(t, audit.Balanced)
	require.EqualValues(t, 200, audit.Outstanding)
	require.EqualValues(t, 100, audit.Shortfall)

	// The vault cannot cover twice the stake, so the withdrawal fails whole.
	_, err = f.engine.WithdrawWinnerStake(f.ctx, playerA, m.Address)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	audits, err := f.treasury.AuditMatches(f.ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, audits, 1)
}

func TestCreditToFutureVaultBlocksCreate(t *testing.T) {
	f := newFixture(t)
	vault := domain.DeriveMatchAddress(arbiter)

	_, err := f.treasury.Credit(f.ctx, vault, 500)
	require.NoError(t, err)

	_, err = f.engine.Create(f.ctx, service.CreateMatchRequest{
		Arbiter: arbiter, PlayerA: playerA, PlayerB: playerB,
		Stake: 100, Deadline: f.deadline, ID: 7,
	})
	require.ErrorIs(t, err, domain.ErrAccountKindMismatch)

	_, err = f.engine.Match(f.ctx, vault)
	require.ErrorIs(t, err, domain.ErrMatchNotFound)
	acc, err := f.engine.Balance(f.ctx, vault)
	require.NoError(t, err)
	require.Equal(t, domain.AccountExternal, acc.Kind)
}
