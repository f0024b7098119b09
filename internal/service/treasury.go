package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
)

// TreasuryService covers the back-office side of the ledger: crediting
// external accounts from outside the system and auditing match vaults.
type TreasuryService struct {
	store repository.Store
	clock Clock
	log   *slog.Logger
}

// NewTreasuryService creates a TreasuryService.
func NewTreasuryService(store repository.Store, logger *slog.Logger) *TreasuryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TreasuryService{store: store, clock: SystemClock{}, log: logger.With("component", "treasury")}
}

// Credit mints amount into the external account to. This is the only way
// value enters the ledger.
func (s *TreasuryService) Credit(ctx context.Context, to common.Address, amount uint64) (*domain.Account, error) {
	if amount == 0 {
		return nil, fmt.Errorf("treasury.Credit: %w", domain.ErrInvalidAmount)
	}
	if to == (common.Address{}) {
		return nil, fmt.Errorf("treasury.Credit: %w", domain.ErrInvalidAddress)
	}
	t := &domain.Transfer{
		ID:        uuid.New(),
		Type:      domain.TransferAdminCredit,
		To:        to,
		Amount:    amount,
		CreatedAt: s.clock.Now(),
	}
	err := s.store.Atomically(ctx, func(tx repository.Tx) error {
		// Vaults are funded only through match operations.
		if err := tx.OpenAccount(ctx, to, domain.AccountExternal); err != nil {
			return err
		}
		return tx.Transfer(ctx, t)
	})
	if errors.Is(err, domain.ErrAccountKindMismatch) {
		return nil, fmt.Errorf("treasury.Credit: %w", domain.ErrInvalidAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("treasury.Credit: %w", err)
	}

	s.log.Info("account credited", "account", to.Hex(), "amount", amount, "transfer", t.ID)
	return s.store.GetAccount(ctx, to)
}

// AuditMatch reconciles one vault.
func (s *TreasuryService) AuditMatch(ctx context.Context, addr common.Address) (*domain.VaultAudit, error) {
	m, err := s.store.GetMatch(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("treasury.AuditMatch: %w", err)
	}
	return s.audit(ctx, m)
}

// AuditMatches reconciles a page of vaults, newest match first.
func (s *TreasuryService) AuditMatches(ctx context.Context, limit, offset int) ([]*domain.VaultAudit, error) {
	matches, err := s.store.ListMatches(ctx, "", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("treasury.AuditMatches: %w", err)
	}
	out := make([]*domain.VaultAudit, 0, len(matches))
	for _, m := range matches {
		a, err := s.audit(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("treasury.AuditMatches: %w", err)
		}
		if !a.Balanced {
			s.log.Warn("vault out of balance", "match", m.Address.Hex(),
				"balance", a.Balance, "deposited", a.Deposited, "paid_out", a.PaidOut)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *TreasuryService) audit(ctx context.Context, m *domain.Match) (*domain.VaultAudit, error) {
	bets, err := s.store.ListBets(ctx, m.Address)
	if err != nil {
		return nil, err
	}
	var balance uint64
	acc, err := s.store.GetAccount(ctx, m.Address)
	switch {
	case err == nil:
		balance = acc.Balance
	case !errors.Is(err, domain.ErrAccountNotFound):
		return nil, err
	}
	return domain.AuditVault(m, bets, balance)
}
