package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Store contract
// ──────────────────────────────────────────────────────────────────────────────

// Reader exposes committed ledger state outside of a transaction.
type Reader interface {
	GetMatch(ctx context.Context, addr common.Address) (*domain.Match, error)
	// ListMatches pages through matches newest first. An empty status
	// matches every status.
	ListMatches(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.Match, error)
	CountMatches(ctx context.Context, status domain.MatchStatus) (int, error)
	// ListDeadlines returns unresolved matches whose deadline is in (after, upTo].
	ListDeadlines(ctx context.Context, after, upTo time.Time) ([]*domain.Match, error)
	GetBet(ctx context.Context, addr common.Address) (*domain.Bet, error)
	ListBets(ctx context.Context, match common.Address) ([]*domain.Bet, error)
	GetAccount(ctx context.Context, addr common.Address) (*domain.Account, error)
	ListTransfers(ctx context.Context, account common.Address, limit, offset int) ([]*domain.Transfer, error)
}

// Tx is the write view handed to a Store.Atomically callback. Records read
// through Tx are locked until the transaction ends; a record already locked by
// another transaction yields domain.ErrConflict immediately.
type Tx interface {
	LockMatch(ctx context.Context, addr common.Address) (*domain.Match, error)
	InsertMatch(ctx context.Context, m *domain.Match) error
	UpdateMatch(ctx context.Context, m *domain.Match) error

	LockBet(ctx context.Context, addr common.Address) (*domain.Bet, error)
	InsertBet(ctx context.Context, b *domain.Bet) error
	UpdateBet(ctx context.Context, b *domain.Bet) error

	// OpenAccount allocates a zero-balance account if none exists. An existing
	// account of another kind yields domain.ErrAccountKindMismatch.
	OpenAccount(ctx context.Context, addr common.Address, kind domain.AccountKind) error
	// Transfer applies t to both balances and records it for audit.
	Transfer(ctx context.Context, t *domain.Transfer) error
}

// Store is the transactional ledger behind the match engine. fn runs
// atomically: every write made through its Tx commits, or none does.
type Store interface {
	Reader
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// ──────────────────────────────────────────────────────────────────────────────
// PostgresStore
// ──────────────────────────────────────────────────────────────────────────────

// PostgresStore implements Store on PostgreSQL through the per-table
// repositories. Row locks use FOR UPDATE NOWAIT so contention surfaces as
// domain.ErrConflict instead of blocking.
type PostgresStore struct {
	db      *sqlx.DB
	matches *MatchRepository
	bets    *BetRepository
	ledger  *LedgerRepository
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		matches: NewMatchRepository(db),
		bets:    NewBetRepository(db),
		ledger:  NewLedgerRepository(db),
	}
}

// Atomically runs fn inside a single database transaction.
func (s *PostgresStore) Atomically(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store.Atomically: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&pgTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store.Atomically: commit: %w", mapPQError(err))
	}
	return nil
}

// GetMatch implements Reader.
func (s *PostgresStore) GetMatch(ctx context.Context, addr common.Address) (*domain.Match, error) {
	return s.matches.Get(ctx, s.db, addr, false)
}

// ListMatches implements Reader.
func (s *PostgresStore) ListMatches(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.Match, error) {
	return s.matches.List(ctx, status, limit, offset)
}

// CountMatches implements Reader.
func (s *PostgresStore) CountMatches(ctx context.Context, status domain.MatchStatus) (int, error) {
	return s.matches.Count(ctx, status)
}

// ListDeadlines implements Reader.
func (s *PostgresStore) ListDeadlines(ctx context.Context, after, upTo time.Time) ([]*domain.Match, error) {
	return s.matches.ListDeadlines(ctx, after, upTo)
}

// GetBet implements Reader.
func (s *PostgresStore) GetBet(ctx context.Context, addr common.Address) (*domain.Bet, error) {
	return s.bets.Get(ctx, s.db, addr, false)
}

// ListBets implements Reader.
func (s *PostgresStore) ListBets(ctx context.Context, match common.Address) ([]*domain.Bet, error) {
	return s.bets.ListByMatch(ctx, match)
}

// GetAccount implements Reader.
func (s *PostgresStore) GetAccount(ctx context.Context, addr common.Address) (*domain.Account, error) {
	return s.ledger.Get(ctx, addr)
}

// ListTransfers implements Reader.
func (s *PostgresStore) ListTransfers(ctx context.Context, account common.Address, limit, offset int) ([]*domain.Transfer, error) {
	return s.ledger.Transfers(ctx, account, limit, offset)
}

// pgTx binds the repositories to one *sqlx.Tx.
type pgTx struct {
	s  *PostgresStore
	tx *sqlx.Tx
}

func (t *pgTx) LockMatch(ctx context.Context, addr common.Address) (*domain.Match, error) {
	return t.s.matches.Get(ctx, t.tx, addr, true)
}

func (t *pgTx) InsertMatch(ctx context.Context, m *domain.Match) error {
	return t.s.matches.Create(ctx, t.tx, m)
}

func (t *pgTx) UpdateMatch(ctx context.Context, m *domain.Match) error {
	return t.s.matches.Update(ctx, t.tx, m)
}

func (t *pgTx) LockBet(ctx context.Context, addr common.Address) (*domain.Bet, error) {
	return t.s.bets.Get(ctx, t.tx, addr, true)
}

func (t *pgTx) InsertBet(ctx context.Context, b *domain.Bet) error {
	return t.s.bets.Create(ctx, t.tx, b)
}

func (t *pgTx) UpdateBet(ctx context.Context, b *domain.Bet) error {
	return t.s.bets.Update(ctx, t.tx, b)
}

func (t *pgTx) OpenAccount(ctx context.Context, addr common.Address, kind domain.AccountKind) error {
	return t.s.ledger.Open(ctx, t.tx, addr, kind)
}

func (t *pgTx) Transfer(ctx context.Context, tr *domain.Transfer) error {
	accounts, err := t.s.ledger.Lock(ctx, t.tx, tr.From, tr.To)
	if err != nil {
		return err
	}
	from := accounts[tr.From]
	if from == nil && !tr.IsMint() {
		return domain.ErrInsufficientFunds
	}
	to := accounts[tr.To]
	if to == nil {
		to = &domain.Account{Address: tr.To, Kind: tr.AccountKindFor(tr.To)}
	}

	if err = tr.Apply(from, to); err != nil {
		return err
	}
	if !tr.IsMint() {
		if err = t.s.ledger.Save(ctx, t.tx, from); err != nil {
			return err
		}
	}
	if err = t.s.ledger.Save(ctx, t.tx, to); err != nil {
		return err
	}
	return t.s.ledger.LogTransfer(ctx, t.tx, tr)
}

// ──────────────────────────────────────────────────────────────────────────────
// Error mapping
// ──────────────────────────────────────────────────────────────────────────────

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
)

// mapPQError translates lock contention into domain.ErrConflict and leaves
// every other error untouched.
func mapPQError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqLockNotAvailable, pqSerializationFailure, pqDeadlockDetected:
			return domain.ErrConflict
		}
	}
	return err
}

// isUniqueViolation reports whether err is a primary-key or unique clash.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
