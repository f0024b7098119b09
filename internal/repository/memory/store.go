// Package memory is an in-process implementation of repository.Store. It
// stages writes per transaction and publishes them on commit, and it rejects
// a transaction that touches a record held by another one, the same way the
// Postgres store does with NOWAIT locks. Used by tests and by the server when
// no database is configured.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
	"github.com/giovanna-britto/Snake-Battle/internal/repository"
)

// Store keeps every record in maps guarded by mu. held maps a locked record
// address to the transaction holding it.
type Store struct {
	mu        sync.Mutex
	matches   map[common.Address]domain.Match
	bets      map[common.Address]domain.Bet
	accounts  map[common.Address]domain.Account
	transfers []domain.Transfer
	held      map[common.Address]*memTx
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		matches:  make(map[common.Address]domain.Match),
		bets:     make(map[common.Address]domain.Bet),
		accounts: make(map[common.Address]domain.Account),
		held:     make(map[common.Address]*memTx),
	}
}

// Atomically runs fn against a fresh transaction and commits its staged writes
// only if fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &memTx{
		s:        s,
		matches:  make(map[common.Address]*domain.Match),
		bets:     make(map[common.Address]*domain.Bet),
		accounts: make(map[common.Address]*domain.Account),
	}
	defer t.release()

	if err := fn(t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// ── Reader ───────────────────────────────────────────────────────────────────

func (s *Store) GetMatch(_ context.Context, addr common.Address) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[addr]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return cloneMatch(&m), nil
}

func (s *Store) ListMatches(_ context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.Match, error) {
	s.mu.Lock()
	out := make([]*domain.Match, 0, len(s.matches))
	for _, m := range s.matches {
		if status == "" || m.Status == status {
			out = append(out, cloneMatch(&m))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

func (s *Store) CountMatches(_ context.Context, status domain.MatchStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == "" {
		return len(s.matches), nil
	}
	n := 0
	for _, m := range s.matches {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListDeadlines(_ context.Context, after, upTo time.Time) ([]*domain.Match, error) {
	s.mu.Lock()
	var out []*domain.Match
	for _, m := range s.matches {
		if m.Deadline.After(after) && !m.Deadline.After(upTo) && m.CanResolve() {
			out = append(out, cloneMatch(&m))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}

func (s *Store) GetBet(_ context.Context, addr common.Address) (*domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bets[addr]
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	return cloneBet(&b), nil
}

func (s *Store) ListBets(_ context.Context, match common.Address) ([]*domain.Bet, error) {
	s.mu.Lock()
	var out []*domain.Bet
	for _, b := range s.bets {
		if b.Match == match {
			out = append(out, cloneBet(&b))
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, addr common.Address) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[addr]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (s *Store) ListTransfers(_ context.Context, account common.Address, limit, offset int) ([]*domain.Transfer, error) {
	s.mu.Lock()
	var out []*domain.Transfer
	for i := len(s.transfers) - 1; i >= 0; i-- {
		t := s.transfers[i]
		if t.From == account || t.To == account {
			out = append(out, &t)
		}
	}
	s.mu.Unlock()
	return page(out, limit, offset), nil
}

// ── Transaction ──────────────────────────────────────────────────────────────

// memTx stages copies of the records it locked. Nothing is visible to other
// transactions until commit.
type memTx struct {
	s         *Store
	locked    []common.Address
	matches   map[common.Address]*domain.Match
	bets      map[common.Address]*domain.Bet
	accounts  map[common.Address]*domain.Account
	transfers []domain.Transfer
}

// lock claims addr for this transaction or fails with ErrConflict.
func (t *memTx) lock(addr common.Address) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	owner, ok := t.s.held[addr]
	if ok && owner != t {
		return domain.ErrConflict
	}
	if !ok {
		t.s.held[addr] = t
		t.locked = append(t.locked, addr)
	}
	return nil
}

func (t *memTx) release() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, addr := range t.locked {
		if t.s.held[addr] == t {
			delete(t.s.held, addr)
		}
	}
	t.locked = nil
}

func (t *memTx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for addr, m := range t.matches {
		t.s.matches[addr] = *m
	}
	for addr, b := range t.bets {
		t.s.bets[addr] = *b
	}
	for addr, a := range t.accounts {
		t.s.accounts[addr] = *a
	}
	t.s.transfers = append(t.s.transfers, t.transfers...)
}

func (t *memTx) LockMatch(_ context.Context, addr common.Address) (*domain.Match, error) {
	if err := t.lock(addr); err != nil {
		return nil, err
	}
	if m, ok := t.matches[addr]; ok {
		return cloneMatch(m), nil
	}
	t.s.mu.Lock()
	m, ok := t.s.matches[addr]
	t.s.mu.Unlock()
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return cloneMatch(&m), nil
}

func (t *memTx) InsertMatch(ctx context.Context, m *domain.Match) error {
	if _, err := t.LockMatch(ctx, m.Address); err == nil {
		return domain.ErrMatchExists
	} else if !errors.Is(err, domain.ErrMatchNotFound) {
		return err
	}
	t.matches[m.Address] = cloneMatch(m)
	return nil
}

func (t *memTx) UpdateMatch(ctx context.Context, m *domain.Match) error {
	if _, err := t.LockMatch(ctx, m.Address); err != nil {
		return err
	}
	t.matches[m.Address] = cloneMatch(m)
	return nil
}

func (t *memTx) LockBet(_ context.Context, addr common.Address) (*domain.Bet, error) {
	if err := t.lock(addr); err != nil {
		return nil, err
	}
	if b, ok := t.bets[addr]; ok {
		return cloneBet(b), nil
	}
	t.s.mu.Lock()
	b, ok := t.s.bets[addr]
	t.s.mu.Unlock()
	if !ok {
		return nil, domain.ErrBetNotFound
	}
	return cloneBet(&b), nil
}

func (t *memTx) InsertBet(ctx context.Context, b *domain.Bet) error {
	if _, err := t.LockBet(ctx, b.Address); err == nil {
		return domain.ErrBetExists
	} else if !errors.Is(err, domain.ErrBetNotFound) {
		return err
	}
	t.bets[b.Address] = cloneBet(b)
	return nil
}

func (t *memTx) UpdateBet(ctx context.Context, b *domain.Bet) error {
	if _, err := t.LockBet(ctx, b.Address); err != nil {
		return err
	}
	t.bets[b.Address] = cloneBet(b)
	return nil
}

// account returns the staged copy of addr, locking it on first touch. ok is
// false when the account does not exist yet.
func (t *memTx) account(addr common.Address) (*domain.Account, bool, error) {
	if a, ok := t.accounts[addr]; ok {
		return a, true, nil
	}
	if err := t.lock(addr); err != nil {
		return nil, false, err
	}
	t.s.mu.Lock()
	a, ok := t.s.accounts[addr]
	t.s.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	t.accounts[addr] = &a
	return &a, true, nil
}

func (t *memTx) OpenAccount(_ context.Context, addr common.Address, kind domain.AccountKind) error {
	a, ok, err := t.account(addr)
	if err != nil {
		return err
	}
	if ok {
		if a.Kind != kind {
			return domain.ErrAccountKindMismatch
		}
		return nil
	}
	t.accounts[addr] = &domain.Account{Address: addr, Kind: kind}
	return nil
}

func (t *memTx) Transfer(_ context.Context, tr *domain.Transfer) error {
	// Lock in address order, matching the Postgres store.
	first, second := tr.From, tr.To
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	for _, addr := range []common.Address{first, second} {
		if addr == (common.Address{}) {
			continue
		}
		if _, _, err := t.account(addr); err != nil {
			return err
		}
	}

	var from *domain.Account
	if !tr.IsMint() {
		src, ok := t.accounts[tr.From]
		if !ok {
			return domain.ErrInsufficientFunds
		}
		from = cloneAccount(src)
	}
	to := &domain.Account{Address: tr.To, Kind: tr.AccountKindFor(tr.To)}
	if dst, ok := t.accounts[tr.To]; ok {
		to = cloneAccount(dst)
	}
	if from != nil && from.Address == to.Address {
		to = from
	}

	if err := tr.Apply(from, to); err != nil {
		return err
	}
	if from != nil {
		t.accounts[from.Address] = from
	}
	t.accounts[to.Address] = to
	t.transfers = append(t.transfers, *tr)
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func cloneMatch(m *domain.Match) *domain.Match {
	c := *m
	if m.Winner != nil {
		w := *m.Winner
		c.Winner = &w
	}
	return &c
}

func cloneBet(b *domain.Bet) *domain.Bet {
	c := *b
	if b.ClaimedAt != nil {
		at := *b.ClaimedAt
		c.ClaimedAt = &at
	}
	return &c
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

var _ repository.Store = (*Store)(nil)
