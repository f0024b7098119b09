package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

type betRow struct {
	Address   common.Address  `db:"address"`
	Match     common.Address  `db:"match_address"`
	Bettor    common.Address  `db:"bettor"`
	Side      string          `db:"side"`
	Amount    decimal.Decimal `db:"amount"`
	Claimed   bool            `db:"claimed"`
	PlacedAt  time.Time       `db:"placed_at"`
	ClaimedAt *time.Time      `db:"claimed_at"`
}

func newBetRow(b *domain.Bet) *betRow {
	return &betRow{
		Address:   b.Address,
		Match:     b.Match,
		Bettor:    b.Bettor,
		Side:      string(b.Side),
		Amount:    domain.UnitsToDecimal(b.Amount),
		Claimed:   b.Claimed,
		PlacedAt:  b.PlacedAt,
		ClaimedAt: b.ClaimedAt,
	}
}

func (r *betRow) toDomain() (*domain.Bet, error) {
	amount, err := domain.UnitsFromDecimal(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("bet_repo: amount: %w", err)
	}
	return &domain.Bet{
		Address:   r.Address,
		Match:     r.Match,
		Bettor:    r.Bettor,
		Side:      domain.Side(r.Side),
		Amount:    amount,
		Claimed:   r.Claimed,
		PlacedAt:  r.PlacedAt.UTC(),
		ClaimedAt: r.ClaimedAt,
	}, nil
}

// BetRepository handles all database operations for side-bets.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts a new bet inside an existing transaction. The address is
// derived from (match, bettor), so a repeat bet fails with ErrBetExists.
func (r *BetRepository) Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(address, match_address, bettor, side, amount, claimed, placed_at, claimed_at)
		VALUES
			(:address, :match_address, :bettor, :side, :amount, :claimed, :placed_at, :claimed_at)`
	if _, err := tx.NamedExecContext(ctx, query, newBetRow(b)); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrBetExists
		}
		return fmt.Errorf("bet_repo.Create: %w", mapPQError(err))
	}
	return nil
}

// Get fetches a bet by address, optionally locking it FOR UPDATE NOWAIT.
func (r *BetRepository) Get(ctx context.Context, q sqlx.QueryerContext, addr common.Address, lock bool) (*domain.Bet, error) {
	query := `SELECT * FROM bets WHERE address = $1`
	if lock {
		query += ` FOR UPDATE NOWAIT`
	}
	var row betRow
	if err := sqlx.GetContext(ctx, q, &row, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.Get: %w", mapPQError(err))
	}
	return row.toDomain()
}

// ListByMatch returns every bet on a match in placement order.
func (r *BetRepository) ListByMatch(ctx context.Context, match common.Address) ([]*domain.Bet, error) {
	var rows []betRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM bets WHERE match_address = $1 ORDER BY placed_at ASC`, match)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListByMatch: %w", err)
	}
	out := make([]*domain.Bet, 0, len(rows))
	for i := range rows {
		b, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Update persists the claim state of b.
func (r *BetRepository) Update(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE bets SET claimed = $1, claimed_at = $2 WHERE address = $3`,
		b.Claimed, b.ClaimedAt, b.Address)
	if err != nil {
		return fmt.Errorf("bet_repo.Update: %w", mapPQError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}
