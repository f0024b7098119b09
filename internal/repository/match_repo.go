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

// matchRow is the database shape of a match. Amounts live in NUMERIC(20,0)
// columns because uint64 values with the high bit set cannot be bound as
// BIGINT parameters.
type matchRow struct {
	Address          common.Address  `db:"address"`
	ID               decimal.Decimal `db:"id"`
	Arbiter          common.Address  `db:"arbiter"`
	PlayerA          common.Address  `db:"player_a"`
	PlayerB          common.Address  `db:"player_b"`
	Stake            decimal.Decimal `db:"stake"`
	TotalSideA       decimal.Decimal `db:"total_side_a"`
	TotalSideB       decimal.Decimal `db:"total_side_b"`
	Deadline         time.Time       `db:"deadline"`
	Status           string          `db:"status"`
	Winner           *string         `db:"winner"`
	PlayerADeposited bool            `db:"player_a_deposited"`
	PlayerBDeposited bool            `db:"player_b_deposited"`
	StakesWithdrawn  bool            `db:"stakes_withdrawn"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func newMatchRow(m *domain.Match) *matchRow {
	r := &matchRow{
		Address:          m.Address,
		ID:               domain.UnitsToDecimal(m.ID),
		Arbiter:          m.Arbiter,
		PlayerA:          m.PlayerA,
		PlayerB:          m.PlayerB,
		Stake:            domain.UnitsToDecimal(m.Stake),
		TotalSideA:       domain.UnitsToDecimal(m.TotalSideA),
		TotalSideB:       domain.UnitsToDecimal(m.TotalSideB),
		Deadline:         m.Deadline,
		Status:           string(m.Status),
		PlayerADeposited: m.PlayerADeposited,
		PlayerBDeposited: m.PlayerBDeposited,
		StakesWithdrawn:  m.StakesWithdrawn,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.Winner != nil {
		w := string(*m.Winner)
		r.Winner = &w
	}
	return r
}

func (r *matchRow) toDomain() (*domain.Match, error) {
	m := &domain.Match{
		Address:          r.Address,
		Arbiter:          r.Arbiter,
		PlayerA:          r.PlayerA,
		PlayerB:          r.PlayerB,
		Deadline:         r.Deadline.UTC(),
		Status:           domain.MatchStatus(r.Status),
		PlayerADeposited: r.PlayerADeposited,
		PlayerBDeposited: r.PlayerBDeposited,
		StakesWithdrawn:  r.StakesWithdrawn,
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
	var err error
	if m.ID, err = domain.UnitsFromDecimal(r.ID); err != nil {
		return nil, fmt.Errorf("match_repo: id: %w", err)
	}
	if m.Stake, err = domain.UnitsFromDecimal(r.Stake); err != nil {
		return nil, fmt.Errorf("match_repo: stake: %w", err)
	}
	if m.TotalSideA, err = domain.UnitsFromDecimal(r.TotalSideA); err != nil {
		return nil, fmt.Errorf("match_repo: total_side_a: %w", err)
	}
	if m.TotalSideB, err = domain.UnitsFromDecimal(r.TotalSideB); err != nil {
		return nil, fmt.Errorf("match_repo: total_side_b: %w", err)
	}
	if r.Winner != nil {
		w := domain.Side(*r.Winner)
		m.Winner = &w
	}
	return m, nil
}

// MatchRepository handles all database operations for matches.
type MatchRepository struct {
	db *sqlx.DB
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

// Create inserts a new match row. A second match for the same address, which
// is derived from the arbiter, fails with ErrMatchExists.
func (r *MatchRepository) Create(ctx context.Context, tx *sqlx.Tx, m *domain.Match) error {
	query := `
		INSERT INTO matches
			(address, id, arbiter, player_a, player_b, stake, total_side_a, total_side_b,
			 deadline, status, winner, player_a_deposited, player_b_deposited,
			 stakes_withdrawn, created_at, updated_at)
		VALUES
			(:address, :id, :arbiter, :player_a, :player_b, :stake, :total_side_a, :total_side_b,
			 :deadline, :status, :winner, :player_a_deposited, :player_b_deposited,
			 :stakes_withdrawn, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, newMatchRow(m)); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMatchExists
		}
		return fmt.Errorf("match_repo.Create: %w", mapPQError(err))
	}
	return nil
}

// Get fetches a match by address. With lock set the row is taken FOR UPDATE
// NOWAIT and q must be a transaction.
func (r *MatchRepository) Get(ctx context.Context, q sqlx.QueryerContext, addr common.Address, lock bool) (*domain.Match, error) {
	query := `SELECT * FROM matches WHERE address = $1`
	if lock {
		query += ` FOR UPDATE NOWAIT`
	}
	var row matchRow
	if err := sqlx.GetContext(ctx, q, &row, query, addr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, fmt.Errorf("match_repo.Get: %w", mapPQError(err))
	}
	return row.toDomain()
}

// List returns matches newest first, optionally restricted to one status.
func (r *MatchRepository) List(ctx context.Context, status domain.MatchStatus, limit, offset int) ([]*domain.Match, error) {
	var rows []matchRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM matches
		WHERE ($1::text = '' OR status = $1::text)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("match_repo.List: %w", err)
	}
	out := make([]*domain.Match, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Count returns how many matches have status, or all of them when status is
// empty.
func (r *MatchRepository) Count(ctx context.Context, status domain.MatchStatus) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM matches WHERE ($1::text = '' OR status = $1::text)`, string(status))
	if err != nil {
		return 0, fmt.Errorf("match_repo.Count: %w", err)
	}
	return n, nil
}

// ListDeadlines returns unresolved matches whose deadline falls in
// (after, upTo], earliest first.
func (r *MatchRepository) ListDeadlines(ctx context.Context, after, upTo time.Time) ([]*domain.Match, error) {
	var rows []matchRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM matches
		WHERE deadline > $1 AND deadline <= $2
		  AND status IN ($3, $4, $5)
		ORDER BY deadline ASC`,
		after, upTo, domain.MatchCreated, domain.MatchFunded, domain.MatchInProgress)
	if err != nil {
		return nil, fmt.Errorf("match_repo.ListDeadlines: %w", err)
	}
	out := make([]*domain.Match, 0, len(rows))
	for i := range rows {
		m, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Update writes every mutable column of m inside an existing transaction.
func (r *MatchRepository) Update(ctx context.Context, tx *sqlx.Tx, m *domain.Match) error {
	query := `
		UPDATE matches
		SET total_side_a       = :total_side_a,
		    total_side_b       = :total_side_b,
		    status             = :status,
		    winner             = :winner,
		    player_a_deposited = :player_a_deposited,
		    player_b_deposited = :player_b_deposited,
		    stakes_withdrawn   = :stakes_withdrawn,
		    updated_at         = :updated_at
		WHERE address = :address`
	res, err := tx.NamedExecContext(ctx, query, newMatchRow(m))
	if err != nil {
		return fmt.Errorf("match_repo.Update: %w", mapPQError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMatchNotFound
	}
	return nil
}
