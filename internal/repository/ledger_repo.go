package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/giovanna-britto/Snake-Battle/internal/domain"
)

type accountRow struct {
	Address   common.Address  `db:"address"`
	Kind      string          `db:"kind"`
	Balance   decimal.Decimal `db:"balance"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r *accountRow) toDomain() (*domain.Account, error) {
	bal, err := domain.UnitsFromDecimal(r.Balance)
	if err != nil {
		return nil, fmt.Errorf("ledger_repo: balance: %w", err)
	}
	return &domain.Account{
		Address:   r.Address,
		Kind:      domain.AccountKind(r.Kind),
		Balance:   bal,
		UpdatedAt: r.UpdatedAt.UTC(),
	}, nil
}

type transferRow struct {
	ID        uuid.UUID       `db:"id"`
	Type      string          `db:"type"`
	From      common.Address  `db:"from_address"`
	To        common.Address  `db:"to_address"`
	Amount    decimal.Decimal `db:"amount"`
	Match     common.Address  `db:"match_address"`
	CreatedAt time.Time       `db:"created_at"`
}

// LedgerRepository handles balances and the transfer audit trail.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Get fetches one account by address.
func (r *LedgerRepository) Get(ctx context.Context, addr common.Address) (*domain.Account, error) {
	var row accountRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM accounts WHERE address = $1`, addr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ledger_repo.Get: %w", err)
	}
	return row.toDomain()
}

// Lock takes FOR UPDATE NOWAIT on every listed account that exists and returns
// them keyed by address. Rows are locked in address order so two transfers
// over the same pair cannot deadlock.
func (r *LedgerRepository) Lock(ctx context.Context, tx *sqlx.Tx, addrs ...common.Address) (map[common.Address]*domain.Account, error) {
	keys := make(pq.ByteaArray, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, a.Bytes())
	}

	var rows []accountRow
	err := tx.SelectContext(ctx, &rows,
		`SELECT * FROM accounts WHERE address = ANY($1) ORDER BY address FOR UPDATE NOWAIT`,
		keys)
	if err != nil {
		return nil, fmt.Errorf("ledger_repo.Lock: %w", mapPQError(err))
	}

	out := make(map[common.Address]*domain.Account, len(rows))
	for i := range rows {
		acc, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out[acc.Address] = acc
	}
	return out, nil
}

// Open allocates a zero-balance account and locks it. An existing account is
// left alone unless its kind differs.
func (r *LedgerRepository) Open(ctx context.Context, tx *sqlx.Tx, addr common.Address, kind domain.AccountKind) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, kind, balance, updated_at)
		VALUES ($1, $2, 0, now())
		ON CONFLICT (address) DO NOTHING`,
		addr, string(kind))
	if err != nil {
		return fmt.Errorf("ledger_repo.Open: %w", mapPQError(err))
	}

	var existing string
	err = tx.GetContext(ctx, &existing,
		`SELECT kind FROM accounts WHERE address = $1 FOR UPDATE NOWAIT`, addr)
	if err != nil {
		return fmt.Errorf("ledger_repo.Open: %w", mapPQError(err))
	}
	if domain.AccountKind(existing) != kind {
		return domain.ErrAccountKindMismatch
	}
	return nil
}

// Save writes the balance computed in memory back to the row, creating it on
// first credit.
func (r *LedgerRepository) Save(ctx context.Context, tx *sqlx.Tx, acc *domain.Account) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (address, kind, balance, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (address) DO UPDATE
		SET balance = EXCLUDED.balance, updated_at = EXCLUDED.updated_at`,
		acc.Address, string(acc.Kind), domain.UnitsToDecimal(acc.Balance))
	if err != nil {
		return fmt.Errorf("ledger_repo.Save: %w", mapPQError(err))
	}
	return nil
}

// LogTransfer inserts an audit record inside a transaction.
func (r *LedgerRepository) LogTransfer(ctx context.Context, tx *sqlx.Tx, t *domain.Transfer) error {
	row := transferRow{
		ID:        t.ID,
		Type:      string(t.Type),
		From:      t.From,
		To:        t.To,
		Amount:    domain.UnitsToDecimal(t.Amount),
		Match:     t.Match,
		CreatedAt: t.CreatedAt,
	}
	query := `
		INSERT INTO transfers
			(id, type, from_address, to_address, amount, match_address, created_at)
		VALUES
			(:id, :type, :from_address, :to_address, :amount, :match_address, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("ledger_repo.LogTransfer: %w", err)
	}
	return nil
}

// Transfers returns paginated transfer history touching account, newest first.
func (r *LedgerRepository) Transfers(ctx context.Context, account common.Address, limit, offset int) ([]*domain.Transfer, error) {
	var rows []transferRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT *
		FROM transfers
		WHERE from_address = $1 OR to_address = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		account, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger_repo.Transfers: %w", err)
	}

	out := make([]*domain.Transfer, 0, len(rows))
	for _, row := range rows {
		amount, err := domain.UnitsFromDecimal(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("ledger_repo.Transfers: amount: %w", err)
		}
		out = append(out, &domain.Transfer{
			ID:        row.ID,
			Type:      domain.TransferType(row.Type),
			From:      row.From,
			To:        row.To,
			Amount:    amount,
			Match:     row.Match,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}
	return out, nil
}
