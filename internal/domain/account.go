package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Account
// ──────────────────────────────────────────────────────────────────────────────

// AccountKind tells external balances apart from match vaults.
type AccountKind string

const (
	AccountExternal AccountKind = "external" // a wallet owned by a signer
	AccountVault    AccountKind = "vault"    // escrow held by a match
)

// Account is a ledger entry holding a balance in base units. Balances change
// only through Debit and Credit so every store shares the same checked
// arithmetic.
type Account struct {
	Address   common.Address `json:"address"`
	Kind      AccountKind    `json:"kind"`
	Balance   uint64         `json:"balance,string"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Debit removes amount from the balance, failing with ErrInsufficientFunds
// rather than going negative.
func (a *Account) Debit(amount uint64) error {
	next, err := CheckedSub(a.Balance, amount)
	if err != nil {
		return err
	}
	a.Balance = next
	return nil
}

// Credit adds amount to the balance, failing with ErrMathOverflow on wrap.
func (a *Account) Credit(amount uint64) error {
	next, err := CheckedAdd(a.Balance, amount)
	if err != nil {
		return err
	}
	a.Balance = next
	return nil
}

// MoveFunds debits from and credits to by amount. Neither account is touched
// unless both legs succeed; a transfer to oneself only checks the balance.
func MoveFunds(from, to *Account, amount uint64) error {
	src, dst := *from, *to
	if err := src.Debit(amount); err != nil {
		return err
	}
	if from.Address == to.Address {
		return nil
	}
	if err := dst.Credit(amount); err != nil {
		return err
	}
	*from, *to = src, dst
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Transfer: immutable audit record of a value movement
// ──────────────────────────────────────────────────────────────────────────────

// TransferType tags why value moved.
type TransferType string

const (
	TransferStakeDeposit TransferType = "stake_deposit"
	TransferBetPlaced    TransferType = "bet_placed"
	TransferStakePayout  TransferType = "stake_payout"
	TransferBetPayout    TransferType = "bet_payout"
	TransferAdminCredit  TransferType = "admin_credit"
)

// Transfer is one committed movement of value between two accounts. From is
// the zero address for minted credits.
type Transfer struct {
	ID        uuid.UUID      `json:"id"`
	Type      TransferType   `json:"type"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Amount    uint64         `json:"amount,string"`
	Match     common.Address `json:"match"`
	CreatedAt time.Time      `json:"created_at"`
}

// IsMint reports whether the transfer creates value instead of moving it.
func (t *Transfer) IsMint() bool {
	return t.From == (common.Address{})
}

// Apply moves the transfer amount between from and to. For a mint, from is
// ignored and may be nil.
func (t *Transfer) Apply(from, to *Account) error {
	if t.Amount == 0 {
		return ErrInvalidAmount
	}
	if t.IsMint() {
		return to.Credit(t.Amount)
	}
	return MoveFunds(from, to, t.Amount)
}

// AccountKindFor picks the kind of a not-yet-seen account receiving t: the
// match vault is the only account created as AccountVault.
func (t *Transfer) AccountKindFor(addr common.Address) AccountKind {
	if addr == t.Match && t.Match != (common.Address{}) {
		return AccountVault
	}
	return AccountExternal
}
