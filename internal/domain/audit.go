package domain

import (
	"github.com/ethereum/go-ethereum/common"
)

// VaultAudit reconciles a match vault against the records that fund it.
//
//	Deposited   = stakes actually deposited + both side pools
//	PaidOut     = winner stake (if withdrawn) + every claimed share
//	Outstanding = winner stake (if unclaimed) + every unclaimed winning share
//	Dust        = Balance - Outstanding, once the match is resolved
//
// Balance should always equal Deposited - PaidOut.
type VaultAudit struct {
	Match       common.Address `json:"match"`
	Status      MatchStatus    `json:"status"`
	Balance     uint64         `json:"balance,string"`
	Deposited   uint64         `json:"deposited,string"`
	PaidOut     uint64         `json:"paid_out,string"`
	Outstanding uint64         `json:"outstanding,string"`
	Dust        uint64         `json:"dust,string"`
	Shortfall   uint64         `json:"shortfall,string"`
	Balanced    bool           `json:"balanced"`
}

// AuditVault computes a VaultAudit for m from its bets and the vault balance.
func AuditVault(m *Match, bets []*Bet, balance uint64) (*VaultAudit, error) {
	a := &VaultAudit{Match: m.Address, Status: m.Status, Balance: balance}

	var err error
	for _, deposited := range []bool{m.PlayerADeposited, m.PlayerBDeposited} {
		if deposited {
			if a.Deposited, err = CheckedAdd(a.Deposited, m.Stake); err != nil {
				return nil, err
			}
		}
	}
	if a.Deposited, err = CheckedAdd(a.Deposited, m.TotalSideA); err != nil {
		return nil, err
	}
	if a.Deposited, err = CheckedAdd(a.Deposited, m.TotalSideB); err != nil {
		return nil, err
	}

	if m.IsResolved() && m.Winner != nil {
		stakes, err := WinnerStakeTotal(m.Stake)
		if err != nil {
			return nil, err
		}
		if m.StakesWithdrawn {
			a.PaidOut = stakes
		} else {
			a.Outstanding = stakes
		}

		winTotal := m.SideTotal(*m.Winner)
		for _, b := range bets {
			if b.Side != *m.Winner {
				continue
			}
			share, err := BetShare(b.Amount, m.TotalSideA, m.TotalSideB, winTotal)
			if err != nil {
				return nil, err
			}
			if b.Claimed {
				a.PaidOut, err = CheckedAdd(a.PaidOut, share)
			} else {
				a.Outstanding, err = CheckedAdd(a.Outstanding, share)
			}
			if err != nil {
				return nil, err
			}
		}

		if balance >= a.Outstanding {
			a.Dust = balance - a.Outstanding
		} else {
			a.Shortfall = a.Outstanding - balance
		}
	}

	a.Balanced = a.PaidOut <= a.Deposited && a.Deposited-a.PaidOut == balance
	return a, nil
}
