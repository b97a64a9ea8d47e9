package types

import "math/big"

// Account tracks the settlement balances held by a single identity. One
// balance is kept per supported settlement asset; the sold asset itself is
// never banked here, only recorded against Customer entities.
type Account struct {
	Nonce         uint64   `json:"nonce"`
	BalanceNative *big.Int `json:"balanceNative"`
	BalanceUSDC   *big.Int `json:"balanceUSDC"`
	BalanceUSDT   *big.Int `json:"balanceUSDT"`
}

// EnsureBalances replaces nil balance fields with zero values so callers can
// perform arithmetic without nil checks.
func (a *Account) EnsureBalances() *Account {
	if a == nil {
		return &Account{BalanceNative: big.NewInt(0), BalanceUSDC: big.NewInt(0), BalanceUSDT: big.NewInt(0)}
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.BalanceUSDC == nil {
		a.BalanceUSDC = big.NewInt(0)
	}
	if a.BalanceUSDT == nil {
		a.BalanceUSDT = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).EnsureBalances()
	}
	clone := &Account{Nonce: a.Nonce}
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	if a.BalanceUSDC != nil {
		clone.BalanceUSDC = new(big.Int).Set(a.BalanceUSDC)
	}
	if a.BalanceUSDT != nil {
		clone.BalanceUSDT = new(big.Int).Set(a.BalanceUSDT)
	}
	return clone.EnsureBalances()
}
