package bank

import (
	"errors"
	"fmt"
	"math/big"

	"salestore/core/types"
	"salestore/state"
)

var (
	// ErrInsufficientFunds is returned when the debited account cannot
	// cover the transfer.
	ErrInsufficientFunds = errors.New("bank: insufficient balance")
	// ErrUnsupportedAsset is returned for asset symbols outside the
	// settlement set.
	ErrUnsupportedAsset = errors.New("bank: unsupported asset")
)

var accountPrefix = []byte("bank/account/")

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

// Ledger tracks per-identity settlement balances and implements the atomic
// token transfer primitive consumed by the sale engine. Running it against a
// state transaction makes every transfer part of the surrounding operation's
// commit unit.
type Ledger struct {
	kv state.KV
}

// NewLedger constructs a ledger over the supplied record store.
func NewLedger(kv state.KV) *Ledger {
	return &Ledger{kv: kv}
}

type storedAccount struct {
	Nonce         uint64
	BalanceNative *big.Int
	BalanceUSDC   *big.Int
	BalanceUSDT   *big.Int
}

func (l *Ledger) getAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := l.kv.KVGet(accountKey(addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{}).EnsureBalances(), nil
	}
	account := &types.Account{
		Nonce:         stored.Nonce,
		BalanceNative: stored.BalanceNative,
		BalanceUSDC:   stored.BalanceUSDC,
		BalanceUSDT:   stored.BalanceUSDT,
	}
	return account.EnsureBalances(), nil
}

func (l *Ledger) putAccount(addr [20]byte, account *types.Account) error {
	account = account.EnsureBalances()
	return l.kv.KVPut(accountKey(addr), &storedAccount{
		Nonce:         account.Nonce,
		BalanceNative: account.BalanceNative,
		BalanceUSDC:   account.BalanceUSDC,
		BalanceUSDT:   account.BalanceUSDT,
	})
}

func balanceField(account *types.Account, asset string) (**big.Int, error) {
	switch asset {
	case "NATIVE":
		return &account.BalanceNative, nil
	case "USDC":
		return &account.BalanceUSDC, nil
	case "USDT":
		return &account.BalanceUSDT, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
	}
}

// Transfer moves amount of asset between the two identities. A nil or zero
// amount is a no-op; negative amounts and uncovered debits are errors, and
// on any error neither account is touched.
func (l *Ledger) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.kv == nil {
		return fmt.Errorf("bank: ledger not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	fromAccount, err := l.getAccount(from)
	if err != nil {
		return err
	}
	if from == to {
		balance, err := balanceField(fromAccount, asset)
		if err != nil {
			return err
		}
		if (*balance).Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
		return nil
	}
	toAccount, err := l.getAccount(to)
	if err != nil {
		return err
	}
	fromBalance, err := balanceField(fromAccount, asset)
	if err != nil {
		return err
	}
	toBalance, err := balanceField(toAccount, asset)
	if err != nil {
		return err
	}
	if (*fromBalance).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	*fromBalance = new(big.Int).Sub(*fromBalance, amount)
	*toBalance = new(big.Int).Add(*toBalance, amount)
	if err := l.putAccount(from, fromAccount); err != nil {
		return err
	}
	return l.putAccount(to, toAccount)
}

// Balance returns the identity's balance in the supplied asset.
func (l *Ledger) Balance(addr [20]byte, asset string) (*big.Int, error) {
	account, err := l.getAccount(addr)
	if err != nil {
		return nil, err
	}
	balance, err := balanceField(account, asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(*balance), nil
}

// Mint credits the identity with amount of asset. Operator tooling uses it
// to seed balances; the sale engine never mints.
func (l *Ledger) Mint(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative mint amount")
	}
	account, err := l.getAccount(addr)
	if err != nil {
		return err
	}
	balance, err := balanceField(account, asset)
	if err != nil {
		return err
	}
	*balance = new(big.Int).Add(*balance, amount)
	return l.putAccount(addr, account)
}
