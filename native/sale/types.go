package sale

import (
	"fmt"
	"math/big"
	"strings"
)

// Fixed-point layout shared by every pricing and fee computation. Fees are
// expressed in parts per billion; USD-scaled values carry AssetDecimals
// fractional digits once converted.
const (
	FeeDenominator = 1_000_000_000
	AssetDecimals  = 9
	StableDecimals = 3
)

// Settlement asset symbols accepted by the deposit pipeline.
const (
	AssetNative = "NATIVE"
	AssetUSDC   = "USDC"
	AssetUSDT   = "USDT"
)

// NoActiveEpoch is the Store pointer value meaning no epoch has been
// activated yet.
const NoActiveEpoch int16 = -1

// NormalizeAsset canonicalises a settlement asset symbol.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case AssetNative, AssetUSDC, AssetUSDT:
		return trimmed, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedAsset, symbol)
	}
}

// NormalizeStableAsset accepts only the two stablecoin symbols.
func NormalizeStableAsset(symbol string) (string, error) {
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return "", err
	}
	if normalized == AssetNative {
		return "", fmt.Errorf("%w: %s is not a stablecoin", ErrUnsupportedAsset, symbol)
	}
	return normalized, nil
}

// StoreStatus is the Store lifecycle. Transitions only move forward:
// Uninitialized -> Enabled -> Disabled.
type StoreStatus uint8

const (
	StoreUninitialized StoreStatus = iota
	StoreStatusEnabled
	StoreStatusDisabled
)

// Valid reports whether the status value is within the supported range.
func (s StoreStatus) Valid() bool {
	switch s {
	case StoreUninitialized, StoreStatusEnabled, StoreStatusDisabled:
		return true
	default:
		return false
	}
}

// EpochStatus is the two-state Epoch lifecycle.
type EpochStatus uint8

const (
	EpochStatusDisabled EpochStatus = iota
	EpochStatusEnabled
)

// Valid reports whether the status value is within the supported range.
func (s EpochStatus) Valid() bool {
	return s == EpochStatusDisabled || s == EpochStatusEnabled
}

// Store is the global sale configuration: caps on a single deposit's USD
// value, the floor fee schedule, the lifetime running total of sold asset
// units, and the pointer to the active epoch.
type Store struct {
	MaxCap      uint64
	MinCap      uint64
	FirstFee    uint64
	SecondFee   uint64
	TotalSold   *big.Int
	ActiveEpoch int16
	Status      StoreStatus
}

// Clone returns a deep copy of the store record.
func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	clone := *s
	if s.TotalSold != nil {
		clone.TotalSold = new(big.Int).Set(s.TotalSold)
	} else {
		clone.TotalSold = big.NewInt(0)
	}
	return &clone
}

// Epoch is one pricing round: a fixed unit price in USD-scaled units per
// whole asset unit, a supply ceiling and a running sold total, both in asset
// units.
type Epoch struct {
	ID          int16
	Price       uint64
	TotalSupply *big.Int
	TotalSold   *big.Int
	Status      EpochStatus
}

// Clone returns a deep copy of the epoch record.
func (e *Epoch) Clone() *Epoch {
	if e == nil {
		return nil
	}
	clone := *e
	if e.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(e.TotalSupply)
	} else {
		clone.TotalSupply = big.NewInt(0)
	}
	if e.TotalSold != nil {
		clone.TotalSold = new(big.Int).Set(e.TotalSold)
	} else {
		clone.TotalSold = big.NewInt(0)
	}
	return &clone
}

// Customer accumulates the asset units purchased by one buyer identity. The
// balance only ever grows.
type Customer struct {
	AssetAmount *big.Int
}

// Clone returns a deep copy of the customer record.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	clone := &Customer{AssetAmount: big.NewInt(0)}
	if c.AssetAmount != nil {
		clone.AssetAmount = new(big.Int).Set(c.AssetAmount)
	}
	return clone
}

// Promoter is a referral identity: its negotiated fee schedule plus the fees
// accrued per settlement asset and in asset units, held until withdrawal.
type Promoter struct {
	FirstFee     uint64
	SecondFee    uint64
	NativeAmount *big.Int
	USDCAmount   *big.Int
	USDTAmount   *big.Int
	AssetAmount  *big.Int
	Enabled      bool
}

// Clone returns a deep copy of the promoter record.
func (p *Promoter) Clone() *Promoter {
	if p == nil {
		return nil
	}
	clone := *p
	clone.NativeAmount = cloneOrZero(p.NativeAmount)
	clone.USDCAmount = cloneOrZero(p.USDCAmount)
	clone.USDTAmount = cloneOrZero(p.USDTAmount)
	clone.AssetAmount = cloneOrZero(p.AssetAmount)
	return &clone
}

// Schedule carries the two fee tiers of either a Store or a Promoter, in
// parts per billion.
type Schedule struct {
	First  uint64
	Second uint64
}

// Schedule returns the store's floor fee schedule.
func (s *Store) Schedule() Schedule {
	if s == nil {
		return Schedule{}
	}
	return Schedule{First: s.FirstFee, Second: s.SecondFee}
}

// Schedule returns the promoter's negotiated fee schedule.
func (p *Promoter) Schedule() Schedule {
	if p == nil {
		return Schedule{}
	}
	return Schedule{First: p.FirstFee, Second: p.SecondFee}
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
