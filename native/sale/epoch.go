package sale

import "math/big"

// NewEpoch returns a freshly initialised, disabled epoch. The identifier is
// immutable after creation.
func NewEpoch(id int16, price uint64, totalSupply *big.Int) *Epoch {
	return &Epoch{
		ID:          id,
		Price:       price,
		TotalSupply: cloneOrZero(totalSupply),
		TotalSold:   big.NewInt(0),
		Status:      EpochStatusDisabled,
	}
}

// SetPrice replaces the unit price for future deposits.
func (e *Epoch) SetPrice(price uint64) {
	e.Price = price
}

// SetSupply replaces the supply ceiling. No check ties the new ceiling to
// the amount already sold; an over-sold epoch simply rejects every further
// deposit.
func (e *Epoch) SetSupply(totalSupply *big.Int) {
	e.TotalSupply = cloneOrZero(totalSupply)
}

// Enable marks the epoch as accepting deposits. The caller must also adopt
// this epoch as the store's active epoch in the same transaction.
func (e *Epoch) Enable() error {
	if e.Status == EpochStatusEnabled {
		return ErrEpochEnabled
	}
	e.Status = EpochStatusEnabled
	return nil
}

// Disable stops the epoch from accepting deposits. The store's active
// pointer is left untouched; the deposit pipeline detects the stale pointer.
func (e *Epoch) Disable() error {
	if e.Status != EpochStatusEnabled {
		return ErrEpochNotEnabled
	}
	e.Status = EpochStatusDisabled
	return nil
}

// RecordSale adds the purchased asset units to the epoch's running total.
// Callers enforce the supply ceiling before settlement; this only guards the
// numeric domain.
func (e *Epoch) RecordSale(assetAmount *big.Int) error {
	total, err := checkedAdd(e.TotalSold, assetAmount)
	if err != nil {
		return err
	}
	e.TotalSold = total
	return nil
}

// IsEnabled reports whether the epoch currently accepts deposits.
func (e *Epoch) IsEnabled() bool {
	return e != nil && e.Status == EpochStatusEnabled
}
