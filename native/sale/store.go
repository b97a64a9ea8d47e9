package sale

import "math/big"

// NewStore returns a freshly initialised store with the supplied defaults.
// The lifecycle starts Uninitialized and no epoch is active.
func NewStore(maxCap, minCap, firstFee, secondFee uint64) *Store {
	return &Store{
		MaxCap:      maxCap,
		MinCap:      minCap,
		FirstFee:    firstFee,
		SecondFee:   secondFee,
		TotalSold:   big.NewInt(0),
		ActiveEpoch: NoActiveEpoch,
		Status:      StoreUninitialized,
	}
}

// SetCap replaces both deposit caps. The caps bound the USD value of a
// single deposit, not the lifetime total.
func (s *Store) SetCap(maxCap, minCap uint64) error {
	if maxCap < minCap {
		return ErrCapOrder
	}
	s.MaxCap = maxCap
	s.MinCap = minCap
	return nil
}

// SetFee replaces the store-level floor fee schedule. Both tiers are parts
// per billion and may not exceed 100%.
func (s *Store) SetFee(firstFee, secondFee uint64) error {
	if firstFee > FeeDenominator || secondFee > FeeDenominator {
		return ErrFeeTooLarge
	}
	s.FirstFee = firstFee
	s.SecondFee = secondFee
	return nil
}

// Enable moves the store from Uninitialized to Enabled. A store that has
// been enabled or disabled before can never be enabled again.
func (s *Store) Enable() error {
	if s.Status != StoreUninitialized {
		return ErrStoreEnabled
	}
	s.Status = StoreStatusEnabled
	return nil
}

// Disable moves the store from Enabled to Disabled, permanently.
func (s *Store) Disable() error {
	if s.Status != StoreStatusEnabled {
		return ErrStoreNotEnabled
	}
	s.Status = StoreStatusDisabled
	return nil
}

// SetActiveEpoch points the store at the epoch accepting deposits.
func (s *Store) SetActiveEpoch(id int16) {
	s.ActiveEpoch = id
}

// RecordSale adds the purchased asset units to the lifetime running total.
// Overflow beyond the 128-bit domain aborts the whole transaction.
func (s *Store) RecordSale(assetAmount *big.Int) error {
	total, err := checkedAdd(s.TotalSold, assetAmount)
	if err != nil {
		return err
	}
	s.TotalSold = total
	return nil
}

// IsEnabled reports whether the store currently accepts deposits.
func (s *Store) IsEnabled() bool {
	return s != nil && s.Status == StoreStatusEnabled
}
