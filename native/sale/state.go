package sale

import (
	"fmt"
	"math/big"

	"salestore/state"
)

// KVState binds the engine's state interface to a keyed record store. Epoch
// identifiers are signed; they are stored as their two's-complement bit
// pattern because the record codec only carries unsigned integers.
type KVState struct {
	kv state.KV
}

// NewKVState constructs a binding over the supplied record store, typically
// a state transaction.
func NewKVState(kv state.KV) *KVState {
	return &KVState{kv: kv}
}

type storedStore struct {
	MaxCap      uint64
	MinCap      uint64
	FirstFee    uint64
	SecondFee   uint64
	TotalSold   *big.Int
	ActiveEpoch uint16
	Status      uint8
}

type storedEpoch struct {
	ID          uint16
	Price       uint64
	TotalSupply *big.Int
	TotalSold   *big.Int
	Status      uint8
}

type storedCustomer struct {
	AssetAmount *big.Int
}

type storedPromoter struct {
	FirstFee     uint64
	SecondFee    uint64
	NativeAmount *big.Int
	USDCAmount   *big.Int
	USDTAmount   *big.Int
	AssetAmount  *big.Int
	Enabled      bool
}

// StoreGet loads the singleton store record.
func (s *KVState) StoreGet() (*Store, bool, error) {
	var stored storedStore
	ok, err := s.kv.KVGet(storeKey(), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	status := StoreStatus(stored.Status)
	if !status.Valid() {
		return nil, false, fmt.Errorf("sale: corrupt store status %d", stored.Status)
	}
	return &Store{
		MaxCap:      stored.MaxCap,
		MinCap:      stored.MinCap,
		FirstFee:    stored.FirstFee,
		SecondFee:   stored.SecondFee,
		TotalSold:   cloneOrZero(stored.TotalSold),
		ActiveEpoch: int16(stored.ActiveEpoch),
		Status:      status,
	}, true, nil
}

// StorePut persists the singleton store record.
func (s *KVState) StorePut(store *Store) error {
	if store == nil {
		return fmt.Errorf("sale: nil store")
	}
	return s.kv.KVPut(storeKey(), &storedStore{
		MaxCap:      store.MaxCap,
		MinCap:      store.MinCap,
		FirstFee:    store.FirstFee,
		SecondFee:   store.SecondFee,
		TotalSold:   cloneOrZero(store.TotalSold),
		ActiveEpoch: uint16(store.ActiveEpoch),
		Status:      uint8(store.Status),
	})
}

// EpochGet loads the epoch record for the supplied round identifier.
func (s *KVState) EpochGet(id int16) (*Epoch, bool, error) {
	var stored storedEpoch
	ok, err := s.kv.KVGet(epochKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	status := EpochStatus(stored.Status)
	if !status.Valid() {
		return nil, false, fmt.Errorf("sale: corrupt epoch status %d", stored.Status)
	}
	return &Epoch{
		ID:          int16(stored.ID),
		Price:       stored.Price,
		TotalSupply: cloneOrZero(stored.TotalSupply),
		TotalSold:   cloneOrZero(stored.TotalSold),
		Status:      status,
	}, true, nil
}

// EpochPut persists the epoch record under its round identifier.
func (s *KVState) EpochPut(epoch *Epoch) error {
	if epoch == nil {
		return fmt.Errorf("sale: nil epoch")
	}
	return s.kv.KVPut(epochKey(epoch.ID), &storedEpoch{
		ID:          uint16(epoch.ID),
		Price:       epoch.Price,
		TotalSupply: cloneOrZero(epoch.TotalSupply),
		TotalSold:   cloneOrZero(epoch.TotalSold),
		Status:      uint8(epoch.Status),
	})
}

// CustomerGet loads the cumulative holdings for a buyer identity.
func (s *KVState) CustomerGet(addr [20]byte) (*Customer, bool, error) {
	var stored storedCustomer
	ok, err := s.kv.KVGet(customerKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Customer{AssetAmount: cloneOrZero(stored.AssetAmount)}, true, nil
}

// CustomerPut persists the cumulative holdings for a buyer identity.
func (s *KVState) CustomerPut(addr [20]byte, customer *Customer) error {
	if customer == nil {
		return fmt.Errorf("sale: nil customer")
	}
	return s.kv.KVPut(customerKey(addr), &storedCustomer{AssetAmount: cloneOrZero(customer.AssetAmount)})
}

// PromoterGet loads the accrual ledger for a referral identity.
func (s *KVState) PromoterGet(addr [20]byte) (*Promoter, bool, error) {
	var stored storedPromoter
	ok, err := s.kv.KVGet(promoterKey(addr), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Promoter{
		FirstFee:     stored.FirstFee,
		SecondFee:    stored.SecondFee,
		NativeAmount: cloneOrZero(stored.NativeAmount),
		USDCAmount:   cloneOrZero(stored.USDCAmount),
		USDTAmount:   cloneOrZero(stored.USDTAmount),
		AssetAmount:  cloneOrZero(stored.AssetAmount),
		Enabled:      stored.Enabled,
	}, true, nil
}

// PromoterPut persists the accrual ledger for a referral identity.
func (s *KVState) PromoterPut(addr [20]byte, promoter *Promoter) error {
	if promoter == nil {
		return fmt.Errorf("sale: nil promoter")
	}
	return s.kv.KVPut(promoterKey(addr), &storedPromoter{
		FirstFee:     promoter.FirstFee,
		SecondFee:    promoter.SecondFee,
		NativeAmount: cloneOrZero(promoter.NativeAmount),
		USDCAmount:   cloneOrZero(promoter.USDCAmount),
		USDTAmount:   cloneOrZero(promoter.USDTAmount),
		AssetAmount:  cloneOrZero(promoter.AssetAmount),
		Enabled:      promoter.Enabled,
	})
}
