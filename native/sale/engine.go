package sale

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"salestore/core/events"
	"salestore/core/types"
)

var (
	errNilState = errors.New("sale engine: state not configured")
	errNilBank  = errors.New("sale engine: token transfer not configured")
)

// engineState is the keyed record access the engine needs from the
// surrounding ledger. Every operation runs against a fixed entity set; the
// caller provides transactional semantics so a failed operation leaves no
// partial mutation behind.
type engineState interface {
	StoreGet() (*Store, bool, error)
	StorePut(*Store) error
	EpochGet(id int16) (*Epoch, bool, error)
	EpochPut(*Epoch) error
	CustomerGet(addr [20]byte) (*Customer, bool, error)
	CustomerPut(addr [20]byte, customer *Customer) error
	PromoterGet(addr [20]byte) (*Promoter, bool, error)
	PromoterPut(addr [20]byte, promoter *Promoter) error
}

// TokenTransfer is the external money-movement primitive. Transfers are
// atomic and all-or-nothing; any error aborts the surrounding operation.
type TokenTransfer interface {
	Transfer(asset string, from, to [20]byte, amount *big.Int) error
}

// Params are the deployment-fixed constants consumed by the engine.
type Params struct {
	Treasury         [20]byte
	PriceFeedID      string
	NoPromoter       [20]byte
	DefaultMaxCap    uint64
	DefaultMinCap    uint64
	DefaultFirstFee  uint64
	DefaultSecondFee uint64
}

type saleEvent struct {
	evt *types.Event
}

func (e saleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e saleEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the deposit pipeline and the configuration state
// machines over external state, oracle, and transfer collaborators.
type Engine struct {
	state   engineState
	gate    *AdminGate
	oracle  *OracleAdapter
	bank    TokenTransfer
	emitter events.Emitter
	params  Params
}

// NewEngine creates a sale engine with a no-op emitter. Callers wire state,
// gate, oracle and bank before use.
func NewEngine(params Params) *Engine {
	return &Engine{params: params, emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGate configures the admin gate consulted by configuration operations.
func (e *Engine) SetGate(gate *AdminGate) { e.gate = gate }

// SetOracle configures the price oracle adapter for native deposits.
func (e *Engine) SetOracle(oracle *OracleAdapter) { e.oracle = oracle }

// SetBank configures the token transfer primitive.
func (e *Engine) SetBank(bank TokenTransfer) { e.bank = bank }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(saleEvent{evt: event})
}

var escrowTag = []byte("SALE_PROMOTER_ESCROW")

// EscrowAddress derives the deterministic escrow sub-account holding a
// promoter's accrued fees until withdrawal.
func EscrowAddress(promoter [20]byte) [20]byte {
	digest := ethcrypto.Keccak256(escrowTag, promoter[:])
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

func (e *Engine) authorize(caller [20]byte) error {
	if e == nil || e.gate == nil {
		return ErrUnauthorized
	}
	return e.gate.Authorize(caller)
}

func (e *Engine) loadStore() (*Store, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	store, ok, err := e.state.StoreGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStoreNotFound
	}
	return store, nil
}

func (e *Engine) loadEpoch(id int16) (*Epoch, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	epoch, ok, err := e.state.EpochGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEpochNotFound
	}
	return epoch, nil
}

func (e *Engine) loadPromoter(addr [20]byte) (*Promoter, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	promoter, ok, err := e.state.PromoterGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPromoterNotFound
	}
	return promoter, nil
}

// --- Store operations (operator gated) ---

// InitStore creates the singleton store with deployment defaults. It can
// only run once.
func (e *Engine) InitStore(caller [20]byte) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.StoreGet(); err != nil {
		return err
	} else if ok {
		return ErrStoreExists
	}
	store := NewStore(e.params.DefaultMaxCap, e.params.DefaultMinCap, e.params.DefaultFirstFee, e.params.DefaultSecondFee)
	return e.state.StorePut(store)
}

// SetStoreCap replaces the per-deposit USD caps.
func (e *Engine) SetStoreCap(caller [20]byte, maxCap, minCap uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	store, err := e.loadStore()
	if err != nil {
		return err
	}
	if err := store.SetCap(maxCap, minCap); err != nil {
		return err
	}
	return e.state.StorePut(store)
}

// SetStoreFee replaces the store-level floor fee schedule.
func (e *Engine) SetStoreFee(caller [20]byte, firstFee, secondFee uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	store, err := e.loadStore()
	if err != nil {
		return err
	}
	if err := store.SetFee(firstFee, secondFee); err != nil {
		return err
	}
	return e.state.StorePut(store)
}

// EnableStore opens the store for deposits. Only valid once, from the
// Uninitialized state.
func (e *Engine) EnableStore(caller [20]byte) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	store, err := e.loadStore()
	if err != nil {
		return err
	}
	if err := store.Enable(); err != nil {
		return err
	}
	return e.state.StorePut(store)
}

// DisableStore permanently closes the store.
func (e *Engine) DisableStore(caller [20]byte) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	store, err := e.loadStore()
	if err != nil {
		return err
	}
	if err := store.Disable(); err != nil {
		return err
	}
	return e.state.StorePut(store)
}

// --- Epoch operations (operator gated) ---

// InitEpoch creates a new, disabled pricing round.
func (e *Engine) InitEpoch(caller [20]byte, id int16, price uint64, totalSupply *big.Int) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.EpochGet(id); err != nil {
		return err
	} else if ok {
		return ErrEpochExists
	}
	return e.state.EpochPut(NewEpoch(id, price, totalSupply))
}

// SetEpochPrice replaces the unit price of an epoch.
func (e *Engine) SetEpochPrice(caller [20]byte, id int16, price uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	epoch, err := e.loadEpoch(id)
	if err != nil {
		return err
	}
	epoch.SetPrice(price)
	return e.state.EpochPut(epoch)
}

// SetEpochSupply replaces the supply ceiling of an epoch. The ceiling may
// drop below the amount already sold; the epoch then rejects every further
// deposit.
func (e *Engine) SetEpochSupply(caller [20]byte, id int16, totalSupply *big.Int) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	epoch, err := e.loadEpoch(id)
	if err != nil {
		return err
	}
	epoch.SetSupply(totalSupply)
	return e.state.EpochPut(epoch)
}

// EnableEpoch enables the epoch and adopts it as the store's active epoch.
// Both mutations commit together or not at all.
func (e *Engine) EnableEpoch(caller [20]byte, id int16) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	epoch, err := e.loadEpoch(id)
	if err != nil {
		return err
	}
	store, err := e.loadStore()
	if err != nil {
		return err
	}
	if err := epoch.Enable(); err != nil {
		return err
	}
	store.SetActiveEpoch(epoch.ID)
	if err := e.state.EpochPut(epoch); err != nil {
		return err
	}
	return e.state.StorePut(store)
}

// DisableEpoch disables the epoch. The store's active pointer is left in
// place; deposits against it fail the active-pointer check.
func (e *Engine) DisableEpoch(caller [20]byte, id int16) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	epoch, err := e.loadEpoch(id)
	if err != nil {
		return err
	}
	if err := epoch.Disable(); err != nil {
		return err
	}
	return e.state.EpochPut(epoch)
}

// --- Promoter operations (operator gated) ---

// InitPromoter registers a referral identity with a negotiated fee schedule.
func (e *Engine) InitPromoter(caller, promoter [20]byte, firstFee, secondFee uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.PromoterGet(promoter); err != nil {
		return err
	} else if ok {
		return ErrPromoterExists
	}
	return e.state.PromoterPut(promoter, NewPromoter(firstFee, secondFee))
}

// SetPromoterFee replaces a promoter's negotiated schedule.
func (e *Engine) SetPromoterFee(caller, promoter [20]byte, firstFee, secondFee uint64) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	record, err := e.loadPromoter(promoter)
	if err != nil {
		return err
	}
	record.SetFee(firstFee, secondFee)
	return e.state.PromoterPut(promoter, record)
}

// EnablePromoter flags the promoter as active.
func (e *Engine) EnablePromoter(caller, promoter [20]byte) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	record, err := e.loadPromoter(promoter)
	if err != nil {
		return err
	}
	record.Enable()
	return e.state.PromoterPut(promoter, record)
}

// DisablePromoter flags the promoter as inactive.
func (e *Engine) DisablePromoter(caller, promoter [20]byte) error {
	if err := e.authorize(caller); err != nil {
		return err
	}
	record, err := e.loadPromoter(promoter)
	if err != nil {
		return err
	}
	record.Disable()
	return e.state.PromoterPut(promoter, record)
}

// --- Deposit pipeline ---

// DepositNative settles a native-currency deposit. The supplied feed and
// treasury identities must match the deployment configuration exactly.
func (e *Engine) DepositNative(customer, promoter [20]byte, epochID int16, amount uint64, feedID string, treasury [20]byte) error {
	store, epoch, err := e.depositPreconditions(epochID)
	if err != nil {
		return err
	}
	if treasury != e.params.Treasury {
		return ErrWrongTreasury
	}
	if feedID != e.params.PriceFeedID {
		return ErrWrongPriceFeed
	}
	if e.oracle == nil {
		return ErrPriceStale
	}
	price, err := e.oracle.Fresh(feedID)
	if err != nil {
		return err
	}
	deposit := new(big.Int).SetUint64(amount)
	usdValue, err := price.usdValue(deposit)
	if err != nil {
		return err
	}
	return e.settle(AssetNative, store, epoch, customer, promoter, deposit, usdValue)
}

// DepositStable settles a stablecoin deposit at a 1:1 USD peg.
func (e *Engine) DepositStable(asset string, customer, promoter [20]byte, epochID int16, amount uint64) error {
	normalized, err := NormalizeStableAsset(asset)
	if err != nil {
		return err
	}
	store, epoch, err := e.depositPreconditions(epochID)
	if err != nil {
		return err
	}
	deposit := new(big.Int).SetUint64(amount)
	usdValue, err := mulDiv(deposit, pow10(StableDecimals), big.NewInt(1))
	if err != nil {
		return err
	}
	return e.settle(normalized, store, epoch, customer, promoter, deposit, usdValue)
}

func (e *Engine) depositPreconditions(epochID int16) (*Store, *Epoch, error) {
	store, err := e.loadStore()
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, nil, ErrStoreNotEnabled
		}
		return nil, nil, err
	}
	if !store.IsEnabled() {
		return nil, nil, ErrStoreNotEnabled
	}
	epoch, err := e.loadEpoch(epochID)
	if err != nil {
		if errors.Is(err, ErrEpochNotFound) {
			return nil, nil, ErrEpochNotEnabled
		}
		return nil, nil, err
	}
	if !epoch.IsEnabled() {
		return nil, nil, ErrEpochNotEnabled
	}
	if store.ActiveEpoch != epoch.ID {
		return nil, nil, ErrInactiveEpoch
	}
	return store, epoch, nil
}

// settle runs the shared tail of the deposit pipeline: cap and supply
// enforcement, fee computation, the two sub-transfers, state commit and
// event emission.
func (e *Engine) settle(asset string, store *Store, epoch *Epoch, customer, promoter [20]byte, deposit, usdValue *big.Int) error {
	if e.bank == nil {
		return errNilBank
	}
	if deposit.Sign() <= 0 {
		return ErrInvalidAmount
	}
	assetAmount, err := mulDiv(usdValue, pow10(AssetDecimals), new(big.Int).SetUint64(epoch.Price))
	if err != nil {
		return err
	}
	if new(big.Int).SetUint64(store.MaxCap).Cmp(usdValue) < 0 {
		return ErrMaxCapExceeded
	}
	if new(big.Int).SetUint64(store.MinCap).Cmp(usdValue) > 0 {
		return ErrMinCapNotReached
	}
	sold, err := checkedAdd(epoch.TotalSold, assetAmount)
	if err != nil {
		return err
	}
	if sold.Cmp(epoch.TotalSupply) > 0 {
		return ErrSupplyExceeded
	}

	referred := promoter != e.params.NoPromoter
	var promoterRecord *Promoter
	if referred {
		record, ok, err := e.state.PromoterGet(promoter)
		if err != nil {
			return err
		}
		if !ok {
			record = NewPromoter(0, 0)
		}
		promoterRecord = record
	}
	fees, err := QuoteFee(QuoteInput{
		StoreSchedule:    store.Schedule(),
		PromoterSchedule: promoterRecord.Schedule(),
		DepositAmount:    deposit,
		AssetAmount:      assetAmount,
		Referred:         referred,
	})
	if err != nil {
		return err
	}

	net := new(big.Int).Sub(deposit, fees.SettlementFee)
	if net.Sign() > 0 {
		if err := e.bank.Transfer(asset, customer, e.params.Treasury, net); err != nil {
			return err
		}
	}
	if fees.SettlementFee.Sign() > 0 {
		if err := e.bank.Transfer(asset, customer, EscrowAddress(promoter), fees.SettlementFee); err != nil {
			return err
		}
	}

	if err := store.RecordSale(assetAmount); err != nil {
		return err
	}
	if err := epoch.RecordSale(assetAmount); err != nil {
		return err
	}
	customerRecord, ok, err := e.state.CustomerGet(customer)
	if err != nil {
		return err
	}
	if !ok {
		customerRecord = &Customer{AssetAmount: big.NewInt(0)}
	}
	total, err := checkedAdd(customerRecord.AssetAmount, assetAmount)
	if err != nil {
		return err
	}
	customerRecord.AssetAmount = total

	if err := e.state.StorePut(store); err != nil {
		return err
	}
	if err := e.state.EpochPut(epoch); err != nil {
		return err
	}
	if err := e.state.CustomerPut(customer, customerRecord); err != nil {
		return err
	}
	if referred {
		if err := promoterRecord.Accrue(asset, fees.SettlementFee); err != nil {
			return err
		}
		if err := promoterRecord.AccrueAsset(fees.AssetFee); err != nil {
			return err
		}
		if err := e.state.PromoterPut(promoter, promoterRecord); err != nil {
			return err
		}
	}

	e.emit(NewDepositEvent(asset, epoch.ID, customer, promoter, deposit, assetAmount))
	return nil
}

// --- Withdrawal protocol ---

// WithdrawNative pays out the promoter's accrued native-currency fees. A
// zero balance is a silent no-op.
func (e *Engine) WithdrawNative(promoter [20]byte) error {
	if e.bank == nil {
		return errNilBank
	}
	record, err := e.loadPromoter(promoter)
	if err != nil {
		return err
	}
	balance, err := record.Accrued(AssetNative)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return nil
	}
	return e.payout(AssetNative, promoter, record, balance)
}

// WithdrawStable pays out the promoter's accrued fees in the supplied
// stablecoin. A zero balance is an error, unlike the native path.
func (e *Engine) WithdrawStable(asset string, promoter [20]byte) error {
	if e.bank == nil {
		return errNilBank
	}
	normalized, err := NormalizeStableAsset(asset)
	if err != nil {
		return err
	}
	record, err := e.loadPromoter(promoter)
	if err != nil {
		return err
	}
	balance, err := record.Accrued(normalized)
	if err != nil {
		return err
	}
	if balance.Sign() == 0 {
		return ErrPromoterNoFunds
	}
	return e.payout(normalized, promoter, record, balance)
}

// payout resets the accrual before issuing the escrow transfer so the same
// accrual can never be withdrawn twice. The caller runs inside a state
// transaction, so a failed transfer also rolls the reset back.
func (e *Engine) payout(asset string, promoter [20]byte, record *Promoter, balance *big.Int) error {
	if err := record.ResetAccrued(asset); err != nil {
		return err
	}
	if err := e.state.PromoterPut(promoter, record); err != nil {
		return err
	}
	if err := e.bank.Transfer(asset, EscrowAddress(promoter), promoter, balance); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(asset, promoter, balance))
	return nil
}
