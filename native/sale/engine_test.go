package sale

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"salestore/core/events"
)

type mockState struct {
	store     *Store
	epochs    map[int16]*Epoch
	customers map[[20]byte]*Customer
	promoters map[[20]byte]*Promoter
}

func newMockState() *mockState {
	return &mockState{
		epochs:    make(map[int16]*Epoch),
		customers: make(map[[20]byte]*Customer),
		promoters: make(map[[20]byte]*Promoter),
	}
}

func (m *mockState) StoreGet() (*Store, bool, error) {
	if m.store == nil {
		return nil, false, nil
	}
	return m.store.Clone(), true, nil
}

func (m *mockState) StorePut(store *Store) error {
	m.store = store.Clone()
	return nil
}

func (m *mockState) EpochGet(id int16) (*Epoch, bool, error) {
	epoch, ok := m.epochs[id]
	if !ok {
		return nil, false, nil
	}
	return epoch.Clone(), true, nil
}

func (m *mockState) EpochPut(epoch *Epoch) error {
	m.epochs[epoch.ID] = epoch.Clone()
	return nil
}

func (m *mockState) CustomerGet(addr [20]byte) (*Customer, bool, error) {
	customer, ok := m.customers[addr]
	if !ok {
		return nil, false, nil
	}
	return customer.Clone(), true, nil
}

func (m *mockState) CustomerPut(addr [20]byte, customer *Customer) error {
	m.customers[addr] = customer.Clone()
	return nil
}

func (m *mockState) PromoterGet(addr [20]byte) (*Promoter, bool, error) {
	promoter, ok := m.promoters[addr]
	if !ok {
		return nil, false, nil
	}
	return promoter.Clone(), true, nil
}

func (m *mockState) PromoterPut(addr [20]byte, promoter *Promoter) error {
	m.promoters[addr] = promoter.Clone()
	return nil
}

type transferRecord struct {
	asset  string
	from   [20]byte
	to     [20]byte
	amount *big.Int
}

type mockBank struct {
	transfers []transferRecord
	err       error
}

func (m *mockBank) Transfer(asset string, from, to [20]byte, amount *big.Int) error {
	if m.err != nil {
		return m.err
	}
	m.transfers = append(m.transfers, transferRecord{asset: asset, from: from, to: to, amount: new(big.Int).Set(amount)})
	return nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

var (
	admin      = addr(0x01)
	treasury   = addr(0xAA)
	noPromoter = addr(0xEE)
	customer   = addr(0x10)
	promoter   = addr(0x20)
	stranger   = addr(0x7F)

	testFeed = "native-usd"
)

func testParams() Params {
	return Params{
		Treasury:         treasury,
		PriceFeedID:      testFeed,
		NoPromoter:       noPromoter,
		DefaultMaxCap:    1_000_000_000_000_000,
		DefaultMinCap:    100_000_000_000,
		DefaultFirstFee:  50_000_000,
		DefaultSecondFee: 50_000_000,
	}
}

type fixture struct {
	engine  *Engine
	state   *mockState
	bank    *mockBank
	oracle  *ManualOracle
	emitter *captureEmitter
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		state:   newMockState(),
		bank:    &mockBank{},
		oracle:  NewManualOracle(),
		emitter: &captureEmitter{},
		now:     time.Unix(1_700_000_000, 0),
	}
	adapter := NewOracleAdapter(fx.oracle, 60*time.Second)
	adapter.SetClock(func() time.Time { return fx.now })
	engine := NewEngine(testParams())
	engine.SetState(fx.state)
	engine.SetGate(NewAdminGate([][20]byte{admin}))
	engine.SetOracle(adapter)
	engine.SetBank(fx.bank)
	engine.SetEmitter(fx.emitter)
	fx.engine = engine
	return fx
}

// openStore provisions an enabled store with an enabled active epoch priced
// at one USD-scaled unit per asset unit and a one-million-token supply.
func (fx *fixture) openStore(t *testing.T) {
	t.Helper()
	if err := fx.engine.InitStore(admin); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := fx.engine.EnableStore(admin); err != nil {
		t.Fatalf("enable store: %v", err)
	}
	supply := new(big.Int).SetUint64(1_000_000_000_000_000)
	if err := fx.engine.InitEpoch(admin, 0, 1_000_000_000, supply); err != nil {
		t.Fatalf("init epoch: %v", err)
	}
	if err := fx.engine.EnableEpoch(admin, 0); err != nil {
		t.Fatalf("enable epoch: %v", err)
	}
	if err := fx.engine.InitPromoter(admin, promoter, 0, 0); err != nil {
		t.Fatalf("init promoter: %v", err)
	}
}

func (fx *fixture) setPrice(price uint64, observed time.Time) {
	fx.oracle.Set(testFeed, PriceData{Price: price, Expo: 9, ObservedAt: observed})
}

func TestInitStoreRequiresOperator(t *testing.T) {
	fx := newFixture(t)
	if err := fx.engine.InitStore(stranger); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := fx.engine.InitStore(admin); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := fx.engine.InitStore(admin); !errors.Is(err, ErrStoreExists) {
		t.Fatalf("expected ErrStoreExists, got %v", err)
	}
	store := fx.state.store
	if store.MaxCap != 1_000_000_000_000_000 || store.MinCap != 100_000_000_000 {
		t.Fatalf("unexpected caps: %d/%d", store.MaxCap, store.MinCap)
	}
	if store.ActiveEpoch != NoActiveEpoch {
		t.Fatalf("expected no active epoch, got %d", store.ActiveEpoch)
	}
}

func TestStoreLifecycleIsOneWay(t *testing.T) {
	fx := newFixture(t)
	if err := fx.engine.InitStore(admin); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := fx.engine.DisableStore(admin); !errors.Is(err, ErrStoreNotEnabled) {
		t.Fatalf("disable before enable: expected ErrStoreNotEnabled, got %v", err)
	}
	if err := fx.engine.EnableStore(admin); err != nil {
		t.Fatalf("enable store: %v", err)
	}
	if err := fx.engine.EnableStore(admin); !errors.Is(err, ErrStoreEnabled) {
		t.Fatalf("double enable: expected ErrStoreEnabled, got %v", err)
	}
	if err := fx.engine.DisableStore(admin); err != nil {
		t.Fatalf("disable store: %v", err)
	}
	if err := fx.engine.EnableStore(admin); !errors.Is(err, ErrStoreEnabled) {
		t.Fatalf("re-enable after disable: expected ErrStoreEnabled, got %v", err)
	}
	if err := fx.engine.DisableStore(admin); !errors.Is(err, ErrStoreNotEnabled) {
		t.Fatalf("double disable: expected ErrStoreNotEnabled, got %v", err)
	}
}

func TestSetStoreCapRejectsInvertedBounds(t *testing.T) {
	fx := newFixture(t)
	if err := fx.engine.InitStore(admin); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := fx.engine.SetStoreCap(admin, 100, 200); !errors.Is(err, ErrCapOrder) {
		t.Fatalf("expected ErrCapOrder, got %v", err)
	}
	if err := fx.engine.SetStoreFee(admin, FeeDenominator+1, 0); !errors.Is(err, ErrFeeTooLarge) {
		t.Fatalf("expected ErrFeeTooLarge, got %v", err)
	}
	if err := fx.engine.SetStoreFee(admin, FeeDenominator, FeeDenominator); err != nil {
		t.Fatalf("full fee should be allowed: %v", err)
	}
}

func TestEnableEpochAdoptsActivePointer(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if fx.state.store.ActiveEpoch != 0 {
		t.Fatalf("expected active epoch 0, got %d", fx.state.store.ActiveEpoch)
	}
	if err := fx.engine.InitEpoch(admin, 1, 2_000_000_000, big.NewInt(1)); err != nil {
		t.Fatalf("init epoch 1: %v", err)
	}
	if err := fx.engine.EnableEpoch(admin, 1); err != nil {
		t.Fatalf("enable epoch 1: %v", err)
	}
	if fx.state.store.ActiveEpoch != 1 {
		t.Fatalf("expected active epoch 1, got %d", fx.state.store.ActiveEpoch)
	}
	// Epoch 0 stays enabled but is no longer the active pointer.
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrInactiveEpoch) {
		t.Fatalf("expected ErrInactiveEpoch, got %v", err)
	}
}

func TestDepositStableSettles(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)

	// 200 USDC at six decimals, price 1 USD per asset unit, 5% floor fee.
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if len(fx.bank.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(fx.bank.transfers))
	}
	net := fx.bank.transfers[0]
	if net.asset != AssetUSDC || net.from != customer || net.to != treasury {
		t.Fatalf("unexpected net transfer: %+v", net)
	}
	if net.amount.Cmp(big.NewInt(190_000_000)) != 0 {
		t.Fatalf("expected net 190000000, got %s", net.amount)
	}
	fee := fx.bank.transfers[1]
	if fee.to != EscrowAddress(promoter) {
		t.Fatalf("fee transfer not routed to escrow")
	}
	if fee.amount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("expected fee 10000000, got %s", fee.amount)
	}

	wantAsset := big.NewInt(200_000_000_000)
	if fx.state.store.TotalSold.Cmp(wantAsset) != 0 {
		t.Fatalf("store total sold: got %s want %s", fx.state.store.TotalSold, wantAsset)
	}
	if fx.state.epochs[0].TotalSold.Cmp(wantAsset) != 0 {
		t.Fatalf("epoch total sold: got %s want %s", fx.state.epochs[0].TotalSold, wantAsset)
	}
	if fx.state.customers[customer].AssetAmount.Cmp(wantAsset) != 0 {
		t.Fatalf("customer balance: got %s want %s", fx.state.customers[customer].AssetAmount, wantAsset)
	}
	record := fx.state.promoters[promoter]
	if record.USDCAmount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("promoter usdc accrual: got %s", record.USDCAmount)
	}
	if record.AssetAmount.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("promoter asset accrual: got %s", record.AssetAmount)
	}

	if len(fx.emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fx.emitter.events))
	}
	if got := fx.emitter.events[0].EventType(); got != EventTypeDepositUSDC {
		t.Fatalf("unexpected event type %q", got)
	}
}

func TestDepositNativeUsesOraclePrice(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	// 2 USD per native unit, freshly observed.
	fx.setPrice(2_000_000_000, fx.now)

	if err := fx.engine.DepositNative(customer, promoter, 0, 100_000_000_000, testFeed, treasury); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 100 native at 2 USD buys 200 asset units; 5% fee on the native leg.
	if len(fx.bank.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(fx.bank.transfers))
	}
	if fx.bank.transfers[0].amount.Cmp(big.NewInt(95_000_000_000)) != 0 {
		t.Fatalf("net transfer: got %s", fx.bank.transfers[0].amount)
	}
	if fx.bank.transfers[1].amount.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("fee transfer: got %s", fx.bank.transfers[1].amount)
	}
	if fx.state.epochs[0].TotalSold.Cmp(big.NewInt(200_000_000_000)) != 0 {
		t.Fatalf("epoch total sold: got %s", fx.state.epochs[0].TotalSold)
	}
	if fx.state.promoters[promoter].NativeAmount.Cmp(big.NewInt(5_000_000_000)) != 0 {
		t.Fatalf("promoter native accrual: got %s", fx.state.promoters[promoter].NativeAmount)
	}
}

func TestDepositNativeValidatesDestinations(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	fx.setPrice(2_000_000_000, fx.now)

	if err := fx.engine.DepositNative(customer, promoter, 0, 100_000_000_000, testFeed, stranger); !errors.Is(err, ErrWrongTreasury) {
		t.Fatalf("expected ErrWrongTreasury, got %v", err)
	}
	if err := fx.engine.DepositNative(customer, promoter, 0, 100_000_000_000, "bogus-feed", treasury); !errors.Is(err, ErrWrongPriceFeed) {
		t.Fatalf("expected ErrWrongPriceFeed, got %v", err)
	}
	if len(fx.bank.transfers) != 0 {
		t.Fatalf("rejected deposits must not move funds")
	}
}

func TestDepositNativeRejectsStalePrice(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	fx.setPrice(2_000_000_000, fx.now.Add(-61*time.Second))

	err := fx.engine.DepositNative(customer, promoter, 0, 100_000_000_000, testFeed, treasury)
	if !errors.Is(err, ErrPriceStale) {
		t.Fatalf("expected ErrPriceStale, got %v", err)
	}

	// An observation exactly at the window edge is still fresh.
	fx.setPrice(2_000_000_000, fx.now.Add(-60*time.Second))
	if err := fx.engine.DepositNative(customer, promoter, 0, 100_000_000_000, testFeed, treasury); err != nil {
		t.Fatalf("edge-of-window deposit: %v", err)
	}
}

func TestDepositPreconditionOrder(t *testing.T) {
	fx := newFixture(t)

	// No store at all reads as a disabled store.
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrStoreNotEnabled) {
		t.Fatalf("missing store: expected ErrStoreNotEnabled, got %v", err)
	}

	if err := fx.engine.InitStore(admin); err != nil {
		t.Fatalf("init store: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrStoreNotEnabled) {
		t.Fatalf("uninitialized store: expected ErrStoreNotEnabled, got %v", err)
	}

	if err := fx.engine.EnableStore(admin); err != nil {
		t.Fatalf("enable store: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrEpochNotEnabled) {
		t.Fatalf("missing epoch: expected ErrEpochNotEnabled, got %v", err)
	}

	if err := fx.engine.InitEpoch(admin, 0, 1_000_000_000, big.NewInt(1_000_000_000_000)); err != nil {
		t.Fatalf("init epoch: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrEpochNotEnabled) {
		t.Fatalf("disabled epoch: expected ErrEpochNotEnabled, got %v", err)
	}
}

func TestDepositEnforcesCaps(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.SetStoreCap(admin, 300_000_000_000, 150_000_000_000); err != nil {
		t.Fatalf("set cap: %v", err)
	}

	// 400 USD exceeds the 300 USD max cap.
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 400_000_000); !errors.Is(err, ErrMaxCapExceeded) {
		t.Fatalf("expected ErrMaxCapExceeded, got %v", err)
	}
	// 100 USD falls short of the 150 USD min cap.
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 100_000_000); !errors.Is(err, ErrMinCapNotReached) {
		t.Fatalf("expected ErrMinCapNotReached, got %v", err)
	}
	if len(fx.bank.transfers) != 0 {
		t.Fatalf("rejected deposits must not move funds")
	}
}

func TestDepositEnforcesSupplyCeiling(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	// Ceiling below what a 200 USD deposit would buy.
	if err := fx.engine.SetEpochSupply(admin, 0, big.NewInt(199_000_000_000)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrSupplyExceeded) {
		t.Fatalf("expected ErrSupplyExceeded, got %v", err)
	}
	// A ceiling exactly at the purchase amount settles.
	if err := fx.engine.SetEpochSupply(admin, 0, big.NewInt(200_000_000_000)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit at ceiling: %v", err)
	}
}

func TestDepositWithoutReferralPaysNoFee(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)

	if err := fx.engine.DepositStable(AssetUSDC, customer, noPromoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(fx.bank.transfers) != 1 {
		t.Fatalf("expected single transfer, got %d", len(fx.bank.transfers))
	}
	if fx.bank.transfers[0].amount.Cmp(big.NewInt(200_000_000)) != 0 {
		t.Fatalf("full deposit should reach treasury, got %s", fx.bank.transfers[0].amount)
	}
	if _, ok := fx.state.promoters[noPromoter]; ok {
		t.Fatalf("sentinel promoter must not be materialized")
	}
}

func TestDepositCreatesUnknownPromoterLazily(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	unknown := addr(0x33)

	if err := fx.engine.DepositStable(AssetUSDT, customer, unknown, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	record, ok := fx.state.promoters[unknown]
	if !ok {
		t.Fatalf("expected lazily created promoter record")
	}
	if record.FirstFee != 0 || record.SecondFee != 0 {
		t.Fatalf("lazy promoter must carry a zero schedule, got %d/%d", record.FirstFee, record.SecondFee)
	}
	// The store floor still applies.
	if record.USDTAmount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("expected floor fee accrual, got %s", record.USDTAmount)
	}
}

func TestDepositUsesHigherPromoterSchedule(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	// 10% first tier beats the 5% floor.
	if err := fx.engine.SetPromoterFee(admin, promoter, 100_000_000, 0); err != nil {
		t.Fatalf("set promoter fee: %v", err)
	}

	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if fx.bank.transfers[1].amount.Cmp(big.NewInt(20_000_000)) != 0 {
		t.Fatalf("expected 10%% fee, got %s", fx.bank.transfers[1].amount)
	}
	// Second tier keeps the floor because the promoter's is lower.
	if fx.state.promoters[promoter].AssetAmount.Cmp(big.NewInt(10_000_000_000)) != 0 {
		t.Fatalf("expected floor asset fee, got %s", fx.state.promoters[promoter].AssetAmount)
	}
}

func TestDepositSplitPreservesSum(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)

	// An amount where the 5% fee rounds down.
	deposit := uint64(100_000_001)
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if len(fx.bank.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(fx.bank.transfers))
	}
	sum := new(big.Int).Add(fx.bank.transfers[0].amount, fx.bank.transfers[1].amount)
	if sum.Cmp(new(big.Int).SetUint64(deposit)) != 0 {
		t.Fatalf("net+fee must equal the deposit: got %s", sum)
	}
}

func TestDepositZeroAmountRejected(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestDepositRejectsNativeAsStable(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.DepositStable(AssetNative, customer, promoter, 0, 200_000_000); !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestDisabledPromoterStillAccrues(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.DisablePromoter(admin, promoter); err != nil {
		t.Fatalf("disable promoter: %v", err)
	}
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if fx.state.promoters[promoter].USDCAmount.Sign() == 0 {
		t.Fatalf("disabled promoter should still accrue referral fees")
	}
}

func TestWithdrawStablePaysOutAndResets(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.bank.transfers = nil

	if err := fx.engine.WithdrawStable(AssetUSDC, promoter); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(fx.bank.transfers) != 1 {
		t.Fatalf("expected 1 transfer, got %d", len(fx.bank.transfers))
	}
	got := fx.bank.transfers[0]
	if got.from != EscrowAddress(promoter) || got.to != promoter {
		t.Fatalf("payout must flow escrow to promoter: %+v", got)
	}
	if got.amount.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("payout amount: got %s", got.amount)
	}
	if fx.state.promoters[promoter].USDCAmount.Sign() != 0 {
		t.Fatalf("accrual must be reset after payout")
	}
	// A second withdrawal finds nothing.
	if err := fx.engine.WithdrawStable(AssetUSDC, promoter); !errors.Is(err, ErrPromoterNoFunds) {
		t.Fatalf("expected ErrPromoterNoFunds, got %v", err)
	}
}

func TestWithdrawNativeZeroIsSilent(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)

	if err := fx.engine.WithdrawNative(promoter); err != nil {
		t.Fatalf("zero native withdrawal must be a no-op: %v", err)
	}
	if len(fx.bank.transfers) != 0 {
		t.Fatalf("zero withdrawal must not move funds")
	}
	if err := fx.engine.WithdrawStable(AssetUSDC, promoter); !errors.Is(err, ErrPromoterNoFunds) {
		t.Fatalf("zero stable withdrawal must fail, got %v", err)
	}
}

func TestWithdrawUnknownPromoterFails(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.WithdrawNative(stranger); !errors.Is(err, ErrPromoterNotFound) {
		t.Fatalf("expected ErrPromoterNotFound, got %v", err)
	}
}

func TestWithdrawEmitsEvent(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	if err := fx.engine.DepositStable(AssetUSDT, customer, promoter, 0, 200_000_000); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	fx.emitter.events = nil

	if err := fx.engine.WithdrawStable(AssetUSDT, promoter); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if len(fx.emitter.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(fx.emitter.events))
	}
	if got := fx.emitter.events[0].EventType(); got != EventTypeWithdrawUSDT {
		t.Fatalf("unexpected event type %q", got)
	}
}

func TestEscrowAddressIsStablePerPromoter(t *testing.T) {
	a := EscrowAddress(promoter)
	b := EscrowAddress(promoter)
	if a != b {
		t.Fatalf("escrow derivation must be deterministic")
	}
	if a == EscrowAddress(stranger) {
		t.Fatalf("distinct promoters must map to distinct escrows")
	}
	if a == promoter {
		t.Fatalf("escrow must differ from the promoter identity")
	}
}

func TestGatedOperationsRejectStrangers(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	cases := map[string]error{
		"setCap":          fx.engine.SetStoreCap(stranger, 1, 1),
		"setFee":          fx.engine.SetStoreFee(stranger, 1, 1),
		"disableStore":    fx.engine.DisableStore(stranger),
		"initEpoch":       fx.engine.InitEpoch(stranger, 9, 1, big.NewInt(1)),
		"setPrice":        fx.engine.SetEpochPrice(stranger, 0, 1),
		"setSupply":       fx.engine.SetEpochSupply(stranger, 0, big.NewInt(1)),
		"disableEpoch":    fx.engine.DisableEpoch(stranger, 0),
		"initPromoter":    fx.engine.InitPromoter(stranger, stranger, 0, 0),
		"setPromoterFee":  fx.engine.SetPromoterFee(stranger, promoter, 0, 0),
		"disablePromoter": fx.engine.DisablePromoter(stranger, promoter),
	}
	for name, err := range cases {
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%s: expected ErrUnauthorized, got %v", name, err)
		}
	}
}

func TestDepositAbortsWhenTransferFails(t *testing.T) {
	fx := newFixture(t)
	fx.openStore(t)
	transferErr := errors.New("insufficient funds")
	fx.bank.err = transferErr

	if err := fx.engine.DepositStable(AssetUSDC, customer, promoter, 0, 200_000_000); !errors.Is(err, transferErr) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	// The engine reports the failure; the surrounding transaction discards
	// any staged writes, so nothing here asserts on state.
	if len(fx.emitter.events) != 0 {
		t.Fatalf("failed deposit must not emit")
	}
}
