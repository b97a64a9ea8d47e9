package sale

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// PriceData is one oracle observation: an integer price scaled by 10^Expo
// (so the quoted value is Price / 10^Expo USD per settlement unit) and the
// time the feed observed it.
type PriceData struct {
	Price      uint64
	Expo       uint32
	ObservedAt time.Time
}

// PriceOracle resolves the latest observation published under a feed
// identity. Implementations do not enforce freshness; the adapter does.
type PriceOracle interface {
	Read(feedID string) (PriceData, error)
}

// OracleAdapter wraps an untrusted feed with a freshness window. Reads older
// than the window fail with ErrPriceStale.
type OracleAdapter struct {
	source PriceOracle
	maxAge time.Duration
	now    func() time.Time
}

// NewOracleAdapter constructs an adapter over the supplied source.
func NewOracleAdapter(source PriceOracle, maxAge time.Duration) *OracleAdapter {
	return &OracleAdapter{source: source, maxAge: maxAge, now: time.Now}
}

// SetClock overrides the adapter clock, primarily for deterministic testing.
func (a *OracleAdapter) SetClock(now func() time.Time) {
	if a == nil || now == nil {
		return
	}
	a.now = now
}

// Fresh reads the feed and rejects observations older than the freshness
// window.
func (a *OracleAdapter) Fresh(feedID string) (PriceData, error) {
	if a == nil || a.source == nil {
		return PriceData{}, fmt.Errorf("sale: oracle not configured")
	}
	data, err := a.source.Read(feedID)
	if err != nil {
		return PriceData{}, fmt.Errorf("%w: %v", ErrPriceStale, err)
	}
	if a.now().Sub(data.ObservedAt) > a.maxAge {
		return PriceData{}, ErrPriceStale
	}
	return data, nil
}

// usdValue converts a native-currency deposit into USD-scaled units using
// the oracle observation.
func (d PriceData) usdValue(amount *big.Int) (*big.Int, error) {
	return mulDiv(amount, new(big.Int).SetUint64(d.Price), pow10(d.Expo))
}

// ManualOracle is an in-memory feed store for tests and local tooling.
type ManualOracle struct {
	mu    sync.RWMutex
	feeds map[string]PriceData
}

// NewManualOracle constructs an empty manual oracle.
func NewManualOracle() *ManualOracle {
	return &ManualOracle{feeds: make(map[string]PriceData)}
}

// Set records the observation for the supplied feed identity.
func (o *ManualOracle) Set(feedID string, data PriceData) {
	o.mu.Lock()
	o.feeds[feedID] = data
	o.mu.Unlock()
}

// Read implements the PriceOracle interface.
func (o *ManualOracle) Read(feedID string) (PriceData, error) {
	o.mu.RLock()
	data, ok := o.feeds[feedID]
	o.mu.RUnlock()
	if !ok {
		return PriceData{}, fmt.Errorf("manual oracle: feed %s not found", feedID)
	}
	return data, nil
}
