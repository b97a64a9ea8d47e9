package sale

import (
	"math/big"
	"testing"
)

func TestQuoteFeeUnreferredIsFree(t *testing.T) {
	result, err := QuoteFee(QuoteInput{
		StoreSchedule:    Schedule{First: 50_000_000, Second: 50_000_000},
		PromoterSchedule: Schedule{First: 900_000_000, Second: 900_000_000},
		DepositAmount:    big.NewInt(1_000_000),
		AssetAmount:      big.NewInt(1_000_000),
		Referred:         false,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.SettlementFee.Sign() != 0 || result.AssetFee.Sign() != 0 {
		t.Fatalf("unreferred deposits owe nothing, got %s/%s", result.SettlementFee, result.AssetFee)
	}
}

func TestQuoteFeeTakesPerTierMaximum(t *testing.T) {
	result, err := QuoteFee(QuoteInput{
		StoreSchedule:    Schedule{First: 50_000_000, Second: 50_000_000},
		PromoterSchedule: Schedule{First: 100_000_000, Second: 10_000_000},
		DepositAmount:    big.NewInt(1_000_000_000),
		AssetAmount:      big.NewInt(1_000_000_000),
		Referred:         true,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// First tier follows the promoter (10%), second tier the floor (5%).
	if result.SettlementFee.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("settlement fee: got %s", result.SettlementFee)
	}
	if result.AssetFee.Cmp(big.NewInt(50_000_000)) != 0 {
		t.Fatalf("asset fee: got %s", result.AssetFee)
	}
}

func TestQuoteFeeFloorsRounding(t *testing.T) {
	result, err := QuoteFee(QuoteInput{
		StoreSchedule: Schedule{First: 1, Second: 1},
		DepositAmount: big.NewInt(FeeDenominator - 1),
		AssetAmount:   big.NewInt(FeeDenominator - 1),
		Referred:      true,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// One part per billion of just under a billion rounds down to zero.
	if result.SettlementFee.Sign() != 0 || result.AssetFee.Sign() != 0 {
		t.Fatalf("expected zero fees, got %s/%s", result.SettlementFee, result.AssetFee)
	}
}

func TestQuoteFeeFullRate(t *testing.T) {
	result, err := QuoteFee(QuoteInput{
		StoreSchedule: Schedule{First: FeeDenominator, Second: FeeDenominator},
		DepositAmount: big.NewInt(12345),
		AssetAmount:   big.NewInt(67890),
		Referred:      true,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if result.SettlementFee.Cmp(big.NewInt(12345)) != 0 {
		t.Fatalf("full first tier must consume the deposit, got %s", result.SettlementFee)
	}
	if result.AssetFee.Cmp(big.NewInt(67890)) != 0 {
		t.Fatalf("full second tier must consume the asset amount, got %s", result.AssetFee)
	}
}
