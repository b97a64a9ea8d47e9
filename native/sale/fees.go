package sale

import "math/big"

// QuoteInput carries everything the fee policy needs to price one deposit.
// DepositAmount is in the settlement asset's own units, AssetAmount in sold
// asset units. Referred is false when the deposit carries the "no promoter"
// sentinel.
type QuoteInput struct {
	StoreSchedule    Schedule
	PromoterSchedule Schedule
	DepositAmount    *big.Int
	AssetAmount      *big.Int
	Referred         bool
}

// QuoteResult is the fee split owed to the promoter: SettlementFee in the
// deposit's asset, AssetFee in sold asset units.
type QuoteResult struct {
	SettlementFee *big.Int
	AssetFee      *big.Int
}

// QuoteFee computes the promoter fee split for one deposit. Each tier
// resolves to the maximum of the store floor and the promoter's own
// schedule, applied as parts per billion with floor rounding. Deposits
// without a referral owe nothing.
func QuoteFee(in QuoteInput) (QuoteResult, error) {
	result := QuoteResult{SettlementFee: big.NewInt(0), AssetFee: big.NewInt(0)}
	if !in.Referred {
		return result, nil
	}
	firstFee := in.StoreSchedule.First
	if in.PromoterSchedule.First > firstFee {
		firstFee = in.PromoterSchedule.First
	}
	secondFee := in.StoreSchedule.Second
	if in.PromoterSchedule.Second > secondFee {
		secondFee = in.PromoterSchedule.Second
	}
	denominator := big.NewInt(FeeDenominator)
	settlementFee, err := mulDiv(in.DepositAmount, new(big.Int).SetUint64(firstFee), denominator)
	if err != nil {
		return QuoteResult{}, err
	}
	assetFee, err := mulDiv(in.AssetAmount, new(big.Int).SetUint64(secondFee), denominator)
	if err != nil {
		return QuoteResult{}, err
	}
	result.SettlementFee = settlementFee
	result.AssetFee = assetFee
	return result, nil
}
