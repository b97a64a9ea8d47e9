package sale

import (
	"fmt"
	"math/big"
)

// NewPromoter returns a promoter with the supplied negotiated schedule and
// zero accruals. Promoters start enabled.
func NewPromoter(firstFee, secondFee uint64) *Promoter {
	return &Promoter{
		FirstFee:     firstFee,
		SecondFee:    secondFee,
		NativeAmount: big.NewInt(0),
		USDCAmount:   big.NewInt(0),
		USDTAmount:   big.NewInt(0),
		AssetAmount:  big.NewInt(0),
		Enabled:      true,
	}
}

// SetFee replaces the promoter's negotiated schedule. The effective fee per
// tier is still the maximum of this schedule and the store floor.
func (p *Promoter) SetFee(firstFee, secondFee uint64) {
	p.FirstFee = firstFee
	p.SecondFee = secondFee
}

// Enable flags the promoter as active. The operation is idempotent.
func (p *Promoter) Enable() {
	p.Enabled = true
}

// Disable flags the promoter as inactive. The operation is idempotent.
func (p *Promoter) Disable() {
	p.Enabled = false
}

// Accrue adds a settlement-asset fee to the matching accrual bucket.
func (p *Promoter) Accrue(asset string, amount *big.Int) error {
	bucket, err := p.bucket(asset)
	if err != nil {
		return err
	}
	total, err := checkedAdd(*bucket, amount)
	if err != nil {
		return err
	}
	*bucket = total
	return nil
}

// AccrueAsset adds an asset-unit fee to the asset accrual.
func (p *Promoter) AccrueAsset(amount *big.Int) error {
	total, err := checkedAdd(p.AssetAmount, amount)
	if err != nil {
		return err
	}
	p.AssetAmount = total
	return nil
}

// Accrued returns the current accrual for the supplied settlement asset.
func (p *Promoter) Accrued(asset string) (*big.Int, error) {
	bucket, err := p.bucket(asset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(*bucket), nil
}

// ResetAccrued zeroes the accrual for the supplied settlement asset. The
// reset happens before the matching escrow transfer is considered final so
// the same accrual can never be paid out twice.
func (p *Promoter) ResetAccrued(asset string) error {
	bucket, err := p.bucket(asset)
	if err != nil {
		return err
	}
	*bucket = big.NewInt(0)
	return nil
}

func (p *Promoter) bucket(asset string) (**big.Int, error) {
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	if p.NativeAmount == nil {
		p.NativeAmount = big.NewInt(0)
	}
	if p.USDCAmount == nil {
		p.USDCAmount = big.NewInt(0)
	}
	if p.USDTAmount == nil {
		p.USDTAmount = big.NewInt(0)
	}
	if p.AssetAmount == nil {
		p.AssetAmount = big.NewInt(0)
	}
	switch normalized {
	case AssetNative:
		return &p.NativeAmount, nil
	case AssetUSDC:
		return &p.USDCAmount, nil
	case AssetUSDT:
		return &p.USDTAmount, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAsset, asset)
}
