package sale

import "errors"

var (
	ErrUnauthorized      = errors.New("sale: unauthorized")
	ErrStoreExists       = errors.New("sale: store already initialised")
	ErrStoreNotFound     = errors.New("sale: store not found")
	ErrStoreEnabled      = errors.New("sale: store already enabled or disabled")
	ErrStoreNotEnabled   = errors.New("sale: store not enabled")
	ErrCapOrder          = errors.New("sale: min cap larger than max cap")
	ErrFeeTooLarge       = errors.New("sale: fee exceeds 100%")
	ErrEpochExists       = errors.New("sale: epoch already initialised")
	ErrEpochNotFound     = errors.New("sale: epoch not found")
	ErrEpochEnabled      = errors.New("sale: epoch already enabled")
	ErrEpochNotEnabled   = errors.New("sale: epoch not enabled")
	ErrInactiveEpoch     = errors.New("sale: epoch is not the active epoch")
	ErrWrongPriceFeed    = errors.New("sale: wrong price feed identity")
	ErrWrongTreasury     = errors.New("sale: wrong treasury identity")
	ErrPriceStale        = errors.New("sale: oracle price is down")
	ErrMaxCapExceeded    = errors.New("sale: max cap exceeded")
	ErrMinCapNotReached  = errors.New("sale: min cap not reached")
	ErrSupplyExceeded    = errors.New("sale: epoch supply exceeded")
	ErrPromoterExists    = errors.New("sale: promoter already initialised")
	ErrPromoterNotFound  = errors.New("sale: promoter not found")
	ErrPromoterNoFunds   = errors.New("sale: promoter has no funds")
	ErrAmountOverflow    = errors.New("sale: amount overflows 128-bit range")
	ErrUnsupportedAsset  = errors.New("sale: unsupported settlement asset")
	ErrInvalidAmount     = errors.New("sale: amount must be positive")
)
