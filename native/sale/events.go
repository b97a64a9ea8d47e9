package sale

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"salestore/core/types"
)

// One event type per settlement asset, for both directions of money
// movement. Consumers filter on the full type string.
const (
	EventTypeDepositNative  = "sale.deposit.native"
	EventTypeDepositUSDC    = "sale.deposit.usdc"
	EventTypeDepositUSDT    = "sale.deposit.usdt"
	EventTypeWithdrawNative = "sale.withdraw.native"
	EventTypeWithdrawUSDC   = "sale.withdraw.usdc"
	EventTypeWithdrawUSDT   = "sale.withdraw.usdt"
)

func depositEventType(asset string) string {
	switch asset {
	case AssetUSDC:
		return EventTypeDepositUSDC
	case AssetUSDT:
		return EventTypeDepositUSDT
	default:
		return EventTypeDepositNative
	}
}

func withdrawEventType(asset string) string {
	switch asset {
	case AssetUSDC:
		return EventTypeWithdrawUSDC
	case AssetUSDT:
		return EventTypeWithdrawUSDT
	default:
		return EventTypeWithdrawNative
	}
}

// NewDepositEvent returns the canonical payload emitted after a successful
// deposit settles.
func NewDepositEvent(asset string, epochID int16, customer, promoter [20]byte, paidAmount, assetAmount *big.Int) *types.Event {
	attrs := map[string]string{
		"epoch":       strconv.FormatInt(int64(epochID), 10),
		"customer":    hex.EncodeToString(customer[:]),
		"promoter":    hex.EncodeToString(promoter[:]),
		"paidAmount":  bigString(paidAmount),
		"assetAmount": bigString(assetAmount),
	}
	return &types.Event{Type: depositEventType(asset), Attributes: attrs}
}

// NewWithdrawEvent returns the canonical payload emitted after a promoter
// withdrawal settles.
func NewWithdrawEvent(asset string, promoter [20]byte, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"promoter": hex.EncodeToString(promoter[:]),
		"amount":   bigString(amount),
	}
	return &types.Event{Type: withdrawEventType(asset), Attributes: attrs}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
