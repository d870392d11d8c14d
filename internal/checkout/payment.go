package checkout

import (
	"fmt"
	"shop-checkout/internal/dto"
	"strings"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodUPI  Method = "upi"
	MethodCard Method = "card"
)

func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodUPI, MethodCard:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want upi or card)", ErrUnknownMethod, s)
	}
}

// PendingOrder is a created, unpaid order plus the amounts known before a
// payment artifact is requested.
type PendingOrder struct {
	ID         dto.OrderID
	TotalPrice decimal.Decimal // from order creation, may be zero
	CartTotal  decimal.Decimal // last-resort fallback
}

// Payment is the artifact the backend produced for one order: a QR image
// reference for UPI or a hosted page link for cards.
type Payment struct {
	Method      Method
	OrderID     dto.OrderID
	Amount      decimal.Decimal
	QRCodeURL   string
	PaymentLink string
}

// ResolveAmount picks the amount to show: the first positive value of
// backend payment amount, order total, cart total.
func ResolveAmount(candidates ...decimal.Decimal) decimal.Decimal {
	for _, c := range candidates {
		if c.IsPositive() {
			return c
		}
	}
	return decimal.Zero
}

// CanonicalOrderID prefers the id the backend echoed back.
func CanonicalOrderID(returned, requested dto.OrderID) dto.OrderID {
	if returned != "" {
		return returned
	}
	return requested
}
