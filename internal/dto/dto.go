package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderID is an order identifier as the backend sends it: either a bare
// JSON number (42) or a string ("42", "ORD_42").
type OrderID string

func (id *OrderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("decode order id: %w", err)
		}
		*id = OrderID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode order id: %w", err)
	}
	*id = OrderID(n.String())
	return nil
}

func (id OrderID) String() string {
	return string(id)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

type CartItem struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type Cart struct {
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type OrderItem struct {
	ProductID       int64           `json:"productId"`
	ProductName     string          `json:"productName"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
	Quantity        int             `json:"quantity"`
}

type Order struct {
	ID              OrderID         `json:"id"`
	Status          string          `json:"status"`
	Total           decimal.Decimal `json:"total"`
	OrderDate       string          `json:"orderDate"`
	ShippingAddress string          `json:"shippingAddress"`
	Items           []OrderItem     `json:"items"`
}

type CheckoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

type CheckoutResponse struct {
	OrderID    OrderID         `json:"orderId"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type PaymentRequest struct {
	OrderID OrderID `json:"orderId"`
}

type UPIPaymentResponse struct {
	OrderID   OrderID         `json:"orderId"`
	Amount    decimal.Decimal `json:"amount"`
	QRCodeURL string          `json:"qrCodeUrl"`
}

type CardPaymentResponse struct {
	OrderID     OrderID `json:"orderId"`
	PaymentLink string  `json:"paymentLink"`
}

// OrderStatusResponse accepts both transactionId and transaction_id, the
// backend has shipped both spellings.
type OrderStatusResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	TxnIDSnake    string `json:"transaction_id"`
}

func (r *OrderStatusResponse) Transaction() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.TxnIDSnake
}

type WebhookAck struct {
	Success bool `json:"success"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
