package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"shop-checkout/internal/dto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource hands the client the bearer token of the current session.
type TokenSource interface {
	Token() string
}

type ShopClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, req *dto.RegisterRequest) error

	Products(ctx context.Context) ([]*dto.Product, error)
	Cart(ctx context.Context) (*dto.Cart, error)
	AddToCart(ctx context.Context, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, productID int64, quantity int) error
	RemoveFromCart(ctx context.Context, productID int64) error
	Orders(ctx context.Context) ([]*dto.Order, error)

	Checkout(ctx context.Context, shippingAddress string) (*dto.CheckoutResponse, error)
	CreateUPIPayment(ctx context.Context, orderID dto.OrderID) (*dto.UPIPaymentResponse, error)
	CreateCardPayment(ctx context.Context, orderID dto.OrderID) (*dto.CardPaymentResponse, error)
	OrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error)
}

type shopClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	tokens     TokenSource
}

func NewShopClient(baseApiURL string, timeout time.Duration, tokens TokenSource) ShopClient {
	return &shopClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseApiURL: strings.TrimRight(baseApiURL, "/"),
		tokens:     tokens,
	}
}

func (c *shopClientImpl) Login(ctx context.Context, email, password string) (string, error) {
	var raw []byte
	err := c.do(ctx, http.MethodPost, "/auth/login", false, &dto.LoginRequest{
		Email:    email,
		Password: password,
	}, &raw)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	// the backend answers with the bare token as text
	token := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if token == "" {
		return "", fmt.Errorf("login: empty token in response")
	}
	return token, nil
}

func (c *shopClientImpl) Register(ctx context.Context, req *dto.RegisterRequest) error {
	if err := c.do(ctx, http.MethodPost, "/auth/register", false, req, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (c *shopClientImpl) Products(ctx context.Context) ([]*dto.Product, error) {
	var products []*dto.Product
	if err := c.do(ctx, http.MethodGet, "/user/products", true, nil, &products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

func (c *shopClientImpl) Cart(ctx context.Context) (*dto.Cart, error) {
	var cart dto.Cart
	if err := c.do(ctx, http.MethodGet, "/user/cart", true, nil, &cart); err != nil {
		return nil, fmt.Errorf("fetch cart: %w", err)
	}
	return &cart, nil
}

func (c *shopClientImpl) AddToCart(ctx context.Context, productID int64, quantity int) error {
	path := "/user/cart/" + strconv.FormatInt(productID, 10)
	if err := c.do(ctx, http.MethodPost, path, true, &dto.QuantityRequest{Quantity: quantity}, nil); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

func (c *shopClientImpl) UpdateCartItem(ctx context.Context, productID int64, quantity int) error {
	path := "/user/cart/" + strconv.FormatInt(productID, 10)
	if err := c.do(ctx, http.MethodPut, path, true, &dto.QuantityRequest{Quantity: quantity}, nil); err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	return nil
}

func (c *shopClientImpl) RemoveFromCart(ctx context.Context, productID int64) error {
	path := "/user/cart/" + strconv.FormatInt(productID, 10)
	if err := c.do(ctx, http.MethodDelete, path, true, nil, nil); err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	return nil
}

func (c *shopClientImpl) Orders(ctx context.Context) ([]*dto.Order, error) {
	var orders []*dto.Order
	if err := c.do(ctx, http.MethodGet, "/user/orders", true, nil, &orders); err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	return orders, nil
}

func (c *shopClientImpl) Checkout(ctx context.Context, shippingAddress string) (*dto.CheckoutResponse, error) {
	var resp dto.CheckoutResponse
	err := c.do(ctx, http.MethodPost, "/user/checkout", true, &dto.CheckoutRequest{
		ShippingAddress: shippingAddress,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *shopClientImpl) CreateUPIPayment(ctx context.Context, orderID dto.OrderID) (*dto.UPIPaymentResponse, error) {
	var resp dto.UPIPaymentResponse
	err := c.do(ctx, http.MethodPost, "/user/create-upi-payment", true, &dto.PaymentRequest{
		OrderID: orderID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *shopClientImpl) CreateCardPayment(ctx context.Context, orderID dto.OrderID) (*dto.CardPaymentResponse, error) {
	var resp dto.CardPaymentResponse
	err := c.do(ctx, http.MethodPost, "/user/create-card-payment", true, &dto.PaymentRequest{
		OrderID: orderID,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *shopClientImpl) OrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error) {
	var resp dto.OrderStatusResponse
	path := "/user/order-status/" + url.PathEscape(orderID)
	if err := c.do(ctx, http.MethodGet, path, true, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request to the backend. out may be nil (discard), *[]byte
// (raw body) or a JSON target.
func (c *shopClientImpl) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	var token string
	if auth {
		if c.tokens != nil {
			token = c.tokens.Token()
		}
		if token == "" {
			return ErrNoSession
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal req payload: %w", err)
		}
		body = bytes.NewBuffer(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	switch v := out.(type) {
	case nil:
		return nil
	case *[]byte:
		*v = b
		return nil
	}

	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
