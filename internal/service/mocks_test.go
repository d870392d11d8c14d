package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"shop-checkout/internal/client"
	"shop-checkout/internal/config"
	"shop-checkout/internal/dto"
	"shop-checkout/internal/model"
	"shop-checkout/internal/repository"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockShopClient struct {
	mock.Mock
}

func (m *MockShopClient) Login(ctx context.Context, email, password string) (string, error) {
	args := m.Called(ctx, email, password)
	return args.String(0), args.Error(1)
}

func (m *MockShopClient) Register(ctx context.Context, req *dto.RegisterRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *MockShopClient) Products(ctx context.Context) ([]*dto.Product, error) {
	args := m.Called(ctx)
	products, _ := args.Get(0).([]*dto.Product)
	return products, args.Error(1)
}

func (m *MockShopClient) Cart(ctx context.Context) (*dto.Cart, error) {
	args := m.Called(ctx)
	cart, _ := args.Get(0).(*dto.Cart)
	return cart, args.Error(1)
}

func (m *MockShopClient) AddToCart(ctx context.Context, productID int64, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *MockShopClient) UpdateCartItem(ctx context.Context, productID int64, quantity int) error {
	return m.Called(ctx, productID, quantity).Error(0)
}

func (m *MockShopClient) RemoveFromCart(ctx context.Context, productID int64) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *MockShopClient) Orders(ctx context.Context) ([]*dto.Order, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]*dto.Order)
	return orders, args.Error(1)
}

func (m *MockShopClient) Checkout(ctx context.Context, shippingAddress string) (*dto.CheckoutResponse, error) {
	args := m.Called(ctx, shippingAddress)
	res, _ := args.Get(0).(*dto.CheckoutResponse)
	return res, args.Error(1)
}

func (m *MockShopClient) CreateUPIPayment(ctx context.Context, orderID dto.OrderID) (*dto.UPIPaymentResponse, error) {
	args := m.Called(ctx, orderID)
	res, _ := args.Get(0).(*dto.UPIPaymentResponse)
	return res, args.Error(1)
}

func (m *MockShopClient) CreateCardPayment(ctx context.Context, orderID dto.OrderID) (*dto.CardPaymentResponse, error) {
	args := m.Called(ctx, orderID)
	res, _ := args.Get(0).(*dto.CardPaymentResponse)
	return res, args.Error(1)
}

func (m *MockShopClient) OrderStatus(ctx context.Context, orderID string) (*dto.OrderStatusResponse, error) {
	args := m.Called(ctx, orderID)
	res, _ := args.Get(0).(*dto.OrderStatusResponse)
	return res, args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, event any) error {
	return m.Called(ctx, subject, event).Error(0)
}

func (m *MockPublisher) Close() {}

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, headers http.Header, body []byte) error {
	return m.Called(ctx, headers, body).Error(0)
}

var (
	_ client.ShopClient       = (*MockShopClient)(nil)
	_ client.EventPublisher   = (*MockPublisher)(nil)
	_ client.WebhookForwarder = (*MockForwarder)(nil)
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRepos struct {
	sessions      repository.SessionRepository
	webhookEvents repository.WebhookEventRepository
	attempts      repository.PaymentAttemptRepository
}

func newTestRepos(t *testing.T) *testRepos {
	t.Helper()
	db, err := client.InitDBClient(config.Database{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return &testRepos{
		sessions:      repository.NewSessionRepository(db),
		webhookEvents: repository.NewWebhookEventRepository(db),
		attempts:      repository.NewPaymentAttemptRepository(db),
	}
}

// seedSession stores a logged-in session and returns the service over it.
func seedSession(t *testing.T, repos *testRepos, token string) SessionService {
	t.Helper()
	sessionRepo := repos.sessions
	require.NoError(t, sessionRepo.Upsert(context.Background(), &model.Session{Email: "asha@example.com", Token: token}))

	session := NewSessionService(sessionRepo)
	require.NoError(t, session.Load(context.Background()))
	return session
}
