package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"shop-checkout/internal/client"
	"shop-checkout/internal/dto"
)

// ShopService covers the plain views over backend state: login, catalog,
// cart and order history.
type ShopService interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, req *dto.RegisterRequest) error
	Logout(ctx context.Context) error

	Products(ctx context.Context) ([]*dto.Product, error)
	Cart(ctx context.Context) (*dto.Cart, error)
	AddToCart(ctx context.Context, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, productID int64, quantity int) error
	RemoveFromCart(ctx context.Context, productID int64) error
	Orders(ctx context.Context) ([]*dto.Order, error)

	// ReconcileCartCount refreshes the cached cart badge from the backend.
	ReconcileCartCount(ctx context.Context) error
	// Clear drops the local session, the "redirect to login" of a 401.
	Clear(ctx context.Context) error
}

type shopServiceImpl struct {
	shopClient client.ShopClient
	session    SessionService
	log        *slog.Logger
}

func NewShopService(shopClient client.ShopClient, session SessionService, log *slog.Logger) ShopService {
	return &shopServiceImpl{
		shopClient: shopClient,
		session:    session,
		log:        log,
	}
}

func (s *shopServiceImpl) Login(ctx context.Context, email, password string) error {
	token, err := s.shopClient.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := s.session.Save(ctx, email, token); err != nil {
		return err
	}

	// badge is cosmetic, a failure here must not fail the login
	if err := s.ReconcileCartCount(ctx); err != nil {
		s.log.Warn("reconcile cart count after login", "error", err)
	}
	return nil
}

func (s *shopServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) error {
	return s.shopClient.Register(ctx, req)
}

func (s *shopServiceImpl) Logout(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *shopServiceImpl) Products(ctx context.Context) ([]*dto.Product, error) {
	products, err := s.shopClient.Products(ctx)
	if err != nil {
		return nil, s.handleAuth(ctx, err)
	}
	return products, nil
}

func (s *shopServiceImpl) Cart(ctx context.Context) (*dto.Cart, error) {
	cart, err := s.shopClient.Cart(ctx)
	if err != nil {
		return nil, s.handleAuth(ctx, err)
	}
	return cart, nil
}

func (s *shopServiceImpl) AddToCart(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("item quantity must be positive")
	}
	if err := s.shopClient.AddToCart(ctx, productID, quantity); err != nil {
		return s.handleAuth(ctx, err)
	}
	return s.reconcileQuietly(ctx)
}

func (s *shopServiceImpl) UpdateCartItem(ctx context.Context, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("item quantity must be positive")
	}
	if err := s.shopClient.UpdateCartItem(ctx, productID, quantity); err != nil {
		return s.handleAuth(ctx, err)
	}
	return s.reconcileQuietly(ctx)
}

func (s *shopServiceImpl) RemoveFromCart(ctx context.Context, productID int64) error {
	if err := s.shopClient.RemoveFromCart(ctx, productID); err != nil {
		return s.handleAuth(ctx, err)
	}
	return s.reconcileQuietly(ctx)
}

func (s *shopServiceImpl) Orders(ctx context.Context) ([]*dto.Order, error) {
	orders, err := s.shopClient.Orders(ctx)
	if err != nil {
		return nil, s.handleAuth(ctx, err)
	}
	return orders, nil
}

func (s *shopServiceImpl) ReconcileCartCount(ctx context.Context) error {
	cart, err := s.shopClient.Cart(ctx)
	if err != nil {
		return s.handleAuth(ctx, err)
	}
	return s.session.SetCartCount(ctx, len(cart.Items))
}

func (s *shopServiceImpl) Clear(ctx context.Context) error {
	return s.session.Clear(ctx)
}

func (s *shopServiceImpl) reconcileQuietly(ctx context.Context) error {
	if err := s.ReconcileCartCount(ctx); err != nil {
		s.log.Warn("reconcile cart count", "error", err)
	}
	return nil
}

// handleAuth clears the stored session on a 401 so the next command asks for
// a fresh login.
func (s *shopServiceImpl) handleAuth(ctx context.Context, err error) error {
	if errors.Is(err, client.ErrUnauthorized) {
		if clearErr := s.session.Clear(ctx); clearErr != nil {
			s.log.Warn("clear expired session", "error", clearErr)
		}
	}
	return err
}
