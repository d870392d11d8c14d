package service

import (
	"context"
	"fmt"
	"shop-checkout/internal/model"
	"shop-checkout/internal/repository"
	"sync"
)

// SessionService is the explicit session context handed to everything that
// needs the login token. It replaces ambient browser storage.
type SessionService interface {
	Load(ctx context.Context) error
	Save(ctx context.Context, email, token string) error
	Clear(ctx context.Context) error
	SetCartCount(ctx context.Context, count int) error

	Token() string
	Email() string
	CartCount() int
	LoggedIn() bool
}

type sessionServiceImpl struct {
	sessionRepo repository.SessionRepository

	mu        sync.RWMutex
	email     string
	token     string
	cartCount int
}

func NewSessionService(sessionRepo repository.SessionRepository) SessionService {
	return &sessionServiceImpl{
		sessionRepo: sessionRepo,
	}
}

func (s *sessionServiceImpl) Load(ctx context.Context) error {
	session, err := s.sessionRepo.Get(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if session == nil {
		s.email, s.token, s.cartCount = "", "", 0
		return nil
	}
	s.email, s.token, s.cartCount = session.Email, session.Token, session.CartCount
	return nil
}

func (s *sessionServiceImpl) Save(ctx context.Context, email, token string) error {
	err := s.sessionRepo.Upsert(ctx, &model.Session{
		Email: email,
		Token: token,
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	s.mu.Lock()
	s.email, s.token, s.cartCount = email, token, 0
	s.mu.Unlock()
	return nil
}

func (s *sessionServiceImpl) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.email, s.token, s.cartCount = "", "", 0
	s.mu.Unlock()

	if err := s.sessionRepo.Delete(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *sessionServiceImpl) SetCartCount(ctx context.Context, count int) error {
	if err := s.sessionRepo.UpdateCartCount(ctx, count); err != nil {
		return fmt.Errorf("update cart count: %w", err)
	}

	s.mu.Lock()
	s.cartCount = count
	s.mu.Unlock()
	return nil
}

func (s *sessionServiceImpl) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *sessionServiceImpl) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.email
}

func (s *sessionServiceImpl) CartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cartCount
}

func (s *sessionServiceImpl) LoggedIn() bool {
	return s.Token() != ""
}
