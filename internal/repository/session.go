package repository

import (
	"context"
	"errors"
	"shop-checkout/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// only one login is kept per local store
const sessionRowID = 1

type SessionRepository interface {
	Get(ctx context.Context) (*model.Session, error)
	Upsert(ctx context.Context, session *model.Session) error
	UpdateCartCount(ctx context.Context, count int) error
	Delete(ctx context.Context) error
}

type sessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepoImpl{
		db: db,
	}
}

// Get returns nil, nil when nobody is logged in.
func (r *sessionRepoImpl) Get(ctx context.Context) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).
		Where("id = ?", sessionRowID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepoImpl) Upsert(ctx context.Context, session *model.Session) error {
	session.ID = sessionRowID
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"email":      session.Email,
			"token":      session.Token,
			"cart_count": session.CartCount,
			"updated_at": time.Now(),
		}),
	}).Create(session).Error
}

func (r *sessionRepoImpl) UpdateCartCount(ctx context.Context, count int) error {
	result := r.db.WithContext(ctx).
		Model(&model.Session{}).
		Where("id = ?", sessionRowID).
		Updates(map[string]interface{}{
			"cart_count": count,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

func (r *sessionRepoImpl) Delete(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("id = ?", sessionRowID).
		Delete(&model.Session{}).Error
}
