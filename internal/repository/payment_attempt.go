package repository

import (
	"context"
	"shop-checkout/internal/model"
	"time"

	"gorm.io/gorm"
)

const (
	AttemptPolling   = "POLLING"
	AttemptConfirmed = "CONFIRMED"
)

type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *model.PaymentAttempt) error
	FindLatest(ctx context.Context, orderID string) (*model.PaymentAttempt, error)
	MarkOutcome(ctx context.Context, orderID, state, transactionID string) (*model.PaymentAttempt, error)
	IsPaid(ctx context.Context, orderID string) (bool, error)
}

type paymentAttemptRepoImpl struct {
	db *gorm.DB
}

func NewPaymentAttemptRepository(db *gorm.DB) PaymentAttemptRepository {
	return &paymentAttemptRepoImpl{
		db: db,
	}
}

func (r *paymentAttemptRepoImpl) Create(ctx context.Context, attempt *model.PaymentAttempt) error {
	if attempt.State == "" {
		attempt.State = AttemptPolling
	}
	return r.db.WithContext(ctx).Create(attempt).Error
}

func (r *paymentAttemptRepoImpl) FindLatest(ctx context.Context, orderID string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id DESC").
		First(&attempt).Error

	if err != nil {
		return nil, err
	}

	return &attempt, nil
}

// MarkOutcome settles the newest attempt still polling for orderID.
func (r *paymentAttemptRepoImpl) MarkOutcome(ctx context.Context, orderID, state, transactionID string) (*model.PaymentAttempt, error) {
	var attempt model.PaymentAttempt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("order_id = ? AND state = ?", orderID, AttemptPolling).
			Order("id DESC").
			First(&attempt).Error
		if err != nil {
			return err
		}

		result := tx.Model(&attempt).
			Where("state = ?", AttemptPolling).
			Updates(map[string]interface{}{
				"state":          state,
				"transaction_id": transactionID,
				"updated_at":     time.Now(),
			})

		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.First(&attempt, attempt.ID).Error
	})

	return &attempt, err
}

func (r *paymentAttemptRepoImpl) IsPaid(ctx context.Context, orderID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentAttempt{}).
		Where("order_id = ?", orderID).
		Where("state = ?", AttemptConfirmed).
		Count(&count).Error

	return count > 0, err
}
