package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"academy-backend/model"
)

var (
	ErrCartIdentityMissing = errors.New("a user or session key is required")
	ErrAlreadyInCart       = errors.New("course is already in your cart")
	ErrDifferentCourse     = errors.New("cart already holds a different course")
	ErrAlreadyOwnsCourse   = errors.New("you are already enrolled in this course")
)

// CartService manages user and guest carts. Guests are keyed by the
// X-Session-Key header; signed-in users by their account.
type CartService struct {
	db          *gorm.DB
	enrollments *EnrollmentService
}

// NewCartService creates a new cart service
func NewCartService(db *gorm.DB, enrollments *EnrollmentService) *CartService {
	return &CartService{db: db, enrollments: enrollments}
}

// GetOrCreate finds the cart for a user or guest session, creating it on
// first use.
func (s *CartService) GetOrCreate(ctx context.Context, userID *uint, sessionKey string) (*model.Cart, error) {
	if userID == nil && sessionKey == "" {
		return nil, ErrCartIdentityMissing
	}

	query := s.db.WithContext(ctx).
		Preload("Items.Course.Pricing").
		Preload("Items.Batch")
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	} else {
		query = query.Where("session_key = ?", sessionKey)
	}

	var cart model.Cart
	err := query.First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = model.Cart{UserID: userID}
	if userID == nil {
		cart.SessionKey = &sessionKey
	}
	if err := s.db.WithContext(ctx).Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddItem puts a course into the cart. The cart holds one course at a time:
// adding the same course again reports ErrAlreadyInCart, adding a different
// one reports ErrDifferentCourse with the blocking course attached. Users
// already enrolled in the course are refused.
func (s *CartService) AddItem(ctx context.Context, cart *model.Cart, courseID uuid.UUID, batchID *uuid.UUID) (*model.CartItem, *model.Course, error) {
	if cart.UserID != nil {
		enrolled, err := s.enrollments.IsEnrolledInCourse(ctx, *cart.UserID, courseID)
		if err != nil {
			return nil, nil, err
		}
		if enrolled {
			return nil, nil, ErrAlreadyOwnsCourse
		}
	}

	for i := range cart.Items {
		item := &cart.Items[i]
		if item.CourseID == courseID {
			return item, &item.Course, ErrAlreadyInCart
		}
		return nil, &item.Course, ErrDifferentCourse
	}

	item := model.CartItem{
		CartID:   cart.ID,
		CourseID: courseID,
		BatchID:  batchID,
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, nil, err
	}

	err := s.db.WithContext(ctx).
		Preload("Course.Pricing").
		Preload("Batch").
		First(&item, "id = ?", item.ID).Error
	if err != nil {
		return nil, nil, err
	}
	cart.Items = append(cart.Items, item)
	return &item, &item.Course, nil
}

// RemoveItem deletes one item from the cart.
func (s *CartService) RemoveItem(ctx context.Context, cart *model.Cart, itemID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cart.ID).
		Delete(&model.CartItem{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, cart *model.Cart) error {
	return s.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Delete(&model.CartItem{}).Error
}

// MergeGuestCart moves a guest cart's items into the user's cart after
// sign-in, skipping duplicates, and deletes the guest cart. Returns how
// many items moved.
func (s *CartService) MergeGuestCart(ctx context.Context, userID uint, sessionKey string) (int, error) {
	if sessionKey == "" {
		return 0, nil
	}

	var guestCart model.Cart
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("session_key = ?", sessionKey).
		First(&guestCart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	userCart, err := s.GetOrCreate(ctx, &userID, "")
	if err != nil {
		return 0, err
	}

	merged := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range guestCart.Items {
			duplicate := false
			for _, existing := range userCart.Items {
				if existing.CourseID == item.CourseID {
					duplicate = true
					break
				}
			}
			// A populated user cart also blocks transfers of other courses
			if !duplicate && len(userCart.Items) == 0 && merged == 0 {
				moved := model.CartItem{
					CartID:   userCart.ID,
					CourseID: item.CourseID,
					BatchID:  item.BatchID,
				}
				if err := tx.Create(&moved).Error; err != nil {
					return err
				}
				merged++
			}
		}

		if err := tx.Where("cart_id = ?", guestCart.ID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&guestCart).Error
	})
	if err != nil {
		return 0, err
	}

	if merged > 0 {
		log.Printf("Merged %d guest cart item(s) into user %d's cart", merged, userID)
	}
	return merged, nil
}

// DeleteStaleGuestCarts removes guest carts untouched for the given age.
// Run from cron.
func (s *CartService) DeleteStaleGuestCarts(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	var staleIDs []uuid.UUID
	err := s.db.WithContext(ctx).Model(&model.Cart{}).
		Where("user_id IS NULL AND updated_at < ?", cutoff).
		Pluck("id", &staleIDs).Error
	if err != nil {
		return 0, err
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("cart_id IN ?", staleIDs).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", staleIDs).Delete(&model.Cart{}).Error
	})
	if err != nil {
		return 0, err
	}
	return int64(len(staleIDs)), nil
}
