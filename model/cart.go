package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart belongs to a logged-in user or an anonymous session, never both.
type Cart struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	UserID     *uint          `gorm:"uniqueIndex" json:"user_id,omitempty"`
	SessionKey *string        `gorm:"uniqueIndex;type:varchar(64)" json:"session_key,omitempty"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for Cart
func (Cart) TableName() string {
	return "carts"
}

// TotalItems counts the items in the cart.
func (c *Cart) TotalItems() int {
	return len(c.Items)
}

// TotalPrice sums the items' unit prices at the given time.
func (c *Cart) TotalPrice(now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.UnitPrice(now))
	}
	return total
}

// CartItem is a course (optionally pinned to a batch) sitting in a cart.
// A cart holds at most one item per course+batch combination.
type CartItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CartID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_cart_course_batch" json:"cart_id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_cart_course_batch" json:"course_id"`
	BatchID   *uuid.UUID     `gorm:"type:uuid;uniqueIndex:idx_cart_course_batch" json:"batch_id,omitempty"`

	Course Course       `gorm:"foreignKey:CourseID" json:"course"`
	Batch  *CourseBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for CartItem
func (CartItem) TableName() string {
	return "cart_items"
}

// UnitPrice resolves the item's price: the batch's custom price when set,
// otherwise the course's discounted price.
func (i *CartItem) UnitPrice(now time.Time) decimal.Decimal {
	if i.Batch != nil && i.Batch.CustomPrice != nil {
		return *i.Batch.CustomPrice
	}
	if i.Course.Pricing != nil {
		return i.Course.Pricing.DiscountedPrice(now)
	}
	return decimal.Zero
}

// WishlistItem bookmarks a course for a user.
type WishlistItem struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;uniqueIndex:idx_wishlist_user_course" json:"user_id"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_wishlist_user_course" json:"course_id"`

	User   User   `gorm:"foreignKey:UserID" json:"-"`
	Course Course `gorm:"foreignKey:CourseID" json:"course"`
}

func (w *WishlistItem) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for WishlistItem
func (WishlistItem) TableName() string {
	return "wishlist_items"
}
