package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

// CoursePrice holds pricing for a single course, including time-bound
// discounts and installment options. One row per course.
type CoursePrice struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"course_id"`

	BasePrice decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"base_price"`
	Currency  string          `gorm:"type:varchar(3);default:'BDT'" json:"currency"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	IsFree    bool            `gorm:"default:false;index" json:"is_free"`

	// Discounts. Percentage is applied before the fixed amount.
	DiscountPercentage decimal.Decimal `gorm:"type:numeric(5,2);default:0" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `gorm:"type:numeric(10,2);default:0" json:"discount_amount"`
	DiscountStartDate  *time.Time      `json:"discount_start_date,omitempty"`
	DiscountEndDate    *time.Time      `json:"discount_end_date,omitempty"`

	// Installments
	InstallmentAvailable bool `gorm:"default:false" json:"installment_available"`
	InstallmentCount     *int `json:"installment_count,omitempty"`

	Course Course `gorm:"foreignKey:CourseID" json:"-"`
}

func (p *CoursePrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for CoursePrice
func (CoursePrice) TableName() string {
	return "course_prices"
}

// discountWindowActive reports whether the discount window covers now.
// Either bound is optional.
func (p *CoursePrice) discountWindowActive(now time.Time) bool {
	if p.DiscountStartDate != nil && now.Before(*p.DiscountStartDate) {
		return false
	}
	if p.DiscountEndDate != nil && now.After(*p.DiscountEndDate) {
		return false
	}
	return true
}

// DiscountedPrice computes the effective price at the given time.
// Free courses are zero. Outside the discount window the base price is
// returned unmodified. Inside the window the percentage discount is applied
// first, then the fixed amount, floored at zero and quantized to 2dp with
// banker's rounding.
func (p *CoursePrice) DiscountedPrice(now time.Time) decimal.Decimal {
	if p.IsFree {
		return decimal.Zero
	}
	if p.BasePrice.IsZero() {
		return decimal.Zero
	}
	if !p.discountWindowActive(now) {
		return p.BasePrice
	}

	price := p.BasePrice
	if p.DiscountPercentage.IsPositive() {
		price = price.Sub(price.Mul(p.DiscountPercentage).Div(hundred))
	}
	if p.DiscountAmount.IsPositive() {
		price = price.Sub(p.DiscountAmount)
	}

	if price.IsNegative() {
		return decimal.Zero
	}
	return price.RoundBank(2)
}

// Savings returns the amount saved by current discounts.
func (p *CoursePrice) Savings(now time.Time) decimal.Decimal {
	if p.BasePrice.IsZero() {
		return decimal.Zero
	}
	return p.BasePrice.Sub(p.DiscountedPrice(now))
}

// InstallmentAmount returns the per-installment amount, or zero when
// installments are not available.
func (p *CoursePrice) InstallmentAmount(now time.Time) decimal.Decimal {
	if !p.InstallmentAvailable || p.InstallmentCount == nil || *p.InstallmentCount < 2 {
		return decimal.Zero
	}
	total := p.DiscountedPrice(now)
	if total.IsZero() {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(*p.InstallmentCount))).RoundBank(2)
}

// IsCurrentlyDiscounted reports whether a discount applies right now.
func (p *CoursePrice) IsCurrentlyDiscounted(now time.Time) bool {
	hasDiscount := p.DiscountPercentage.IsPositive() || p.DiscountAmount.IsPositive()
	return hasDiscount && p.discountWindowActive(now)
}

// CouponDiscountType distinguishes percentage and fixed-amount coupons.
type CouponDiscountType string

const (
	CouponDiscountPercentage CouponDiscountType = "percentage"
	CouponDiscountFixed      CouponDiscountType = "fixed"
)

// Coupon is a promo code with usage caps and a validity window.
type Coupon struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code          string             `gorm:"uniqueIndex;not null;type:varchar(50)" json:"code"`
	DiscountType  CouponDiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	DiscountValue decimal.Decimal    `gorm:"type:numeric(10,2);not null" json:"discount_value"`

	// Applicability: apply_to_all overrides the explicit course set.
	Courses    []Course `gorm:"many2many:coupon_courses" json:"courses,omitempty"`
	ApplyToAll bool     `gorm:"default:false" json:"apply_to_all"`

	// Usage caps. MaxUses nil means unlimited.
	MaxUses        *int `json:"max_uses,omitempty"`
	UsedCount      int  `gorm:"default:0" json:"used_count"`
	MaxUsesPerUser int  `gorm:"default:1" json:"max_uses_per_user"`

	IsActive   bool      `gorm:"default:true" json:"is_active"`
	ValidFrom  time.Time `gorm:"not null" json:"valid_from"`
	ValidUntil time.Time `gorm:"not null" json:"valid_until"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// TableName specifies the table name for Coupon
func (Coupon) TableName() string {
	return "coupons"
}

// Validate checks whether the coupon can be redeemed at the given time and
// returns a human-readable reason when it cannot.
func (c *Coupon) Validate(now time.Time) (bool, string) {
	if !c.IsActive {
		return false, "Coupon is not active"
	}
	if now.Before(c.ValidFrom) {
		return false, "Coupon is not yet valid"
	}
	if now.After(c.ValidUntil) {
		return false, "Coupon has expired"
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return false, "Coupon usage limit reached"
	}
	return true, "Coupon is valid"
}

// RemainingUses returns uses left, or nil for unlimited coupons.
func (c *Coupon) RemainingUses() *int {
	if c.MaxUses == nil {
		return nil
	}
	remaining := *c.MaxUses - c.UsedCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// AppliesToCourse checks applicability against the preloaded course set.
func (c *Coupon) AppliesToCourse(courseID uuid.UUID) bool {
	if c.ApplyToAll {
		return true
	}
	for _, course := range c.Courses {
		if course.ID == courseID {
			return true
		}
	}
	return false
}

// CalculateDiscount returns the discount for the given price, capped at the
// price so the net amount never goes negative.
func (c *Coupon) CalculateDiscount(price decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	if c.DiscountType == CouponDiscountPercentage {
		discount = price.Mul(c.DiscountValue).Div(hundred).RoundBank(2)
	} else {
		discount = c.DiscountValue
	}

	if discount.GreaterThan(price) {
		return price
	}
	return discount
}
