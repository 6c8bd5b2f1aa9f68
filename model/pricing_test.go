package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func TestDiscountedPrice(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, -1, 0)
	future := now.AddDate(0, 1, 0)

	tests := []struct {
		name  string
		price CoursePrice
		want  string
	}{
		{
			name:  "free course is zero regardless of base price",
			price: CoursePrice{BasePrice: decimal.NewFromInt(5000), IsFree: true},
			want:  "0",
		},
		{
			name:  "zero base price",
			price: CoursePrice{BasePrice: decimal.Zero},
			want:  "0",
		},
		{
			name:  "no discount returns base price",
			price: CoursePrice{BasePrice: decimal.NewFromInt(5000)},
			want:  "5000",
		},
		{
			name: "percentage discount",
			price: CoursePrice{
				BasePrice:          mustDecimal(t, "99.99"),
				DiscountPercentage: decimal.NewFromInt(20),
			},
			want: "79.99",
		},
		{
			name: "fixed discount",
			price: CoursePrice{
				BasePrice:      decimal.NewFromInt(5000),
				DiscountAmount: decimal.NewFromInt(500),
			},
			want: "4500",
		},
		{
			name: "percentage applied before fixed amount",
			price: CoursePrice{
				BasePrice:          decimal.NewFromInt(1000),
				DiscountPercentage: decimal.NewFromInt(10),
				DiscountAmount:     decimal.NewFromInt(100),
			},
			want: "800",
		},
		{
			name: "discount larger than price floors at zero",
			price: CoursePrice{
				BasePrice:      decimal.NewFromInt(100),
				DiscountAmount: decimal.NewFromInt(500),
			},
			want: "0",
		},
		{
			name: "discount window not yet open",
			price: CoursePrice{
				BasePrice:          decimal.NewFromInt(1000),
				DiscountPercentage: decimal.NewFromInt(50),
				DiscountStartDate:  &future,
			},
			want: "1000",
		},
		{
			name: "discount window expired",
			price: CoursePrice{
				BasePrice:          decimal.NewFromInt(1000),
				DiscountPercentage: decimal.NewFromInt(50),
				DiscountEndDate:    &past,
			},
			want: "1000",
		},
		{
			name: "discount window active",
			price: CoursePrice{
				BasePrice:          decimal.NewFromInt(1000),
				DiscountPercentage: decimal.NewFromInt(50),
				DiscountStartDate:  &past,
				DiscountEndDate:    &future,
			},
			want: "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.price.DiscountedPrice(now)
			if !got.Equal(mustDecimal(t, tt.want)) {
				t.Errorf("DiscountedPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInstallmentAmount(t *testing.T) {
	now := time.Now()
	three := 3
	one := 1

	price := CoursePrice{
		BasePrice:            decimal.NewFromInt(10000),
		InstallmentAvailable: true,
		InstallmentCount:     &three,
	}
	got := price.InstallmentAmount(now)
	if !got.Equal(mustDecimal(t, "3333.33")) {
		t.Errorf("InstallmentAmount() = %s, want 3333.33", got)
	}

	noPlan := CoursePrice{BasePrice: decimal.NewFromInt(10000), InstallmentAvailable: true}
	if !noPlan.InstallmentAmount(now).IsZero() {
		t.Error("expected zero without an installment count")
	}

	tooFew := CoursePrice{
		BasePrice:            decimal.NewFromInt(10000),
		InstallmentAvailable: true,
		InstallmentCount:     &one,
	}
	if !tooFew.InstallmentAmount(now).IsZero() {
		t.Error("expected zero for a single-installment plan")
	}
}

func TestCouponValidate(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	maxUses := 10

	base := Coupon{
		Code:          "SPRING20",
		DiscountType:  CouponDiscountPercentage,
		DiscountValue: decimal.NewFromInt(20),
		IsActive:      true,
		ValidFrom:     now.AddDate(0, -1, 0),
		ValidUntil:    now.AddDate(0, 1, 0),
	}

	if ok, reason := base.Validate(now); !ok {
		t.Fatalf("expected valid coupon, got %q", reason)
	}

	inactive := base
	inactive.IsActive = false
	if ok, reason := inactive.Validate(now); ok || reason != "Coupon is not active" {
		t.Errorf("inactive: got (%v, %q)", ok, reason)
	}

	early := base
	early.ValidFrom = now.AddDate(0, 0, 1)
	if ok, reason := early.Validate(now); ok || reason != "Coupon is not yet valid" {
		t.Errorf("early: got (%v, %q)", ok, reason)
	}

	expired := base
	expired.ValidUntil = now.AddDate(0, 0, -1)
	if ok, reason := expired.Validate(now); ok || reason != "Coupon has expired" {
		t.Errorf("expired: got (%v, %q)", ok, reason)
	}

	exhausted := base
	exhausted.MaxUses = &maxUses
	exhausted.UsedCount = 10
	if ok, reason := exhausted.Validate(now); ok || reason != "Coupon usage limit reached" {
		t.Errorf("exhausted: got (%v, %q)", ok, reason)
	}
}

func TestCouponCalculateDiscount(t *testing.T) {
	pct := Coupon{DiscountType: CouponDiscountPercentage, DiscountValue: decimal.NewFromInt(25)}
	got := pct.CalculateDiscount(decimal.NewFromInt(1000))
	if !got.Equal(decimal.NewFromInt(250)) {
		t.Errorf("percentage discount = %s, want 250", got)
	}

	fixed := Coupon{DiscountType: CouponDiscountFixed, DiscountValue: decimal.NewFromInt(300)}
	got = fixed.CalculateDiscount(decimal.NewFromInt(1000))
	if !got.Equal(decimal.NewFromInt(300)) {
		t.Errorf("fixed discount = %s, want 300", got)
	}

	// Cap at the price
	got = fixed.CalculateDiscount(decimal.NewFromInt(200))
	if !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("capped discount = %s, want 200", got)
	}
}

func TestCouponAppliesToCourse(t *testing.T) {
	courseA := Course{ID: uuid.New()}
	courseB := Course{ID: uuid.New()}

	scoped := Coupon{Courses: []Course{courseA}}
	if !scoped.AppliesToCourse(courseA.ID) {
		t.Error("expected coupon to apply to its own course")
	}
	if scoped.AppliesToCourse(courseB.ID) {
		t.Error("expected coupon not to apply to an unlisted course")
	}

	global := Coupon{ApplyToAll: true}
	if !global.AppliesToCourse(courseB.ID) {
		t.Error("expected apply_to_all coupon to apply everywhere")
	}
}

func TestCouponRemainingUses(t *testing.T) {
	unlimited := Coupon{}
	if unlimited.RemainingUses() != nil {
		t.Error("expected nil for unlimited coupon")
	}

	maxUses := 5
	used := Coupon{MaxUses: &maxUses, UsedCount: 7}
	if got := used.RemainingUses(); got == nil || *got != 0 {
		t.Errorf("over-used coupon remaining = %v, want 0", got)
	}
}
