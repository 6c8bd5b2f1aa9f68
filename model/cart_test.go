package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCartItemUnitPrice(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	custom := decimal.RequireFromString("7500.00")
	pricing := &CoursePrice{
		BasePrice:          decimal.RequireFromString("10000"),
		DiscountPercentage: decimal.RequireFromString("10"),
	}

	tests := []struct {
		name string
		item CartItem
		want string
	}{
		{
			name: "batch custom price wins over course pricing",
			item: CartItem{
				Course: Course{Pricing: pricing},
				Batch:  &CourseBatch{CustomPrice: &custom},
			},
			want: "7500",
		},
		{
			name: "batch without custom price falls back to discounted price",
			item: CartItem{
				Course: Course{Pricing: pricing},
				Batch:  &CourseBatch{},
			},
			want: "9000",
		},
		{
			name: "no batch uses course pricing",
			item: CartItem{
				Course: Course{Pricing: pricing},
			},
			want: "9000",
		},
		{
			name: "course without pricing is zero",
			item: CartItem{Course: Course{}},
			want: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.item.UnitPrice(now)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("UnitPrice: got %s, want %s", got, want)
			}
		})
	}
}

func TestCartTotals(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	custom := decimal.RequireFromString("5000")
	cart := Cart{
		Items: []CartItem{
			{Course: Course{Pricing: &CoursePrice{BasePrice: decimal.RequireFromString("8000")}}},
			{Course: Course{}, Batch: &CourseBatch{CustomPrice: &custom}},
		},
	}

	if got := cart.TotalItems(); got != 2 {
		t.Errorf("TotalItems: got %d, want 2", got)
	}

	want := decimal.RequireFromString("13000")
	if got := cart.TotalPrice(now); !got.Equal(want) {
		t.Errorf("TotalPrice: got %s, want %s", got, want)
	}

	empty := Cart{}
	if got := empty.TotalPrice(now); !got.IsZero() {
		t.Errorf("empty cart TotalPrice: got %s, want 0", got)
	}
}
