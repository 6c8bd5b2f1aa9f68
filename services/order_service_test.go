package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"academy-backend/model"
)

func TestBuildInstallmentSchedule(t *testing.T) {
	from := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		total   string
		plan    int
		amounts []string
	}{
		{
			name:    "even split",
			total:   "9000.00",
			plan:    3,
			amounts: []string{"3000", "3000", "3000"},
		},
		{
			name:    "last installment absorbs the remainder",
			total:   "10000.00",
			plan:    3,
			amounts: []string{"3333.33", "3333.33", "3333.34"},
		},
		{
			name:    "two installments with odd cents",
			total:   "999.99",
			plan:    2,
			amounts: []string{"500.00", "499.99"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total := decimal.RequireFromString(tt.total)
			schedule := BuildInstallmentSchedule(total, tt.plan, from)

			if len(schedule) != tt.plan {
				t.Fatalf("schedule length: got %d, want %d", len(schedule), tt.plan)
			}

			sum := decimal.Zero
			for i, inst := range schedule {
				want := decimal.RequireFromString(tt.amounts[i])
				if !inst.Amount.Equal(want) {
					t.Errorf("installment %d amount: got %s, want %s", i+1, inst.Amount, want)
				}
				if inst.InstallmentNumber != i+1 {
					t.Errorf("installment %d number: got %d", i+1, inst.InstallmentNumber)
				}
				if inst.Status != model.InstallmentStatusPending {
					t.Errorf("installment %d status: got %q, want pending", i+1, inst.Status)
				}
				wantDue := from.Add(time.Duration(i+1) * 30 * 24 * time.Hour)
				if !inst.DueDate.Equal(wantDue) {
					t.Errorf("installment %d due date: got %s, want %s", i+1, inst.DueDate, wantDue)
				}
				sum = sum.Add(inst.Amount)
			}

			if !sum.Equal(total) {
				t.Errorf("schedule sum: got %s, want %s", sum, total)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"100.00", "100.00", true},
		{"100.00", "100.01", true},
		{"100.00", "99.99", true},
		{"100.00", "100.02", false},
		{"100.00", "99.98", false},
	}

	for _, tt := range tests {
		a := decimal.RequireFromString(tt.a)
		b := decimal.RequireFromString(tt.b)
		if got := withinTolerance(a, b); got != tt.want {
			t.Errorf("withinTolerance(%s, %s): got %t, want %t", tt.a, tt.b, got, tt.want)
		}
	}
}
