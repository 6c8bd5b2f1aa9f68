package model

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusFailed, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusProcessing, OrderStatusCompleted, true},
		{OrderStatusProcessing, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusRefunded, true},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusFailed, OrderStatusPending, true},
		{OrderStatusFailed, OrderStatusProcessing, true},
		{OrderStatusFailed, OrderStatusCompleted, true},
		{OrderStatusFailed, OrderStatusCancelled, false},
		{OrderStatusRefunded, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		// Self-transitions are allowed
		{OrderStatusCompleted, OrderStatusCompleted, true},
		{OrderStatusCancelled, OrderStatusCancelled, true},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestOrderTransition(t *testing.T) {
	order := Order{Status: OrderStatusPending}

	if err := order.Transition(OrderStatusProcessing); err != nil {
		t.Fatalf("pending -> processing: %v", err)
	}
	if err := order.Transition(OrderStatusCompleted); err != nil {
		t.Fatalf("processing -> completed: %v", err)
	}
	if order.CompletedAt == nil {
		t.Error("expected CompletedAt to be stamped on completion")
	}

	if err := order.Transition(OrderStatusPending); err == nil {
		t.Error("expected completed -> pending to be rejected")
	}

	cancelled := Order{Status: OrderStatusPending}
	if err := cancelled.Transition(OrderStatusCancelled); err != nil {
		t.Fatalf("pending -> cancelled: %v", err)
	}
	if cancelled.CancelledAt == nil {
		t.Error("expected CancelledAt to be stamped on cancellation")
	}

	// Self-transition is a no-op, not an error
	same := Order{Status: OrderStatusProcessing}
	if err := same.Transition(OrderStatusProcessing); err != nil {
		t.Errorf("self-transition: %v", err)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20260315-[A-Z0-9]{5}$`)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		number := GenerateOrderNumber(now)
		if !pattern.MatchString(number) {
			t.Fatalf("order number %q does not match expected format", number)
		}
		seen[number] = true
	}
	// 36^5 combinations; 100 draws colliding would be something else entirely
	if len(seen) < 90 {
		t.Errorf("expected near-unique order numbers, got %d distinct of 100", len(seen))
	}
}

func TestOrderRemainingAmount(t *testing.T) {
	full := Order{TotalAmount: decimal.NewFromInt(9000), Status: OrderStatusPending}
	if !full.RemainingAmount().Equal(decimal.NewFromInt(9000)) {
		t.Errorf("pending order remaining = %s, want 9000", full.RemainingAmount())
	}
	full.Status = OrderStatusCompleted
	if !full.RemainingAmount().IsZero() {
		t.Errorf("completed order remaining = %s, want 0", full.RemainingAmount())
	}

	installment := Order{
		IsInstallment:   true,
		InstallmentPlan: 3,
		TotalAmount:     decimal.NewFromInt(9000),
		Installments: []OrderInstallment{
			{InstallmentNumber: 1, Amount: decimal.NewFromInt(3000), Status: InstallmentStatusPaid},
			{InstallmentNumber: 2, Amount: decimal.NewFromInt(3000), Status: InstallmentStatusPending},
			{InstallmentNumber: 3, Amount: decimal.NewFromInt(3000), Status: InstallmentStatusOverdue},
		},
	}
	if !installment.RemainingAmount().Equal(decimal.NewFromInt(6000)) {
		t.Errorf("installment remaining = %s, want 6000", installment.RemainingAmount())
	}
}

func TestNextPendingInstallment(t *testing.T) {
	order := Order{
		IsInstallment: true,
		Installments: []OrderInstallment{
			{InstallmentNumber: 2, Status: InstallmentStatusPending},
			{InstallmentNumber: 1, Status: InstallmentStatusPaid},
			{InstallmentNumber: 3, Status: InstallmentStatusOverdue},
		},
	}

	next := order.NextPendingInstallment()
	if next == nil || next.InstallmentNumber != 2 {
		t.Fatalf("expected installment 2 next, got %+v", next)
	}

	for i := range order.Installments {
		order.Installments[i].Status = InstallmentStatusPaid
	}
	if order.NextPendingInstallment() != nil {
		t.Error("expected nil when everything is paid")
	}
}

func TestFailedInstallmentRemainsPayable(t *testing.T) {
	if got := string(InstallmentStatusFailed); got != "failed" {
		t.Fatalf("failed installment status stored as %q", got)
	}

	order := Order{
		IsInstallment:   true,
		InstallmentPlan: 3,
		Installments: []OrderInstallment{
			{InstallmentNumber: 1, Status: InstallmentStatusPaid, Amount: decimal.RequireFromString("500.00")},
			{InstallmentNumber: 2, Status: InstallmentStatusFailed, Amount: decimal.RequireFromString("500.00")},
			{InstallmentNumber: 3, Status: InstallmentStatusPending, Amount: decimal.RequireFromString("500.00")},
		},
	}

	next := order.NextPendingInstallment()
	if next == nil || next.InstallmentNumber != 2 {
		t.Fatalf("expected the failed installment to be retried next, got %+v", next)
	}
	if want := decimal.RequireFromString("1000.00"); !order.RemainingAmount().Equal(want) {
		t.Errorf("RemainingAmount = %s, want %s", order.RemainingAmount(), want)
	}
}

func TestIsFullyPaid(t *testing.T) {
	installment := Order{IsInstallment: true, InstallmentPlan: 3, InstallmentsPaid: 2}
	if installment.IsFullyPaid() {
		t.Error("2 of 3 installments should not be fully paid")
	}
	installment.InstallmentsPaid = 3
	if !installment.IsFullyPaid() {
		t.Error("3 of 3 installments should be fully paid")
	}

	full := Order{Status: OrderStatusProcessing}
	if full.IsFullyPaid() {
		t.Error("processing order should not be fully paid")
	}
	full.Status = OrderStatusCompleted
	if !full.IsFullyPaid() {
		t.Error("completed order should be fully paid")
	}
}

func TestInstallmentOverdue(t *testing.T) {
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	inst := OrderInstallment{DueDate: now.AddDate(0, 0, -2), Status: InstallmentStatusPending}
	if !inst.IsOverdue(now) {
		t.Error("expected installment past due date to be overdue")
	}
	if got := inst.DaysUntilDue(now); got != -2 {
		t.Errorf("DaysUntilDue = %d, want -2", got)
	}

	paid := OrderInstallment{DueDate: now.AddDate(0, 0, -2), Status: InstallmentStatusPaid}
	if paid.IsOverdue(now) {
		t.Error("paid installment is never overdue")
	}

	upcoming := OrderInstallment{DueDate: now.AddDate(0, 0, 10), Status: InstallmentStatusPending}
	if upcoming.IsOverdue(now) {
		t.Error("future installment is not overdue")
	}
	if got := upcoming.DaysUntilDue(now); got != 10 {
		t.Errorf("DaysUntilDue = %d, want 10", got)
	}
}

func TestBuildPaymentID(t *testing.T) {
	id := BuildPaymentID("ORD-20260315-A1B2C", 2)
	if !strings.HasPrefix(id, "PAY-ORD-20260315-A1B2C-2-") {
		t.Errorf("unexpected payment id %q", id)
	}
	suffix := strings.TrimPrefix(id, "PAY-ORD-20260315-A1B2C-2-")
	if len(suffix) != 8 {
		t.Errorf("expected 8-character suffix, got %q", suffix)
	}

	if BuildPaymentID("X", 1) == BuildPaymentID("X", 1) {
		t.Error("expected distinct payment ids for repeated calls")
	}
}
