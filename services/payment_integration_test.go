package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"academy-backend/model"
	"academy-backend/services/sslcommerz"
)

// stubGateway stands in for SSLCommerz so webhook settlement can be driven
// end to end against the database.
type stubGateway struct {
	reject bool
}

func (g *stubGateway) InitiateSession(ctx context.Context, req sslcommerz.SessionRequest) (*sslcommerz.SessionResponse, error) {
	return &sslcommerz.SessionResponse{
		Status:         "SUCCESS",
		SessionKey:     "stub-session",
		GatewayPageURL: "https://sandbox.example.test/gw",
	}, nil
}

func (g *stubGateway) ValidatePayment(ctx context.Context, valID string, expected decimal.Decimal) (*sslcommerz.ValidationResponse, error) {
	if g.reject {
		return nil, sslcommerz.ErrValidationFailed
	}
	return &sslcommerz.ValidationResponse{
		Status: "VALID",
		ValID:  valID,
		Amount: expected.StringFixed(2),
	}, nil
}

func (g *stubGateway) VerifyWebhookSignature(form map[string]string) bool { return true }

func (g *stubGateway) StoreID() string { return "teststore" }

func TestRejectedPaymentFailsOrderAndInstallment(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)
	gateway := &stubGateway{reject: true}
	payments := NewPaymentService(db, gateway, orders, "http://localhost:8080", "http://localhost:3000")

	input := checkoutInput(course, &batch.ID)
	input.IsInstallment = true
	input.InstallmentPlan = 2
	order, err := orders.CreateOrder(context.Background(), user.ID, input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	result, err := payments.ProcessWebhook(context.Background(), order.OrderNumber, "VAL-REJECTED")
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if result.Status != model.OrderStatusFailed {
		t.Errorf("expected order failed, got %s", result.Status)
	}

	var first model.OrderInstallment
	err = db.Where("order_id = ? AND installment_number = 1", order.ID).First(&first).Error
	if err != nil {
		t.Fatalf("load installment: %v", err)
	}
	if first.Status != model.InstallmentStatusFailed {
		t.Errorf("expected installment failed, got %s", first.Status)
	}
}

func TestFailedOrderRecoversOnRetry(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)
	gateway := &stubGateway{reject: true}
	payments := NewPaymentService(db, gateway, orders, "http://localhost:8080", "http://localhost:3000")

	order, err := orders.CreateOrder(context.Background(), user.ID, checkoutInput(course, &batch.ID))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := payments.ProcessWebhook(context.Background(), order.OrderNumber, "VAL-BAD"); err != nil {
		t.Fatalf("rejected webhook: %v", err)
	}
	if err := db.First(order, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != model.OrderStatusFailed {
		t.Fatalf("expected failed order, got %s", order.Status)
	}

	// The buyer retries; the gateway now accepts.
	gateway.reject = false
	if _, err := payments.InitiatePayment(context.Background(), order, user); err != nil {
		t.Fatalf("retry initiation: %v", err)
	}
	if order.Status != model.OrderStatusProcessing {
		t.Errorf("expected processing after retry, got %s", order.Status)
	}

	result, err := payments.ProcessWebhook(context.Background(), order.OrderNumber, "VAL-GOOD")
	if err != nil {
		t.Fatalf("settling webhook: %v", err)
	}
	if result.Status != model.OrderStatusCompleted {
		t.Errorf("expected completed, got %s", result.Status)
	}
	if !result.FullyPaid {
		t.Error("expected the order to be fully paid")
	}
}

func TestInitiatePaymentRejectsCancelledOrder(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)
	payments := NewPaymentService(db, &stubGateway{}, orders, "http://localhost:8080", "http://localhost:3000")

	order, err := orders.CreateOrder(context.Background(), user.ID, checkoutInput(course, &batch.ID))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := orders.CancelOrder(context.Background(), user.ID, order.ID, false); err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if err := db.First(order, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}

	if _, err := payments.InitiatePayment(context.Background(), order, user); !errors.Is(err, ErrOrderNotPayable) {
		t.Fatalf("expected ErrOrderNotPayable, got %v", err)
	}
}
