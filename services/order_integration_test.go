package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"academy-backend/model"
)

// These tests run against a real Postgres database and exercise the
// transactional paths: checkout, settlement, coupon caps and cart rules.

func setupIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	for _, v := range []string{"DB_HOST", "DB_USER_NAME", "DB_PASSWORD", "DB_NAME", "DB_PORT"} {
		if os.Getenv(v) == "" {
			t.Skipf("%s not set", v)
		}
	}

	sslMode := os.Getenv("DB_SSL_MODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER_NAME"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		sslMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Category{},
		&model.Course{},
		&model.CoursePrice{},
		&model.CourseBatch{},
		&model.Coupon{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderInstallment{},
		&model.PaymentTransaction{},
		&model.Enrollment{},
		&model.UserNotification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	return db
}

// seedCourse creates a category, course, pricing and one open batch with
// names unique to the test run.
func seedCourse(t *testing.T, db *gorm.DB, free bool) (*model.Course, *model.CourseBatch) {
	t.Helper()
	tag := uuid.New().String()[:8]

	category := model.Category{Name: "Test Category " + tag, IsActive: true}
	if err := db.Create(&category).Error; err != nil {
		t.Fatalf("create category: %v", err)
	}

	course := model.Course{
		CategoryID: category.ID,
		Title:      "Test Course " + tag,
		Status:     model.CourseStatusPublished,
		IsActive:   true,
	}
	if err := db.Create(&course).Error; err != nil {
		t.Fatalf("create course: %v", err)
	}

	pricing := model.CoursePrice{
		CourseID:             course.ID,
		BasePrice:            decimal.RequireFromString("1000.00"),
		IsActive:             true,
		IsFree:               free,
		InstallmentAvailable: true,
	}
	if err := db.Create(&pricing).Error; err != nil {
		t.Fatalf("create pricing: %v", err)
	}
	course.Pricing = &pricing

	now := time.Now()
	batch := model.CourseBatch{
		CourseID:    course.ID,
		BatchNumber: 1,
		BatchName:   "Batch " + tag,
		Slug:        "batch-" + tag,
		StartDate:   now.AddDate(0, 0, 14),
		EndDate:     now.AddDate(0, 3, 0),
		MaxStudents: 30,
		Status:      model.BatchStatusEnrollmentOpen,
		IsActive:    true,
	}
	if err := db.Create(&batch).Error; err != nil {
		t.Fatalf("create batch: %v", err)
	}
	return &course, &batch
}

func seedUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	tag := uuid.New().String()[:8]
	user := model.User{
		Email:        fmt.Sprintf("it-%s@test.com", tag),
		PasswordHash: "not-a-real-hash",
		FullName:     "Integration Test User",
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &user
}

func checkoutInput(course *model.Course, batchID *uuid.UUID) CheckoutInput {
	price := decimal.RequireFromString("1000.00")
	return CheckoutInput{
		Items:        []CheckoutItem{{CourseID: course.ID, BatchID: batchID, Price: price}},
		Subtotal:     price,
		TotalAmount:  price,
		BillingName:  "Integration Test User",
		BillingEmail: "billing@test.com",
		BillingPhone: "01700000000",
	}
}

func TestCouponUsageCapUnderConcurrency(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)

	maxUses := 1
	coupon := model.Coupon{
		Code:          "CAP-" + uuid.New().String()[:8],
		DiscountType:  model.CouponDiscountFixed,
		DiscountValue: decimal.RequireFromString("100.00"),
		ApplyToAll:    true,
		MaxUses:       &maxUses,
		IsActive:      true,
		ValidFrom:     time.Now().AddDate(0, 0, -1),
		ValidUntil:    time.Now().AddDate(0, 1, 0),
	}
	if err := db.Create(&coupon).Error; err != nil {
		t.Fatalf("create coupon: %v", err)
	}

	input := checkoutInput(course, &batch.ID)
	input.CouponCode = coupon.Code
	input.DiscountAmount = decimal.RequireFromString("100.00")
	input.TotalAmount = decimal.RequireFromString("900.00")

	const buyers = 4
	users := make([]*model.User, buyers)
	for i := range users {
		users[i] = seedUser(t, db)
	}

	var wg sync.WaitGroup
	results := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := orders.CreateOrder(context.Background(), users[i].ID, input)
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var couponErr *CouponError
		if !errors.As(err, &couponErr) {
			t.Errorf("unexpected checkout error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 successful checkout, got %d", succeeded)
	}

	var fresh model.Coupon
	if err := db.First(&fresh, "id = ?", coupon.ID).Error; err != nil {
		t.Fatalf("reload coupon: %v", err)
	}
	if fresh.UsedCount != 1 {
		t.Errorf("expected used_count 1, got %d", fresh.UsedCount)
	}
}

func TestMarkOrderCompletedIsIdempotent(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)

	order, err := orders.CreateOrder(context.Background(), user.ID, checkoutInput(course, &batch.ID))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := orders.MarkOrderCompleted(db, order); err != nil {
			t.Fatalf("settlement pass %d: %v", i+1, err)
		}
	}

	var count int64
	err = db.Model(&model.Enrollment{}).
		Where("user_id = ? AND batch_id = ?", user.ID, batch.ID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count enrollments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 enrollment after repeated settlement, got %d", count)
	}

	var fresh model.CourseBatch
	if err := db.First(&fresh, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("reload batch: %v", err)
	}
	if fresh.EnrolledStudents != 1 {
		t.Errorf("expected enrolled_students 1, got %d", fresh.EnrolledStudents)
	}
	if order.Status != model.OrderStatusCompleted {
		t.Errorf("expected order completed, got %s", order.Status)
	}
}

func TestCheckoutResolvesBatchWhenUnspecified(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)

	order, err := orders.CreateOrder(context.Background(), user.ID, checkoutInput(course, nil))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 order item, got %d", len(order.Items))
	}
	if order.Items[0].BatchID == nil {
		t.Fatal("expected a batch to be assigned at checkout")
	}
	if *order.Items[0].BatchID != batch.ID {
		t.Errorf("expected batch %s, got %s", batch.ID, *order.Items[0].BatchID)
	}

	if err := orders.MarkOrderCompleted(db, order); err != nil {
		t.Fatalf("settlement: %v", err)
	}
	var count int64
	err = db.Model(&model.Enrollment{}).
		Where("user_id = ? AND batch_id = ?", user.ID, batch.ID).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count enrollments: %v", err)
	}
	if count != 1 {
		t.Errorf("expected the buyer to be enrolled, got %d enrollments", count)
	}
}

func TestMarkInstallmentPaidIgnoresRedelivery(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	orders := NewOrderService(db, enrollments)
	payments := NewPaymentService(db, nil, orders, "", "")

	input := checkoutInput(course, &batch.ID)
	input.IsInstallment = true
	input.InstallmentPlan = 2
	order, err := orders.CreateOrder(context.Background(), user.ID, input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	var installments []model.OrderInstallment
	err = db.Where("order_id = ?", order.ID).
		Order("installment_number ASC").
		Find(&installments).Error
	if err != nil {
		t.Fatalf("load installments: %v", err)
	}
	if len(installments) != 2 {
		t.Fatalf("expected 2 installments, got %d", len(installments))
	}

	paymentID := model.BuildPaymentID(order.OrderNumber, 1)
	if err := payments.markInstallmentPaid(db, order, &installments[0], paymentID, "ssl_commerce", "VAL-1"); err != nil {
		t.Fatalf("first settlement: %v", err)
	}

	// Redelivery: reload the installment the way the webhook path does.
	var redelivered model.OrderInstallment
	if err := db.First(&redelivered, "id = ?", installments[0].ID).Error; err != nil {
		t.Fatalf("reload installment: %v", err)
	}
	if err := payments.markInstallmentPaid(db, order, &redelivered, paymentID, "ssl_commerce", "VAL-1"); err != nil {
		t.Fatalf("redelivered settlement: %v", err)
	}

	var fresh model.Order
	if err := db.First(&fresh, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if fresh.InstallmentsPaid != 1 {
		t.Errorf("expected installments_paid 1 after redelivery, got %d", fresh.InstallmentsPaid)
	}
}

func TestCartRejectsDuplicateAdd(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)
	carts := NewCartService(db, enrollments)

	cart, err := carts.GetOrCreate(context.Background(), &user.ID, "")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if _, _, err := carts.AddItem(context.Background(), cart, course.ID, &batch.ID); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, _, err := carts.AddItem(context.Background(), cart, course.ID, &batch.ID); !errors.Is(err, ErrAlreadyInCart) {
		t.Fatalf("expected ErrAlreadyInCart on re-add, got %v", err)
	}

	var count int64
	if err := db.Model(&model.CartItem{}).Where("cart_id = ?", cart.ID).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 cart item after re-add, got %d", count)
	}
}

func TestEnrollFreeRejectsClosedBatch(t *testing.T) {
	db := setupIntegrationDB(t)
	_, batch := seedCourse(t, db, true)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)

	closed := time.Now().AddDate(0, 0, -2)
	batch.EnrollmentEndDate = &closed
	if err := db.Save(batch).Error; err != nil {
		t.Fatalf("close batch: %v", err)
	}

	if _, err := enrollments.EnrollFree(context.Background(), user.ID, batch.ID); !errors.Is(err, ErrBatchClosed) {
		t.Fatalf("expected ErrBatchClosed, got %v", err)
	}
}

func TestTouchLastAccessed(t *testing.T) {
	db := setupIntegrationDB(t)
	course, batch := seedCourse(t, db, false)
	user := seedUser(t, db)
	enrollments := NewEnrollmentService(db)

	if _, _, err := enrollments.GetOrCreate(db, user.ID, batch, nil); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if err := enrollments.TouchLastAccessed(context.Background(), user.ID, course.ID); err != nil {
		t.Fatalf("touch: %v", err)
	}

	var enrollment model.Enrollment
	err := db.Where("user_id = ? AND batch_id = ?", user.ID, batch.ID).First(&enrollment).Error
	if err != nil {
		t.Fatalf("reload enrollment: %v", err)
	}
	if enrollment.LastAccessed == nil {
		t.Fatal("expected last_accessed to be stamped")
	}
	if time.Since(*enrollment.LastAccessed) > time.Minute {
		t.Errorf("last_accessed not recent: %s", enrollment.LastAccessed)
	}
}
