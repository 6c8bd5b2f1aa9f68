package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academy-backend/model"
)

const (
	// priceTolerance absorbs client-side rounding when cross-checking totals
	priceToleranceStr = "0.01"

	// minInstallmentAmountStr is the smallest allowed per-installment charge
	minInstallmentAmountStr = "500.00"

	// installmentInterval is the spacing between installment due dates
	installmentInterval = 30 * 24 * time.Hour

	// orderNumberRetries bounds collision retries on the random suffix
	orderNumberRetries = 5
)

var (
	priceTolerance       = decimal.RequireFromString(priceToleranceStr)
	minInstallmentAmount = decimal.RequireFromString(minInstallmentAmountStr)

	ErrEmptyOrder           = errors.New("order must contain at least one item")
	ErrSubtotalMismatch     = errors.New("subtotal does not match item prices")
	ErrTotalMismatch        = errors.New("total does not match subtotal, discount and tax")
	ErrDescriptionRequired  = errors.New("custom payments require a description")
	ErrInstallmentPlanSmall = errors.New("installment plan must have at least 2 installments")
	ErrInstallmentTooSmall  = errors.New("per-installment amount is below the minimum")
	ErrOrderNotCancellable  = errors.New("order can no longer be cancelled")
	ErrCouponNotApplicable  = errors.New("coupon does not apply to all courses in the order")
	ErrNoOpenBatch          = errors.New("course has no batch available for enrollment")
)

// CouponError carries the human-readable rejection reason from coupon
// validation.
type CouponError struct {
	Reason string
}

func (e *CouponError) Error() string {
	return e.Reason
}

// CheckoutItem is one course line submitted at checkout.
type CheckoutItem struct {
	CourseID uuid.UUID
	BatchID  *uuid.UUID
	Price    decimal.Decimal
}

// CheckoutInput is the validated payload for order creation.
type CheckoutInput struct {
	Items          []CheckoutItem
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponCode     string

	BillingName     string
	BillingEmail    string
	BillingPhone    string
	BillingAddress  string
	BillingCity     string
	BillingCountry  string
	BillingPostcode string

	IsInstallment   bool
	InstallmentPlan int

	// Staff-only custom payments skip item price checks.
	IsCustomPayment bool
	Description     string
	Notes           string
}

// OrderService creates orders and drives their lifecycle.
type OrderService struct {
	db          *gorm.DB
	enrollments *EnrollmentService
}

// NewOrderService creates a new order service
func NewOrderService(db *gorm.DB, enrollments *EnrollmentService) *OrderService {
	return &OrderService{db: db, enrollments: enrollments}
}

func withinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(priceTolerance)
}

// validateCheckout cross-checks the submitted amounts and coupon before
// anything is written.
func (s *OrderService) validateCheckout(ctx context.Context, in *CheckoutInput) (*model.Coupon, error) {
	if len(in.Items) == 0 && !in.IsCustomPayment {
		return nil, ErrEmptyOrder
	}
	if in.IsCustomPayment && in.Description == "" {
		return nil, ErrDescriptionRequired
	}

	// Custom payments have flexible pricing; only the arithmetic of the
	// submitted amounts is checked.
	if !in.IsCustomPayment {
		itemSum := decimal.Zero
		for _, item := range in.Items {
			itemSum = itemSum.Add(item.Price)
		}
		if !withinTolerance(in.Subtotal, itemSum) {
			return nil, ErrSubtotalMismatch
		}
	}

	expectedTotal := in.Subtotal.Sub(in.DiscountAmount).Add(in.TaxAmount)
	if !withinTolerance(in.TotalAmount, expectedTotal) {
		return nil, ErrTotalMismatch
	}

	if in.IsInstallment {
		if in.InstallmentPlan < 2 {
			return nil, ErrInstallmentPlanSmall
		}
		perInstallment := in.TotalAmount.Div(decimal.NewFromInt(int64(in.InstallmentPlan)))
		if perInstallment.LessThan(minInstallmentAmount) {
			return nil, ErrInstallmentTooSmall
		}
	}

	if in.CouponCode == "" {
		return nil, nil
	}

	var coupon model.Coupon
	err := s.db.WithContext(ctx).
		Preload("Courses").
		Where("code = ?", in.CouponCode).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &CouponError{Reason: "Invalid coupon code"}
		}
		return nil, err
	}

	if valid, reason := coupon.Validate(time.Now()); !valid {
		return nil, &CouponError{Reason: reason}
	}
	for _, item := range in.Items {
		if !coupon.AppliesToCourse(item.CourseID) {
			return nil, ErrCouponNotApplicable
		}
	}

	return &coupon, nil
}

// BuildInstallmentSchedule splits a total into plan parts rounded to 2dp,
// with the final installment absorbing the rounding remainder so the parts
// sum exactly to the total. Due dates start 30 days out, spaced 30 days.
func BuildInstallmentSchedule(total decimal.Decimal, plan int, from time.Time) []model.OrderInstallment {
	base := total.Div(decimal.NewFromInt(int64(plan))).RoundBank(2)

	installments := make([]model.OrderInstallment, plan)
	allocated := decimal.Zero
	for i := 0; i < plan; i++ {
		amount := base
		if i == plan-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)

		installments[i] = model.OrderInstallment{
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueDate:           from.Add(time.Duration(i+1) * installmentInterval),
			Status:            model.InstallmentStatusPending,
		}
	}
	return installments
}

// resolveEnrollmentBatch picks the batch a purchase lands in when the buyer
// did not choose one: the open-enrollment batch starting soonest, falling
// back to the most recently scheduled active batch.
func resolveEnrollmentBatch(tx *gorm.DB, courseID uuid.UUID) (*model.CourseBatch, error) {
	var batches []model.CourseBatch
	err := tx.Where("course_id = ? AND is_active = ?", courseID, true).
		Order("start_date ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, ErrNoOpenBatch
	}
	now := time.Now()
	for i := range batches {
		if batches[i].IsEnrollmentOpen(now) {
			return &batches[i], nil
		}
	}
	return &batches[len(batches)-1], nil
}

// incrementCouponUsage bumps the usage counter under a row lock, re-checking
// the cap so concurrent checkouts cannot overshoot it.
func incrementCouponUsage(tx *gorm.DB, couponID uuid.UUID) error {
	var coupon model.Coupon
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&coupon, "id = ?", couponID).Error; err != nil {
		return err
	}
	if coupon.MaxUses != nil && coupon.UsedCount >= *coupon.MaxUses {
		return &CouponError{Reason: "Coupon usage limit reached"}
	}
	coupon.UsedCount++
	return tx.Save(&coupon).Error
}

// CreateOrder validates the checkout and persists the order, its items and
// its installment schedule in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, in CheckoutInput) (*model.Order, error) {
	coupon, err := s.validateCheckout(ctx, &in)
	if err != nil {
		return nil, err
	}

	order := model.Order{
		UserID:          userID,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusUnpaid,
		Subtotal:        in.Subtotal,
		DiscountAmount:  in.DiscountAmount,
		TaxAmount:       in.TaxAmount,
		TotalAmount:     in.TotalAmount,
		BillingName:     in.BillingName,
		BillingEmail:    in.BillingEmail,
		BillingPhone:    in.BillingPhone,
		BillingAddress:  in.BillingAddress,
		BillingCity:     in.BillingCity,
		BillingCountry:  in.BillingCountry,
		BillingPostcode: in.BillingPostcode,
		IsInstallment:   in.IsInstallment,
		IsCustomPayment: in.IsCustomPayment,
		Description:     in.Description,
		Notes:           in.Notes,
	}
	if in.IsInstallment {
		order.InstallmentPlan = in.InstallmentPlan
	}
	if coupon != nil {
		order.CouponID = &coupon.ID
		order.CouponCode = coupon.Code
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Pick the order number before inserting: a failed INSERT would
		// abort the whole Postgres transaction, so collisions are checked
		// with SELECTs and the insert itself runs once.
		for attempt := 0; attempt < orderNumberRetries; attempt++ {
			candidate := model.GenerateOrderNumber(time.Now())
			var taken int64
			err := tx.Model(&model.Order{}).
				Where("order_number = ?", candidate).
				Count(&taken).Error
			if err != nil {
				return err
			}
			if taken == 0 {
				order.OrderNumber = candidate
				break
			}
			order.OrderNumber = ""
		}
		if order.OrderNumber == "" {
			return fmt.Errorf("order number generation exhausted after %d attempts", orderNumberRetries)
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for _, item := range in.Items {
			var course model.Course
			if err := tx.First(&course, "id = ?", item.CourseID).Error; err != nil {
				return fmt.Errorf("course %s: %w", item.CourseID, err)
			}
			batchID := item.BatchID
			if batchID == nil {
				batch, err := resolveEnrollmentBatch(tx, item.CourseID)
				if err != nil {
					return fmt.Errorf("course %s: %w", item.CourseID, err)
				}
				id := batch.ID
				batchID = &id
			}
			orderItem := model.OrderItem{
				OrderID:     order.ID,
				CourseID:    item.CourseID,
				BatchID:     batchID,
				CourseTitle: course.Title,
				Price:       item.Price,
				Quantity:    1,
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return err
			}
			order.Items = append(order.Items, orderItem)
		}

		if in.IsInstallment {
			schedule := BuildInstallmentSchedule(in.TotalAmount, in.InstallmentPlan, time.Now())
			for i := range schedule {
				schedule[i].OrderID = order.ID
				if err := tx.Create(&schedule[i]).Error; err != nil {
					return err
				}
			}
			order.Installments = schedule
		}

		if coupon != nil {
			if err := incrementCouponUsage(tx, coupon.ID); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Order %s created for user %d (total %s)", order.OrderNumber, userID, order.TotalAmount.StringFixed(2))
	return &order, nil
}

// MarkOrderCompleted transitions the order to completed and enrolls the
// buyer into every purchased batch. Idempotent: a completed order is left
// untouched and enrollment creation tolerates existing rows.
func (s *OrderService) MarkOrderCompleted(tx *gorm.DB, order *model.Order) error {
	if order.Status != model.OrderStatusCompleted {
		if err := order.Transition(model.OrderStatusCompleted); err != nil {
			return err
		}
		order.PaymentStatus = model.PaymentStatusCompleted
		if err := tx.Save(order).Error; err != nil {
			return err
		}
	}

	if len(order.Items) == 0 {
		if err := tx.Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
			return err
		}
	}

	for _, item := range order.Items {
		var batch model.CourseBatch
		if item.BatchID != nil {
			if err := tx.First(&batch, "id = ?", item.BatchID).Error; err != nil {
				return fmt.Errorf("batch %s: %w", item.BatchID, err)
			}
		} else {
			// Items written before batches became mandatory at checkout
			resolved, err := resolveEnrollmentBatch(tx, item.CourseID)
			if err != nil {
				return fmt.Errorf("course %s: %w", item.CourseID, err)
			}
			batch = *resolved
		}
		orderID := order.ID
		if _, _, err := s.enrollments.GetOrCreate(tx, order.UserID, &batch, &orderID); err != nil {
			return err
		}
	}

	return nil
}

// CancelOrder cancels a pending or processing order on behalf of its owner.
func (s *OrderService) CancelOrder(ctx context.Context, userID uint, orderID uuid.UUID, isStaff bool) (*model.Order, error) {
	var order model.Order
	query := s.db.WithContext(ctx).Where("id = ?", orderID)
	if !isStaff {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&order).Error; err != nil {
		return nil, err
	}

	if !order.CanBeCancelled() {
		return nil, ErrOrderNotCancellable
	}
	if err := order.Transition(model.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}

	log.Printf("Order %s cancelled", order.OrderNumber)
	return &order, nil
}

// GetByOrderNumber loads an order with items and installments.
func (s *OrderService) GetByOrderNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkOverdueInstallments flips pending installments past their due date to
// overdue. Returns the number of rows changed; run from cron.
func (s *OrderService) MarkOverdueInstallments(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&model.OrderInstallment{}).
		Where("status = ? AND due_date < ?", model.InstallmentStatusPending, now).
		Update("status", model.InstallmentStatusOverdue)
	return result.RowsAffected, result.Error
}
