package order

import (
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// CustomPaymentRequest creates an order with staff-set pricing, used for
// offline deals, partial scholarships and other one-off arrangements.
type CustomPaymentRequest struct {
	UserEmail   string `json:"user_email" validate:"required,email"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"required,min=5,max=1000"`

	CourseID *string `json:"course_id,omitempty"`
	BatchID  *string `json:"batch_id,omitempty"`

	IsInstallment   bool   `json:"is_installment,omitempty"`
	InstallmentPlan int    `json:"installment_plan,omitempty" validate:"omitempty,min=2,max=12"`
	Notes           string `json:"notes,omitempty" validate:"max=1000"`
}

// CreateCustomPayment lets staff raise an order on a student's behalf.
func (h *OrderHandler) CreateCustomPayment(c *fiber.Ctx) error {
	var req CustomPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		return response.BadRequest(c, "Invalid amount")
	}

	var user model.User
	if err := h.db.Where("email = ?", validation.SanitizeString(req.UserEmail)).First(&user).Error; err != nil {
		return response.NotFound(c, "No user with that email")
	}

	in := services.CheckoutInput{
		Subtotal:        amount,
		TotalAmount:     amount,
		BillingName:     user.FullName,
		BillingEmail:    user.Email,
		BillingPhone:    user.Phone,
		IsInstallment:   req.IsInstallment,
		InstallmentPlan: req.InstallmentPlan,
		IsCustomPayment: true,
		Description:     validation.SanitizeString(req.Description),
		Notes:           validation.SanitizeString(req.Notes),
	}

	// A custom payment can still carry a course so completion enrolls the
	// student.
	if req.CourseID != nil {
		item, err := h.customPaymentItem(*req.CourseID, req.BatchID, amount)
		if err != nil {
			return response.BadRequest(c, err.Error())
		}
		in.Items = []services.CheckoutItem{*item}
	}

	order, err := h.orders.CreateOrder(c.Context(), user.ID, in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDescriptionRequired),
			errors.Is(err, services.ErrInstallmentPlanSmall),
			errors.Is(err, services.ErrInstallmentTooSmall),
			errors.Is(err, services.ErrNoOpenBatch):
			return response.BadRequest(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to create custom payment")
		}
	}
	return response.Created(c, order)
}

func (h *OrderHandler) customPaymentItem(courseID string, batchID *string, amount decimal.Decimal) (*services.CheckoutItem, error) {
	var course model.Course
	if err := h.db.First(&course, "id = ?", courseID).Error; err != nil {
		return nil, errors.New("course not found")
	}
	item := services.CheckoutItem{CourseID: course.ID, Price: amount}

	if batchID != nil {
		var batch model.CourseBatch
		if err := h.db.Where("id = ? AND course_id = ?", *batchID, course.ID).First(&batch).Error; err != nil {
			return nil, errors.New("batch not found for this course")
		}
		item.BatchID = &batch.ID
	}
	return &item, nil
}

// ListAllOrders returns orders across all users with optional filters.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	query := h.db.WithContext(c.Context()).Model(&model.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if paymentStatus := c.Query("payment_status"); paymentStatus != "" {
		query = query.Where("payment_status = ?", paymentStatus)
	}
	if email := c.Query("email"); email != "" {
		query = query.Where("billing_email ILIKE ?", "%"+email+"%")
	}
	if c.QueryBool("installments_only", false) {
		query = query.Where("is_installment = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count orders")
	}
	pagination := response.CalculatePagination(page, limit, total)

	var orders []model.Order
	err := query.
		Preload("Items").
		Preload("User").
		Order("created_at DESC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&orders).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load orders")
	}
	return response.Paginated(c, orders, pagination)
}

// CompleteOrder force-completes an order, recording the payment reference
// supplied by staff. Used for bank transfers and cash payments that never
// touch the gateway.
func (h *OrderHandler) CompleteOrder(c *fiber.Ctx) error {
	var req struct {
		PaymentMethod string `json:"payment_method" validate:"required,oneof=bank_transfer cash bkash nagad other"`
		Reference     string `json:"reference,omitempty" validate:"max=255"`
	}
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	order, err := h.orders.GetByOrderNumber(c.Context(), c.Params("orderNumber"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Order not found")
		}
		return response.InternalServerError(c, "Failed to load order")
	}
	if order.Status == model.OrderStatusCompleted {
		return response.SuccessWithMessage(c, "Order is already completed", order)
	}
	if !model.CanTransition(order.Status, model.OrderStatusCompleted) {
		return response.Conflict(c, fmt.Sprintf("Cannot complete an order in status %q", order.Status))
	}

	err = h.db.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		order.PaymentMethod = req.PaymentMethod
		if req.Reference != "" {
			order.Notes = validation.SanitizeString(req.Reference)
		}
		return h.orders.MarkOrderCompleted(tx, order)
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to complete order")
	}
	return response.SuccessWithMessage(c, "Order completed", order)
}

// revenueRow is one bucket of the statistics aggregation
type revenueRow struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// OrderStatistics aggregates revenue and order counts for the dashboard.
func (h *OrderHandler) OrderStatistics(c *fiber.Ctx) error {
	since := time.Now().AddDate(0, -1, 0)
	if days := c.QueryInt("days", 0); days > 0 {
		since = time.Now().AddDate(0, 0, -days)
	}

	var byStatus []revenueRow
	err := h.db.WithContext(c.Context()).
		Model(&model.Order{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to aggregate orders")
	}

	var paidInstallments struct {
		Count int64           `json:"count"`
		Total decimal.Decimal `json:"total"`
	}
	err = h.db.WithContext(c.Context()).
		Model(&model.OrderInstallment{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ? AND paid_at >= ?", model.InstallmentStatusPaid, since).
		Scan(&paidInstallments).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to aggregate installments")
	}

	var overdueCount int64
	h.db.Model(&model.OrderInstallment{}).
		Where("status = ?", model.InstallmentStatusOverdue).
		Count(&overdueCount)

	revenue := decimal.Zero
	for _, row := range byStatus {
		if row.Status == string(model.OrderStatusCompleted) {
			revenue = revenue.Add(row.Total)
		}
	}

	return response.Success(c, fiber.Map{
		"since":                since,
		"orders_by_status":     byStatus,
		"completed_revenue":    revenue.StringFixed(2),
		"installments_paid":    paidInstallments,
		"overdue_installments": overdueCount,
	})
}

// ExportOrders streams the filtered orders as CSV for the finance team.
func (h *OrderHandler) ExportOrders(c *fiber.Ctx) error {
	query := h.db.WithContext(c.Context()).Model(&model.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("created_at >= ?", t)
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}

	var orders []model.Order
	if err := query.Order("created_at ASC").Find(&orders).Error; err != nil {
		return response.InternalServerError(c, "Failed to load orders")
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="orders-%s.csv"`, time.Now().Format("20060102")))

	writer := csv.NewWriter(c)
	header := []string{
		"order_number", "status", "payment_status", "billing_name", "billing_email",
		"subtotal", "discount", "tax", "total", "coupon_code",
		"is_installment", "installments_paid", "payment_method", "created_at", "completed_at",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, o := range orders {
		completedAt := ""
		if o.CompletedAt != nil {
			completedAt = o.CompletedAt.Format(time.RFC3339)
		}
		row := []string{
			o.OrderNumber,
			string(o.Status),
			string(o.PaymentStatus),
			o.BillingName,
			o.BillingEmail,
			o.Subtotal.StringFixed(2),
			o.DiscountAmount.StringFixed(2),
			o.TaxAmount.StringFixed(2),
			o.TotalAmount.StringFixed(2),
			o.CouponCode,
			fmt.Sprintf("%t", o.IsInstallment),
			fmt.Sprintf("%d", o.InstallmentsPaid),
			o.PaymentMethod,
			o.CreatedAt.Format(time.RFC3339),
			completedAt,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
