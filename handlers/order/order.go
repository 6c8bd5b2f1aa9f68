package order

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/middleware"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// OrderHandler handles checkout and order lifecycle requests
type OrderHandler struct {
	db        *gorm.DB
	orders    *services.OrderService
	carts     *services.CartService
	validator *validation.Validator
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(db *gorm.DB, orders *services.OrderService, carts *services.CartService) *OrderHandler {
	return &OrderHandler{
		db:        db,
		orders:    orders,
		carts:     carts,
		validator: validation.NewValidator(),
	}
}

// CheckoutItemRequest is one course line in the checkout payload
type CheckoutItemRequest struct {
	CourseID uuid.UUID  `json:"course_id" validate:"required"`
	BatchID  *uuid.UUID `json:"batch_id,omitempty"`
	Price    string     `json:"price" validate:"required"`
}

// CheckoutRequest is the client's view of the order being placed. The
// amounts are cross-checked server side before anything is written.
type CheckoutRequest struct {
	Items          []CheckoutItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal       string                `json:"subtotal" validate:"required"`
	DiscountAmount string                `json:"discount_amount,omitempty"`
	TaxAmount      string                `json:"tax_amount,omitempty"`
	TotalAmount    string                `json:"total_amount" validate:"required"`
	CouponCode     string                `json:"coupon_code,omitempty"`

	BillingName     string `json:"billing_name" validate:"required,min=2,max=255"`
	BillingEmail    string `json:"billing_email" validate:"required,email"`
	BillingPhone    string `json:"billing_phone" validate:"required,min=6,max=20"`
	BillingAddress  string `json:"billing_address,omitempty"`
	BillingCity     string `json:"billing_city,omitempty"`
	BillingCountry  string `json:"billing_country,omitempty"`
	BillingPostcode string `json:"billing_postcode,omitempty"`

	IsInstallment   bool   `json:"is_installment,omitempty"`
	InstallmentPlan int    `json:"installment_plan,omitempty" validate:"omitempty,min=2,max=12"`
	Notes           string `json:"notes,omitempty" validate:"max=1000"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (h *OrderHandler) buildCheckoutInput(req *CheckoutRequest) (*services.CheckoutInput, error) {
	in := services.CheckoutInput{
		CouponCode:      validation.SanitizeString(req.CouponCode),
		BillingName:     validation.SanitizeString(req.BillingName),
		BillingEmail:    validation.SanitizeString(req.BillingEmail),
		BillingPhone:    validation.SanitizeString(req.BillingPhone),
		BillingAddress:  validation.SanitizeString(req.BillingAddress),
		BillingCity:     validation.SanitizeString(req.BillingCity),
		BillingCountry:  validation.SanitizeString(req.BillingCountry),
		BillingPostcode: validation.SanitizeString(req.BillingPostcode),
		IsInstallment:   req.IsInstallment,
		InstallmentPlan: req.InstallmentPlan,
		Notes:           validation.SanitizeString(req.Notes),
	}

	var err error
	if in.Subtotal, err = parseAmount(req.Subtotal); err != nil {
		return nil, errors.New("invalid subtotal")
	}
	if in.DiscountAmount, err = parseAmount(req.DiscountAmount); err != nil {
		return nil, errors.New("invalid discount amount")
	}
	if in.TaxAmount, err = parseAmount(req.TaxAmount); err != nil {
		return nil, errors.New("invalid tax amount")
	}
	if in.TotalAmount, err = parseAmount(req.TotalAmount); err != nil {
		return nil, errors.New("invalid total amount")
	}

	for _, item := range req.Items {
		price, err := parseAmount(item.Price)
		if err != nil {
			return nil, errors.New("invalid item price")
		}
		in.Items = append(in.Items, services.CheckoutItem{
			CourseID: item.CourseID,
			BatchID:  item.BatchID,
			Price:    price,
		})
	}
	return &in, nil
}

// Checkout creates an order from the submitted items and clears the cart.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req CheckoutRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	in, err := h.buildCheckoutInput(&req)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	order, err := h.orders.CreateOrder(c.Context(), userID, *in)
	if err != nil {
		var couponErr *services.CouponError
		switch {
		case errors.As(err, &couponErr):
			return response.BadRequest(c, couponErr.Reason)
		case errors.Is(err, services.ErrEmptyOrder),
			errors.Is(err, services.ErrSubtotalMismatch),
			errors.Is(err, services.ErrTotalMismatch),
			errors.Is(err, services.ErrInstallmentPlanSmall),
			errors.Is(err, services.ErrInstallmentTooSmall),
			errors.Is(err, services.ErrCouponNotApplicable),
			errors.Is(err, services.ErrNoOpenBatch):
			return response.BadRequest(c, err.Error())
		default:
			return response.InternalServerError(c, "Failed to create order")
		}
	}

	// The cart served its purpose; clearing it is best effort.
	if cart, cartErr := h.carts.GetOrCreate(c.Context(), &userID, ""); cartErr == nil {
		_ = h.carts.Clear(c.Context(), cart)
	}

	return response.Created(c, order)
}

// ListMyOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	query := h.db.WithContext(c.Context()).
		Model(&model.Order{}).
		Where("user_id = ?", userID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count orders")
	}

	pagination := response.CalculatePagination(page, limit, total)

	var orders []model.Order
	err := query.
		Preload("Items").
		Preload("Installments", func(db *gorm.DB) *gorm.DB {
			return db.Order("installment_number ASC")
		}).
		Order("created_at DESC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&orders).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load orders")
	}

	return response.Paginated(c, orders, pagination)
}

// GetOrder returns one order by order number. Owners and staff only.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	order, err := h.orders.GetByOrderNumber(c.Context(), c.Params("orderNumber"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Order not found")
		}
		return response.InternalServerError(c, "Failed to load order")
	}

	user, _ := middleware.GetUser(c)
	if order.UserID != userID && (user == nil || !user.IsStaff()) {
		return response.NotFound(c, "Order not found")
	}

	data := fiber.Map{"order": order}
	if order.IsInstallment {
		data["installment_summary"] = services.BuildInstallmentSummary(order, time.Now())
	}
	return response.Success(c, data)
}

// CancelOrder cancels a pending or processing order.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid order id")
	}

	user, _ := middleware.GetUser(c)
	isStaff := user != nil && user.IsStaff()

	order, err := h.orders.CancelOrder(c.Context(), userID, orderID, isStaff)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Order not found")
		case errors.Is(err, services.ErrOrderNotCancellable):
			return response.Conflict(c, "Order can no longer be cancelled")
		default:
			return response.InternalServerError(c, "Failed to cancel order")
		}
	}
	return response.SuccessWithMessage(c, "Order cancelled", order)
}
