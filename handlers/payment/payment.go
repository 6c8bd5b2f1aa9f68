package payment

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/middleware"
	"academy-backend/utils/response"
)

// PaymentHandler exposes gateway initiation, the IPN webhook and the
// browser redirect callbacks.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	orders   *services.OrderService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, orders *services.OrderService) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, orders: orders}
}

// InitiatePayment opens an SSLCommerz session for an order and returns the
// hosted checkout URL.
func (h *PaymentHandler) InitiatePayment(c *fiber.Ctx) error {
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
	if user == nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	result, err := h.payments.InitiatePayment(c.Context(), order, user)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotPayable):
			return response.Conflict(c, "Order is not in a payable state")
		case errors.Is(err, services.ErrNothingToPay):
			return response.Conflict(c, "Order has no pending installment")
		default:
			log.Println("Payment initiation failed:", err)
			return response.ServiceUnavailable(c, "Payment gateway is unavailable, try again shortly")
		}
	}
	return response.Success(c, result)
}

// GetInstallmentSummary returns payment progress for an installment order.
func (h *PaymentHandler) GetInstallmentSummary(c *fiber.Ctx) error {
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
	if !order.IsInstallment {
		return response.BadRequest(c, "Order is not an installment order")
	}

	return response.Success(c, services.BuildInstallmentSummary(order, time.Now()))
}

// Webhook receives SSLCommerz IPN notifications. Settlement trusts the
// gateway validation API, not this payload.
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	tranID := c.FormValue("tran_id")
	valID := c.FormValue("val_id")

	// The signature check is advisory; validation with the gateway is the
	// real gate. A bad signature is still logged.
	fields := map[string]string{}
	args := c.Context().PostArgs()
	args.VisitAll(func(key, value []byte) {
		fields[string(key)] = string(value)
	})
	if len(fields) > 0 && !h.payments.Gateway().VerifyWebhookSignature(fields) {
		log.Printf("Webhook signature mismatch for tran_id=%s", tranID)
	}

	result, err := h.payments.ProcessWebhook(c.Context(), tranID, valID)
	if err != nil {
		if errors.Is(err, services.ErrWebhookFieldsMissing) {
			return response.BadRequest(c, "tran_id and val_id are required")
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Unknown order")
		}
		log.Println("Webhook processing failed:", err)
		return response.InternalServerError(c, "Failed to process notification")
	}
	return response.Success(c, result)
}

// verifyCallbackStore rejects callbacks that do not carry our store id.
func (h *PaymentHandler) verifyCallbackStore(c *fiber.Ctx) bool {
	return c.FormValue("store_id") == h.payments.Gateway().StoreID()
}

// PaymentSuccess handles the browser redirect after a successful gateway
// payment. It runs the same settlement as the webhook, then sends the user
// to the frontend. If the webhook already settled the order this is a
// no-op.
func (h *PaymentHandler) PaymentSuccess(c *fiber.Ctx) error {
	if !h.verifyCallbackStore(c) {
		return response.Forbidden(c, "Unrecognized store")
	}

	tranID := c.FormValue("tran_id")
	valID := c.FormValue("val_id")

	result, err := h.payments.ProcessWebhook(c.Context(), tranID, valID)
	if err != nil {
		log.Printf("Success callback settlement failed for %s: %v", tranID, err)
		return c.Redirect(h.payments.RedirectURL("failed", tranID), fiber.StatusSeeOther)
	}
	if result.Status == model.OrderStatusFailed {
		return c.Redirect(h.payments.RedirectURL("failed", tranID), fiber.StatusSeeOther)
	}
	return c.Redirect(h.payments.RedirectURL("success", tranID), fiber.StatusSeeOther)
}

// PaymentFail handles the redirect after a declined payment.
func (h *PaymentHandler) PaymentFail(c *fiber.Ctx) error {
	if !h.verifyCallbackStore(c) {
		return response.Forbidden(c, "Unrecognized store")
	}
	tranID := c.FormValue("tran_id")

	h.recordOrderFailure(c, tranID)
	return c.Redirect(h.payments.RedirectURL("failed", tranID), fiber.StatusSeeOther)
}

// PaymentCancel handles the redirect after the user abandons the checkout.
// The order stays payable so they can retry.
func (h *PaymentHandler) PaymentCancel(c *fiber.Ctx) error {
	if !h.verifyCallbackStore(c) {
		return response.Forbidden(c, "Unrecognized store")
	}
	tranID := c.FormValue("tran_id")
	return c.Redirect(h.payments.RedirectURL("cancelled", tranID), fiber.StatusSeeOther)
}

func (h *PaymentHandler) recordOrderFailure(c *fiber.Ctx, orderNumber string) {
	var order model.Order
	err := h.db.WithContext(c.Context()).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return
	}
	// Partially paid installment orders stay processing; only unpaid orders
	// flip to failed.
	if order.InstallmentsPaid > 0 || order.Status == model.OrderStatusCompleted {
		return
	}
	if err := order.Transition(model.OrderStatusFailed); err == nil {
		if err := h.db.Save(&order).Error; err != nil {
			log.Println("Failed to record payment failure:", err)
		}
	}
}

// VerifyPayment reports an order's payment state to the frontend after the
// redirect. No login is required, but a signed-in non-staff caller only
// sees their own orders.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	tranID := c.Query("tran_id")
	if tranID == "" {
		return response.BadRequest(c, "tran_id is required")
	}

	order, err := h.orders.GetByOrderNumber(c.Context(), tranID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Order not found")
		}
		return response.InternalServerError(c, "Failed to load order")
	}

	if userID, ok := middleware.GetUserID(c); ok {
		user, _ := middleware.GetUser(c)
		if order.UserID != userID && (user == nil || !user.IsStaff()) {
			return response.NotFound(c, "Order not found")
		}
	}

	verified := order.Status == model.OrderStatusCompleted ||
		(order.IsInstallment && order.InstallmentsPaid > 0)

	var courseTitles []string
	if verified {
		for _, item := range order.Items {
			courseTitles = append(courseTitles, item.CourseTitle)
		}
	}

	return response.Success(c, fiber.Map{
		"order_number":      order.OrderNumber,
		"status":            order.Status,
		"payment_status":    order.PaymentStatus,
		"payment_verified":  verified,
		"is_installment":    order.IsInstallment,
		"installments_paid": order.InstallmentsPaid,
		"enrolled_courses":  courseTitles,
	})
}
