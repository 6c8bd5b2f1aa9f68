package cart

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/middleware"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// CartHandler handles cart and wishlist requests. Guests are identified by
// the X-Session-Key header; signed-in users by their token.
type CartHandler struct {
	db        *gorm.DB
	carts     *services.CartService
	validator *validation.Validator
}

// NewCartHandler creates a new cart handler
func NewCartHandler(db *gorm.DB, carts *services.CartService) *CartHandler {
	return &CartHandler{
		db:        db,
		carts:     carts,
		validator: validation.NewValidator(),
	}
}

func (h *CartHandler) resolveCart(c *fiber.Ctx) (*model.Cart, error) {
	var userID *uint
	if id, ok := middleware.GetUserID(c); ok {
		userID = &id
	}
	sessionKey := validation.SanitizeString(c.Get("X-Session-Key"))
	return h.carts.GetOrCreate(c.Context(), userID, sessionKey)
}

// CartResponse is the API projection of a cart
type CartResponse struct {
	ID         uuid.UUID        `json:"id"`
	Items      []model.CartItem `json:"items"`
	TotalItems int              `json:"total_items"`
	TotalPrice string           `json:"total_price"`
}

func toCartResponse(cart *model.Cart) CartResponse {
	return CartResponse{
		ID:         cart.ID,
		Items:      cart.Items,
		TotalItems: cart.TotalItems(),
		TotalPrice: cart.TotalPrice(time.Now()).StringFixed(2),
	}
}

// GetCart returns the current cart.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		if errors.Is(err, services.ErrCartIdentityMissing) {
			return response.BadRequest(c, "A session key or login is required")
		}
		return response.InternalServerError(c, "Failed to load cart")
	}
	return response.Success(c, toCartResponse(cart))
}

// AddItemRequest adds a course (optionally a specific batch) to the cart
type AddItemRequest struct {
	CourseID uuid.UUID  `json:"course_id" validate:"required"`
	BatchID  *uuid.UUID `json:"batch_id,omitempty"`
}

// AddItem puts a course in the cart. Re-adding the same course is a 200
// no-op; a different course while one is already in the cart is a 400 that
// names the blocking course.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	err := h.db.Where("id = ? AND status = ? AND is_active = ?",
		req.CourseID, model.CourseStatusPublished, true).
		First(&course).Error
	if err != nil {
		return response.NotFound(c, "Course not found")
	}

	if req.BatchID != nil {
		var batch model.CourseBatch
		if err := h.db.Where("id = ? AND course_id = ?", req.BatchID, req.CourseID).First(&batch).Error; err != nil {
			return response.NotFound(c, "Batch not found for this course")
		}
		if !batch.IsEnrollmentOpen(time.Now()) {
			return response.BadRequest(c, "Batch is not open for enrollment")
		}
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		if errors.Is(err, services.ErrCartIdentityMissing) {
			return response.BadRequest(c, "A session key or login is required")
		}
		return response.InternalServerError(c, "Failed to load cart")
	}

	_, blocking, err := h.carts.AddItem(c.Context(), cart, req.CourseID, req.BatchID)
	switch {
	case err == nil:
		return response.Created(c, toCartResponse(cart))
	case errors.Is(err, services.ErrAlreadyInCart):
		return response.SuccessWithMessage(c, "Course is already in your cart", toCartResponse(cart))
	case errors.Is(err, services.ErrDifferentCourse):
		return response.ErrorWithDetails(c, fiber.StatusBadRequest,
			"Your cart already holds another course. Check out or remove it first.",
			"CART_HAS_COURSE", blocking.Title)
	case errors.Is(err, services.ErrAlreadyOwnsCourse):
		return response.Conflict(c, "You are already enrolled in this course")
	default:
		return response.InternalServerError(c, "Failed to add course to cart")
	}
}

// RemoveItem deletes one item from the cart.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Params("itemId"))
	if err != nil {
		return response.BadRequest(c, "Invalid item id")
	}

	cart, err := h.resolveCart(c)
	if err != nil {
		return response.BadRequest(c, "A session key or login is required")
	}

	if err := h.carts.RemoveItem(c.Context(), cart, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Item not found in cart")
		}
		return response.InternalServerError(c, "Failed to remove item")
	}
	return response.NoContent(c)
}

// ClearCart empties the cart.
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	cart, err := h.resolveCart(c)
	if err != nil {
		return response.BadRequest(c, "A session key or login is required")
	}
	if err := h.carts.Clear(c.Context(), cart); err != nil {
		return response.InternalServerError(c, "Failed to clear cart")
	}
	return response.NoContent(c)
}

// MergeCart moves the guest cart into the signed-in user's cart.
func (h *CartHandler) MergeCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	sessionKey := validation.SanitizeString(c.Get("X-Session-Key"))
	if sessionKey == "" {
		return response.BadRequest(c, "X-Session-Key header is required")
	}

	merged, err := h.carts.MergeGuestCart(c.Context(), userID, sessionKey)
	if err != nil {
		return response.InternalServerError(c, "Failed to merge cart")
	}
	return response.SuccessWithMessage(c, "Cart merged", fiber.Map{"merged_items": merged})
}
