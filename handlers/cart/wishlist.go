package cart

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/middleware"
	"academy-backend/utils/response"
)

// ListWishlist returns the user's saved courses.
func (h *CartHandler) ListWishlist(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var items []model.WishlistItem
	err := h.db.WithContext(c.Context()).
		Preload("Course.Pricing").
		Preload("Course.Category").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load wishlist")
	}
	return response.Success(c, items)
}

// AddToWishlistRequest saves a course for later
type AddToWishlistRequest struct {
	CourseID uuid.UUID `json:"course_id" validate:"required"`
}

// AddToWishlist saves a course. Re-adding is a no-op.
func (h *CartHandler) AddToWishlist(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req AddToWishlistRequest
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

	item := model.WishlistItem{UserID: userID, CourseID: req.CourseID}
	if err := h.db.WithContext(c.Context()).Create(&item).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return response.SuccessWithMessage(c, "Course is already in your wishlist", nil)
		}
		return response.InternalServerError(c, "Failed to add to wishlist")
	}
	return response.Created(c, item)
}

// RemoveFromWishlist drops a course from the wishlist.
func (h *CartHandler) RemoveFromWishlist(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	result := h.db.WithContext(c.Context()).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&model.WishlistItem{})
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to remove from wishlist")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Course not in wishlist")
	}
	return response.NoContent(c)
}

// MoveToCart removes a wishlist entry and adds the course to the cart.
func (h *CartHandler) MoveToCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var entry model.WishlistItem
	err = h.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&entry).Error
	if err != nil {
		return response.NotFound(c, "Course not in wishlist")
	}

	cart, err := h.carts.GetOrCreate(c.Context(), &userID, "")
	if err != nil {
		return response.InternalServerError(c, "Failed to load cart")
	}
	if _, _, err := h.carts.AddItem(c.Context(), cart, courseID, nil); err != nil {
		switch err {
		case services.ErrAlreadyInCart:
			// fall through to drop the wishlist row
		case services.ErrDifferentCourse:
			return response.BadRequest(c, "Your cart already holds another course")
		case services.ErrAlreadyOwnsCourse:
			return response.Conflict(c, "You are already enrolled in this course")
		default:
			return response.InternalServerError(c, "Failed to add course to cart")
		}
	}

	if err := h.db.Delete(&entry).Error; err != nil {
		return response.InternalServerError(c, "Failed to update wishlist")
	}

	return response.SuccessWithMessage(c, "Course moved to cart", toCartResponse(cart))
}
