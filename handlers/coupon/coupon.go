package coupon

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// CouponHandler handles coupon administration and public validation
type CouponHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCouponHandler creates a new coupon handler
func NewCouponHandler(db *gorm.DB) *CouponHandler {
	return &CouponHandler{db: db, validator: validation.NewValidator()}
}

// ValidateCouponRequest previews a coupon against a set of courses and a
// price before checkout.
type ValidateCouponRequest struct {
	Code      string      `json:"code" validate:"required,min=3,max=50"`
	CourseIDs []uuid.UUID `json:"course_ids" validate:"required,min=1"`
	Subtotal  string      `json:"subtotal" validate:"required"`
}

// ValidateCoupon checks a code and returns the discount it would apply.
// Nothing is consumed; usage is counted at checkout.
func (h *CouponHandler) ValidateCoupon(c *fiber.Ctx) error {
	var req ValidateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	code := strings.ToUpper(validation.SanitizeString(req.Code))
	if !validation.ValidateCouponCode(code) {
		return response.BadRequest(c, "Invalid coupon code format")
	}
	subtotal, err := decimal.NewFromString(req.Subtotal)
	if err != nil || subtotal.IsNegative() {
		return response.BadRequest(c, "Invalid subtotal")
	}

	var coupon model.Coupon
	err = h.db.WithContext(c.Context()).
		Preload("Courses").
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Invalid coupon code")
		}
		return response.InternalServerError(c, "Failed to look up coupon")
	}

	if valid, reason := coupon.Validate(time.Now()); !valid {
		return response.BadRequest(c, reason)
	}
	for _, courseID := range req.CourseIDs {
		if !coupon.AppliesToCourse(courseID) {
			return response.BadRequest(c, "Coupon does not apply to all selected courses")
		}
	}

	discount := coupon.CalculateDiscount(subtotal)
	return response.Success(c, fiber.Map{
		"code":            coupon.Code,
		"discount_type":   coupon.DiscountType,
		"discount_amount": discount.StringFixed(2),
		"final_amount":    subtotal.Sub(discount).StringFixed(2),
	})
}

// CouponRequest creates or replaces a coupon
type CouponRequest struct {
	Code            string      `json:"code" validate:"required,min=3,max=50"`
	DiscountType    string      `json:"discount_type" validate:"required,oneof=percentage fixed"`
	DiscountValue   string      `json:"discount_value" validate:"required"`
	CourseIDs       []uuid.UUID `json:"course_ids,omitempty"`
	ApplyToAll      bool        `json:"apply_to_all,omitempty"`
	MaxUses         *int        `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	MaxUsesPerUser  int         `json:"max_uses_per_user,omitempty" validate:"omitempty,min=1"`
	IsActive        *bool       `json:"is_active,omitempty"`
	ValidFrom       time.Time   `json:"valid_from" validate:"required"`
	ValidUntil      time.Time   `json:"valid_until" validate:"required,gtfield=ValidFrom"`
}

func (h *CouponHandler) buildCoupon(req *CouponRequest) (*model.Coupon, error) {
	code := strings.ToUpper(validation.SanitizeString(req.Code))
	if !validation.ValidateCouponCode(code) {
		return nil, errors.New("coupon code may only contain letters, digits and hyphens")
	}

	value, err := decimal.NewFromString(req.DiscountValue)
	if err != nil || value.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("discount value must be a positive amount")
	}
	if req.DiscountType == string(model.CouponDiscountPercentage) &&
		value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("percentage discount cannot exceed 100")
	}
	if !req.ApplyToAll && len(req.CourseIDs) == 0 {
		return nil, errors.New("either apply_to_all or course_ids is required")
	}

	coupon := model.Coupon{
		Code:           code,
		DiscountType:   model.CouponDiscountType(req.DiscountType),
		DiscountValue:  value,
		ApplyToAll:     req.ApplyToAll,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
		IsActive:       true,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	if !req.ApplyToAll {
		var courses []model.Course
		if err := h.db.Where("id IN ?", req.CourseIDs).Find(&courses).Error; err != nil {
			return nil, errors.New("failed to resolve courses")
		}
		if len(courses) != len(req.CourseIDs) {
			return nil, errors.New("one or more courses do not exist")
		}
		coupon.Courses = courses
	}
	return &coupon, nil
}

// CreateCoupon adds a new coupon.
func (h *CouponHandler) CreateCoupon(c *fiber.Ctx) error {
	var req CouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	coupon, err := h.buildCoupon(&req)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.db.WithContext(c.Context()).Create(coupon).Error; err != nil {
		if services.IsUniqueViolation(err) {
			return response.Conflict(c, "A coupon with this code already exists")
		}
		return response.InternalServerError(c, "Failed to create coupon")
	}
	return response.Created(c, coupon)
}

// ListCoupons returns all coupons for the admin dashboard.
func (h *CouponHandler) ListCoupons(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)

	query := h.db.WithContext(c.Context()).Model(&model.Coupon{})
	if c.QueryBool("active_only", false) {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count coupons")
	}
	pagination := response.CalculatePagination(page, limit, total)

	var coupons []model.Coupon
	err := query.
		Preload("Courses").
		Order("created_at DESC").
		Offset((pagination.CurrentPage - 1) * pagination.PerPage).
		Limit(pagination.PerPage).
		Find(&coupons).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load coupons")
	}
	return response.Paginated(c, coupons, pagination)
}

// GetCoupon returns one coupon by id.
func (h *CouponHandler) GetCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid coupon id")
	}

	var coupon model.Coupon
	if err := h.db.Preload("Courses").First(&coupon, "id = ?", id).Error; err != nil {
		return response.NotFound(c, "Coupon not found")
	}
	return response.Success(c, coupon)
}

// UpdateCouponRequest patches a coupon; usage counters are untouched
type UpdateCouponRequest struct {
	DiscountValue  *string      `json:"discount_value,omitempty"`
	CourseIDs      *[]uuid.UUID `json:"course_ids,omitempty"`
	ApplyToAll     *bool        `json:"apply_to_all,omitempty"`
	MaxUses        *int         `json:"max_uses,omitempty" validate:"omitempty,min=1"`
	MaxUsesPerUser *int         `json:"max_uses_per_user,omitempty" validate:"omitempty,min=1"`
	IsActive       *bool        `json:"is_active,omitempty"`
	ValidFrom      *time.Time   `json:"valid_from,omitempty"`
	ValidUntil     *time.Time   `json:"valid_until,omitempty"`
}

// UpdateCoupon patches coupon fields. The code itself is immutable so
// existing orders keep a stable reference.
func (h *CouponHandler) UpdateCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid coupon id")
	}

	var req UpdateCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var coupon model.Coupon
	if err := h.db.Preload("Courses").First(&coupon, "id = ?", id).Error; err != nil {
		return response.NotFound(c, "Coupon not found")
	}

	if req.DiscountValue != nil {
		value, err := decimal.NewFromString(*req.DiscountValue)
		if err != nil || value.LessThanOrEqual(decimal.Zero) {
			return response.BadRequest(c, "Discount value must be a positive amount")
		}
		if coupon.DiscountType == model.CouponDiscountPercentage &&
			value.GreaterThan(decimal.NewFromInt(100)) {
			return response.BadRequest(c, "Percentage discount cannot exceed 100")
		}
		coupon.DiscountValue = value
	}
	if req.ApplyToAll != nil {
		coupon.ApplyToAll = *req.ApplyToAll
	}
	if req.MaxUses != nil {
		coupon.MaxUses = req.MaxUses
	}
	if req.MaxUsesPerUser != nil {
		coupon.MaxUsesPerUser = *req.MaxUsesPerUser
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}
	if req.ValidFrom != nil {
		coupon.ValidFrom = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		coupon.ValidUntil = *req.ValidUntil
	}
	if !coupon.ValidUntil.After(coupon.ValidFrom) {
		return response.BadRequest(c, "valid_until must be after valid_from")
	}

	err = h.db.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		if req.CourseIDs != nil {
			var courses []model.Course
			if err := tx.Where("id IN ?", *req.CourseIDs).Find(&courses).Error; err != nil {
				return err
			}
			if len(courses) != len(*req.CourseIDs) {
				return errors.New("one or more courses do not exist")
			}
			if err := tx.Model(&coupon).Association("Courses").Replace(courses); err != nil {
				return err
			}
			coupon.Courses = courses
		}
		return tx.Save(&coupon).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to update coupon")
	}
	return response.Success(c, coupon)
}

// DeleteCoupon deactivates a coupon. Rows are kept so past orders still
// resolve their coupon.
func (h *CouponHandler) DeleteCoupon(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid coupon id")
	}

	result := h.db.WithContext(c.Context()).
		Model(&model.Coupon{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to deactivate coupon")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Coupon not found")
	}
	return response.NoContent(c)
}
