package course

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// CreateCourseRequest is the admin payload for creating a course
type CreateCourseRequest struct {
	CategoryID       uuid.UUID `json:"category_id" validate:"required"`
	Title            string    `json:"title" validate:"required,min=3,max=200"`
	Slug             string    `json:"slug,omitempty" validate:"omitempty,max=220"`
	ShortDescription string    `json:"short_description" validate:"max=500"`
	FullDescription  string    `json:"full_description"`
	Status           string    `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`

	// Pricing, created together with the course
	BasePrice            string `json:"base_price" validate:"required"`
	IsFree               bool   `json:"is_free"`
	DiscountPercentage   string `json:"discount_percentage,omitempty"`
	DiscountAmount       string `json:"discount_amount,omitempty"`
	InstallmentAvailable bool   `json:"installment_available"`
	InstallmentCount     *int   `json:"installment_count,omitempty" validate:"omitempty,gte=2,lte=12"`
}

// UpdateCourseRequest is the admin payload for updating a course
type UpdateCourseRequest struct {
	CategoryID       *uuid.UUID `json:"category_id,omitempty"`
	Title            string     `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	ShortDescription *string    `json:"short_description,omitempty"`
	FullDescription  *string    `json:"full_description,omitempty"`
	HeaderImageURL   *string    `json:"header_image_url,omitempty"`
	Status           string     `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	IsActive         *bool      `json:"is_active,omitempty"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// CreateCourse creates a course with its pricing row.
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	basePrice, err := parseAmount(req.BasePrice)
	if err != nil {
		return response.BadRequest(c, "Invalid base price")
	}
	discountPct, err := parseAmount(req.DiscountPercentage)
	if err != nil {
		return response.BadRequest(c, "Invalid discount percentage")
	}
	discountAmt, err := parseAmount(req.DiscountAmount)
	if err != nil {
		return response.BadRequest(c, "Invalid discount amount")
	}

	status := model.CourseStatusDraft
	if req.Status != "" {
		status = model.CourseStatus(req.Status)
	}

	course := model.Course{
		CategoryID:       req.CategoryID,
		Title:            validation.SanitizeString(req.Title),
		Slug:             validation.SanitizeString(req.Slug),
		ShortDescription: req.ShortDescription,
		FullDescription:  req.FullDescription,
		Status:           status,
		IsActive:         true,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&course).Error; err != nil {
			return err
		}
		pricing := model.CoursePrice{
			CourseID:             course.ID,
			BasePrice:            basePrice,
			Currency:             "BDT",
			IsActive:             true,
			IsFree:               req.IsFree,
			DiscountPercentage:   discountPct,
			DiscountAmount:       discountAmt,
			InstallmentAvailable: req.InstallmentAvailable,
			InstallmentCount:     req.InstallmentCount,
		}
		return tx.Create(&pricing).Error
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	h.catalog.Invalidate(c.Context())
	return response.Created(c, toCourseResponse(&course, time.Now()))
}

// UpdateCourse patches course fields.
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, "id = ?", courseID).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	if req.CategoryID != nil {
		course.CategoryID = *req.CategoryID
	}
	if req.Title != "" {
		course.Title = validation.SanitizeString(req.Title)
	}
	if req.ShortDescription != nil {
		course.ShortDescription = *req.ShortDescription
	}
	if req.FullDescription != nil {
		course.FullDescription = *req.FullDescription
	}
	if req.HeaderImageURL != nil {
		course.HeaderImageURL = *req.HeaderImageURL
	}
	if req.Status != "" {
		course.Status = model.CourseStatus(req.Status)
	}
	if req.IsActive != nil {
		course.IsActive = *req.IsActive
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	h.catalog.Invalidate(c.Context())
	return response.Success(c, toCourseResponse(&course, time.Now()))
}

// DeleteCourse soft-deletes a course.
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	result := h.db.Delete(&model.Course{}, "id = ?", courseID)
	if result.Error != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Course not found")
	}

	h.catalog.Invalidate(c.Context())
	return response.NoContent(c)
}

// UpdatePricingRequest is the admin payload for changing a course's price
type UpdatePricingRequest struct {
	BasePrice            *string    `json:"base_price,omitempty"`
	IsFree               *bool      `json:"is_free,omitempty"`
	DiscountPercentage   *string    `json:"discount_percentage,omitempty"`
	DiscountAmount       *string    `json:"discount_amount,omitempty"`
	DiscountStartDate    *time.Time `json:"discount_start_date,omitempty"`
	DiscountEndDate      *time.Time `json:"discount_end_date,omitempty"`
	InstallmentAvailable *bool      `json:"installment_available,omitempty"`
	InstallmentCount     *int       `json:"installment_count,omitempty" validate:"omitempty,gte=2,lte=12"`
}

// UpdatePricing patches a course's pricing.
func (h *CourseHandler) UpdatePricing(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req UpdatePricingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var pricing model.CoursePrice
	if err := h.db.Where("course_id = ?", courseID).First(&pricing).Error; err != nil {
		return response.NotFound(c, "Course pricing not found")
	}

	if req.BasePrice != nil {
		amount, err := decimal.NewFromString(*req.BasePrice)
		if err != nil {
			return response.BadRequest(c, "Invalid base price")
		}
		pricing.BasePrice = amount
	}
	if req.IsFree != nil {
		pricing.IsFree = *req.IsFree
	}
	if req.DiscountPercentage != nil {
		amount, err := parseAmount(*req.DiscountPercentage)
		if err != nil {
			return response.BadRequest(c, "Invalid discount percentage")
		}
		pricing.DiscountPercentage = amount
	}
	if req.DiscountAmount != nil {
		amount, err := parseAmount(*req.DiscountAmount)
		if err != nil {
			return response.BadRequest(c, "Invalid discount amount")
		}
		pricing.DiscountAmount = amount
	}
	if req.DiscountStartDate != nil {
		pricing.DiscountStartDate = req.DiscountStartDate
	}
	if req.DiscountEndDate != nil {
		pricing.DiscountEndDate = req.DiscountEndDate
	}
	if req.InstallmentAvailable != nil {
		pricing.InstallmentAvailable = *req.InstallmentAvailable
	}
	if req.InstallmentCount != nil {
		pricing.InstallmentCount = req.InstallmentCount
	}

	if err := h.db.Save(&pricing).Error; err != nil {
		return response.InternalServerError(c, "Failed to update pricing")
	}

	h.catalog.Invalidate(c.Context())
	return response.Success(c, toPricingResponse(&pricing, time.Now()))
}

// CreateCategoryRequest is the admin payload for creating a category
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Slug string `json:"slug,omitempty" validate:"omitempty,max=120"`
}

// CreateCategory creates a catalog category.
func (h *CourseHandler) CreateCategory(c *fiber.Ctx) error {
	var req CreateCategoryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	slug := req.Slug
	if slug == "" {
		slug = model.Slugify(req.Name)
	}
	category := model.Category{
		Name:     validation.SanitizeString(req.Name),
		Slug:     slug,
		IsActive: true,
	}
	if err := h.db.Create(&category).Error; err != nil {
		return response.Conflict(c, "Category already exists")
	}

	h.catalog.Invalidate(c.Context())
	return response.Created(c, category)
}
