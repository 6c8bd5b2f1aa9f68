package course

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/services"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// CourseHandler serves the public course catalog
type CourseHandler struct {
	db        *gorm.DB
	catalog   *services.CatalogService
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, catalog *services.CatalogService) *CourseHandler {
	return &CourseHandler{
		db:        db,
		catalog:   catalog,
		validator: validation.NewValidator(),
	}
}

// CourseResponse is the catalog projection of a course
type CourseResponse struct {
	ID               uuid.UUID             `json:"id"`
	Title            string                `json:"title"`
	Slug             string                `json:"slug"`
	ShortDescription string                `json:"short_description"`
	HeaderImageURL   string                `json:"header_image_url,omitempty"`
	Category         *model.Category       `json:"category,omitempty"`
	Pricing          *PricingResponse      `json:"pricing,omitempty"`
	Batches          []BatchResponse       `json:"batches,omitempty"`
}

// PricingResponse carries the effective price alongside the base price
type PricingResponse struct {
	BasePrice      string `json:"base_price"`
	EffectivePrice string `json:"effective_price"`
	Savings        string `json:"savings"`
	Currency       string `json:"currency"`
	IsFree         bool   `json:"is_free"`
	IsDiscounted   bool   `json:"is_discounted"`

	InstallmentAvailable bool   `json:"installment_available"`
	InstallmentCount     int    `json:"installment_count,omitempty"`
	InstallmentAmount    string `json:"installment_amount,omitempty"`
}

// BatchResponse is the catalog projection of a batch
type BatchResponse struct {
	ID               uuid.UUID  `json:"id"`
	BatchNumber      int        `json:"batch_number"`
	Name             string     `json:"name"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	Status           string     `json:"status"`
	EnrollmentOpen   bool       `json:"enrollment_open"`
	AvailableSeats   int        `json:"available_seats"`
	MaxStudents      int        `json:"max_students"`
	EnrolledStudents int        `json:"enrolled_students"`
	CustomPrice      *string    `json:"custom_price,omitempty"`
}

func toPricingResponse(p *model.CoursePrice, now time.Time) *PricingResponse {
	if p == nil {
		return nil
	}
	effective := p.DiscountedPrice(now)
	res := &PricingResponse{
		BasePrice:            p.BasePrice.StringFixed(2),
		EffectivePrice:       effective.StringFixed(2),
		Savings:              p.Savings(now).StringFixed(2),
		Currency:             p.Currency,
		IsFree:               p.IsFree,
		IsDiscounted:         p.IsCurrentlyDiscounted(now),
		InstallmentAvailable: p.InstallmentAvailable,
	}
	if p.InstallmentAvailable && p.InstallmentCount != nil {
		res.InstallmentCount = *p.InstallmentCount
		res.InstallmentAmount = p.InstallmentAmount(now).StringFixed(2)
	}
	return res
}

func toBatchResponse(b *model.CourseBatch, now time.Time) BatchResponse {
	res := BatchResponse{
		ID:               b.ID,
		BatchNumber:      b.BatchNumber,
		Name:             b.DisplayName(),
		StartDate:        b.StartDate,
		EndDate:          b.EndDate,
		Status:           string(b.Status),
		EnrollmentOpen:   b.IsEnrollmentOpen(now),
		AvailableSeats:   b.AvailableSeats(),
		MaxStudents:      b.MaxStudents,
		EnrolledStudents: b.EnrolledStudents,
	}
	if b.CustomPrice != nil {
		price := b.CustomPrice.StringFixed(2)
		res.CustomPrice = &price
	}
	return res
}

func toCourseResponse(course *model.Course, now time.Time) CourseResponse {
	res := CourseResponse{
		ID:               course.ID,
		Title:            course.Title,
		Slug:             course.Slug,
		ShortDescription: course.ShortDescription,
		HeaderImageURL:   course.HeaderImageURL,
		Category:         &course.Category,
		Pricing:          toPricingResponse(course.Pricing, now),
	}
	for i := range course.Batches {
		res.Batches = append(res.Batches, toBatchResponse(&course.Batches[i], now))
	}
	return res
}

// ListCourses returns the published catalog, optionally filtered by
// category slug.
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	categorySlug := c.Query("category")

	courses, total, err := h.catalog.ListPublished(c.Context(), categorySlug, page, limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to load courses")
	}

	now := time.Now()
	items := make([]CourseResponse, 0, len(courses))
	for i := range courses {
		items = append(items, toCourseResponse(&courses[i], now))
	}

	return response.Paginated(c, items, response.CalculatePagination(page, limit, total))
}

// GetCourse returns one published course by slug, with its full
// description, pricing and batches.
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return response.BadRequest(c, "Course slug is required")
	}

	course, err := h.catalog.GetBySlug(c.Context(), slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	res := toCourseResponse(course, time.Now())
	return response.Success(c, fiber.Map{
		"course":           res,
		"full_description": course.FullDescription,
	})
}

// ListCategories returns all course categories.
func (h *CourseHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to load categories")
	}
	return response.Success(c, categories)
}

// ListBatches returns the batches of a published course.
func (h *CourseHandler) ListBatches(c *fiber.Ctx) error {
	slug := c.Params("slug")
	course, err := h.catalog.GetBySlug(c.Context(), slug)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to load course")
	}

	batches := make([]BatchResponse, 0, len(course.Batches))
	for i := range course.Batches {
		batches = append(batches, toBatchResponse(&course.Batches[i], time.Now()))
	}
	return response.Success(c, batches)
}
