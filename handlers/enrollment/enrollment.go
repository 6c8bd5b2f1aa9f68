package enrollment

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"academy-backend/services"
	"academy-backend/utils/middleware"
	"academy-backend/utils/response"
	"academy-backend/utils/validation"
)

// EnrollmentHandler handles enrollment listing, free enrollment and course
// access checks.
type EnrollmentHandler struct {
	db          *gorm.DB
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(db *gorm.DB, enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{
		db:          db,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// ListMyEnrollments returns the caller's enrollments with course and batch.
func (h *EnrollmentHandler) ListMyEnrollments(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	enrollments, err := h.enrollments.ListForUser(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load enrollments")
	}
	return response.Success(c, enrollments)
}

// CheckAccess reports whether the caller can open a course's content.
func (h *EnrollmentHandler) CheckAccess(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	courseID, err := uuid.Parse(c.Params("courseId"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	// Staff see everything.
	if user, _ := middleware.GetUser(c); user != nil && user.IsStaff() {
		return response.Success(c, fiber.Map{"has_access": true})
	}

	hasAccess, err := h.enrollments.HasAccess(c.Context(), userID, courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check access")
	}
	if hasAccess {
		if err := h.enrollments.TouchLastAccessed(c.Context(), userID, courseID); err != nil {
			log.Println("Failed to stamp course access:", err)
		}
	}
	return response.Success(c, fiber.Map{"has_access": hasAccess})
}

// EnrollFreeRequest enrolls the caller into a free course batch
type EnrollFreeRequest struct {
	BatchID uuid.UUID `json:"batch_id" validate:"required"`
}

// EnrollFree enrolls the caller into a batch of a free course, no order
// involved.
func (h *EnrollmentHandler) EnrollFree(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req EnrollFreeRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	enrollment, err := h.enrollments.EnrollFree(c.Context(), userID, req.BatchID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return response.NotFound(c, "Batch not found")
		case errors.Is(err, services.ErrCourseNotFree):
			return response.BadRequest(c, "This course requires payment")
		case errors.Is(err, services.ErrBatchClosed):
			return response.BadRequest(c, "Batch is not open for enrollment")
		case errors.Is(err, services.ErrBatchFull):
			return response.Conflict(c, "Batch is full")
		case errors.Is(err, services.ErrAlreadyEnrolled):
			return response.Conflict(c, "You are already enrolled in this batch")
		default:
			return response.InternalServerError(c, "Failed to enroll")
		}
	}
	return response.Created(c, enrollment)
}

// MarkCompleted marks one of the caller's enrollments as completed.
func (h *EnrollmentHandler) MarkCompleted(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	enrollmentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid enrollment id")
	}

	enrollment, err := h.enrollments.MarkCompleted(c.Context(), userID, enrollmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Enrollment not found")
		}
		return response.InternalServerError(c, "Failed to update enrollment")
	}
	return response.SuccessWithMessage(c, "Enrollment marked as completed", enrollment)
}
