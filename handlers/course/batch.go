package course

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"academy-backend/model"
	"academy-backend/utils/response"
)

// CreateBatchRequest is the admin payload for creating a batch
type CreateBatchRequest struct {
	BatchNumber         int        `json:"batch_number" validate:"required,gte=1"`
	BatchName           string     `json:"batch_name,omitempty" validate:"omitempty,max=100"`
	StartDate           time.Time  `json:"start_date" validate:"required"`
	EndDate             time.Time  `json:"end_date" validate:"required"`
	EnrollmentStartDate *time.Time `json:"enrollment_start_date,omitempty"`
	EnrollmentEndDate   *time.Time `json:"enrollment_end_date,omitempty"`
	MaxStudents         int        `json:"max_students,omitempty" validate:"omitempty,gte=1"`
	CustomPrice         *string    `json:"custom_price,omitempty"`
	InstallmentCount    *int       `json:"installment_count,omitempty" validate:"omitempty,gte=2,lte=12"`
	Description         string     `json:"description,omitempty"`
}

// CreateBatch adds a batch to a course. Batch numbers are unique per
// course.
func (h *CourseHandler) CreateBatch(c *fiber.Ctx) error {
	courseID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req CreateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	if !req.EndDate.After(req.StartDate) {
		return response.BadRequest(c, "End date must be after start date")
	}

	var course model.Course
	if err := h.db.First(&course, "id = ?", courseID).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	batch := model.CourseBatch{
		CourseID:            courseID,
		BatchNumber:         req.BatchNumber,
		BatchName:           req.BatchName,
		StartDate:           req.StartDate,
		EndDate:             req.EndDate,
		EnrollmentStartDate: req.EnrollmentStartDate,
		EnrollmentEndDate:   req.EnrollmentEndDate,
		IsActive:            true,
		Description:         req.Description,
	}
	if req.MaxStudents > 0 {
		batch.MaxStudents = req.MaxStudents
	}
	if req.CustomPrice != nil {
		price, err := decimal.NewFromString(*req.CustomPrice)
		if err != nil {
			return response.BadRequest(c, "Invalid custom price")
		}
		batch.CustomPrice = &price
	}
	if req.InstallmentCount != nil {
		available := true
		batch.InstallmentAvailable = &available
		batch.InstallmentCount = req.InstallmentCount
	}

	if err := h.db.Create(&batch).Error; err != nil {
		return response.Conflict(c, "Batch number already exists for this course")
	}

	h.catalog.Invalidate(c.Context())
	return response.Created(c, toBatchResponse(&batch, time.Now()))
}

// UpdateBatchRequest is the admin payload for patching a batch
type UpdateBatchRequest struct {
	BatchName           *string    `json:"batch_name,omitempty"`
	StartDate           *time.Time `json:"start_date,omitempty"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	EnrollmentStartDate *time.Time `json:"enrollment_start_date,omitempty"`
	EnrollmentEndDate   *time.Time `json:"enrollment_end_date,omitempty"`
	MaxStudents         *int       `json:"max_students,omitempty" validate:"omitempty,gte=1"`
	IsActive            *bool      `json:"is_active,omitempty"`
	Cancelled           *bool      `json:"cancelled,omitempty"`
	Description         *string    `json:"description,omitempty"`
}

// UpdateBatch patches batch fields and re-derives its status.
func (h *CourseHandler) UpdateBatch(c *fiber.Ctx) error {
	batchID, err := uuid.Parse(c.Params("batchId"))
	if err != nil {
		return response.BadRequest(c, "Invalid batch id")
	}

	var req UpdateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var batch model.CourseBatch
	if err := h.db.First(&batch, "id = ?", batchID).Error; err != nil {
		return response.NotFound(c, "Batch not found")
	}

	if req.BatchName != nil {
		batch.BatchName = *req.BatchName
	}
	if req.StartDate != nil {
		batch.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		batch.EndDate = *req.EndDate
	}
	if req.EnrollmentStartDate != nil {
		batch.EnrollmentStartDate = req.EnrollmentStartDate
	}
	if req.EnrollmentEndDate != nil {
		batch.EnrollmentEndDate = req.EnrollmentEndDate
	}
	if req.MaxStudents != nil {
		batch.MaxStudents = *req.MaxStudents
	}
	if req.IsActive != nil {
		batch.IsActive = *req.IsActive
	}
	if req.Description != nil {
		batch.Description = *req.Description
	}
	if req.Cancelled != nil && *req.Cancelled {
		// Cancellation is sticky; RefreshStatus never reverses it
		batch.Status = model.BatchStatusCancelled
	}

	if err := h.db.Save(&batch).Error; err != nil {
		return response.InternalServerError(c, "Failed to update batch")
	}

	h.catalog.Invalidate(c.Context())
	return response.Success(c, toBatchResponse(&batch, time.Now()))
}
