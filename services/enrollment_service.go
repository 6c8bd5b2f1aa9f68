package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"academy-backend/model"
)

var (
	ErrAlreadyEnrolled = errors.New("user is already enrolled in this batch")
	ErrBatchClosed     = errors.New("batch is not open for enrollment")
	ErrBatchFull       = errors.New("batch has no available seats")
	ErrCourseNotFree   = errors.New("course is not free")
)

// EnrollmentService manages course enrollments and batch seat counts.
type EnrollmentService struct {
	db *gorm.DB
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB) *EnrollmentService {
	return &EnrollmentService{db: db}
}

// IsUniqueViolation reports whether err is a Postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// GetOrCreate enrolls a user into a batch, or returns the existing
// enrollment. Safe under concurrent webhook deliveries: a duplicate-key
// race resolves to the winning row.
func (s *EnrollmentService) GetOrCreate(tx *gorm.DB, userID uint, batch *model.CourseBatch, orderID *uuid.UUID) (*model.Enrollment, bool, error) {
	var existing model.Enrollment
	err := tx.Where("user_id = ? AND batch_id = ?", userID, batch.ID).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	enrollment := model.Enrollment{
		UserID:   userID,
		BatchID:  batch.ID,
		CourseID: batch.CourseID,
		OrderID:  orderID,
		Status:   model.EnrollmentStatusActive,
	}
	if err := tx.Create(&enrollment).Error; err != nil {
		if IsUniqueViolation(err) {
			// Lost the race; the other writer's enrollment stands
			if ferr := tx.Where("user_id = ? AND batch_id = ?", userID, batch.ID).First(&existing).Error; ferr == nil {
				return &existing, false, nil
			}
		}
		return nil, false, err
	}

	if err := s.RefreshEnrolledCount(tx, batch.ID); err != nil {
		return nil, false, err
	}

	return &enrollment, true, nil
}

// RefreshEnrolledCount recomputes a batch's enrolled-student count from the
// enrollment table and updates its derived status.
func (s *EnrollmentService) RefreshEnrolledCount(tx *gorm.DB, batchID uuid.UUID) error {
	var count int64
	err := tx.Model(&model.Enrollment{}).
		Where("batch_id = ? AND status IN ?", batchID, []model.EnrollmentStatus{
			model.EnrollmentStatusActive,
			model.EnrollmentStatusCompleted,
		}).
		Count(&count).Error
	if err != nil {
		return err
	}

	var batch model.CourseBatch
	if err := tx.First(&batch, "id = ?", batchID).Error; err != nil {
		return err
	}
	batch.EnrolledStudents = int(count)
	return tx.Save(&batch).Error
}

// EnrollFree enrolls a user directly into a batch of a free course, without
// an order.
func (s *EnrollmentService) EnrollFree(ctx context.Context, userID uint, batchID uuid.UUID) (*model.Enrollment, error) {
	var batch model.CourseBatch
	err := s.db.WithContext(ctx).
		Preload("Course.Pricing").
		First(&batch, "id = ?", batchID).Error
	if err != nil {
		return nil, err
	}

	if batch.Course.Pricing == nil || !batch.Course.Pricing.IsFree {
		return nil, ErrCourseNotFree
	}
	if !batch.IsEnrollmentOpen(time.Now()) {
		return nil, ErrBatchClosed
	}
	if batch.IsFull() {
		return nil, ErrBatchFull
	}

	var enrollment *model.Enrollment
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, created, err := s.GetOrCreate(tx, userID, &batch, nil)
		if err != nil {
			return err
		}
		if !created {
			return ErrAlreadyEnrolled
		}
		enrollment = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("User %d enrolled in batch %s (free course)", userID, batch.DisplayName())
	return enrollment, nil
}

// MarkCompleted finishes an enrollment on behalf of its owner.
func (s *EnrollmentService) MarkCompleted(ctx context.Context, userID uint, enrollmentID uuid.UUID) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", enrollmentID, userID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}

	enrollment.MarkAsCompleted()
	if err := s.db.WithContext(ctx).Save(&enrollment).Error; err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// HasAccess reports whether a user holds an active enrollment for a course.
func (s *EnrollmentService) HasAccess(ctx context.Context, userID uint, courseID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND status IN ?", userID, courseID, []model.EnrollmentStatus{
			model.EnrollmentStatusActive,
			model.EnrollmentStatusCompleted,
		}).
		Count(&count).Error
	return count > 0, err
}

// TouchLastAccessed stamps the user's enrollments for a course when its
// content is opened.
func (s *EnrollmentService) TouchLastAccessed(ctx context.Context, userID uint, courseID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		UpdateColumn("last_accessed", time.Now()).Error
}

// IsEnrolledInCourse reports any non-dropped enrollment for the course,
// used to block re-purchases from the cart.
func (s *EnrollmentService) IsEnrolledInCourse(ctx context.Context, userID uint, courseID uuid.UUID) (bool, error) {
	return s.HasAccess(ctx, userID, courseID)
}

// ListForUser returns a user's enrollments with course and batch preloaded.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("Course").
		Preload("Batch").
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}
