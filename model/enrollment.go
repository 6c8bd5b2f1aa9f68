package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentStatus tracks a student's standing in a batch.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

// Enrollment grants a user access to a course through a specific batch.
// A user enrolls in a batch at most once; the course is derived from the
// batch.
type Enrollment struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   uint       `gorm:"not null;uniqueIndex:idx_user_batch_enrollment" json:"user_id"`
	BatchID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_batch_enrollment" json:"batch_id"`
	CourseID uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	OrderID  *uuid.UUID `gorm:"type:uuid" json:"order_id,omitempty"`

	Status          EnrollmentStatus `gorm:"type:varchar(20);default:'active';index" json:"status"`
	EnrolledAt      time.Time        `gorm:"not null" json:"enrolled_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	LastAccessed    *time.Time       `gorm:"column:last_accessed" json:"last_accessed,omitempty"`
	ProgressPercent int              `gorm:"default:0" json:"progress_percent"`

	User   User         `gorm:"foreignKey:UserID" json:"-"`
	Batch  CourseBatch  `gorm:"foreignKey:BatchID" json:"batch"`
	Course Course       `gorm:"foreignKey:CourseID" json:"course"`
	Order  *Order       `gorm:"foreignKey:OrderID" json:"-"`
}

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for Enrollment
func (Enrollment) TableName() string {
	return "enrollments"
}

// IsActive reports whether the enrollment currently grants course access.
func (e *Enrollment) IsActive() bool {
	return e.Status == EnrollmentStatusActive || e.Status == EnrollmentStatusCompleted
}

// MarkAsCompleted finishes the enrollment and pins progress at 100.
func (e *Enrollment) MarkAsCompleted() {
	if e.Status == EnrollmentStatusCompleted {
		return
	}
	now := time.Now()
	e.Status = EnrollmentStatusCompleted
	e.CompletedAt = &now
	e.ProgressPercent = 100
}
