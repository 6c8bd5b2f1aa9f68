package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CourseStatus is the publication status of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// Category groups courses for the public catalog.
type Category struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"uniqueIndex;not null" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null" json:"slug"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`

	Courses []Course `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Course is the sellable catalog entry. Students enroll in a CourseBatch,
// not in the course directly.
type Course struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
	CategoryID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"category_id"`
	Title            string         `gorm:"uniqueIndex;not null" json:"title"`
	Slug             string         `gorm:"uniqueIndex;not null" json:"slug"`
	ShortDescription string         `gorm:"type:text" json:"short_description"`
	FullDescription  string         `gorm:"type:text" json:"full_description"`
	HeaderImageURL   string         `gorm:"type:varchar(512)" json:"header_image_url"`
	Status           CourseStatus   `gorm:"type:varchar(20);default:'draft';index" json:"status"`
	IsActive         bool           `gorm:"default:true;index" json:"is_active"`

	// Relationships
	Category Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Pricing  *CoursePrice  `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"pricing,omitempty"`
	Batches  []CourseBatch `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"batches,omitempty"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Title)
	}
	return nil
}

// TableName specifies the table name for Course
func (Course) TableName() string {
	return "courses"
}

// BatchStatus is the lifecycle state of a course batch.
type BatchStatus string

const (
	BatchStatusUpcoming       BatchStatus = "upcoming"
	BatchStatusEnrollmentOpen BatchStatus = "enrollment_open"
	BatchStatusRunning        BatchStatus = "running"
	BatchStatusCompleted      BatchStatus = "completed"
	BatchStatusCancelled      BatchStatus = "cancelled"
)

// CourseBatch is a time-bound offering of a course with its own enrollment
// window and capacity.
type CourseBatch struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	CourseID    uuid.UUID      `gorm:"type:uuid;not null;index;uniqueIndex:idx_course_batch_number" json:"course_id"`
	BatchNumber int            `gorm:"not null;uniqueIndex:idx_course_batch_number" json:"batch_number"`
	BatchName   string         `gorm:"type:varchar(100)" json:"batch_name"`
	Slug        string         `gorm:"uniqueIndex;not null" json:"slug"`

	// Scheduling
	StartDate           time.Time  `gorm:"not null" json:"start_date"`
	EndDate             time.Time  `gorm:"not null" json:"end_date"`
	EnrollmentStartDate *time.Time `json:"enrollment_start_date,omitempty"`
	EnrollmentEndDate   *time.Time `json:"enrollment_end_date,omitempty"`

	// Capacity
	MaxStudents      int `gorm:"default:30" json:"max_students"`
	EnrolledStudents int `gorm:"default:0" json:"enrolled_students"`

	// Per-batch overrides (nil means use the course pricing defaults)
	CustomPrice          *decimal.Decimal `gorm:"type:numeric(10,2)" json:"custom_price,omitempty"`
	InstallmentAvailable *bool  `json:"installment_available,omitempty"`
	InstallmentCount     *int   `json:"installment_count,omitempty"`

	Status      BatchStatus `gorm:"type:varchar(20);default:'upcoming';index" json:"status"`
	IsActive    bool        `gorm:"default:true;index" json:"is_active"`
	Description string      `gorm:"type:text" json:"description"`

	// Relationships
	Course      Course       `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE" json:"-"`
}

func (b *CourseBatch) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BeforeSave re-derives status from the current date. Cancelled batches are
// never auto-transitioned.
func (b *CourseBatch) BeforeSave(tx *gorm.DB) error {
	b.RefreshStatus(time.Now())
	if b.Slug == "" {
		b.Slug = fmt.Sprintf("batch-%d-%s", b.BatchNumber, strings.ToLower(uuid.NewString()[:8]))
	}
	return nil
}

// RefreshStatus derives the batch status from dates. Cancelled is sticky.
func (b *CourseBatch) RefreshStatus(now time.Time) {
	if b.Status == BatchStatusCancelled {
		return
	}

	today := truncateToDate(now)

	switch {
	case !b.EndDate.IsZero() && today.After(truncateToDate(b.EndDate)):
		b.Status = BatchStatusCompleted
	case !b.StartDate.IsZero() && !today.Before(truncateToDate(b.StartDate)) && !today.After(truncateToDate(b.EndDate)):
		b.Status = BatchStatusRunning
	case b.IsActive && b.enrollmentOpenAt(today):
		b.Status = BatchStatusEnrollmentOpen
	default:
		b.Status = BatchStatusUpcoming
	}
}

func (b *CourseBatch) enrollmentOpenAt(today time.Time) bool {
	enrollStart := b.CreatedAt
	if b.EnrollmentStartDate != nil {
		enrollStart = *b.EnrollmentStartDate
	}
	enrollEnd := b.StartDate
	if b.EnrollmentEndDate != nil {
		enrollEnd = *b.EnrollmentEndDate
	}

	return !today.Before(truncateToDate(enrollStart)) &&
		!today.After(truncateToDate(enrollEnd)) &&
		b.EnrolledStudents < b.MaxStudents
}

// IsEnrollmentOpen checks window, state and capacity.
func (b *CourseBatch) IsEnrollmentOpen(now time.Time) bool {
	if !b.IsActive || b.Status == BatchStatusCancelled || b.Status == BatchStatusCompleted {
		return false
	}
	return b.enrollmentOpenAt(truncateToDate(now))
}

// AvailableSeats returns remaining capacity, never negative.
func (b *CourseBatch) AvailableSeats() int {
	if b.EnrolledStudents >= b.MaxStudents {
		return 0
	}
	return b.MaxStudents - b.EnrolledStudents
}

// IsFull checks if batch is at capacity.
func (b *CourseBatch) IsFull() bool {
	return b.EnrolledStudents >= b.MaxStudents
}

// DisplayName returns the batch name, falling back to "Batch N".
func (b *CourseBatch) DisplayName() string {
	if b.BatchName != "" {
		return b.BatchName
	}
	return fmt.Sprintf("Batch %d", b.BatchNumber)
}

// TableName specifies the table name for CourseBatch
func (CourseBatch) TableName() string {
	return "course_batches"
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Slugify converts a title into a URL-friendly slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
