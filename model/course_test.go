package model

import (
	"testing"
	"time"
)

func day(offset int) time.Time {
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func dayPtr(offset int) *time.Time {
	d := day(offset)
	return &d
}

func TestBatchRefreshStatus(t *testing.T) {
	now := day(0)

	tests := []struct {
		name  string
		batch CourseBatch
		want  BatchStatus
	}{
		{
			name: "ended batch becomes completed",
			batch: CourseBatch{
				StartDate: day(-60),
				EndDate:   day(-1),
				IsActive:  true,
			},
			want: BatchStatusCompleted,
		},
		{
			name: "batch within start and end is running",
			batch: CourseBatch{
				StartDate: day(-5),
				EndDate:   day(30),
				IsActive:  true,
			},
			want: BatchStatusRunning,
		},
		{
			name: "starts today is running",
			batch: CourseBatch{
				StartDate: day(0),
				EndDate:   day(60),
				IsActive:  true,
			},
			want: BatchStatusRunning,
		},
		{
			name: "open enrollment window before start",
			batch: CourseBatch{
				StartDate:           day(10),
				EndDate:             day(70),
				EnrollmentStartDate: dayPtr(-5),
				EnrollmentEndDate:   dayPtr(5),
				MaxStudents:         30,
				IsActive:            true,
			},
			want: BatchStatusEnrollmentOpen,
		},
		{
			name: "enrollment window defaults to created-until-start",
			batch: CourseBatch{
				CreatedAt:   day(-3),
				StartDate:   day(10),
				EndDate:     day(70),
				MaxStudents: 30,
				IsActive:    true,
			},
			want: BatchStatusEnrollmentOpen,
		},
		{
			name: "enrollment not yet started is upcoming",
			batch: CourseBatch{
				StartDate:           day(20),
				EndDate:             day(80),
				EnrollmentStartDate: dayPtr(2),
				EnrollmentEndDate:   dayPtr(15),
				MaxStudents:         30,
				IsActive:            true,
			},
			want: BatchStatusUpcoming,
		},
		{
			name: "full batch is upcoming not enrollment_open",
			batch: CourseBatch{
				StartDate:           day(10),
				EndDate:             day(70),
				EnrollmentStartDate: dayPtr(-5),
				EnrollmentEndDate:   dayPtr(5),
				MaxStudents:         25,
				EnrolledStudents:    25,
				IsActive:            true,
			},
			want: BatchStatusUpcoming,
		},
		{
			name: "inactive batch never opens enrollment",
			batch: CourseBatch{
				StartDate:           day(10),
				EndDate:             day(70),
				EnrollmentStartDate: dayPtr(-5),
				EnrollmentEndDate:   dayPtr(5),
				MaxStudents:         30,
				IsActive:            false,
			},
			want: BatchStatusUpcoming,
		},
		{
			name: "cancelled is sticky even while dates say running",
			batch: CourseBatch{
				StartDate: day(-5),
				EndDate:   day(30),
				Status:    BatchStatusCancelled,
				IsActive:  true,
			},
			want: BatchStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.batch.RefreshStatus(now)
			if tt.batch.Status != tt.want {
				t.Errorf("RefreshStatus: got %q, want %q", tt.batch.Status, tt.want)
			}
		})
	}
}

func TestBatchIsEnrollmentOpen(t *testing.T) {
	now := day(0)

	open := CourseBatch{
		StartDate:           day(10),
		EndDate:             day(70),
		EnrollmentStartDate: dayPtr(-5),
		EnrollmentEndDate:   dayPtr(5),
		MaxStudents:         30,
		EnrolledStudents:    10,
		IsActive:            true,
		Status:              BatchStatusEnrollmentOpen,
	}
	if !open.IsEnrollmentOpen(now) {
		t.Error("expected enrollment to be open within the window")
	}

	full := open
	full.EnrolledStudents = 30
	if full.IsEnrollmentOpen(now) {
		t.Error("full batch must not accept enrollments")
	}

	inactive := open
	inactive.IsActive = false
	if inactive.IsEnrollmentOpen(now) {
		t.Error("inactive batch must not accept enrollments")
	}

	cancelled := open
	cancelled.Status = BatchStatusCancelled
	if cancelled.IsEnrollmentOpen(now) {
		t.Error("cancelled batch must not accept enrollments")
	}

	closed := open
	closed.EnrollmentEndDate = dayPtr(-1)
	if closed.IsEnrollmentOpen(now) {
		t.Error("enrollment window in the past must be closed")
	}

	lastDay := open
	lastDay.EnrollmentEndDate = dayPtr(0)
	if !lastDay.IsEnrollmentOpen(now) {
		t.Error("enrollment ending today should still be open")
	}
}

func TestBatchCapacity(t *testing.T) {
	b := CourseBatch{MaxStudents: 30, EnrolledStudents: 12}
	if got := b.AvailableSeats(); got != 18 {
		t.Errorf("AvailableSeats: got %d, want 18", got)
	}
	if b.IsFull() {
		t.Error("batch with free seats reported full")
	}

	b.EnrolledStudents = 35
	if got := b.AvailableSeats(); got != 0 {
		t.Errorf("over-enrolled AvailableSeats: got %d, want 0", got)
	}
	if !b.IsFull() {
		t.Error("over-enrolled batch not reported full")
	}
}

func TestBatchDisplayName(t *testing.T) {
	named := CourseBatch{BatchNumber: 3, BatchName: "Morning Batch"}
	if got := named.DisplayName(); got != "Morning Batch" {
		t.Errorf("DisplayName: got %q, want %q", got, "Morning Batch")
	}

	unnamed := CourseBatch{BatchNumber: 3}
	if got := unnamed.DisplayName(); got != "Batch 3" {
		t.Errorf("DisplayName fallback: got %q, want %q", got, "Batch 3")
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Full Stack Web Development", "full-stack-web-development"},
		{"  Python for Data Analysis  ", "python-for-data-analysis"},
		{"C++ & Go!", "c-go"},
		{"Already-Slugged", "already-slugged"},
		{"Batch #42 (2026)", "batch-42-2026"},
		{"---", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
