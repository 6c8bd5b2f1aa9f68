package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/utils/auth"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.SeedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := s.SeedCourses(); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}

	if err := s.SeedCoupons(); err != nil {
		return fmt.Errorf("failed to seed coupons: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedAdminUser creates the default admin user
func (s *Seeder) SeedAdminUser() error {
	var count int64
	if err := s.db.Model(&model.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Admin user already exists, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")
	if adminEmail == "" || adminPassword == "" {
		log.Println("ADMIN_EMAIL and ADMIN_PASSWORD environment variables not set, skipping admin user creation")
		return nil
	}

	passwordHash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &model.User{
		Email:        adminEmail,
		PasswordHash: passwordHash,
		FullName:     "System Administrator",
		Role:         "admin",
		IsActive:     true,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Printf("Created admin user: %s\n", admin.Email)
	return nil
}

// SeedCategories creates the initial catalog categories
func (s *Seeder) SeedCategories() error {
	var count int64
	if err := s.db.Model(&model.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Categories already exist, skipping...")
		return nil
	}

	categories := []model.Category{
		{Name: "Web Development", Slug: "web-development", IsActive: true},
		{Name: "Data Science", Slug: "data-science", IsActive: true},
		{Name: "Graphic Design", Slug: "graphic-design", IsActive: true},
		{Name: "Digital Marketing", Slug: "digital-marketing", IsActive: true},
		{Name: "Spoken English", Slug: "spoken-english", IsActive: true},
	}
	if err := s.db.Create(&categories).Error; err != nil {
		return err
	}

	log.Printf("Created %d categories\n", len(categories))
	return nil
}

// SeedCourses creates sample courses with pricing and an open batch each
func (s *Seeder) SeedCourses() error {
	var count int64
	if err := s.db.Model(&model.Course{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Courses already exist, skipping...")
		return nil
	}

	var webDev, dataScience model.Category
	if err := s.db.Where("slug = ?", "web-development").First(&webDev).Error; err != nil {
		return err
	}
	if err := s.db.Where("slug = ?", "data-science").First(&dataScience).Error; err != nil {
		return err
	}

	three := 3
	installments := true
	now := time.Now()
	enrollmentEnd := now.AddDate(0, 1, 0)

	samples := []struct {
		course  model.Course
		pricing model.CoursePrice
		batch   model.CourseBatch
	}{
		{
			course: model.Course{
				CategoryID:       webDev.ID,
				Title:            "Full Stack Web Development",
				ShortDescription: "HTML, CSS, JavaScript, React and Go from scratch.",
				Status:           model.CourseStatusPublished,
				IsActive:         true,
			},
			pricing: model.CoursePrice{
				BasePrice:            decimal.NewFromInt(12000),
				Currency:             "BDT",
				InstallmentAvailable: true,
				InstallmentCount:     &three,
			},
			batch: model.CourseBatch{
				BatchNumber:       1,
				BatchName:         "Morning Batch",
				StartDate:         now.AddDate(0, 1, 7),
				EndDate:           now.AddDate(0, 7, 0),
				EnrollmentEndDate: &enrollmentEnd,
				MaxStudents:       40,
				InstallmentAvailable: &installments,
				InstallmentCount:     &three,
				IsActive:             true,
			},
		},
		{
			course: model.Course{
				CategoryID:       dataScience.ID,
				Title:            "Python for Data Analysis",
				ShortDescription: "Pandas, NumPy and practical analytics projects.",
				Status:           model.CourseStatusPublished,
				IsActive:         true,
			},
			pricing: model.CoursePrice{
				BasePrice: decimal.NewFromInt(8000),
				Currency:  "BDT",
			},
			batch: model.CourseBatch{
				BatchNumber:       1,
				StartDate:         now.AddDate(0, 1, 14),
				EndDate:           now.AddDate(0, 5, 0),
				EnrollmentEndDate: &enrollmentEnd,
				MaxStudents:       30,
				IsActive:          true,
			},
		},
	}

	for i := range samples {
		sample := &samples[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&sample.course).Error; err != nil {
				return err
			}
			sample.pricing.CourseID = sample.course.ID
			if err := tx.Create(&sample.pricing).Error; err != nil {
				return err
			}
			sample.batch.CourseID = sample.course.ID
			return tx.Create(&sample.batch).Error
		})
		if err != nil {
			return err
		}
	}

	log.Printf("Created %d sample courses\n", len(samples))
	return nil
}

// SeedCoupons creates a launch discount coupon
func (s *Seeder) SeedCoupons() error {
	var count int64
	if err := s.db.Model(&model.Coupon{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Coupons already exist, skipping...")
		return nil
	}

	maxUses := 100
	coupon := model.Coupon{
		Code:           "LAUNCH10",
		DiscountType:   model.CouponDiscountPercentage,
		DiscountValue:  decimal.NewFromInt(10),
		ApplyToAll:     true,
		MaxUses:        &maxUses,
		MaxUsesPerUser: 1,
		IsActive:       true,
		ValidFrom:      time.Now(),
		ValidUntil:     time.Now().AddDate(0, 3, 0),
	}
	if err := s.db.Create(&coupon).Error; err != nil {
		return err
	}

	log.Printf("Created coupon: %s\n", coupon.Code)
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
