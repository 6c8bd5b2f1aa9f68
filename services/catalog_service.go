package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"academy-backend/model"
	"academy-backend/utils/cache"
)

const (
	catalogCacheTTL     = 5 * time.Minute
	catalogCachePattern = "catalog:*"
)

// CatalogService serves the public course catalog with a Redis read-through
// cache. Admin writes invalidate the whole catalog namespace.
type CatalogService struct {
	db    *gorm.DB
	cache *cache.RedisCache
}

// NewCatalogService creates a new catalog service. The cache may be nil;
// reads then go straight to the database.
func NewCatalogService(db *gorm.DB, redisCache *cache.RedisCache) *CatalogService {
	return &CatalogService{db: db, cache: redisCache}
}

// ListPublished returns active published courses, newest first.
func (s *CatalogService) ListPublished(ctx context.Context, categorySlug string, page, limit int) ([]model.Course, int64, error) {
	cacheKey := fmt.Sprintf("catalog:list:%s:%d:%d", categorySlug, page, limit)

	type cached struct {
		Courses []model.Course `json:"courses"`
		Total   int64          `json:"total"`
	}
	if s.cache != nil {
		var hit cached
		if err := s.cache.GetJSON(ctx, cacheKey, &hit); err == nil {
			return hit.Courses, hit.Total, nil
		}
	}

	query := s.db.WithContext(ctx).Model(&model.Course{}).
		Where("status = ? AND is_active = ?", model.CourseStatusPublished, true)
	if categorySlug != "" {
		query = query.Joins("JOIN categories ON categories.id = courses.category_id").
			Where("categories.slug = ?", categorySlug)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []model.Course
	err := query.
		Preload("Pricing").
		Preload("Category").
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("batch_number ASC")
		}).
		Order("courses.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&courses).Error
	if err != nil {
		return nil, 0, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, cached{Courses: courses, Total: total}, catalogCacheTTL); err != nil {
			log.Println("Failed to cache course list:", err)
		}
	}
	return courses, total, nil
}

// GetBySlug returns one published course with pricing and batches.
func (s *CatalogService) GetBySlug(ctx context.Context, slug string) (*model.Course, error) {
	cacheKey := "catalog:course:" + slug

	if s.cache != nil {
		var hit model.Course
		if err := s.cache.GetJSON(ctx, cacheKey, &hit); err == nil {
			return &hit, nil
		}
	}

	var course model.Course
	err := s.db.WithContext(ctx).
		Preload("Pricing").
		Preload("Category").
		Preload("Batches", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("batch_number ASC")
		}).
		Where("slug = ? AND status = ? AND is_active = ?", slug, model.CourseStatusPublished, true).
		First(&course).Error
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, course, catalogCacheTTL); err != nil {
			log.Println("Failed to cache course:", err)
		}
	}
	return &course, nil
}

// ListCategories returns all categories.
func (s *CatalogService) ListCategories(ctx context.Context) ([]model.Category, error) {
	cacheKey := "catalog:categories"

	if s.cache != nil {
		var hit []model.Category
		if err := s.cache.GetJSON(ctx, cacheKey, &hit); err == nil {
			return hit, nil
		}
	}

	var categories []model.Category
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey, categories, catalogCacheTTL); err != nil {
			log.Println("Failed to cache categories:", err)
		}
	}
	return categories, nil
}

// Invalidate drops every cached catalog entry. Called after any admin write
// to courses, pricing, batches or categories.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePattern); err != nil {
		log.Println("Failed to invalidate catalog cache:", err)
	}
}

// RefreshBatchStatuses re-derives every active batch's status from the
// calendar. Run from cron so statuses roll over without traffic.
func (s *CatalogService) RefreshBatchStatuses(ctx context.Context, now time.Time) (int, error) {
	var batches []model.CourseBatch
	err := s.db.WithContext(ctx).
		Where("status NOT IN ?", []model.BatchStatus{model.BatchStatusCancelled, model.BatchStatusCompleted}).
		Find(&batches).Error
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range batches {
		before := batches[i].Status
		batches[i].RefreshStatus(now)
		if batches[i].Status != before {
			if err := s.db.WithContext(ctx).Model(&batches[i]).
				UpdateColumn("status", batches[i].Status).Error; err != nil {
				return changed, err
			}
			changed++
		}
	}

	if changed > 0 {
		s.Invalidate(ctx)
	}
	return changed, nil
}
