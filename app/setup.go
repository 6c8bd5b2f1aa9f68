package app

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"academy-backend/api"
	"academy-backend/config"
	"academy-backend/database"
	"academy-backend/router"
	"academy-backend/services"
	"academy-backend/services/cron"
	"academy-backend/services/sslcommerz"
	"academy-backend/services/storage"
	"academy-backend/utils/cache"
	"academy-backend/utils/middleware"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return fmt.Errorf("failed to get GORM DB instance")
	}

	// Redis backs the catalog cache and brute force protection. The app
	// still runs without it.
	var redisCache *cache.RedisCache
	if redisURL := getEnv.REDIS_URL; redisURL != "" {
		redisCache, err = cache.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to Redis: %v. Caching and login throttling are disabled.", err)
			redisCache = nil
		}
	}

	// Payment gateway
	gateway := sslcommerz.NewClient(
		getEnv.SSLCOMMERZ_STORE_ID,
		getEnv.SSLCOMMERZ_STORE_PASSWORD,
		getEnv.SSLCOMMERZ_IS_SANDBOX,
	)

	// Spaces object storage for uploaded media (optional)
	var spaces *storage.SpacesClient
	if getEnv.SPACES_ACCESS_KEY != "" {
		spaces, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: getEnv.SPACES_ACCESS_KEY,
			SecretKey: getEnv.SPACES_SECRET_KEY,
			Bucket:    getEnv.SPACES_BUCKET,
			Region:    getEnv.SPACES_REGION,
			Endpoint:  getEnv.SPACES_ENDPOINT,
			CDNURL:    getEnv.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Spaces client unavailable: %v. Uploads are disabled.", err)
			spaces = nil
		}
	}

	// Domain services, shared between HTTP handlers and cron jobs
	enrollments := services.NewEnrollmentService(db)
	orders := services.NewOrderService(db, enrollments)
	carts := services.NewCartService(db, enrollments)
	catalog := services.NewCatalogService(db, redisCache)
	notifications := services.NewNotificationService(db)
	payments := services.NewPaymentService(db, gateway, orders, getEnv.BACKEND_URL, getEnv.FRONTEND_URL)

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(db, orders, carts, catalog)
		if err := cronManager.Start(); err != nil {
			log.Printf("Warning: Failed to start cron jobs: %v", err)
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	app.Use(recover.New())

	// Security middleware: CORS, helmet, request logging, rate limiting
	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    getEnv.ALLOWED_ORIGINS,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Setup Routes
	router.SetupRoutes(app, router.Deps{
		Store:         store,
		DB:            db,
		Env:           getEnv,
		RedisCache:    redisCache,
		Enrollments:   enrollments,
		Orders:        orders,
		Carts:         carts,
		Catalog:       catalog,
		Payments:      payments,
		Notifications: notifications,
		Spaces:        spaces,
	})

	// Get the PORT & Start the Server
	return server.Run()
}
