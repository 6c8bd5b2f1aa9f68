package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy-backend/config"
	"academy-backend/database"
	"academy-backend/handlers"
	auth_handlers "academy-backend/handlers/auth"
	cart_handlers "academy-backend/handlers/cart"
	coupon_handlers "academy-backend/handlers/coupon"
	course_handlers "academy-backend/handlers/course"
	enrollment_handlers "academy-backend/handlers/enrollment"
	notification_handlers "academy-backend/handlers/notification"
	order_handlers "academy-backend/handlers/order"
	payment_handlers "academy-backend/handlers/payment"
	upload_handlers "academy-backend/handlers/upload"
	"academy-backend/services"
	"academy-backend/services/storage"
	"academy-backend/utils/auth"
	"academy-backend/utils/cache"
	"academy-backend/utils/middleware"
)

// Deps carries everything the routes need. Built once in app setup so the
// cron manager can share the same service instances.
type Deps struct {
	Store      database.Storage
	DB         *gorm.DB
	Env        *config.EnviornmentVariable
	RedisCache *cache.RedisCache

	Enrollments   *services.EnrollmentService
	Orders        *services.OrderService
	Carts         *services.CartService
	Catalog       *services.CatalogService
	Payments      *services.PaymentService
	Notifications *services.NotificationService
	Spaces        *storage.SpacesClient
}

func SetupRoutes(app *fiber.App, deps Deps) {
	if deps.Env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := deps.Env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "academy-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        deps.Env.JWT_SECRET,
		Expiry:        24 * time.Hour,     // Access token expires in 24 hours
		RefreshExpiry: 7 * 24 * time.Hour, // Refresh token expires in 7 days
		Issuer:        jwtIssuer,
	})

	// Brute force protection rides on Redis; without it logins are
	// unthrottled but still work.
	var bruteForceProtection *middleware.BruteForceProtection
	if deps.RedisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(deps.RedisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, deps.DB)

	authHandler := auth_handlers.NewAuthHandler(deps.DB, jwtManager, bruteForceProtection, deps.Carts)
	courseHandler := course_handlers.NewCourseHandler(deps.DB, deps.Catalog)
	cartHandler := cart_handlers.NewCartHandler(deps.DB, deps.Carts)
	orderHandler := order_handlers.NewOrderHandler(deps.DB, deps.Orders, deps.Carts)
	paymentHandler := payment_handlers.NewPaymentHandler(deps.DB, deps.Payments, deps.Orders)
	enrollmentHandler := enrollment_handlers.NewEnrollmentHandler(deps.DB, deps.Enrollments)
	couponHandler := coupon_handlers.NewCouponHandler(deps.DB)
	uploadHandler := upload_handlers.NewUploadHandler(deps.Spaces)
	notificationHandler := notification_handlers.NewNotificationHandler(deps.Notifications)

	// Health check endpoint (public)
	app.Get("/ping", func(c *fiber.Ctx) error {
		return handlers.HandleCheckHealth(c, deps.Store, deps.RedisCache)
	})

	// API v1 group
	api := app.Group("/api/v1")

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)

	// Login with brute force protection
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckAndRecordAttempt(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}

	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)

	// Protected auth routes
	authGroup.Post("/logout", authMiddleware.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMiddleware.Required(), authHandler.ChangePassword)

	// Profile routes (protected)
	profileGroup := api.Group("/profile", authMiddleware.Required())
	profileGroup.Get("/", authHandler.GetProfile)
	profileGroup.Put("/", authHandler.UpdateProfile)

	// Catalog routes (public reads, staff writes)
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)
	courses.Get("/categories", courseHandler.ListCategories)
	courses.Get("/:slug", courseHandler.GetCourse)
	courses.Get("/:slug/batches", courseHandler.ListBatches)

	courses.Post("/", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "create", "course"), courseHandler.CreateCourse)
	courses.Put("/:id", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "update", "course"), courseHandler.UpdateCourse)
	courses.Delete("/:id", authMiddleware.RequireAdmin(),
		middleware.AdminAuditLog(deps.DB, "delete", "course"), courseHandler.DeleteCourse)
	courses.Put("/:id/pricing", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "update_pricing", "course"), courseHandler.UpdatePricing)
	courses.Post("/categories", authMiddleware.RequireStaff(), courseHandler.CreateCategory)
	courses.Post("/:id/batches", authMiddleware.RequireStaff(), courseHandler.CreateBatch)
	courses.Put("/batches/:batchId", authMiddleware.RequireStaff(), courseHandler.UpdateBatch)

	// Cart routes. Guests use the X-Session-Key header; Optional() lets a
	// signed-in user reach the same endpoints with their own cart.
	cartGroup := api.Group("/cart", authMiddleware.Optional())
	cartGroup.Get("/", cartHandler.GetCart)
	cartGroup.Post("/items", cartHandler.AddItem)
	cartGroup.Delete("/items/:itemId", cartHandler.RemoveItem)
	cartGroup.Delete("/", cartHandler.ClearCart)
	cartGroup.Post("/merge", authMiddleware.Required(), cartHandler.MergeCart)

	// Wishlist (account only)
	wishlist := api.Group("/wishlist", authMiddleware.Required())
	wishlist.Get("/", cartHandler.ListWishlist)
	wishlist.Post("/", cartHandler.AddToWishlist)
	wishlist.Delete("/:courseId", cartHandler.RemoveFromWishlist)
	wishlist.Post("/:courseId/move-to-cart", cartHandler.MoveToCart)

	// Order routes (protected)
	orders := api.Group("/orders", authMiddleware.Required())
	orders.Post("/checkout", orderHandler.Checkout)
	orders.Get("/", orderHandler.ListMyOrders)
	orders.Get("/:orderNumber", orderHandler.GetOrder)
	orders.Post("/:id/cancel", orderHandler.CancelOrder)

	// Staff order operations
	adminOrders := api.Group("/admin/orders", authMiddleware.RequireStaff())
	adminOrders.Get("/", orderHandler.ListAllOrders)
	adminOrders.Post("/custom-payment",
		middleware.AdminAuditLog(deps.DB, "custom_payment", "order"), orderHandler.CreateCustomPayment)
	adminOrders.Post("/:orderNumber/complete",
		middleware.AdminAuditLog(deps.DB, "order_complete", "order"), orderHandler.CompleteOrder)
	adminOrders.Get("/statistics", orderHandler.OrderStatistics)
	adminOrders.Get("/export", orderHandler.ExportOrders)

	// Payment routes. The webhook and the gateway browser callbacks are
	// unauthenticated; SSLCommerz calls them directly.
	payments := api.Group("/payments")
	payments.Post("/initiate/:orderNumber", authMiddleware.Required(), paymentHandler.InitiatePayment)
	payments.Get("/installments/:orderNumber", authMiddleware.Required(), paymentHandler.GetInstallmentSummary)
	payments.Post("/webhook", paymentHandler.Webhook)
	payments.Post("/success", paymentHandler.PaymentSuccess)
	payments.Post("/fail", paymentHandler.PaymentFail)
	payments.Post("/cancel", paymentHandler.PaymentCancel)
	payments.Get("/verify", authMiddleware.Optional(), paymentHandler.VerifyPayment)

	// Enrollment routes (protected)
	enrollments := api.Group("/enrollments", authMiddleware.Required())
	enrollments.Get("/", enrollmentHandler.ListMyEnrollments)
	enrollments.Get("/access/:courseId", enrollmentHandler.CheckAccess)
	enrollments.Post("/free", enrollmentHandler.EnrollFree)
	enrollments.Post("/:id/complete", enrollmentHandler.MarkCompleted)

	// Coupon routes
	coupons := api.Group("/coupons")
	coupons.Post("/validate", authMiddleware.Optional(), couponHandler.ValidateCoupon)
	coupons.Get("/", authMiddleware.RequireStaff(), couponHandler.ListCoupons)
	coupons.Get("/:id", authMiddleware.RequireStaff(), couponHandler.GetCoupon)
	coupons.Post("/", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "coupon_create", "coupon"), couponHandler.CreateCoupon)
	coupons.Put("/:id", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "coupon_update", "coupon"), couponHandler.UpdateCoupon)
	coupons.Delete("/:id", authMiddleware.RequireStaff(),
		middleware.AdminAuditLog(deps.DB, "coupon_delete", "coupon"), couponHandler.DeleteCoupon)

	// Upload routes (staff only)
	uploads := api.Group("/uploads", authMiddleware.RequireStaff())
	uploads.Post("/images", uploadHandler.UploadImage)
	uploads.Delete("/images", uploadHandler.DeleteImage)

	// Notification routes (protected)
	notifications := api.Group("/notifications", authMiddleware.Required())
	notifications.Get("/", notificationHandler.GetNotifications)
	notifications.Get("/unread-count", notificationHandler.GetUnreadCount)
	notifications.Post("/:id/read", notificationHandler.MarkAsRead)
	notifications.Post("/read-all", notificationHandler.MarkAllAsRead)
	notifications.Delete("/:id", notificationHandler.DeleteNotification)
}
