package middleware

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"academy-backend/model"
)

// AdminAuditLog creates an audit log entry for admin actions
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, ok := GetUser(c)
		if !ok {
			return c.Next() // Continue without logging if user not found
		}

		// Resource IDs are UUIDs or order numbers, taken from the route param
		resourceID := c.Params("id")

		// Capture request body for "new value" tracking
		var newValue interface{}
		if c.Method() == "POST" || c.Method() == "PUT" || c.Method() == "PATCH" {
			body := c.Body()
			if len(body) > 0 {
				json.Unmarshal(body, &newValue)
			}
		}

		// Capture the existing state for mutations of known resources
		var oldValue interface{}
		if resourceID != "" && (c.Method() == "DELETE" || c.Method() == "PUT" || c.Method() == "PATCH") {
			switch resource {
			case "orders":
				var order model.Order
				if err := db.Where("id = ? OR order_number = ?", resourceID, resourceID).First(&order).Error; err == nil {
					oldValue = order
				}
			case "coupons":
				var coupon model.Coupon
				if err := db.Where("id = ?", resourceID).First(&coupon).Error; err == nil {
					oldValue = coupon
				}
			case "courses":
				var course model.Course
				if err := db.Where("id = ? OR slug = ?", resourceID, resourceID).First(&course).Error; err == nil {
					oldValue = course
				}
			}
		}

		ip := c.IP()
		userAgent := c.Get("User-Agent")
		description := c.Method() + " " + c.Path()

		// Execute the actual handler
		err := c.Next()

		// Log the action after completion
		go func() {
			oldValueJSON, _ := json.Marshal(oldValue)
			newValueJSON, _ := json.Marshal(newValue)

			auditLog := model.AdminAuditLog{
				AdminID:     admin.ID,
				Action:      action,
				Resource:    resource,
				ResourceID:  resourceID,
				OldValue:    string(oldValueJSON),
				NewValue:    string(newValueJSON),
				IPAddress:   ip,
				UserAgent:   userAgent,
				Description: description,
			}

			db.Create(&auditLog)
		}()

		return err
	}
}
