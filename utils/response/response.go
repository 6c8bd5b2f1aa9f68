// Package response defines the JSON envelope every endpoint replies with.
// Success payloads carry {success, message, data}; failures carry a coded
// error object so clients can branch on error.code instead of parsing
// messages.
package response

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the standard reply envelope.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail is the machine-readable error object.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta describes the page window of a list reply.
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
}

// PaginatedResponse wraps list data with its pagination metadata.
type PaginatedResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message,omitempty"`
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// Success sends 200 with data.
func Success(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Data: data})
}

// SuccessWithMessage sends 200 with a human-readable message alongside data.
func SuccessWithMessage(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends 201 after a resource has been persisted.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: "Resource created successfully",
		Data:    data,
	})
}

// NoContent sends a bodyless 204.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func fail(c *fiber.Ctx, status int, code, message, details string) error {
	return c.Status(status).JSON(Response{
		Success: false,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}

// Error sends an arbitrary coded failure.
func Error(c *fiber.Ctx, statusCode int, message string, code string) error {
	return fail(c, statusCode, code, message, "")
}

// ErrorWithDetails sends a coded failure carrying extra context in
// error.details.
func ErrorWithDetails(c *fiber.Ctx, statusCode int, message string, code string, details string) error {
	return fail(c, statusCode, code, message, details)
}

func BadRequest(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusBadRequest, "BAD_REQUEST", message, "")
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusUnauthorized, "UNAUTHORIZED",
		orDefault(message, "Unauthorized access"), "")
}

func Forbidden(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusForbidden, "FORBIDDEN",
		orDefault(message, "Access forbidden"), "")
}

func NotFound(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusNotFound, "NOT_FOUND",
		orDefault(message, "Resource not found"), "")
}

func Conflict(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusConflict, "CONFLICT", message, "")
}

func TooManyRequests(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS",
		orDefault(message, "Too many requests"), "")
}

// ValidationError sends 422 with the validator's findings in error.details.
func ValidationError(c *fiber.Ctx, err error) error {
	return fail(c, fiber.StatusUnprocessableEntity, "VALIDATION_ERROR",
		"Validation failed", err.Error())
}

func InternalServerError(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusInternalServerError, "INTERNAL_ERROR",
		orDefault(message, "Internal server error"), "")
}

func ServiceUnavailable(c *fiber.Ctx, message string) error {
	return fail(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE",
		orDefault(message, "Service temporarily unavailable"), "")
}

// Paginated sends 200 with list data and its page window.
func Paginated(c *fiber.Ctx, data interface{}, pagination PaginationMeta) error {
	return c.Status(fiber.StatusOK).JSON(PaginatedResponse{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

// CalculatePagination clamps the page window and derives the page count.
// Limits run 1..100 with a default of 10.
func CalculatePagination(page, limit int, total int64) PaginationMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}

	return PaginationMeta{
		CurrentPage: page,
		PerPage:     limit,
		Total:       total,
		TotalPages:  totalPages,
	}
}
