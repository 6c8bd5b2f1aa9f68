package upload

import (
	"bytes"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"

	"academy-backend/services/storage"
	"academy-backend/utils/response"
)

const (
	maxUploadSize = 10 << 20 // 10 MB
	maxImageWidth = 1920
	webpQuality   = 82
)

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// UploadHandler stores editor and thumbnail images on Spaces. Images are
// downscaled and re-encoded as WebP before upload.
type UploadHandler struct {
	spaces *storage.SpacesClient
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(spaces *storage.SpacesClient) *UploadHandler {
	return &UploadHandler{spaces: spaces}
}

// UploadImage accepts a multipart image, normalizes it and returns the
// public URL.
func (h *UploadHandler) UploadImage(c *fiber.Ctx) error {
	if h.spaces == nil {
		return response.ServiceUnavailable(c, "File storage is not configured")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return response.BadRequest(c, "An image file is required")
	}
	if fileHeader.Size > maxUploadSize {
		return response.BadRequest(c, "Image exceeds the 10 MB limit")
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedImageExts[ext] {
		return response.BadRequest(c, "Only JPEG, PNG, GIF and WebP images are accepted")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read upload")
	}
	defer file.Close()

	img, err := imaging.Decode(file, imaging.AutoOrientation(true))
	if err != nil {
		return response.BadRequest(c, "File is not a valid image")
	}

	if img.Bounds().Dx() > maxImageWidth {
		img = imaging.Resize(img, maxImageWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return response.InternalServerError(c, "Failed to encode image")
	}

	folder := c.Query("folder", "editor")
	if folder != "editor" && folder != "thumbnails" && folder != "categories" {
		return response.BadRequest(c, "Unknown upload folder")
	}

	base := strings.TrimSuffix(filepath.Base(fileHeader.Filename), ext)
	key := storage.GenerateKey(fmt.Sprintf("images/%s", folder), base+".webp")

	url, err := h.spaces.UploadBytes(c.Context(), key, buf.Bytes(), "image/webp")
	if err != nil {
		log.Println("Image upload failed:", err)
		return response.InternalServerError(c, "Failed to store image")
	}

	return response.Created(c, fiber.Map{
		"url":    url,
		"key":    key,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
		"size":   buf.Len(),
	})
}

// DeleteImage removes a previously uploaded image by its storage key.
func (h *UploadHandler) DeleteImage(c *fiber.Ctx) error {
	if h.spaces == nil {
		return response.ServiceUnavailable(c, "File storage is not configured")
	}

	var req struct {
		Key string `json:"key" validate:"required"`
	}
	if err := c.BodyParser(&req); err != nil || req.Key == "" {
		return response.BadRequest(c, "A storage key is required")
	}
	if !strings.HasPrefix(req.Key, "images/") {
		return response.BadRequest(c, "Key is outside the images namespace")
	}

	if err := h.spaces.DeleteFile(c.Context(), req.Key); err != nil {
		log.Println("Image delete failed:", err)
		return response.InternalServerError(c, "Failed to delete image")
	}
	return response.NoContent(c)
}
