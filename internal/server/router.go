package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ImageService describes the cache component behind the HTTP surface. It
// allows injecting fake services during tests.
type ImageService interface {
	Fetch(url string, force bool) (string, bool)
	Evict(maxSizeMB float64)
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Images     ImageService
	ListenPort int
}

const contextKeyRequestID = "_imghub_request_id"

// NewApp builds a Fiber application exposing the image cache with request-ID
// middleware and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Images == nil {
		return nil, errors.New("image service is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/images", handleFetchImage(opts))
	app.Post("/cache/evict", handleEvict(opts))

	return app, nil
}

// requestIDMiddleware 负责生成请求 ID，供日志与响应头关联同一次调用。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// handleFetchImage 执行缓存查找/回源下载，并把命中的文件流式返回。
func handleFetchImage(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		url := c.Query("url")
		if url == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing_url",
			})
		}

		force := false
		if raw := c.Query("force"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid_force_flag",
				})
			}
			force = parsed
		}

		path, ok := opts.Images.Fetch(url, force)
		if !ok {
			opts.Logger.WithFields(logrus.Fields{
				"action":     "serve_image",
				"url":        url,
				"request_id": RequestID(c),
			}).Warn("image_unavailable")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "image_unavailable",
			})
		}

		return serveFile(c, path)
	}
}

// serveFile 按扩展名推断 Content-Type 并把缓存文件写入响应。
func serveFile(c fiber.Ctx, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "image_unavailable",
		})
	}
	defer file.Close()

	if contentType := mime.TypeByExtension(filepath.Ext(path)); contentType != "" {
		c.Set("Content-Type", contentType)
	}
	if info, err := file.Stat(); err == nil && info.Size() > 0 {
		c.Response().Header.SetContentLength(int(info.Size()))
	}

	c.Status(fiber.StatusOK)
	if _, err := io.Copy(c.Response().BodyWriter(), file); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, fmt.Sprintf("read cache failed: %v", err))
	}
	return nil
}

// handleEvict 同步执行一轮淘汰。max_mb 缺省时使用配置预算。
func handleEvict(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		maxSizeMB := 0.0
		if raw := c.Query("max_mb"); raw != "" {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil || parsed <= 0 {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid_max_mb",
				})
			}
			maxSizeMB = parsed
		}

		opts.Images.Evict(maxSizeMB)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "evicted",
		})
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
