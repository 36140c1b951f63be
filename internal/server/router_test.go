package server

import (
	"bytes"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

func TestRouterServesCachedImage(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(imagePath, []byte("png-bytes"), 0o644); err != nil {
		t.Fatalf("写入测试图片失败: %v", err)
	}

	images := &imageServiceStub{fetchPath: imagePath, fetchOK: true}
	app := newTestApp(t, images)

	req := httptest.NewRequest("GET", "/images?url=http%3A%2F%2Fimg.example.com%2Fcover.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "png-bytes" {
		t.Fatalf("响应正文应为缓存内容，得到 %q", string(body))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type 应按扩展名推断，得到 %q", ct)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if images.lastURL != "http://img.example.com/cover.png" {
		t.Fatalf("URL 透传错误: %q", images.lastURL)
	}
	if images.lastForce {
		t.Fatalf("未指定 force 时不应强制下载")
	}
}

func TestRouterPassesForceFlag(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "cover.jpg")
	if err := os.WriteFile(imagePath, []byte("jpg"), 0o644); err != nil {
		t.Fatalf("写入测试图片失败: %v", err)
	}

	images := &imageServiceStub{fetchPath: imagePath, fetchOK: true}
	app := newTestApp(t, images)

	req := httptest.NewRequest("GET", "/images?url=http%3A%2F%2Fx%2Fa.jpg&force=true", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
	if !images.lastForce {
		t.Fatalf("force=true 应透传至服务层")
	}
}

func TestRouterReturns404WhenImageUnavailable(t *testing.T) {
	app := newTestApp(t, &imageServiceStub{})

	req := httptest.NewRequest("GET", "/images?url=http%3A%2F%2Fx%2Fmissing.png", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 status, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"image_unavailable"`)) {
		t.Fatalf("expected image_unavailable error, got %s", string(body))
	}
}

func TestRouterRejectsMissingURL(t *testing.T) {
	app := newTestApp(t, &imageServiceStub{})

	resp, err := app.Test(httptest.NewRequest("GET", "/images", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 status, got %d", resp.StatusCode)
	}
}

func TestRouterEvictEndpoint(t *testing.T) {
	images := &imageServiceStub{}
	app := newTestApp(t, images)

	resp, err := app.Test(httptest.NewRequest("POST", "/cache/evict?max_mb=64", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202 status, got %d", resp.StatusCode)
	}
	if images.evictBudget != 64 {
		t.Fatalf("预算应透传，得到 %v", images.evictBudget)
	}

	resp, err = app.Test(httptest.NewRequest("POST", "/cache/evict?max_mb=bogus", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 status, got %d", resp.StatusCode)
	}
}

func TestRouterHealthz(t *testing.T) {
	app := newTestApp(t, &imageServiceStub{})

	resp, err := app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204 status, got %d", resp.StatusCode)
	}
}

type imageServiceStub struct {
	fetchPath   string
	fetchOK     bool
	lastURL     string
	lastForce   bool
	evictBudget float64
}

func (s *imageServiceStub) Fetch(url string, force bool) (string, bool) {
	s.lastURL = url
	s.lastForce = force
	return s.fetchPath, s.fetchOK
}

func (s *imageServiceStub) Evict(maxSizeMB float64) {
	s.evictBudget = maxSizeMB
}

func newTestApp(t *testing.T, images ImageService) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := NewApp(AppOptions{
		Logger:     logger,
		Images:     images,
		ListenPort: 5100,
	})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}
