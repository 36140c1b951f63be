package imagecache

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/img-hub/img-hub/internal/config"
)

func TestCachePathIsDeterministic(t *testing.T) {
	svc, _ := newTestService(t)
	url := "http://img.example.com/covers/a.png"

	first := svc.CachePath(url)
	second := svc.CachePath(url)
	if first != second {
		t.Fatalf("同一 URL 应解析到同一路径: %s vs %s", first, second)
	}

	// 新实例（模拟进程重启）也必须得到相同结果。
	other := NewService(svc.cfg, svc.client, svc.logger)
	if got := other.CachePath(url); got != first {
		t.Fatalf("跨实例解析结果应一致: %s vs %s", got, first)
	}
}

func TestCachePathExtensionHandling(t *testing.T) {
	svc, _ := newTestService(t)

	testCases := []struct {
		name string
		url  string
		ext  string
	}{
		{"png kept", "http://x/a.png", ".png"},
		{"no extension defaults to jpg", "http://x/b", ".jpg"},
		{"query string stripped", "http://x/c.webp?width=200&v=1.2", ".webp"},
		{"bare string defaults to jpg", "not a url at all", ".jpg"},
		{"extension inside query ignored", "http://x/d?file=e.gif", ".jpg"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.CachePath(tc.url)
			if !strings.HasSuffix(got, tc.ext) {
				t.Fatalf("expected suffix %q, got %s", tc.ext, got)
			}
		})
	}
}

func TestCachePathDistinctURLsDiffer(t *testing.T) {
	svc, _ := newTestService(t)
	a := svc.CachePath("http://x/a.png")
	b := svc.CachePath("http://x/b.png")
	if a == b {
		t.Fatalf("不同 URL 不应解析到同一路径: %s", a)
	}
}

func TestCachePathCreatesCacheDir(t *testing.T) {
	svc, cfg := newTestService(t)
	cfg.ImagesCacheDir = filepath.Join(cfg.ImagesCacheDir, "nested", "cache")

	path := svc.CachePath("http://x/a.png")
	if filepath.Dir(path) != cfg.ImagesCacheDir {
		t.Fatalf("路径应位于缓存目录下: %s", path)
	}
	if info, err := os.Stat(cfg.ImagesCacheDir); err != nil || !info.IsDir() {
		t.Fatalf("缓存目录应被自动创建: %v", err)
	}
}

// newTestService 构造一个写入临时目录、日志静默、退避为零的 Service。
func newTestService(t *testing.T) (*Service, *config.Config) {
	t.Helper()

	cfg := &config.Config{
		ImagesCacheDir:     t.TempDir(),
		DownloadMaxRetries: 3,
		DownloadTimeout:    config.Duration(time.Second),
		DownloadRetryDelays: []config.Duration{
			config.Duration(10 * time.Millisecond),
			config.Duration(20 * time.Millisecond),
		},
		CacheMaxSizeMB: 10,
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewService(cfg, &http.Client{}, logger)
	svc.sleep = func(time.Duration) {}
	return svc, cfg
}
