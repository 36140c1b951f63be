package imagecache

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/img-hub/img-hub/internal/config"
)

// Service 聚合配置、共享 HTTP client 与日志器，本身不持有任何可变状态，
// 因此可以被多个 goroutine 并发调用（同 URL 并发写入为 last-writer-wins）。
type Service struct {
	cfg    *config.Config
	client *http.Client
	logger *logrus.Logger
	sleep  func(time.Duration)
}

// NewService 构造镜像缓存服务，默认使用 time.Sleep 作为退避时钟。
func NewService(cfg *config.Config, client *http.Client, logger *logrus.Logger) *Service {
	return &Service{
		cfg:    cfg,
		client: client,
		logger: logger,
		sleep:  time.Sleep,
	}
}
