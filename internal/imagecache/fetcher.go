package imagecache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/img-hub/img-hub/internal/logging"
)

// downloadChunkSize 是写盘时的分块大小。
const downloadChunkSize = 8 * 1024

// downloadHeaders 模拟浏览器请求头，部分图床会拒绝裸 UA。
var downloadHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Accept":          "image/webp,*/*",
	"Accept-Language": "en-US,en;q=0.5",
}

// attemptOutcome 标记单轮下载的结果，重试循环据此分流：
// retryable 进入退避重试，fatal 立即终止本次调用的剩余重试。
type attemptOutcome int

const (
	attemptSuccess attemptOutcome = iota
	attemptRetryable
	attemptFatal
)

type attemptResult struct {
	outcome attemptOutcome
	err     error
}

func retryable(err error) attemptResult {
	return attemptResult{outcome: attemptRetryable, err: err}
}

func fatal(err error) attemptResult {
	return attemptResult{outcome: attemptFatal, err: err}
}

// Fetch 返回 URL 对应的本地缓存路径。命中缓存时直接返回（force 为 true 时跳过
// 命中检查并覆盖旧条目）；未命中则带重试回源下载，耗尽后退回默认图片。
// 调用方只能观察到 (path, true) 或 ("", false) 两种结果，错误不会穿透边界。
func (s *Service) Fetch(rawURL string, force bool) (string, bool) {
	if strings.TrimSpace(rawURL) == "" {
		s.logger.WithFields(logging.FetchFields(rawURL)).Error("invalid_image_url")
		return "", false
	}

	cachedPath := s.CachePath(rawURL)

	if !force {
		if info, err := os.Stat(cachedPath); err == nil && !info.IsDir() {
			return cachedPath, true
		}
	}

	if s.download(rawURL, cachedPath) {
		return cachedPath, true
	}

	return s.fallback(rawURL)
}

// download 执行最多 DownloadMaxRetries 轮回源，返回是否成功落盘。
// 最后一轮失败后不再等待。
func (s *Service) download(rawURL, cachedPath string) bool {
	retries := s.cfg.DownloadMaxRetries

	for attempt := 0; attempt < retries; attempt++ {
		result := s.attemptDownload(rawURL, cachedPath)

		switch result.outcome {
		case attemptSuccess:
			fields := logging.FetchFields(rawURL)
			fields["path"] = cachedPath
			fields["attempt"] = attempt + 1
			s.logger.WithFields(fields).Info("image_cached")
			return true

		case attemptFatal:
			fields := logging.FetchFields(rawURL)
			fields["path"] = cachedPath
			event := "image_save_failed"
			if errors.Is(result.err, fs.ErrPermission) {
				event = "image_save_permission_denied"
			}
			s.logger.WithError(result.err).WithFields(fields).Error(event)
			return false

		case attemptRetryable:
			fields := logging.FetchFields(rawURL)
			fields["attempt"] = attempt + 1
			s.logger.WithError(result.err).WithFields(fields).Warn("image_download_retry")
		}

		if attempt < retries-1 {
			s.sleep(s.cfg.RetryDelay(attempt))
		}
	}

	return false
}

// attemptDownload 完成一次 GET + 校验 + 落盘。网络层错误与非图片响应视为
// 可重试；本地写盘错误视为致命。
func (s *Service) attemptDownload(rawURL, cachedPath string) attemptResult {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return retryable(fmt.Errorf("构造请求失败: %w", err))
	}
	for key, value := range downloadHeaders {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return retryable(fmt.Errorf("请求失败: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		return retryable(fmt.Errorf("上游返回 %s", resp.Status))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		_, _ = io.Copy(io.Discard, resp.Body)
		return retryable(fmt.Errorf("非图片响应: %q", contentType))
	}

	return s.saveBody(resp.Body, cachedPath)
}

// saveBody 以固定分块将响应正文写入缓存路径（直接覆盖旧条目），并校验
// 落盘文件非空。读侧错误归为网络故障可重试，写侧错误一律致命。
func (s *Service) saveBody(body io.Reader, cachedPath string) attemptResult {
	file, err := os.Create(cachedPath)
	if err != nil {
		return fatal(fmt.Errorf("创建缓存文件失败: %w", err))
	}

	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				file.Close()
				return fatal(fmt.Errorf("写入缓存文件失败: %w", writeErr))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			file.Close()
			return retryable(fmt.Errorf("读取响应正文失败: %w", readErr))
		}
	}

	if err := file.Close(); err != nil {
		return fatal(fmt.Errorf("关闭缓存文件失败: %w", err))
	}

	info, err := os.Stat(cachedPath)
	if err != nil || info.Size() == 0 {
		return retryable(errors.New("缓存文件为空"))
	}

	return attemptResult{outcome: attemptSuccess}
}

// fallback 在所有尝试耗尽后检查默认图片，存在则作为终态结果返回。
func (s *Service) fallback(rawURL string) (string, bool) {
	defaultPath := s.cfg.DefaultImagePath
	if defaultPath != "" {
		if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
			fields := logging.FetchFields(rawURL)
			fields["path"] = defaultPath
			s.logger.WithFields(fields).Warn("default_image_fallback")
			return defaultPath, true
		}
	}
	return "", false
}
