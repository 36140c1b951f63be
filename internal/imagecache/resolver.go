package imagecache

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// defaultExtension 在 URL 中无法提取扩展名时兜底。
const defaultExtension = ".jpg"

// CachePath 将任意 URL 字符串映射为稳定的缓存文件路径：
//
//	<ImagesCacheDir>/<md5hex(url)><ext>
//
// 同一 URL 在任何进程中都会解析到同一路径。解析永不失败，
// 扩展名提取异常时静默退回 defaultExtension。
func (s *Service) CachePath(rawURL string) string {
	if err := os.MkdirAll(s.cfg.ImagesCacheDir, 0o755); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "cache_dir_create",
			"cache_dir": s.cfg.ImagesCacheDir,
		}).Warn("cache_dir_create_failed")
	}

	sum := md5.Sum([]byte(rawURL))
	name := hex.EncodeToString(sum[:]) + extensionOf(rawURL)
	return filepath.Join(s.cfg.ImagesCacheDir, name)
}

// extensionOf 取 URL path 部分（问号之前）最后一个 `.` 之后的片段作为扩展名。
func extensionOf(rawURL string) string {
	trimmed := rawURL
	if idx := strings.IndexByte(trimmed, '?'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	if ext := path.Ext(trimmed); ext != "" {
		return ext
	}
	return defaultExtension
}
