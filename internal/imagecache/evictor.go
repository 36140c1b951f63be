package imagecache

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/img-hub/img-hub/internal/logging"
)

const bytesPerMB = 1024 * 1024

type cacheFile struct {
	path    string
	size    int64
	modTime time.Time
}

// Evict 按「最旧优先」清理缓存目录，直到总大小不超过预算（MB）。
// maxSizeMB <= 0 时使用配置的 CacheMaxSizeMB。淘汰是尽力而为的批处理：
// 任一环节出错即记录日志并放弃本轮剩余工作，错误永不上抛。
func (s *Service) Evict(maxSizeMB float64) {
	budget := maxSizeMB
	if budget <= 0 {
		budget = s.cfg.CacheMaxSizeMB
	}
	dir := s.cfg.ImagesCacheDir

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.WithError(err).WithFields(logging.EvictFields(dir, budget)).Error("cache_evict_failed")
		return
	}

	files := make([]cacheFile, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.WithError(err).WithFields(logging.EvictFields(dir, budget)).Error("cache_evict_failed")
			return
		}
		files = append(files, cacheFile{
			path:    filepath.Join(dir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	var totalBytes int64
	for _, f := range files {
		totalBytes += f.size
	}
	totalMB := float64(totalBytes) / bytesPerMB

	removed := 0
	for totalMB > budget && len(files) > 0 {
		oldest := files[0]
		files = files[1:]

		if err := os.Remove(oldest.path); err != nil {
			s.logger.WithError(err).WithFields(logging.EvictFields(dir, budget)).Error("cache_evict_failed")
			return
		}
		totalMB -= float64(oldest.size) / bytesPerMB
		removed++
	}

	if removed > 0 {
		fields := logging.EvictFields(dir, budget)
		fields["removed"] = removed
		fields["remaining_mb"] = totalMB
		s.logger.WithFields(fields).Info("cache_evicted")
	}
}
