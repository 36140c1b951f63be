package config

import (
	"errors"
	"fmt"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.ImagesCacheDir == "" {
		return newFieldError("ImagesCacheDir", "不能为空")
	}
	if c.DownloadMaxRetries < 1 {
		return newFieldError("DownloadMaxRetries", "至少为 1")
	}
	if c.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("DownloadTimeout", "必须大于 0")
	}
	if len(c.DownloadRetryDelays) < c.DownloadMaxRetries-1 {
		return newFieldError("DownloadRetryDelays",
			fmt.Sprintf("退避表长度 %d 不足以覆盖 %d 次重试", len(c.DownloadRetryDelays), c.DownloadMaxRetries))
	}
	for i, delay := range c.DownloadRetryDelays {
		if delay.DurationValue() < 0 {
			return newFieldError(fmt.Sprintf("DownloadRetryDelays[%d]", i), "不能为负数")
		}
	}
	if c.CacheMaxSizeMB <= 0 {
		return newFieldError("CacheMaxSizeMB", "必须大于 0")
	}
	if c.EvictInterval.DurationValue() < 0 {
		return newFieldError("EvictInterval", "不能为负数")
	}

	return nil
}
