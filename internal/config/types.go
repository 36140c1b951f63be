package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// Config 是 TOML 文件映射的整体结构，描述镜像缓存服务的全部运行参数。
type Config struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`

	// ImagesCacheDir 是所有缓存条目的根目录，文件名由 URL 哈希决定。
	ImagesCacheDir string `mapstructure:"ImagesCacheDir"`

	// 下载重试参数：DownloadRetryDelays 为每轮失败后的等待表（指数退避），
	// 长度需覆盖 DownloadMaxRetries-1 轮间隔。
	DownloadMaxRetries  int        `mapstructure:"DownloadMaxRetries"`
	DownloadTimeout     Duration   `mapstructure:"DownloadTimeout"`
	DownloadRetryDelays []Duration `mapstructure:"DownloadRetryDelays"`

	// DefaultImagePath 指向兜底图片；为空或文件不存在时，下载耗尽直接返回缺失。
	DefaultImagePath string `mapstructure:"DefaultImagePath"`

	// CacheMaxSizeMB 是淘汰器的默认容量预算；EvictInterval 为 0 时关闭周期淘汰。
	CacheMaxSizeMB float64  `mapstructure:"CacheMaxSizeMB"`
	EvictInterval  Duration `mapstructure:"EvictInterval"`
}

// RetryDelay 返回第 attempt 轮失败后应等待的时长，越界时取退避表最后一项。
func (c *Config) RetryDelay(attempt int) time.Duration {
	if len(c.DownloadRetryDelays) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(c.DownloadRetryDelays) {
		attempt = len(c.DownloadRetryDelays) - 1
	}
	return c.DownloadRetryDelays[attempt].DurationValue()
}
