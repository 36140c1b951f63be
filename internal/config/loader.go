package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absCacheDir, err := filepath.Abs(cfg.ImagesCacheDir)
	if err != nil {
		return nil, fmt.Errorf("无法解析缓存目录: %w", err)
	}
	cfg.ImagesCacheDir = absCacheDir

	if cfg.DefaultImagePath != "" {
		absDefault, err := filepath.Abs(cfg.DefaultImagePath)
		if err != nil {
			return nil, fmt.Errorf("无法解析默认图片路径: %w", err)
		}
		cfg.DefaultImagePath = absDefault
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5100)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("ImagesCacheDir", "./images-cache")
	v.SetDefault("DownloadMaxRetries", 3)
	v.SetDefault("DownloadTimeout", "30s")
	v.SetDefault("DownloadRetryDelays", []string{"1s", "2s", "4s"})
	v.SetDefault("DefaultImagePath", "")
	v.SetDefault("CacheMaxSizeMB", 500.0)
	v.SetDefault("EvictInterval", "1h")
}

// applyDefaults 兜底处理直接构造 Config 的场景，保证零值不会让下载流程失效。
func applyDefaults(c *Config) {
	if c.ListenPort == 0 {
		c.ListenPort = 5100
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ImagesCacheDir == "" {
		c.ImagesCacheDir = "./images-cache"
	}
	if c.DownloadMaxRetries == 0 {
		c.DownloadMaxRetries = 3
	}
	if c.DownloadTimeout.DurationValue() == 0 {
		c.DownloadTimeout = Duration(30 * time.Second)
	}
	if len(c.DownloadRetryDelays) == 0 {
		c.DownloadRetryDelays = []Duration{
			Duration(time.Second),
			Duration(2 * time.Second),
			Duration(4 * time.Second),
		}
	}
	if c.CacheMaxSizeMB == 0 {
		c.CacheMaxSizeMB = 500
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
