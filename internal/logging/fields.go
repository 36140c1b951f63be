package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供图片下载日志的统一字段，url 始终为原始请求地址。
func FetchFields(url string) logrus.Fields {
	return logrus.Fields{
		"action": "image_fetch",
		"url":    url,
	}
}

// EvictFields 提供缓存淘汰日志的统一字段，budget_mb 为本轮实际使用的预算。
func EvictFields(dir string, budgetMB float64) logrus.Fields {
	return logrus.Fields{
		"action":    "cache_evict",
		"cache_dir": dir,
		"budget_mb": budgetMB,
	}
}
