package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/img-hub/img-hub/internal/config"
	"github.com/img-hub/img-hub/internal/imagecache"
	"github.com/img-hub/img-hub/internal/logging"
	"github.com/img-hub/img-hub/internal/server"
	"github.com/img-hub/img-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	evictOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_dir"] = cfg.ImagesCacheDir
		fields["max_retries"] = cfg.DownloadMaxRetries
		fields["budget_mb"] = cfg.CacheMaxSizeMB
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	images := imagecache.NewService(cfg, server.NewDownloadClient(cfg), logger)

	if opts.evictOnly {
		images.Evict(0)
		return 0
	}

	startEvictionLoop(cfg, images, logger)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["cache_dir"] = cfg.ImagesCacheDir
	fields["listen_port"] = cfg.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, images, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("img-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		evictOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 IMG_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&evictOnly, "evict", false, "执行一轮缓存淘汰后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("IMG_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		evictOnly:   evictOnly,
		showVersion: showVer,
	}, nil
}

// startEvictionLoop 按 EvictInterval 周期触发一轮淘汰；间隔为 0 时关闭。
func startEvictionLoop(cfg *config.Config, images *imagecache.Service, logger *logrus.Logger) {
	interval := cfg.EvictInterval.DurationValue()
	if interval <= 0 {
		return
	}

	logger.WithFields(logrus.Fields{
		"action":    "evict_loop",
		"interval":  interval.String(),
		"budget_mb": cfg.CacheMaxSizeMB,
	}).Info("周期淘汰已启用")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			images.Evict(0)
		}
	}()
}

func startHTTPServer(cfg *config.Config, images *imagecache.Service, logger *logrus.Logger) error {
	port := cfg.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Images:     images,
		ListenPort: port,
	})
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
