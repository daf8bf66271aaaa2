package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/xbee-digimesh/internal/config"
	"github.com/taoyao-code/xbee-digimesh/internal/metrics"
	"github.com/taoyao-code/xbee-digimesh/internal/protocol/xbee"
	redisstorage "github.com/taoyao-code/xbee-digimesh/internal/storage/redis"
)

// NewMetrics 初始化注册表与应用指标
func NewMetrics() (*prometheus.Registry, *metrics.AppMetrics) {
	reg := metrics.NewRegistry()
	appm := metrics.NewAppMetrics(reg)
	return reg, appm
}

// LoadStatusText 加载状态码描述；失败时回退到内置描述
func LoadStatusText(path string, log *zap.Logger) *xbee.StatusText {
	if path == "" {
		return xbee.DefaultStatusText()
	}
	t, err := xbee.LoadStatusText(path)
	if err != nil {
		log.Warn("load status text failed, using built-in", zap.String("path", path), zap.Error(err))
		return xbee.DefaultStatusText()
	}
	log.Info("status text loaded", zap.String("path", path))
	return t
}

// NewRedisClient 创建Redis客户端；未启用返回 nil
func NewRedisClient(cfg cfgpkg.RedisConfig, logger *zap.Logger) (*redisstorage.Client, error) {
	if !cfg.Enabled {
		logger.Info("redis is disabled, skipping initialization")
		return nil, nil
	}
	client, err := redisstorage.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("redis client initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize))
	return client, nil
}
