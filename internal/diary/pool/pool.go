package pool

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/blueplan/diary-go/internal/diary/config"
	logx "github.com/blueplan/diary-go/internal/diary/log"
	"github.com/redis/go-redis/v9"
)

// RedisURL 根据内存配置构建 Redis 连接地址
func RedisURL(cfg config.MemoryConfig) string {
	u := url.URL{
		Scheme: "redis",
		Host:   cfg.RedisHost + ":" + strconv.Itoa(cfg.RedisPort),
		Path:   "/" + strconv.Itoa(cfg.RedisDB),
	}
	if cfg.RedisPassword != "" {
		u.User = url.UserPassword("", cfg.RedisPassword)
	}
	return u.String()
}

// Options 连接池参数
type Options struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	PingTimeout  time.Duration
}

// DefaultOptions 会话数据量小，默认池不需要很大
var DefaultOptions = Options{
	PoolSize:     50,
	MinIdleConns: 1,
	DialTimeout:  5 * time.Second,
	PingTimeout:  5 * time.Second,
}

// NewRedisClient 创建 Redis 客户端并做连接测试
func NewRedisClient(ctx context.Context, cfg config.MemoryConfig, opts Options, logger *logx.Logger) (*redis.Client, error) {
	if logger == nil {
		logger = logx.GetLogger()
	}
	opt, err := redis.ParseURL(RedisURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("解析Redis URL失败: %w", err)
	}

	opt.PoolSize = opts.PoolSize
	opt.MinIdleConns = opts.MinIdleConns
	opt.MaxRetries = 1
	opt.DialTimeout = opts.DialTimeout
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接测试失败: %w", err)
	}

	logger.Info(ctx, "Redis连接池已创建",
		logx.KV("addr", opt.Addr),
		logx.KV("db", opt.DB),
		logx.KV("pool_size", opt.PoolSize))
	return client, nil
}

// HealthCheck 健康检查，返回连接池统计
func HealthCheck(ctx context.Context, client *redis.Client) map[string]interface{} {
	health := map[string]interface{}{"status": "unknown"}
	if client == nil {
		health["status"] = "disabled"
		return health
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	stats := client.PoolStats()
	health["status"] = "healthy"
	health["stats"] = map[string]interface{}{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
		"hits":        stats.Hits,
		"misses":      stats.Misses,
	}
	return health
}
