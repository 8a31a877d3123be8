package repositories

import (
	"context"

	"vigil/internal/core/ports"
	"vigil/internal/infrastructure/repositories/file"
	redisrepo "vigil/internal/infrastructure/repositories/redis"
	"vigil/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory hands out the camera repository backed by Redis when it is
// enabled and reachable, falling back to the JSON registry file.
type Factory struct {
	useRedis    bool
	redisClient *redis.Client
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

func NewFactory(cfg *config.Config, logger *zap.SugaredLogger) (*Factory, error) {
	f := &Factory{
		useRedis: cfg.Redis.Enabled,
		cfg:      cfg,
		logger:   logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("redis unavailable, falling back to registry file", "error", err)
			f.useRedis = false
		} else {
			f.redisClient = client
		}
	}

	if f.useRedis {
		logger.Info("using redis camera repository")
	} else {
		logger.Infow("using file camera repository", "path", cfg.Registry.Path)
	}
	return f, nil
}

func (f *Factory) CreateCameraRepository() (ports.CameraRepository, error) {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewCameraRepository(f.redisClient), nil
	}
	return file.NewCameraRepository(f.cfg.Registry.Path, f.logger)
}

// RedisClient exposes the shared client for cross-process coordination,
// or nil when running on the file backend.
func (f *Factory) RedisClient() *redis.Client {
	if !f.useRedis {
		return nil
	}
	return f.redisClient
}

func (f *Factory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseClient(f.redisClient)
	}
	return nil
}

// HealthCheck reports storage backend reachability for readiness probes.
func (f *Factory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
