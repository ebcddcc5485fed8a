package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Abdallahnangere/SaukinKarshe/pkg/pg"
	"github.com/Abdallahnangere/SaukinKarshe/pkg/redis"
)

const healthCheckTimeout = time.Second * 2

// HealthService reports whether the process can reach its backing stores.
type HealthService struct {
	db    *pg.DB
	redis redis.RedisAdapter
}

func NewHealthService(db *pg.DB, redisAdap redis.RedisAdapter) *HealthService {
	return &HealthService{
		db:    db,
		redis: redisAdap,
	}
}

func (s *HealthService) Get() error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	if s.db != nil {
		sqlDB, err := s.db.Read(ctx).DB()
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}

	if s.redis != nil {
		if err := s.redis.Client().Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}

	return nil
}
