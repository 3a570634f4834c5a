package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

const (
	affiliateConfigCacheKey = "affiliate:config"
	DefaultConfigCacheTTL   = 60 * time.Second
)

// AffiliateConfigRepository reads and writes the durable configuration
type AffiliateConfigRepository interface {
	GetAffiliateConfig(ctx context.Context) (models.AffiliateConfig, error)
	SaveAffiliateConfig(ctx context.Context, cfg models.AffiliateConfig) (models.AffiliateConfig, error)
}

// CachedConfigStore fronts the config repository with Redis. Concurrent
// cache misses collapse into a single backend read. A nil Redis client
// disables the cache but keeps the miss collapsing.
type CachedConfigStore struct {
	backend AffiliateConfigRepository
	redis   *redis.Client
	ttl     time.Duration
	group   singleflight.Group
}

func NewCachedConfigStore(backend AffiliateConfigRepository, client *redis.Client, ttl time.Duration) *CachedConfigStore {
	if ttl <= 0 {
		ttl = DefaultConfigCacheTTL
	}
	return &CachedConfigStore{backend: backend, redis: client, ttl: ttl}
}

func (s *CachedConfigStore) GetAffiliateConfig(ctx context.Context) (models.AffiliateConfig, error) {
	if s.redis != nil {
		raw, err := s.redis.Get(ctx, affiliateConfigCacheKey).Bytes()
		if err == nil {
			var cfg models.AffiliateConfig
			if jsonErr := json.Unmarshal(raw, &cfg); jsonErr == nil {
				return cfg, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.Printf("Warning: affiliate config cache read failed: %v", err)
		}
	}

	v, err, _ := s.group.Do(affiliateConfigCacheKey, func() (interface{}, error) {
		cfg, err := s.backend.GetAffiliateConfig(ctx)
		if err != nil {
			return nil, err
		}
		s.store(ctx, cfg)
		return cfg, nil
	})
	if err != nil {
		return models.AffiliateConfig{}, err
	}
	return v.(models.AffiliateConfig), nil
}

func (s *CachedConfigStore) SaveAffiliateConfig(ctx context.Context, cfg models.AffiliateConfig) (models.AffiliateConfig, error) {
	saved, err := s.backend.SaveAffiliateConfig(ctx, cfg)
	if err != nil {
		return models.AffiliateConfig{}, err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, affiliateConfigCacheKey).Err(); err != nil {
			log.Printf("Warning: affiliate config cache invalidation failed: %v", err)
		}
	}
	return saved, nil
}

func (s *CachedConfigStore) store(ctx context.Context, cfg models.AffiliateConfig) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, affiliateConfigCacheKey, raw, s.ttl).Err(); err != nil {
		log.Printf("Warning: affiliate config cache write failed: %v", err)
	}
}
