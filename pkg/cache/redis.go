package cache

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	r "gopkg.in/redis.v5"
)

const redisPrefix = "_AKUCHAT_"

// RedisCache is a ResponseCache shared between server instances.
type RedisCache struct {
	client *r.Client
}

func NewRedisCache(url string) (*RedisCache, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: r.NewClient(opts)}, nil
}

func (c *RedisCache) Ping() error {
	return c.client.Ping().Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) SetChatResponse(key, text string, status ResponseStatus, ttl time.Duration) {
	if !cacheable(text, status) {
		return
	}
	b, err := json.Marshal(chatResponse{Text: text, Status: status})
	if err != nil {
		return
	}
	if err := c.client.Set(redisPrefix+key, b, ttl).Err(); err != nil {
		log.WithError(err).Warn("[cache] redis set failed")
	}
}

func (c *RedisCache) GetChatResponse(key string) (string, bool) {
	b, err := c.client.Get(redisPrefix + key).Bytes()
	if err != nil {
		if err != r.Nil {
			log.WithError(err).Warn("[cache] redis get failed")
		}
		return "", false
	}
	var resp chatResponse
	if err := json.Unmarshal(b, &resp); err != nil || !cacheable(resp.Text, resp.Status) {
		return "", false
	}
	return resp.Text, true
}

func (c *RedisCache) InvalidateChatResponse(key string) {
	if err := c.client.Del(redisPrefix + key).Err(); err != nil {
		log.WithError(err).Warn("[cache] redis delete failed")
	}
}

// NewResponseCache returns a Redis backed cache when url is set and reachable,
// and the process-wide memory cache otherwise.
func NewResponseCache(url string, maxItems int) ResponseCache {
	if url != "" {
		rc, err := NewRedisCache(url)
		if err == nil {
			if err = rc.Ping(); err == nil {
				log.Info("[cache] using redis for chat responses")
				return rc
			}
			_ = rc.Close()
		}
		log.WithError(err).Warn("[cache] redis unavailable, falling back to memory")
	}
	SetMaxItems(maxItems)
	return Default()
}
