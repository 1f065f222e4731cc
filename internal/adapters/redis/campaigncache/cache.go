// Package campaigncache keeps a copy of the campaign list in Redis.
package campaigncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hemoconecta/donor-portal-api/internal/domain"
	"github.com/hemoconecta/donor-portal-api/internal/ports/out/campaignrepo"
)

// cachedCampaign is the JSON shape stored in Redis.
type cachedCampaign struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	BloodTypeTarget  string    `json:"bloodTypeTarget"`
	Capacity         int       `json:"capacity"`
	ParticipantCount int       `json:"participantCount"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Option func(*Cache)

func WithPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = strings.Trim(prefix, ":") }
}

// WithTTL bounds how long a list survives without an invalidation; zero disables expiry.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) { c.ttl = d }
}

// Cache implements campaigncache.Cache on a Redis client.
type Cache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func New(rdb *redis.Client, opts ...Option) *Cache {
	c := &Cache{
		rdb:    rdb,
		prefix: "portal:campaigns",
		ttl:    time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) listKey() string {
	return c.prefix + ":list"
}

func (c *Cache) GetList(ctx context.Context) ([]campaignrepo.Campaign, bool, error) {
	raw, err := c.rdb.Get(ctx, c.listKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get campaign list: %w", err)
	}
	var cached []cachedCampaign
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, false, fmt.Errorf("decode cached campaign list: %w", err)
	}
	out := make([]campaignrepo.Campaign, 0, len(cached))
	for _, cc := range cached {
		out = append(out, campaignrepo.Campaign{
			ID:               domain.CampaignID(cc.ID),
			Name:             cc.Name,
			BloodTypeTarget:  cc.BloodTypeTarget,
			Capacity:         cc.Capacity,
			ParticipantCount: cc.ParticipantCount,
			Status:           campaignrepo.Status(cc.Status),
			CreatedAt:        cc.CreatedAt.UTC(),
			UpdatedAt:        cc.UpdatedAt.UTC(),
		})
	}
	return out, true, nil
}

func (c *Cache) PutList(ctx context.Context, cs []campaignrepo.Campaign) error {
	cached := make([]cachedCampaign, 0, len(cs))
	for _, x := range cs {
		cached = append(cached, cachedCampaign{
			ID:               string(x.ID),
			Name:             x.Name,
			BloodTypeTarget:  x.BloodTypeTarget,
			Capacity:         x.Capacity,
			ParticipantCount: x.ParticipantCount,
			Status:           string(x.Status),
			CreatedAt:        x.CreatedAt,
			UpdatedAt:        x.UpdatedAt,
		})
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, c.listKey(), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set campaign list: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, c.listKey()).Err(); err != nil {
		return fmt.Errorf("redis del campaign list: %w", err)
	}
	return nil
}
