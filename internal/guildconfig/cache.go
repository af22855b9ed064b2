package guildconfig

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "void_guildconfig_cache_lookups_total",
	Help: "Guild moderation config lookups, by cache result",
}, []string{"result"})

type Provider interface {
	ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error)
}

// loadTimeout bounds a shared load. The load runs detached from the caller
// that started it, so one cancelled command cannot fail the others waiting
// on the same guild.
const loadTimeout = 5 * time.Second

type entry struct {
	cfg *models.ModerationConfig
}

// Cache sits in front of the guild store. Guilds without configuration are
// cached too, so a busy unconfigured guild does not hit the database on
// every command. Writers must call Invalidate after changing settings.
type Cache struct {
	next    Provider
	data    *expirable.LRU[string, entry]
	group   singleflight.Group
	timeout time.Duration
}

func NewCache(next Provider, capacity int, ttl time.Duration) *Cache {
	return &Cache{
		next:    next,
		data:    expirable.NewLRU[string, entry](capacity, nil, ttl),
		timeout: loadTimeout,
	}
}

func (c *Cache) ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error) {
	if e, ok := c.data.Get(guildID); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return copyConfig(e.cfg), nil
	}
	cacheLookups.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(guildID, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		cfg, err := c.next.ModerationConfig(lctx, guildID)
		if err != nil {
			return nil, err
		}
		c.data.Add(guildID, entry{cfg: cfg})
		return cfg, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyConfig(res.Val.(*models.ModerationConfig)), nil
	}
}

func (c *Cache) Invalidate(guildID string) {
	c.data.Remove(guildID)
}

func (c *Cache) Purge() {
	c.data.Purge()
}

func copyConfig(cfg *models.ModerationConfig) *models.ModerationConfig {
	if cfg == nil {
		return nil
	}
	out := *cfg
	return &out
}
