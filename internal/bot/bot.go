package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	_ "github.com/kevinfinalboss/VoidMod/commands/all"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/events/guild"
	"github.com/kevinfinalboss/VoidMod/internal/commands"
	"github.com/kevinfinalboss/VoidMod/internal/database"
	"github.com/kevinfinalboss/VoidMod/internal/events"
	"github.com/kevinfinalboss/VoidMod/internal/guildconfig"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
	"github.com/kevinfinalboss/VoidMod/internal/notify"
	"github.com/kevinfinalboss/VoidMod/internal/platform"
	"github.com/kevinfinalboss/VoidMod/internal/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

type Bot struct {
	sessions     []*discordgo.Session
	config       *config.Config
	logger       *logger.Logger
	store        database.Store
	configs      *guildconfig.Cache
	manager      *moderation.Manager
	reconciler   *moderation.Reconciler
	cmdHandler   *commands.Handler
	eventHandler *events.Handler
	mu           sync.RWMutex
}

// New opens the store and wires the moderation engine to the Discord
// sessions. Nothing connects to the gateway until Start.
func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*Bot, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if l == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Discord.Token == "" {
		return nil, errors.New("discord token is required")
	}

	shards := 1
	if cfg.Discord.Sharding.Enabled {
		shards = cfg.Discord.Sharding.TotalShards
	}
	sessions := make([]*discordgo.Session, shards)
	for i := range sessions {
		session, err := discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			return nil, fmt.Errorf("failed to create discord session for shard %d: %w", i, err)
		}
		session.ShardID = i
		session.ShardCount = shards
		session.Identify.Intents = intents
		sessions[i] = session
	}

	store, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	b := &Bot{
		sessions: sessions,
		config:   cfg,
		logger:   l,
		store:    store,
	}
	b.wire(sessions[0])
	return b, nil
}

func (b *Bot) wire(primary *discordgo.Session) {
	cfg := b.config
	mod := cfg.Moderation

	b.configs = guildconfig.NewCache(b.store, mod.ConfigCacheSize, mod.ConfigCacheTTL)

	b.manager = moderation.NewManager(b.store, b.configs, platform.NewDiscord(primary), notify.NewDiscord(primary), moderation.Options{
		PlatformTimeout: mod.PlatformTimeout,
		NotifyTimeout:   mod.NotifyTimeout,
		Logger:          b.logger,
	})

	var limiter *rate.Limiter
	if mod.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(mod.RateLimit), mod.RateBurst)
	}
	b.reconciler = moderation.NewReconciler(b.store, b.manager, moderation.ReconcilerOptions{
		Limit:                  limiter,
		MaxEnforcementAttempts: mod.MaxEnforcementAttempts,
		Logger:                 b.logger,
	})

	b.cmdHandler = commands.NewHandler(primary, &types.Deps{
		Config:    cfg,
		Logger:    b.logger,
		Moderator: b.manager,
		Settings:  b.store,
		Configs:   b.configs,
		Sweeper:   b.reconciler,
	})
	b.eventHandler = events.NewHandler(cfg, b.logger, guild.NewHandler(b.store, b.configs, b.manager, b.logger))
}

func (b *Bot) Store() database.Store              { return b.store }
func (b *Bot) Manager() *moderation.Manager       { return b.manager }
func (b *Bot) Reconciler() *moderation.Reconciler { return b.reconciler }
func (b *Bot) ConfigCache() *guildconfig.Cache    { return b.configs }

// Start opens every shard and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		wg        sync.WaitGroup
		errMu     sync.Mutex
		errs      error
		semaphore = make(chan struct{}, 5)
	)
	for _, session := range b.sessions {
		wg.Add(1)
		go func(s *discordgo.Session) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			b.attach(s)
			if err := s.Open(); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("failed to open shard %d: %w", s.ShardID, err))
				errMu.Unlock()
			}
		}(session)
	}
	wg.Wait()
	if errs != nil {
		return errs
	}

	if err := b.cmdHandler.LoadCommands(ctx); err != nil {
		return err
	}

	b.logger.Info("Bot started", zap.Int("shards", len(b.sessions)))
	return nil
}

// attach wires a shard. Interactions arrive on the shard that owns the
// guild, so every session gets the command dispatcher.
func (b *Bot) attach(s events.Session) {
	s.AddHandler(b.cmdHandler.HandleCommand)
	b.eventHandler.Register(s)
}

// Stop closes the sessions first so no new commands arrive, then the store.
func (b *Bot) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs error
	for _, session := range b.sessions {
		if err := session.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to close shard %d: %w", session.ShardID, err))
		}
	}

	if err := b.store.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errs
}
