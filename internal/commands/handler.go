package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/logger"
	"github.com/kevinfinalboss/VoidMod/internal/registry"
	"github.com/kevinfinalboss/VoidMod/internal/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCooldown = 3 * time.Second
	commandTimeout  = 15 * time.Second
)

type Handler struct {
	commands     map[string]*types.Command
	session      *discordgo.Session
	deps         *types.Deps
	logger       *logger.Logger
	cooldowns    sync.Map
	commandMutex sync.RWMutex
	now          func() time.Time
}

func NewHandler(s *discordgo.Session, deps *types.Deps) *Handler {
	return &Handler{
		commands: make(map[string]*types.Command),
		session:  s,
		deps:     deps,
		logger:   deps.Logger.Named("commands"),
		now:      time.Now,
	}
}

// LoadCommands replaces the application commands on Discord with the ones
// in the registry.
func (h *Handler) LoadCommands(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	startTime := time.Now()
	h.logger.Info("Loading commands...")

	if err := h.DeleteCommands(ctx); err != nil {
		h.logger.Error("Error deleting commands", zap.Error(err))
	}

	cmdList := registry.Commands()
	if len(cmdList) == 0 {
		return nil
	}

	var (
		mu   sync.Mutex
		errs error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for _, cmd := range cmdList {
		cmd := cmd
		g.Go(func() error {
			if err := h.registerCommand(gctx, cmd); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		return fmt.Errorf("failed to register commands: %w", errs)
	}

	h.logger.Info("Commands loaded", zap.Int("count", len(cmdList)), zap.Duration("took", time.Since(startTime)))
	return nil
}

func (h *Handler) registerCommand(ctx context.Context, cmd *types.Command) error {
	command := applicationCommand(cmd)
	cfg := h.deps.Config

	const maxRetries = 3
	var err error
	for i := 0; i < maxRetries; i++ {
		_, err = h.session.ApplicationCommandCreate(cfg.Discord.ClientID, cfg.Discord.GuildID, command, discordgo.WithContext(ctx))
		if err == nil {
			break
		}
		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * 500 * time.Millisecond):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
	}

	h.commandMutex.Lock()
	h.commands[cmd.Name] = cmd
	h.commandMutex.Unlock()
	return nil
}

func applicationCommand(cmd *types.Command) *discordgo.ApplicationCommand {
	options := make([]*discordgo.ApplicationCommandOption, 0, len(cmd.Options))
	for _, opt := range cmd.Options {
		options = append(options, &discordgo.ApplicationCommandOption{
			Name:        opt.Name,
			Description: opt.Description,
			Type:        opt.Type,
			Required:    opt.Required,
			Choices:     opt.Choices,
		})
	}

	command := &discordgo.ApplicationCommand{
		Name:        cmd.Name,
		Description: cmd.Description,
		Type:        cmd.CommandType,
		Options:     options,
	}
	if cmd.Permissions != 0 {
		perms := cmd.Permissions
		command.DefaultMemberPermissions = &perms
		dm := false
		command.DMPermission = &dm
	}
	return command
}

func (h *Handler) DeleteCommands(ctx context.Context) error {
	cfg := h.deps.Config
	commands, err := h.session.ApplicationCommands(cfg.Discord.ClientID, cfg.Discord.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error fetching commands: %w", err)
	}

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, cmd := range commands {
		wg.Add(1)
		go func(cmd *discordgo.ApplicationCommand) {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				err := h.session.ApplicationCommandDelete(cfg.Discord.ClientID, cfg.Discord.GuildID, cmd.ID, discordgo.WithContext(ctx))
				if err == nil {
					return
				}
				if i == 2 {
					mu.Lock()
					errs = multierr.Append(errs, fmt.Errorf("failed to delete command %s: %w", cmd.Name, err))
					mu.Unlock()
					return
				}
				time.Sleep(time.Duration(i+1) * 200 * time.Millisecond)
			}
		}(cmd)
	}
	wg.Wait()

	return errs
}

func (h *Handler) HandleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	userID := interactionUserID(i)
	if userID == "" {
		h.logger.Error("Could not identify the user of the interaction")
		return
	}

	commandName := i.ApplicationCommandData().Name
	h.commandMutex.RLock()
	cmd, exists := h.commands[commandName]
	h.commandMutex.RUnlock()

	if !exists {
		h.logger.Error("Command not found", zap.String("command", commandName))
		return
	}

	if !h.allowed(cmd, userID) {
		h.respondEphemeral(s, i, "Este comando é restrito aos desenvolvedores.")
		return
	}

	if !h.checkCooldown(userID, cmd) {
		h.respondEphemeral(s, i, "Por favor, aguarde antes de usar este comando novamente.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- cmd.Run(ctx, s, i, h.deps)
	}()

	select {
	case err := <-done:
		if err != nil {
			h.handleError(s, i, commandName, err)
		}
	case <-ctx.Done():
		h.handleError(s, i, commandName, fmt.Errorf("command execution timed out"))
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// allowed gates developer commands on the configured developer ids.
func (h *Handler) allowed(cmd *types.Command, userID string) bool {
	return !cmd.DevOnly || h.isDev(userID)
}

func (h *Handler) isDev(userID string) bool {
	for _, id := range h.deps.Config.Discord.Devs {
		if id == userID {
			return true
		}
	}
	return false
}

func (h *Handler) checkCooldown(userID string, cmd *types.Command) bool {
	cooldown := cmd.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}

	key := cmd.Name + ":" + userID
	now := h.now()

	if last, ok := h.cooldowns.Load(key); ok && now.Sub(last.(time.Time)) < cooldown {
		return false
	}

	h.cooldowns.Store(key, now)
	return true
}

func (h *Handler) respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn("Failed to respond to interaction", zap.Error(err))
	}
}

func (h *Handler) handleError(s *discordgo.Session, i *discordgo.InteractionCreate, commandName string, err error) {
	h.logger.Error("Error executing command", zap.String("command", commandName), zap.Error(err))
	h.respondEphemeral(s, i, "Ocorreu um erro ao executar o comando.")
}
