package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
	"github.com/kevinfinalboss/VoidMod/internal/registry"
	"github.com/kevinfinalboss/VoidMod/internal/types"
	"go.uber.org/zap"
)

func init() {
	registry.RegisterCommand(BanCommand)
	registry.RegisterCommand(MuteCommand)
	registry.RegisterCommand(UnbanCommand)
	registry.RegisterCommand(UnmuteCommand)
}

var (
	BanCommand    = applyCommand("ban", "Bane um membro por um período", models.KindBan)
	MuteCommand   = applyCommand("mute", "Silencia um membro por um período", models.KindMute)
	UnbanCommand  = liftCommand("unban", "Remove o banimento de um usuário", models.KindBan)
	UnmuteCommand = liftCommand("unmute", "Remove o silenciamento de um membro", models.KindMute)
)

var now = func() time.Time { return time.Now().UTC() }

func applyCommand(name, description string, kind models.InfractionKind) *types.Command {
	return &types.Command{
		Name:        name,
		Description: description,
		Category:    "Moderação",
		Cooldown:    2 * time.Second,
		Permissions: moderation.Privilege(kind),
		Options: []*types.CommandOption{
			{Name: "usuario", Description: "Membro alvo", Type: discordgo.ApplicationCommandOptionUser, Required: true},
			{Name: "duracao", Description: "Duração, ex.: 30m, 12h, 7d ou perm", Type: discordgo.ApplicationCommandOptionString, Required: true},
			{Name: "motivo", Description: "Motivo da punição", Type: discordgo.ApplicationCommandOptionString},
		},
		Run: func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *types.Deps) error {
			if i.Member == nil || i.GuildID == "" {
				return respond(s, i, "Este comando só pode ser usado em servidores.")
			}
			if err := acknowledge(s, i); err != nil {
				return err
			}

			opts := optionMap(i.ApplicationCommandData().Options)
			targetID := userOption(opts, "usuario")

			until, err := ParseUntil(stringOption(opts, "duracao"), now())
			if err != nil {
				return edit(s, i, fmt.Sprintf("❌ %v", err))
			}

			res, err := deps.Moderator.CreateOrExtend(ctx, moderation.CreateRequest{
				GuildID:     i.GuildID,
				TargetID:    targetID,
				RequesterID: i.Member.User.ID,
				Until:       until,
				Reason:      stringOption(opts, "motivo"),
				Kind:        kind,
			})
			logResult(deps, name, i, targetID, res, err)
			return edit(s, i, describe(kind, targetID, res, err))
		},
	}
}

func liftCommand(name, description string, kind models.InfractionKind) *types.Command {
	return &types.Command{
		Name:        name,
		Description: description,
		Category:    "Moderação",
		Cooldown:    2 * time.Second,
		Permissions: moderation.Privilege(kind),
		Options: []*types.CommandOption{
			{Name: "usuario", Description: "Usuário alvo", Type: discordgo.ApplicationCommandOptionUser, Required: true},
		},
		Run: func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *types.Deps) error {
			if i.Member == nil || i.GuildID == "" {
				return respond(s, i, "Este comando só pode ser usado em servidores.")
			}
			if err := acknowledge(s, i); err != nil {
				return err
			}

			targetID := userOption(optionMap(i.ApplicationCommandData().Options), "usuario")
			res, err := deps.Moderator.Disable(ctx, moderation.DisableRequest{
				GuildID:     i.GuildID,
				TargetID:    targetID,
				Kind:        kind,
				RequesterID: i.Member.User.ID,
			})
			logResult(deps, name, i, targetID, res, err)
			return edit(s, i, describe(kind, targetID, res, err))
		},
	}
}

func logResult(deps *types.Deps, command string, i *discordgo.InteractionCreate, targetID string, res moderation.Result, err error) {
	fields := []zap.Field{
		zap.String("command", command),
		zap.String("guild_id", i.GuildID),
		zap.String("requester_id", i.Member.User.ID),
		zap.String("target_id", targetID),
		zap.Stringer("outcome", res.Outcome),
	}
	switch {
	case err == nil:
		deps.Logger.Debug("Moderation command handled", fields...)
	case moderation.IsPartialFailure(err):
		deps.Logger.Warn("Moderation command partially applied", append(fields, zap.Error(err))...)
	case moderation.IsValidation(err), moderation.IsAuthorization(err), moderation.IsNotFound(err):
		deps.Logger.Debug("Moderation command refused", append(fields, zap.Error(err))...)
	default:
		deps.Logger.Error("Moderation command failed", append(fields, zap.Error(err))...)
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func userOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		if id, ok := opt.Value.(string); ok {
			return id
		}
	}
	return ""
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// acknowledge defers the interaction; platform calls can exceed the three
// second reply window.
func acknowledge(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func edit(s *discordgo.Session, i *discordgo.InteractionCreate, content string) error {
	_, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	})
	return err
}
