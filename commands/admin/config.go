package admin

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/registry"
	"github.com/kevinfinalboss/VoidMod/internal/types"
	"go.uber.org/zap"
)

func init() {
	registry.RegisterCommand(ConfigCommand)
}

var ConfigCommand = &types.Command{
	Name:        "config",
	Description: "Configure o módulo de moderação do servidor",
	Category:    "Administração",
	Permissions: discordgo.PermissionManageServer,
	Cooldown:    5 * time.Second,
	Options: []*types.CommandOption{
		{Name: "moderacao", Description: "Ativa ou desativa o módulo de moderação", Type: discordgo.ApplicationCommandOptionBoolean},
		{Name: "canal_log", Description: "Canal onde as punições são registradas", Type: discordgo.ApplicationCommandOptionChannel},
		{Name: "cargo_mute", Description: "Cargo aplicado a membros silenciados", Type: discordgo.ApplicationCommandOptionRole},
		{Name: "canal_audit", Description: "Canal de audit do servidor", Type: discordgo.ApplicationCommandOptionChannel},
	},
	Run: func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *types.Deps) error {
		if i.GuildID == "" {
			return s.InteractionRespond(i.Interaction, ephemeral("Este comando só pode ser usado em servidores."))
		}

		changes := settingChanges(i.ApplicationCommandData().Options)
		if len(changes) == 0 {
			return s.InteractionRespond(i.Interaction, ephemeral("Informe ao menos uma opção para alterar."))
		}

		applied, err := applySettings(ctx, deps, i.GuildID, changes)
		if err != nil {
			deps.Logger.Error("Failed to save guild settings", zap.String("guild_id", i.GuildID), zap.Error(err))
			return s.InteractionRespond(i.Interaction, ephemeral("❌ Erro ao salvar as configurações."))
		}

		return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{savedEmbed(applied)},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		})
	},
}

type settingChange struct {
	Setting string
	Value   interface{}
	Label   string
}

func settingChanges(options []*discordgo.ApplicationCommandInteractionDataOption) []settingChange {
	var changes []settingChange
	for _, opt := range options {
		switch opt.Name {
		case "moderacao":
			enabled, _ := opt.Value.(bool)
			label := "Desativado"
			if enabled {
				label = "Ativado"
			}
			changes = append(changes, settingChange{models.SettingModerationEnabled, enabled, "Módulo de moderação: " + label})
		case "canal_log":
			id, _ := opt.Value.(string)
			changes = append(changes, settingChange{models.SettingModerationLogChannel, id, fmt.Sprintf("Canal de log: <#%s>", id)})
		case "cargo_mute":
			id, _ := opt.Value.(string)
			changes = append(changes, settingChange{models.SettingModerationMuteRole, id, fmt.Sprintf("Cargo de silenciamento: <@&%s>", id)})
		case "canal_audit":
			id, _ := opt.Value.(string)
			changes = append(changes, settingChange{models.SettingAuditLogChannel, id, fmt.Sprintf("Canal de audit: <#%s>", id)})
		}
	}
	return changes
}

// applySettings stores each change and drops the cached guild config so the
// next moderation call sees it.
func applySettings(ctx context.Context, deps *types.Deps, guildID string, changes []settingChange) ([]string, error) {
	if deps.Configs != nil {
		defer deps.Configs.Invalidate(guildID)
	}

	applied := make([]string, 0, len(changes))
	for _, c := range changes {
		if err := deps.Settings.UpdateGuildSettings(ctx, guildID, c.Setting, c.Value); err != nil {
			return applied, err
		}
		applied = append(applied, c.Label)
	}
	return applied, nil
}

func savedEmbed(applied []string) *discordgo.MessageEmbed {
	description := ""
	for _, line := range applied {
		description += "• " + line + "\n"
	}

	return &discordgo.MessageEmbed{
		Title:       "✅ Configuração Salva",
		Description: description,
		Color:       0x00FF00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Void • Configurações",
		},
	}
}

func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}
