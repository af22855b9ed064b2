package util

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/registry"
	"github.com/kevinfinalboss/VoidMod/internal/types"
)

func init() {
	registry.RegisterCommand(StatusCommand)
}

var StatusCommand = &types.Command{
	Name:        "status",
	Description: "Mostra latência, tempo de atividade e a configuração da moderação",
	Category:    "Utilidade",
	Cooldown:    5 * time.Second,
	Run: func(_ context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *types.Deps) error {
		embed := statusEmbed(deps.Config, s.HeartbeatLatency(), len(s.State.Guilds), s.ShardID, time.Now())

		return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		})
	},
}

func statusEmbed(cfg *config.Config, latency time.Duration, guilds, shardID int, now time.Time) *discordgo.MessageEmbed {
	uptime := now.Sub(cfg.BotStartTime).Round(time.Second)

	return &discordgo.MessageEmbed{
		Title:     "🏓 Status",
		Color:     0x00ff00,
		Timestamp: now.Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Latência do Gateway", Value: fmt.Sprintf("`%dms`", latency.Milliseconds()), Inline: true},
			{Name: "Tempo de Atividade", Value: fmt.Sprintf("`%s`", uptime), Inline: true},
			{Name: "Shard ID", Value: fmt.Sprintf("`%d`", shardID), Inline: true},
			{Name: "Guildas Conectadas", Value: fmt.Sprintf("`%d`", guilds), Inline: true},
			{Name: "Armazenamento", Value: fmt.Sprintf("`%s`", cfg.Storage.Driver), Inline: true},
			{Name: "Verificação de expiração", Value: fmt.Sprintf("a cada `%s`", cfg.Moderation.ReconcileInterval), Inline: true},
			{Name: "Goroutines", Value: fmt.Sprintf("`%d`", runtime.NumGoroutine()), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Void • Status",
		},
	}
}
