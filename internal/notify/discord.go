package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
)

const (
	colorApplied  = 0xED4245
	colorExtended = 0xFEE75C
	colorLifted   = 0x57F287
	colorNeutral  = 0x2B2D31
)

// Discord posts moderation summaries to the guild's log channel.
type Discord struct {
	session *discordgo.Session
}

func NewDiscord(s *discordgo.Session) *Discord {
	return &Discord{session: s}
}

func (d *Discord) Send(ctx context.Context, _ string, channelID string, summary moderation.Summary) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, BuildEmbed(summary), discordgo.WithContext(ctx))
	return err
}

func BuildEmbed(s moderation.Summary) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     title(s),
		Color:     color(s.Outcome),
		Timestamp: s.At.Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Void • Moderação",
		},
	}

	actor := fmt.Sprintf("<@%s>", s.ActorID)
	if s.Automatic {
		actor = "Sistema (expiração automática)"
	}

	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Membro", Value: fmt.Sprintf("<@%s>", s.TargetID), Inline: true},
		{Name: "Moderador", Value: actor, Inline: true},
	}

	if s.Outcome == moderation.OutcomeCreated || s.Outcome == moderation.OutcomeExtended {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Duração", Value: untilText(s.Until), Inline: true,
		})
	}
	if s.Reason != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Motivo", Value: s.Reason,
		})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "ID", Value: fmt.Sprintf("`%s`", s.InfractionID),
	})

	return embed
}

func title(s moderation.Summary) string {
	kind := "Banimento"
	if s.Kind == models.KindMute {
		kind = "Silenciamento"
	}

	switch s.Outcome {
	case moderation.OutcomeCreated:
		return fmt.Sprintf("🔨 %s aplicado", kind)
	case moderation.OutcomeExtended:
		return fmt.Sprintf("⏫ %s estendido", kind)
	case moderation.OutcomeLifted:
		if s.Automatic {
			return fmt.Sprintf("⌛ %s expirado", kind)
		}
		return fmt.Sprintf("✅ %s removido", kind)
	default:
		return kind
	}
}

func color(o moderation.Outcome) int {
	switch o {
	case moderation.OutcomeCreated:
		return colorApplied
	case moderation.OutcomeExtended:
		return colorExtended
	case moderation.OutcomeLifted:
		return colorLifted
	default:
		return colorNeutral
	}
}

func untilText(until time.Time) string {
	if !until.Before(models.Permanent) {
		return "Permanente"
	}
	return fmt.Sprintf("<t:%d:f> (<t:%d:R>)", until.Unix(), until.Unix())
}
