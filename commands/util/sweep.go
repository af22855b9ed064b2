package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
	"github.com/kevinfinalboss/VoidMod/internal/registry"
	"github.com/kevinfinalboss/VoidMod/internal/types"
)

func init() {
	registry.RegisterCommand(SweepCommand)
}

// SweepCommand runs the expiry reconciler on demand. It touches every guild,
// so only the configured developers may call it.
var SweepCommand = &types.Command{
	Name:        "sweep",
	Description: "Executa agora a verificação de punições expiradas",
	Category:    "Desenvolvedor",
	Cooldown:    30 * time.Second,
	DevOnly:     true,
	Run: func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, deps *types.Deps) error {
		if deps.Sweeper == nil {
			return errors.New("reconciler not configured")
		}

		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		})
		if err != nil {
			return err
		}

		content := sweepSummary(deps.Sweeper.Sweep(ctx))
		_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content})
		return err
	},
}

func sweepSummary(report moderation.Report, err error) string {
	switch {
	case errors.Is(err, moderation.ErrSweepInProgress):
		return "⏳ Uma verificação já está em andamento."
	case errors.Is(err, moderation.ErrDueQuery):
		return "❌ Não foi possível consultar as punições expiradas."
	}

	msg := fmt.Sprintf("✅ Verificação `%s`: %d vencidas, %d removidas, %d ignoradas, %d falhas, %d reaplicadas.",
		report.RunID, report.Due, report.Lifted, report.Skipped, report.Failed, report.Repaired)
	if err != nil {
		msg += "\n⚠️ Algumas punições não puderam ser removidas e serão tentadas de novo."
	}
	return msg
}
