package moderation

import (
	"errors"
	"fmt"

	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
)

func kindLabel(kind models.InfractionKind) string {
	if kind == models.KindMute {
		return "silenciamento"
	}
	return "banimento"
}

func untilLabel(inf *models.Infraction) string {
	if inf.IsPermanent() {
		return "permanente"
	}
	return fmt.Sprintf("até <t:%d:f>", inf.AppliedUntil.Unix())
}

// describe renders the outcome of a moderation call for the requester.
func describe(kind models.InfractionKind, targetID string, res moderation.Result, err error) string {
	label := kindLabel(kind)

	if err != nil {
		return describeError(label, targetID, res, err)
	}

	switch res.Outcome {
	case moderation.OutcomeCreated:
		return fmt.Sprintf("✅ %s aplicado a <@%s> (%s).", capitalize(label), targetID, untilLabel(res.Infraction))
	case moderation.OutcomeExtended:
		return fmt.Sprintf("⏫ %s de <@%s> estendido (%s).", capitalize(label), targetID, untilLabel(res.Infraction))
	case moderation.OutcomeAlreadyActive:
		return fmt.Sprintf("ℹ️ <@%s> já possui um %s ativo (%s). Nada foi alterado.", targetID, label, untilLabel(res.Infraction))
	case moderation.OutcomeLifted:
		return fmt.Sprintf("✅ %s de <@%s> removido.", capitalize(label), targetID)
	case moderation.OutcomeNotActive:
		return fmt.Sprintf("ℹ️ <@%s> não possui %s ativo.", targetID, label)
	case moderation.OutcomeRevoked:
		return fmt.Sprintf("ℹ️ O %s de <@%s> foi removido por outro moderador enquanto era aplicado.", label, targetID)
	default:
		return "Operação concluída."
	}
}

func describeError(label, targetID string, res moderation.Result, err error) string {
	var (
		ae *moderation.AuthorizationError
		nf *moderation.NotFoundError
		ve *moderation.ValidationError
		pf *moderation.PartialFailureError
	)

	switch {
	case errors.Is(err, moderation.ErrModuleDisabled):
		return "❌ O módulo de moderação está desativado neste servidor. Use `/config` para ativá-lo."
	case errors.As(err, &ae):
		if ae.Reason == moderation.TargetProtected {
			return fmt.Sprintf("❌ <@%s> possui a mesma permissão de moderação e não pode ser punido.", targetID)
		}
		return "❌ Você não tem permissão para executar esta ação."
	case errors.As(err, &nf):
		switch nf.Resource {
		case moderation.ResourceRole:
			return "❌ Nenhum cargo de silenciamento configurado. Use `/config cargo_mute`."
		case moderation.ResourceMember:
			return fmt.Sprintf("❌ <@%s> não está no servidor.", targetID)
		default:
			return fmt.Sprintf("❌ Não encontrado: %s.", nf.Resource)
		}
	case errors.As(err, &ve):
		if ve.Field == "until" {
			return "❌ A data de expiração deve estar no futuro."
		}
		return fmt.Sprintf("❌ Parâmetro inválido: %s.", ve.Field)
	case errors.As(err, &pf):
		id := pf.InfractionID
		if res.Infraction != nil {
			id = res.Infraction.ID
		}
		return fmt.Sprintf("⚠️ O %s foi registrado, mas o Discord recusou a ação. "+
			"Uma nova tentativa será feita automaticamente (ID `%s`).", label, id)
	case errors.Is(err, moderation.ErrConcurrentModification):
		return "⚠️ Outro moderador alterou esta punição ao mesmo tempo. Tente novamente."
	default:
		return "Ocorreu um erro ao executar o comando."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
