package moderation

import (
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/kevinfinalboss/VoidMod/internal/moderation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUntil(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"2w", 14 * 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{" 45S ", 45 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseUntil(tt.in, base)
			require.NoError(t, err)
			assert.Equal(t, base.Add(tt.want), got)
		})
	}

	perm, err := ParseUntil("perm", base)
	require.NoError(t, err)
	assert.Equal(t, models.Permanent, perm)

	for _, bad := range []string{"", "10", "h", "5y", "0m", "1.5h", "-3d"} {
		_, err := ParseUntil(bad, base)
		assert.Error(t, err, bad)
	}
}

func TestParseUntilRejectsOverflow(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	for _, in := range []string{"99999999999s", "16000w", "15000w15000w", "9223372036854775807s"} {
		t.Run(in, func(t *testing.T) {
			got, err := ParseUntil(in, base)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "duração muito longa")
			assert.True(t, got.IsZero())
		})
	}

	got, err := ParseUntil("15000w", base)
	require.NoError(t, err)
	assert.Equal(t, base.Add(15000*7*24*time.Hour), got)
}

func TestDescribe(t *testing.T) {
	until := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	inf := &models.Infraction{ID: "inf-1", Kind: models.KindMute, AppliedUntil: until}

	msg := describe(models.KindMute, "42", moderation.Result{Outcome: moderation.OutcomeCreated, Infraction: inf}, nil)
	assert.Equal(t, "✅ Silenciamento aplicado a <@42> (até <t:1772452800:f>).", msg)

	perm := &models.Infraction{ID: "inf-2", Kind: models.KindBan, AppliedUntil: models.Permanent}
	msg = describe(models.KindBan, "42", moderation.Result{Outcome: moderation.OutcomeAlreadyActive, Infraction: perm}, nil)
	assert.Contains(t, msg, "já possui um banimento ativo (permanente)")

	msg = describe(models.KindBan, "42", moderation.Result{Outcome: moderation.OutcomeNotActive}, nil)
	assert.Equal(t, "ℹ️ <@42> não possui banimento ativo.", msg)
}

func TestDescribeErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"disabled", moderation.ErrModuleDisabled, "desativado"},
		{"not privileged", &moderation.AuthorizationError{Reason: moderation.RequesterNotPrivileged}, "não tem permissão"},
		{"protected", &moderation.AuthorizationError{Reason: moderation.TargetProtected}, "mesma permissão"},
		{"no role", &moderation.NotFoundError{Resource: moderation.ResourceRole}, "cargo de silenciamento"},
		{"absent", &moderation.NotFoundError{Resource: moderation.ResourceMember, ID: "42"}, "não está no servidor"},
		{"past", &moderation.ValidationError{Field: "until", Reason: "must be in the future"}, "no futuro"},
		{"partial", &moderation.PartialFailureError{Op: "create", InfractionID: "inf-9", Persisted: true}, "`inf-9`"},
		{"race", moderation.ErrConcurrentModification, "ao mesmo tempo"},
		{"other", errors.New("boom"), "Ocorreu um erro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, describe(models.KindMute, "42", moderation.Result{}, tt.err), tt.want)
		})
	}
}

func TestCommandDefinitions(t *testing.T) {
	assert.Equal(t, moderation.Privilege(models.KindBan), BanCommand.Permissions)
	assert.Equal(t, moderation.Privilege(models.KindMute), UnmuteCommand.Permissions)
	require.Len(t, MuteCommand.Options, 3)
	assert.Equal(t, discordgo.ApplicationCommandOptionUser, MuteCommand.Options[0].Type)
	assert.True(t, MuteCommand.Options[1].Required)
	assert.False(t, MuteCommand.Options[2].Required)
	require.Len(t, UnbanCommand.Options, 1)
}

func TestOptionHelpers(t *testing.T) {
	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "usuario", Type: discordgo.ApplicationCommandOptionUser, Value: "42"},
		{Name: "duracao", Type: discordgo.ApplicationCommandOptionString, Value: "1h"},
	})

	assert.Equal(t, "42", userOption(opts, "usuario"))
	assert.Equal(t, "1h", stringOption(opts, "duracao"))
	assert.Equal(t, "", stringOption(opts, "motivo"))
}
