package database

import (
	"testing"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExtendFilter(t *testing.T) {
	until := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	f := extendFilter("abc", until)

	assert.Equal(t, "abc", f["_id"])
	assert.Equal(t, true, f["is_active"])
	assert.Equal(t, bson.M{"$lt": until}, f["applied_until"])
}

func TestDuePipeline(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	p := duePipeline(now)
	require.Len(t, p, 5)

	first := p[0][0]
	assert.Equal(t, "$match", first.Key)
	assert.Equal(t, bson.M{"is_active": true, "applied_until": bson.M{"$lte": now}}, first.Value)

	lookup := p[1][0].Value.(bson.M)
	assert.Equal(t, guildsCollection, lookup["from"])

	guildMatch := p[2][0].Value.(bson.M)
	assert.Equal(t, true, guildMatch["guild.is_active"])
	assert.Equal(t, true, guildMatch["guild.settings.moderation.enabled"])

	assert.Equal(t, "$sort", p[4][0].Key)
}

func TestEnforcementUpdate(t *testing.T) {
	at := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	applied := enforcementUpdate(models.EnforcementApplied, "", at)
	assert.NotContains(t, applied, "$inc")

	failed := enforcementUpdate(models.EnforcementFailed, "boom", at)
	assert.Equal(t, bson.M{"enforcement_attempts": 1}, failed["$inc"])
	set := failed["$set"].(bson.M)
	assert.Equal(t, models.EnforcementFailed, set["enforcement"])
	assert.Equal(t, "boom", set["enforcement_error"])

	liftFailed := enforcementUpdate(models.EnforcementLiftFailed, "boom", at)
	assert.Contains(t, liftFailed, "$inc")
}

func TestEnforcementFailureFilter(t *testing.T) {
	f := enforcementFailureFilter(5)
	assert.Equal(t, bson.M{"$lt": 5}, f["enforcement_attempts"])
	assert.Len(t, f["$or"], 2)
}

func TestEnforcementFilter(t *testing.T) {
	assert.Equal(t, bson.M{"_id": "i1", "is_active": true}, enforcementFilter("i1", models.EnforcementApplied))
	assert.Equal(t, bson.M{"_id": "i1", "is_active": true}, enforcementFilter("i1", models.EnforcementFailed))
	assert.Equal(t, bson.M{"_id": "i1", "is_active": false}, enforcementFilter("i1", models.EnforcementLifted))
	assert.Equal(t, bson.M{"_id": "i1", "is_active": false}, enforcementFilter("i1", models.EnforcementLiftFailed))
}

func TestValidateSetting(t *testing.T) {
	assert.NoError(t, validateSetting(models.SettingModerationEnabled, false))
	assert.NoError(t, validateSetting(models.SettingModerationMuteRole, "123"))
	assert.Error(t, validateSetting(models.SettingModerationMuteRole, 123))
	assert.Error(t, validateSetting("prefix", "!"))
}
