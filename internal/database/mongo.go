package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kevinfinalboss/VoidMod/config"
	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	guildsCollection      = "guilds"
	infractionsCollection = "infractions"
)

type MongoDB struct {
	client   *mongo.Client
	database string
}

func NewMongoDB(ctx context.Context, cfg *config.Config) (*MongoDB, error) {
	uri := cfg.MongoDB.URI
	uri = strings.Replace(uri, "<db_password>", cfg.MongoDB.Password, 1)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	db := &MongoDB{
		client:   client,
		database: cfg.MongoDB.Database,
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return db, nil
}

func (db *MongoDB) collection(name string) *mongo.Collection {
	return db.client.Database(db.database).Collection(name)
}

// EnsureIndexes creates the indexes the moderation queries rely on. The
// partial unique index is what guarantees a single active infraction per
// member and kind.
func (db *MongoDB) EnsureIndexes(ctx context.Context) error {
	_, err := db.collection(guildsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "guild_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "create guild index")
	}

	_, err = db.collection(infractionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "kind", Value: 1}},
			Options: options.Index().
				SetName("one_active_per_member_kind").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_active": true}),
		},
		{
			Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "applied_until", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "enforcement", Value: 1}},
		},
	})
	return errors.Wrap(err, "create infraction indexes")
}

func (db *MongoDB) UpsertGuild(ctx context.Context, guild *models.Guild) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"guild_id": guild.GuildID}
	update := bson.M{
		"$set": bson.M{
			"name":         guild.Name,
			"owner_id":     guild.OwnerID,
			"member_count": guild.MemberCount,
			"is_active":    guild.IsActive,
			"left_at":      guild.LeftAt,
			"icon":         guild.Icon,
			"features":     guild.Features,
			"last_updated": guild.LastUpdated,
		},
		"$setOnInsert": bson.M{
			"joined_at": guild.JoinedAt,
			"settings":  guild.Settings,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := db.collection(guildsCollection).UpdateOne(ctx, filter, update, opts)
	return err
}

func (db *MongoDB) UpdateGuildStatus(ctx context.Context, guildID string, isActive bool, leftAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"is_active":    isActive,
			"left_at":      leftAt,
			"last_updated": time.Now(),
		},
	}

	_, err := db.collection(guildsCollection).UpdateOne(ctx, bson.M{"guild_id": guildID}, update)
	return err
}

func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.client.Disconnect(ctx)
}

func (db *MongoDB) UpdateMemberCount(ctx context.Context, guildID string, delta int) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{
			"member_count": delta,
		},
		"$set": bson.M{
			"last_updated": time.Now(),
		},
	}

	_, err := db.collection(guildsCollection).UpdateOne(
		ctx,
		bson.M{"guild_id": guildID},
		update,
	)
	return err
}

func (db *MongoDB) UpdateGuildSettings(ctx context.Context, guildID string, setting string, value interface{}) error {
	if err := validateSetting(setting, value); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			fmt.Sprintf("settings.%s", setting): value,
			"last_updated":                      time.Now(),
		},
		"$setOnInsert": bson.M{
			"is_active": true,
			"joined_at": time.Now(),
		},
	}

	_, err := db.collection(guildsCollection).UpdateOne(
		ctx,
		bson.M{"guild_id": guildID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

// ModerationConfig implements moderation.GuildConfigProvider.
func (db *MongoDB) ModerationConfig(ctx context.Context, guildID string) (*models.ModerationConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var guild models.Guild
	opts := options.FindOne().SetProjection(bson.M{"guild_id": 1, "settings.moderation": 1, "settings.audit_log_channel": 1})
	err := db.collection(guildsCollection).FindOne(ctx, bson.M{"guild_id": guildID}, opts).Decode(&guild)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find guild %s", guildID)
	}

	return guild.Settings.ModerationConfig(), nil
}
