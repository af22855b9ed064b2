package database

import (
	"context"
	"time"

	"github.com/kevinfinalboss/VoidMod/internal/models"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *MongoDB) FindByID(ctx context.Context, id string) (*models.Infraction, error) {
	return db.findOne(ctx, bson.M{"_id": id})
}

func (db *MongoDB) FindActive(ctx context.Context, guildID, userID string, kind models.InfractionKind) (*models.Infraction, error) {
	return db.findOne(ctx, activeFilter(guildID, userID, kind))
}

func (db *MongoDB) findOne(ctx context.Context, filter bson.M) (*models.Infraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var inf models.Infraction
	err := db.collection(infractionsCollection).FindOne(ctx, filter).Decode(&inf)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find infraction")
	}
	return &inf, nil
}

func (db *MongoDB) FindDueActive(ctx context.Context, now time.Time) ([]*models.Infraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cur, err := db.collection(infractionsCollection).Aggregate(ctx, duePipeline(now))
	if err != nil {
		return nil, errors.Wrap(err, "aggregate due infractions")
	}

	var due []*models.Infraction
	if err := cur.All(ctx, &due); err != nil {
		return nil, errors.Wrap(err, "decode due infractions")
	}
	return due, nil
}

func (db *MongoDB) FindEnforcementFailures(ctx context.Context, maxAttempts int) ([]*models.Infraction, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	cur, err := db.collection(infractionsCollection).Find(ctx, enforcementFailureFilter(maxAttempts), opts)
	if err != nil {
		return nil, errors.Wrap(err, "find enforcement failures")
	}

	var flagged []*models.Infraction
	if err := cur.All(ctx, &flagged); err != nil {
		return nil, errors.Wrap(err, "decode enforcement failures")
	}
	return flagged, nil
}

func (db *MongoDB) Insert(ctx context.Context, inf *models.Infraction) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if inf.ID == "" {
		inf.ID = primitive.NewObjectID().Hex()
	}

	_, err := db.collection(infractionsCollection).InsertOne(ctx, inf)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrActiveInfractionExists
	}
	return errors.Wrap(err, "insert infraction")
}

func (db *MongoDB) Extend(ctx context.Context, id string, ext models.Extension) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.collection(infractionsCollection).UpdateOne(ctx, extendFilter(id, ext.Until), bson.M{
		"$set": bson.M{
			"applied_until": ext.Until,
			"reason":        ext.Reason,
			"applied_by_id": ext.AppliedByID,
			"updated_at":    ext.At,
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "extend infraction")
	}
	return res.MatchedCount == 1, nil
}

func (db *MongoDB) Deactivate(ctx context.Context, id, liftedByID string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.collection(infractionsCollection).UpdateOne(ctx, bson.M{"_id": id, "is_active": true}, bson.M{
		"$set": bson.M{
			"is_active":    false,
			"lifted_by_id": liftedByID,
			"lifted_on":    at,
			"updated_at":   at,
		},
	})
	if err != nil {
		return false, errors.Wrap(err, "deactivate infraction")
	}
	return res.MatchedCount == 1, nil
}

func (db *MongoDB) SetEnforcement(ctx context.Context, id string, status models.EnforcementStatus, errMsg string, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.collection(infractionsCollection).UpdateOne(ctx, enforcementFilter(id, status), enforcementUpdate(status, errMsg, at))
	if err != nil {
		return false, errors.Wrap(err, "set enforcement status")
	}
	return res.MatchedCount == 1, nil
}

func activeFilter(guildID, userID string, kind models.InfractionKind) bson.M {
	return bson.M{
		"guild_id":  guildID,
		"user_id":   userID,
		"kind":      kind,
		"is_active": true,
	}
}

func extendFilter(id string, until time.Time) bson.M {
	return bson.M{
		"_id":           id,
		"is_active":     true,
		"applied_until": bson.M{"$lt": until},
	}
}

// duePipeline selects due active infractions joined against their guild so
// that inactive guilds and guilds with moderation switched off are skipped
// in the same round trip.
func duePipeline(now time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"is_active":     true,
			"applied_until": bson.M{"$lte": now},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         guildsCollection,
			"localField":   "guild_id",
			"foreignField": "guild_id",
			"as":           "guild",
		}}},
		{{Key: "$match", Value: bson.M{
			"guild.is_active":                   true,
			"guild.settings.moderation.enabled": true,
		}}},
		{{Key: "$project", Value: bson.M{"guild": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "applied_until", Value: 1}}}},
	}
}

func enforcementFailureFilter(maxAttempts int) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{"is_active": true, "enforcement": models.EnforcementFailed},
			bson.M{"is_active": false, "enforcement": models.EnforcementLiftFailed},
		},
		"enforcement_attempts": bson.M{"$lt": maxAttempts},
	}
}

// enforcementFilter pairs apply-side statuses with active records and
// lift-side statuses with inactive ones.
func enforcementFilter(id string, status models.EnforcementStatus) bson.M {
	return bson.M{"_id": id, "is_active": status.ForActive()}
}

func enforcementUpdate(status models.EnforcementStatus, errMsg string, at time.Time) bson.M {
	update := bson.M{
		"$set": bson.M{
			"enforcement":       status,
			"enforcement_error": errMsg,
			"updated_at":        at,
		},
	}
	if status.Failure() {
		update["$inc"] = bson.M{"enforcement_attempts": 1}
	}
	return update
}
