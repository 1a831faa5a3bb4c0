package mongo

import (
	"context"
	"time"

	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/shortlink"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditRepository keeps a trail of short-link resolution attempts.
type AuditRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditRepository(db *mongo.Database, logger observability.Logger) *AuditRepository {
	return &AuditRepository{coll: db.Collection("link_resolutions"), logger: logger}
}

func (r *AuditRepository) RecordResolution(ctx context.Context, code, outcome string, eventID int) error {
	doc := bson.M{
		"code":        code,
		"outcome":     outcome,
		"event_id":    eventID,
		"resolved_at": time.Now().UTC(),
	}
	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

type resolutionDoc struct {
	Code       string    `bson:"code"`
	Outcome    string    `bson:"outcome"`
	EventID    int       `bson:"event_id"`
	ResolvedAt time.Time `bson:"resolved_at"`
}

// RecentResolutions returns the newest audit entries for a code, newest
// first.
func (r *AuditRepository) RecentResolutions(ctx context.Context, code string, limit int64) ([]shortlink.Resolution, error) {
	opts := options.Find().SetSort(bson.D{{Key: "resolved_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"code": code}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []resolutionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]shortlink.Resolution, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, shortlink.Resolution{
			Code:       d.Code,
			Outcome:    d.Outcome,
			EventID:    d.EventID,
			ResolvedAt: d.ResolvedAt,
		})
	}
	return entries, nil
}
