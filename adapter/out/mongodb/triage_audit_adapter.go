package mongodb

import (
	"context"
	"time"

	"triage_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionRoutingAudit = "routing_audit"

	// Audit documents expire after 90 days.
	auditRetention = 90 * 24 * time.Hour
)

// AuditAdapter persists routing events to MongoDB for the audit trail.
// It implements out.AnalyticsSink.
type AuditAdapter struct {
	db         *mongo.Database
	collection *mongo.Collection
}

// NewAuditAdapter creates a new MongoDB audit adapter.
func NewAuditAdapter(db *mongo.Database) *AuditAdapter {
	collection := db.Collection(collectionRoutingAudit)
	return &AuditAdapter{
		db:         db,
		collection: collection,
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *AuditAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "tenant_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "message_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// auditDocument wraps a routing event with retention metadata.
type auditDocument struct {
	*out.RoutingEvent `bson:",inline"`

	ExpiresAt time.Time `bson:"expires_at"`
}

// Record stores one routing event.
func (a *AuditAdapter) Record(ctx context.Context, event *out.RoutingEvent) error {
	doc := auditDocument{
		RoutingEvent: event,
		ExpiresAt:    event.Timestamp.Add(auditRetention),
	}

	_, err := a.collection.InsertOne(ctx, doc)
	return err
}

// RecentByTenant returns the newest events for a tenant, newest first.
func (a *AuditAdapter) RecentByTenant(ctx context.Context, tenantID string, limit int64) ([]*out.RoutingEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.collection.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*out.RoutingEvent
	for cursor.Next(ctx) {
		doc := auditDocument{RoutingEvent: &out.RoutingEvent{}}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		events = append(events, doc.RoutingEvent)
	}

	return events, cursor.Err()
}

var _ out.AnalyticsSink = (*AuditAdapter)(nil)
