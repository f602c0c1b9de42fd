package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mirror_server/core/domain"
	"mirror_server/core/port/out"
)

// =============================================================================
// MongoDB Message Adapter
// =============================================================================

const collectionMessages = "messages"

// MessageAdapter implements out.MessageRepository using MongoDB.
type MessageAdapter struct {
	collection *mongo.Collection
}

// NewMessageAdapter creates a new MongoDB message adapter.
func NewMessageAdapter(db *mongo.Database) *MessageAdapter {
	return &MessageAdapter{
		collection: db.Collection(collectionMessages),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *MessageAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// 자연 키
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "external_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// 스레드 상세 조회용 (날짜 오름차순)
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "thread_ref", Value: 1},
				{Key: "date", Value: 1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type messageDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AccountID  string             `bson:"account_id"`
	ExternalID string             `bson:"external_id"`

	ThreadRef        string `bson:"thread_ref"`
	ExternalThreadID string `bson:"external_thread_id"`

	From    string   `bson:"from,omitempty"`
	To      []string `bson:"to,omitempty"`
	Subject string   `bson:"subject,omitempty"`
	Body    string   `bson:"body,omitempty"`
	Snippet string   `bson:"snippet,omitempty"`

	Date     time.Time `bson:"date"`
	LabelIDs []string  `bson:"label_ids,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// =============================================================================
// Upsert
// =============================================================================

// UpsertByExternalID replaces every field of the message keyed by
// (accountId, externalId) and returns the stable internal id.
func (a *MessageAdapter) UpsertByExternalID(ctx context.Context, message *domain.Message) (string, error) {
	now := time.Now()

	filter := bson.M{
		"account_id":  message.AccountID,
		"external_id": message.ExternalID,
	}

	update := bson.M{
		"$set": bson.M{
			"thread_ref":         message.ThreadRef,
			"external_thread_id": message.ExternalThreadID,
			"from":               message.From,
			"to":                 message.To,
			"subject":            message.Subject,
			"body":               message.Body,
			"snippet":            message.Snippet,
			"date":               message.Date,
			"label_ids":          message.LabelIDs,
			"updated_at":         now,
		},
		"$setOnInsert": bson.M{
			"account_id":  message.AccountID,
			"external_id": message.ExternalID,
			"created_at":  now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc messageDocument
	if err := a.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to upsert message %s: %w", message.ExternalID, err)
	}

	return doc.ID.Hex(), nil
}

// =============================================================================
// Reads
// =============================================================================

// ListByThread returns a thread's messages ascending by date.
func (a *MessageAdapter) ListByThread(ctx context.Context, accountID, threadRef string) ([]*domain.Message, error) {
	filter := bson.M{
		"account_id": accountID,
		"thread_ref": threadRef,
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*domain.Message
	for cursor.Next(ctx) {
		var doc messageDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, a.toDomain(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("message cursor error: %w", err)
	}

	return messages, nil
}

// =============================================================================
// Conversion
// =============================================================================

func (a *MessageAdapter) toDomain(doc *messageDocument) *domain.Message {
	return &domain.Message{
		ID:               doc.ID.Hex(),
		AccountID:        doc.AccountID,
		ExternalID:       doc.ExternalID,
		ThreadRef:        doc.ThreadRef,
		ExternalThreadID: doc.ExternalThreadID,
		From:             doc.From,
		To:               doc.To,
		Subject:          doc.Subject,
		Body:             doc.Body,
		Snippet:          doc.Snippet,
		Date:             doc.Date,
		LabelIDs:         doc.LabelIDs,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.MessageRepository = (*MessageAdapter)(nil)
