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
// MongoDB Thread Adapter
// =============================================================================

const collectionThreads = "threads"

// ThreadAdapter implements out.ThreadRepository using MongoDB.
type ThreadAdapter struct {
	collection *mongo.Collection
}

// NewThreadAdapter creates a new MongoDB thread adapter.
func NewThreadAdapter(db *mongo.Database) *ThreadAdapter {
	return &ThreadAdapter{
		collection: db.Collection(collectionThreads),
	}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *ThreadAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			// 자연 키 - 계정 내에서 externalId 유일
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "external_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{
			// 타임라인 keyset 정렬용
			Keys: bson.D{
				{Key: "account_id", Value: 1},
				{Key: "last_message_date", Value: -1},
				{Key: "_id", Value: -1},
			},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type threadDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	AccountID  string             `bson:"account_id"`
	ExternalID string             `bson:"external_id"`
	HistoryID  string             `bson:"history_id,omitempty"`

	Subject         string    `bson:"subject,omitempty"`
	Snippet         string    `bson:"snippet,omitempty"`
	Participants    []string  `bson:"participants,omitempty"`
	LastMessageDate time.Time `bson:"last_message_date"`
	MessageCount    int       `bson:"message_count"`

	Summary string `bson:"summary,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// =============================================================================
// Upsert
// =============================================================================

// UpsertByExternalID replaces every derived field of the thread keyed by
// (accountId, externalId) and returns the stable internal id.
//
// summary와 created_at은 $set 대상이 아니므로 재동기화에도 보존된다.
// summary는 외부 AI 협력자 소유 필드라 여기서 덮어쓰면 안 된다.
func (a *ThreadAdapter) UpsertByExternalID(ctx context.Context, thread *domain.Thread) (string, error) {
	now := time.Now()

	filter := bson.M{
		"account_id":  thread.AccountID,
		"external_id": thread.ExternalID,
	}

	update := bson.M{
		"$set": bson.M{
			"history_id":        thread.HistoryID,
			"subject":           thread.Subject,
			"snippet":           thread.Snippet,
			"participants":      thread.Participants,
			"last_message_date": thread.LastMessageDate,
			"message_count":     thread.MessageCount,
			"updated_at":        now,
		},
		"$setOnInsert": bson.M{
			"account_id":  thread.AccountID,
			"external_id": thread.ExternalID,
			"created_at":  now,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc threadDocument
	if err := a.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to upsert thread %s: %w", thread.ExternalID, err)
	}

	return doc.ID.Hex(), nil
}

// =============================================================================
// Reads
// =============================================================================

// GetByExternalID retrieves a thread. Returns (nil, nil) when absent.
func (a *ThreadAdapter) GetByExternalID(ctx context.Context, accountID, externalID string) (*domain.Thread, error) {
	filter := bson.M{
		"account_id":  accountID,
		"external_id": externalID,
	}

	var doc threadDocument
	if err := a.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return a.toDomain(&doc), nil
}

// ListByAccount returns threads ordered by lastMessageDate desc, _id
// desc. Before가 있으면 해당 키보다 엄격히 뒤의 항목만 반환한다.
func (a *ThreadAdapter) ListByAccount(ctx context.Context, accountID string, query out.ThreadQuery) ([]*domain.Thread, error) {
	filter := bson.M{"account_id": accountID}

	if query.Before != nil {
		cursorID, err := primitive.ObjectIDFromHex(query.Before.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor id %q: %w", query.Before.ID, err)
		}
		filter["$or"] = bson.A{
			bson.M{"last_message_date": bson.M{"$lt": query.Before.LastMessageDate}},
			bson.M{
				"last_message_date": query.Before.LastMessageDate,
				"_id":               bson.M{"$lt": cursorID},
			},
		}
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: "last_message_date", Value: -1},
			{Key: "_id", Value: -1},
		})
	if query.Limit > 0 {
		opts.SetLimit(int64(query.Limit))
	}

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer cursor.Close(ctx)

	var threads []*domain.Thread
	for cursor.Next(ctx) {
		var doc threadDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode thread: %w", err)
		}
		threads = append(threads, a.toDomain(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("thread cursor error: %w", err)
	}

	return threads, nil
}

// CountByAccount returns the total thread count for an account.
func (a *ThreadAdapter) CountByAccount(ctx context.Context, accountID string) (int64, error) {
	count, err := a.collection.CountDocuments(ctx, bson.M{"account_id": accountID})
	if err != nil {
		return 0, fmt.Errorf("failed to count threads: %w", err)
	}
	return count, nil
}

// =============================================================================
// Conversion
// =============================================================================

func (a *ThreadAdapter) toDomain(doc *threadDocument) *domain.Thread {
	return &domain.Thread{
		ID:              doc.ID.Hex(),
		AccountID:       doc.AccountID,
		ExternalID:      doc.ExternalID,
		HistoryID:       doc.HistoryID,
		Subject:         doc.Subject,
		Snippet:         doc.Snippet,
		Participants:    doc.Participants,
		LastMessageDate: doc.LastMessageDate,
		MessageCount:    doc.MessageCount,
		Summary:         doc.Summary,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.ThreadRepository = (*ThreadAdapter)(nil)
