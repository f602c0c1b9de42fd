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
	"mirror_server/pkg/crypto"
	"mirror_server/pkg/logger"
)

// =============================================================================
// MongoDB Account Adapter
// =============================================================================

const collectionAccounts = "accounts"

// AccountAdapter implements out.AccountRepository using MongoDB.
type AccountAdapter struct {
	collection        *mongo.Collection
	encryptionEnabled bool
}

// NewAccountAdapter creates a new MongoDB account adapter.
func NewAccountAdapter(db *mongo.Database) *AccountAdapter {
	// Try to initialize token encryption
	err := crypto.Init()
	encryptionEnabled := err == nil
	if !encryptionEnabled {
		logger.Warn("Token encryption disabled: %v", err)
	}

	return &AccountAdapter{
		collection:        db.Collection(collectionAccounts),
		encryptionEnabled: encryptionEnabled,
	}
}

// decryptToken decrypts a token if it appears to be encrypted
func (a *AccountAdapter) decryptToken(token string) string {
	if token == "" || !crypto.IsEncrypted(token) {
		return token
	}
	decrypted, err := crypto.DecryptToken(token)
	if err != nil {
		// Token might not be encrypted (legacy), return as-is
		return token
	}
	return decrypted
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *AccountAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "google_id", Value: 1}},
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type accountDocument struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Email    string             `bson:"email"`
	GoogleID string             `bson:"google_id,omitempty"`

	AccessToken  string    `bson:"access_token,omitempty"`
	RefreshToken string    `bson:"refresh_token,omitempty"`
	TokenExpiry  time.Time `bson:"token_expiry,omitempty"`

	// 동기화 커서 - 토큰 부재가 곧 완료 상태
	NextPageToken string    `bson:"next_page_token,omitempty"`
	SyncComplete  bool      `bson:"sync_complete"`
	LastSyncedAt  time.Time `bson:"last_synced_at,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// =============================================================================
// Operations
// =============================================================================

// GetByID retrieves an account. Returns (nil, nil) when absent.
func (a *AccountAdapter) GetByID(ctx context.Context, accountID string) (*domain.Account, error) {
	objectID, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, fmt.Errorf("invalid account id %q: %w", accountID, err)
	}

	var doc accountDocument
	if err := a.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return a.toDomain(&doc), nil
}

// GetByEmail retrieves an account by email. Returns (nil, nil) when absent.
func (a *AccountAdapter) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var doc accountDocument
	if err := a.collection.FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}

	return a.toDomain(&doc), nil
}

// SaveCursor persists the sync cursor after a fully committed pass.
// 토큰이 없으면 필드를 제거해 caught-up 상태를 표현한다.
func (a *AccountAdapter) SaveCursor(ctx context.Context, accountID string, cursor domain.SyncCursor, syncedAt time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return fmt.Errorf("invalid account id %q: %w", accountID, err)
	}

	set := bson.M{
		"sync_complete":  cursor.Complete(),
		"last_synced_at": syncedAt,
		"updated_at":     time.Now(),
	}

	update := bson.M{"$set": set}
	if token, ok := cursor.Token(); ok {
		set["next_page_token"] = token
	} else {
		update["$unset"] = bson.M{"next_page_token": ""}
	}

	result, err := a.collection.UpdateByID(ctx, objectID, update)
	if err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("account %s not found", accountID)
	}

	return nil
}

// =============================================================================
// Conversion
// =============================================================================

func (a *AccountAdapter) toDomain(doc *accountDocument) *domain.Account {
	return &domain.Account{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		GoogleID:     doc.GoogleID,
		AccessToken:  a.decryptToken(doc.AccessToken),
		RefreshToken: a.decryptToken(doc.RefreshToken),
		TokenExpiry:  doc.TokenExpiry,
		Cursor:       domain.CursorMidSync(doc.NextPageToken),
		LastSyncedAt: doc.LastSyncedAt,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.AccountRepository = (*AccountAdapter)(nil)
