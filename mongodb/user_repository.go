package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitchlyapp/accounts-pitchly/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UserRepository implements domain.UserRepository. Token and profile writes
// are field-level $set updates on services.pitchly, so a write either lands
// all of its fields or none of them, and concurrent writers are
// last-write-wins.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{users: db.Collection(UsersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		// Index creation can fail against pre-existing compatible indexes;
		// don't block startup over it.
		log.Warn().Err(err).Msg("Failed to create user indexes")
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "services.pitchly.id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := r.users.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for users collection: %w", err)
	}
	return nil
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errors.New("user with this ID or Pitchly account already exists")
		}
		log.Error().Err(err).Str("userID", user.ID).Msg("Error creating user in MongoDB")
		return err
	}
	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		log.Error().Err(err).Str("id", id).Msg("Error getting user by ID from MongoDB")
		return nil, err
	}
	return &user, nil
}

// GetUserByPitchlyID retrieves a user by their provider-side account id.
func (r *UserRepository) GetUserByPitchlyID(ctx context.Context, pitchlyID string) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, bson.M{"services.pitchly.id": pitchlyID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		log.Error().Err(err).Str("pitchlyID", pitchlyID).Msg("Error getting user by Pitchly ID from MongoDB")
		return nil, err
	}
	return &user, nil
}

// SetPitchlyAccount replaces the whole services.pitchly sub-record.
func (r *UserRepository) SetPitchlyAccount(ctx context.Context, userID string, account *domain.PitchlyAccount) error {
	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"services.pitchly": account}},
	)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error setting Pitchly account in MongoDB")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetPitchlyTokens writes the four token fields in a single update.
func (r *UserRepository) SetPitchlyTokens(ctx context.Context, userID string, tokens domain.PitchlyTokens) error {
	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"services.pitchly.accessToken":          tokens.AccessToken,
			"services.pitchly.accessTokenExpiresAt": tokens.AccessTokenExpiresAt,
			"services.pitchly.refreshToken":         tokens.RefreshToken,
			"services.pitchly.updatedAt":            tokens.UpdatedAt,
		}},
	)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error setting Pitchly tokens in MongoDB")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// SetPitchlyProfile writes the synced profile fields in a single update.
func (r *UserRepository) SetPitchlyProfile(ctx context.Context, userID string, profile domain.PitchlyProfile) error {
	result, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"services.pitchly.name":      profile.Name,
			"services.pitchly.email":     profile.Email,
			"services.pitchly.picture":   profile.Picture,
			"services.pitchly.updatedAt": profile.UpdatedAt,
		}},
	)
	if err != nil {
		log.Error().Err(err).Str("userID", userID).Msg("Error setting Pitchly profile in MongoDB")
		return err
	}
	if result.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
