package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/truefeedback/feedback-system/internal/core/domain"
	"github.com/truefeedback/feedback-system/internal/core/ports"
)

const collectionUsers = "users"

// index names match EnsureIndexes; duplicate-key errors are attributed to a
// field by looking for these names in the server message.
const (
	indexUsername = "username_unique"
	indexEmail    = "email_unique"
)

// UserRepository implements ports.UserRepository on a single users collection
// with messages embedded as a sub-document array.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

type mongoUser struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty"`
	Username            string             `bson:"username"`
	Email               string             `bson:"email"`
	PasswordHash        string             `bson:"password_hash,omitempty"`
	VerifyCode          string             `bson:"verify_code,omitempty"`
	VerifyCodeExpiry    *time.Time         `bson:"verify_code_expiry,omitempty"`
	IsVerified          bool               `bson:"is_verified"`
	IsAcceptingMessages bool               `bson:"is_accepting_messages"`
	Messages            []domain.Message   `bson:"messages"`
}

func toDomain(mu *mongoUser) *domain.User {
	return &domain.User{
		ID:                  mu.ID.Hex(),
		Username:            mu.Username,
		Email:               mu.Email,
		PasswordHash:        mu.PasswordHash,
		VerifyCode:          mu.VerifyCode,
		VerifyCodeExpiry:    mu.VerifyCodeExpiry,
		IsVerified:          mu.IsVerified,
		IsAcceptingMessages: mu.IsAcceptingMessages,
		Messages:            mu.Messages,
	}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return toDomain(&mu), nil
}

func (r *UserRepository) FindVerifiedByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username, "is_verified": true})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// Create inserts a new account. Unique-index violations are the authoritative
// uniqueness arbitration and are translated to the matching conflict error.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := mongoUser{
		Username:            user.Username,
		Email:               user.Email,
		PasswordHash:        user.PasswordHash,
		VerifyCode:          user.VerifyCode,
		VerifyCodeExpiry:    user.VerifyCodeExpiry,
		IsVerified:          user.IsVerified,
		IsAcceptingMessages: user.IsAcceptingMessages,
		Messages:            user.Messages,
	}
	if doc.Messages == nil {
		doc.Messages = []domain.Message{}
	}

	res, err := r.col.InsertOne(ctx, doc)
	if err != nil {
		if dupErr := translateDuplicateKey(err); dupErr != nil {
			return nil, dupErr
		}
		return nil, err
	}

	created := *user
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		created.ID = oid.Hex()
	}
	return &created, nil
}

// RefreshPending rewrites the credentials and code of a still-pending account
// in place. The is_verified filter makes the update conditional: a concurrent
// verification that already flipped the account leaves nothing to match.
func (r *UserRepository) RefreshPending(ctx context.Context, email string, refresh ports.PendingRefresh) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	expiry := refresh.VerifyCodeExpiry.UTC()
	res, err := r.col.UpdateOne(ctx,
		bson.M{"email": email, "is_verified": false},
		bson.M{"$set": bson.M{
			"password_hash":      refresh.PasswordHash,
			"verify_code":        refresh.VerifyCode,
			"verify_code_expiry": expiry,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// ConsumeVerification flips the account to verified and removes the code and
// expiry in one conditional update keyed on the still-pending state, so a
// consumed code cannot be replayed and two racing verifies cannot both match.
func (r *UserRepository) ConsumeVerification(ctx context.Context, username string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"username": username, "is_verified": false},
		bson.M{
			"$set":   bson.M{"is_verified": true},
			"$unset": bson.M{"verify_code": "", "verify_code_expiry": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// AppendMessage performs the atomic check-and-append: the acceptance flag is
// part of the update filter, so the push happens only if the flag is true at
// the instant of the write. A zero match is disambiguated with a follow-up
// existence probe.
func (r *UserRepository) AppendMessage(ctx context.Context, username string, msg domain.Message) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"username": username, "is_accepting_messages": true},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	err = r.col.FindOne(ctx, bson.M{"username": username},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrRecipientNotFound
	}
	if err != nil {
		return err
	}
	return domain.ErrMessagesDisabled
}

// SetAcceptingMessages persists the flag and returns the value it replaced.
func (r *UserRepository) SetAcceptingMessages(ctx context.Context, id string, enabled bool) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var before struct {
		IsAcceptingMessages bool `bson:"is_accepting_messages"`
	}
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"is_accepting_messages": enabled}},
		options.FindOneAndUpdate().
			SetReturnDocument(options.Before).
			SetProjection(bson.M{"is_accepting_messages": 1}),
	).Decode(&before)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, domain.ErrUserNotFound
		}
		return false, err
	}
	return before.IsAcceptingMessages, nil
}

func (r *UserRepository) GetAcceptingMessages(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		IsAcceptingMessages bool `bson:"is_accepting_messages"`
	}
	err = r.col.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"is_accepting_messages": 1})).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, domain.ErrUserNotFound
		}
		return false, err
	}
	return doc.IsAcceptingMessages, nil
}

// ListMessages sorts server-side: the embedded array is unwound and ordered
// by the aggregation pipeline, so the collection is never loaded into process
// memory for an in-process sort. $sort alone is not stable, so the array
// index recorded by $unwind breaks created_at ties in insertion order.
func (r *UserRepository) ListMessages(ctx context.Context, id string) ([]domain.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": oid}}},
		{{Key: "$unwind", Value: bson.M{"path": "$messages", "includeArrayIndex": "idx"}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "messages.created_at", Value: -1},
			{Key: "idx", Value: 1},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$messages"}}},
	}

	cursor, err := r.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []domain.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	if len(messages) > 0 {
		return messages, nil
	}

	// $unwind drops users with an empty array, so zero rows means either a
	// missing account or simply no messages yet.
	err = r.col.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// EnsureIndexes creates the unique indexes that arbitrate username and email
// ownership between verified and pending accounts.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUsername),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// translateDuplicateKey attributes a unique-index violation to the field it
// protects. Returns nil for non-duplicate errors.
func translateDuplicateKey(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexUsername):
		return domain.ErrUsernameTaken
	case strings.Contains(msg, indexEmail):
		return domain.ErrEmailTaken
	default:
		return domain.ErrUsernameTaken
	}
}
