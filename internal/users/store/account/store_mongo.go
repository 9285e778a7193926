package account

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"usermgmt/internal/users/models"
	id "usermgmt/pkg/domain"
	"usermgmt/pkg/platform/sentinel"
)

const usersCollection = "users"

// userDocument is the Mongo shape of an account. Revision increments on every
// write and guards conditional replaces.
type userDocument struct {
	ID                 string    `bson:"_id"`
	Email              string    `bson:"email"`
	Phone              string    `bson:"phone"`
	Username           string    `bson:"username,omitempty"`
	UsernameKey        string    `bson:"username_key,omitempty"`
	FullName           string    `bson:"full_name"`
	DateOfBirth        time.Time `bson:"date_of_birth"`
	ProfileVersion     int       `bson:"profile_version"`
	PasswordHash       string    `bson:"password_hash"`
	Status             string    `bson:"status"`
	DeactivationReason string    `bson:"deactivation_reason,omitempty"`
	Role               string    `bson:"role"`
	TermsVersion       string    `bson:"terms_version"`
	PrivacyVersion     string    `bson:"privacy_version"`
	MarketingConsent   bool      `bson:"marketing_consent"`
	RegistrationIP     string    `bson:"registration_ip,omitempty"`
	RegistrationDevice string    `bson:"registration_device,omitempty"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
	Revision           int64     `bson:"revision"`
}

// MongoStore persists accounts as documents. Execute does not lock; it
// replaces the document only if its revision is unchanged since the read and
// reports sentinel.ErrConflict otherwise.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique and sort indexes. Safe to call on every start.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_email_key")},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetUnique(true).SetName("users_phone_key")},
		{
			Keys: bson.D{{Key: "username_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_username_key").
				SetPartialFilterExpression(bson.M{"username_key": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}, Options: options.Index().SetName("users_created_at_idx")},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, userID id.UserID) (*models.Account, error) {
	doc, err := s.findDoc(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return nil, err
	}
	return doc.toAccount()
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (s *MongoStore) FindByPhone(ctx context.Context, phone string) (*models.Account, error) {
	return s.findAccount(ctx, bson.M{"phone": strings.TrimSpace(phone)})
}

func (s *MongoStore) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	key := usernameKey(username)
	if key == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.findAccount(ctx, bson.M{"username_key": key})
}

func (s *MongoStore) findAccount(ctx context.Context, filter bson.M) (*models.Account, error) {
	doc, err := s.findDoc(ctx, filter)
	if err != nil {
		return nil, err
	}
	return doc.toAccount()
}

func (s *MongoStore) findDoc(ctx context.Context, filter bson.M) (*userDocument, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &doc, nil
}

func (s *MongoStore) Create(ctx context.Context, account *models.Account) error {
	doc := newUserDocument(account.Snapshot(), 1)
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("create user: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *MongoStore) Execute(ctx context.Context, userID id.UserID, validate func(*models.Account) error, mutate func(*models.Account)) (*models.Account, error) {
	doc, err := s.findDoc(ctx, bson.M{"_id": userID.String()})
	if err != nil {
		return nil, err
	}
	account, err := doc.toAccount()
	if err != nil {
		return nil, err
	}
	if err := validate(account); err != nil {
		return nil, err
	}
	mutate(account)

	next := newUserDocument(account.Snapshot(), doc.Revision+1)
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID, "revision": doc.Revision}, next)
	if err != nil {
		return nil, fmt.Errorf("replace user: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, fmt.Errorf("user %s changed concurrently: %w", userID, sentinel.ErrConflict)
	}
	return account, nil
}

// List runs the count and the page query concurrently.
func (s *MongoStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Account, int64, error) {
	query := bson.M{}
	if term := strings.TrimSpace(filter.SearchTerm); term != "" {
		pattern := bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
		query["$or"] = bson.A{bson.M{"full_name": pattern}, bson.M{"email": pattern}}
	}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	var total int64
	var docs []userDocument
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.coll.CountDocuments(gctx, query)
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		opts := options.Find().
			SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}).
			SetSkip(int64(filter.Offset())).
			SetLimit(int64(filter.PageSize))
		cur, err := s.coll.Find(gctx, query, opts)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		if err := cur.All(gctx, &docs); err != nil {
			return fmt.Errorf("decode users: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	items := make([]*models.Account, 0, len(docs))
	for i := range docs {
		account, err := docs[i].toAccount()
		if err != nil {
			return nil, 0, err
		}
		items = append(items, account)
	}
	return items, total, nil
}

func newUserDocument(r models.Record, revision int64) userDocument {
	return userDocument{
		ID:                 r.ID.String(),
		Email:              r.Email,
		Phone:              r.Phone,
		Username:           r.Username,
		UsernameKey:        usernameKey(r.Username),
		FullName:           r.FullName,
		DateOfBirth:        r.DateOfBirth,
		ProfileVersion:     r.ProfileVersion,
		PasswordHash:       r.PasswordHash,
		Status:             r.Status.String(),
		DeactivationReason: r.DeactivationReason,
		Role:               r.Role.String(),
		TermsVersion:       r.TermsVersion,
		PrivacyVersion:     r.PrivacyVersion,
		MarketingConsent:   r.MarketingConsent,
		RegistrationIP:     r.RegistrationIP,
		RegistrationDevice: r.RegistrationDevice,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
		Revision:           revision,
	}
}

func (d *userDocument) toAccount() (*models.Account, error) {
	userID, err := id.ParseUserID(d.ID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	role, err := models.ParseRole(d.Role)
	if err != nil {
		return nil, fmt.Errorf("parse role %q: %w", d.Role, err)
	}
	return models.RestoreAccount(models.Record{
		ID:                 userID,
		Email:              d.Email,
		Phone:              d.Phone,
		Username:           d.Username,
		FullName:           d.FullName,
		DateOfBirth:        d.DateOfBirth.UTC(),
		ProfileVersion:     d.ProfileVersion,
		PasswordHash:       d.PasswordHash,
		Status:             models.Status(d.Status),
		DeactivationReason: d.DeactivationReason,
		Role:               role,
		TermsVersion:       d.TermsVersion,
		PrivacyVersion:     d.PrivacyVersion,
		MarketingConsent:   d.MarketingConsent,
		RegistrationIP:     d.RegistrationIP,
		RegistrationDevice: d.RegistrationDevice,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}), nil
}
