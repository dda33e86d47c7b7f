package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/erazemk/zemljevid/internal/model"
)

type accountDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	DisplayName  string             `bson:"user_name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d *accountDoc) model() *model.Account {
	return &model.Account{
		ID:           d.ID.Hex(),
		DisplayName:  d.DisplayName,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         d.Role,
		CreatedAt:    d.CreatedAt,
	}
}

// accountUpdate builds the $set document for the fields present in patch.
func accountUpdate(patch model.AccountPatch) bson.M {
	set := bson.M{}
	if patch.DisplayName != nil {
		set["user_name"] = *patch.DisplayName
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.PasswordHash != nil {
		set["password_hash"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}
	return bson.M{"$set": set}
}

func (s *Store) findAccount(ctx context.Context, op string, filter bson.M) (*model.Account, error) {
	var d accountDoc
	err := s.accounts.FindOne(ctx, filter).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d.model(), nil
}

func (s *Store) findAccounts(ctx context.Context, op string, filter bson.M) ([]model.Account, error) {
	cur, err := s.accounts.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	var accounts []model.Account
	for cur.Next(ctx) {
		var d accountDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding account: %w", err)
		}
		accounts = append(accounts, *d.model())
	}
	return accounts, cur.Err()
}

// ListAccounts returns all accounts ordered by display name.
func (s *Store) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.findAccounts(ctx, "listing accounts", bson.M{})
}

// FindAccountsByName returns the accounts with the given display name.
func (s *Store) FindAccountsByName(ctx context.Context, name string) ([]model.Account, error) {
	return s.findAccounts(ctx, "finding accounts by name", bson.M{"user_name": name})
}

// GetAccount retrieves an account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return s.findAccount(ctx, "getting account", bson.M{"_id": oid})
}

// GetAccountByEmail retrieves an account by email address.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	return s.findAccount(ctx, "getting account by email", bson.M{"email": email})
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	d := accountDoc{
		DisplayName:  acc.DisplayName,
		Email:        acc.Email,
		PasswordHash: acc.PasswordHash,
		Role:         acc.Role,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := s.accounts.InsertOne(ctx, d)
	if dup := duplicate("email", err); dup != nil {
		return nil, dup
	}
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	d.ID = res.InsertedID.(primitive.ObjectID)
	return d.model(), nil
}

// UpdateAccount atomically applies patch and returns the updated account.
func (s *Store) UpdateAccount(ctx context.Context, id string, patch model.AccountPatch) (*model.Account, error) {
	if patch.Empty() {
		return s.GetAccount(ctx, id)
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var d accountDoc
	err = s.accounts.FindOneAndUpdate(ctx, bson.M{"_id": oid}, accountUpdate(patch),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if dup := duplicate("email", err); dup != nil {
		return nil, dup
	}
	if err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}
	return d.model(), nil
}

// DeleteAccount removes an account and returns it.
func (s *Store) DeleteAccount(ctx context.Context, id string) (*model.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	var d accountDoc
	err = s.accounts.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&d)
	if noDocuments(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("deleting account: %w", err)
	}
	return d.model(), nil
}

// CountAccounts returns the number of accounts.
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	n, err := s.accounts.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return int(n), nil
}
