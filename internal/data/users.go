// Package data provides DB models and stores.
package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersStore performs user DB operations.
type UsersStore struct {
	// coll is reference to "users" collection in MongoDB
	coll *mongo.Collection
}

// NewUsersStore returns a UsersStore using the provided collection.
func NewUsersStore(coll *mongo.Collection) *UsersStore {
	return &UsersStore{coll: coll}
}

// UserPatch describes a partial user update. Nil fields are left
// untouched; non-nil fields are written as given.
type UserPatch struct {
	DisplayName *string
	FCMToken    *string
}

// IsZero reports whether the patch changes nothing.
func (p UserPatch) IsZero() bool {
	return p.DisplayName == nil && p.FCMToken == nil
}

// CreateUser inserts a new user document. The _id is the caller-supplied
// userId, so InsertOne is the conditional write: if the id or one of
// the unique alternate keys (email, phone) is already taken, MongoDB
// rejects the insert and CreateUser returns ErrDuplicateKey.
func (u *UsersStore) CreateUser(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := u.coll.InsertOne(ctx, user)
	if err != nil {
		// Duplicate _id, email or phone_number (unique index violation)
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("users: insert %s: %w", user.ID, ErrDuplicateKey)
		}
		// Other database errors (connection, validation, etc)
		return err
	}
	return nil
}

// GetUserByID finds a user by its id.
func (u *UsersStore) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		// No document found: user never existed or was deleted
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("users: %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail finds a user by normalized email.
func (u *UsersStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("users: email %s: %w", email, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByPhone finds a user by normalized phone number.
func (u *UsersStore) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	var user User
	err := u.coll.FindOne(ctx, bson.M{"phone_number": phone}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("users: phone %s: %w", phone, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// UserExists checks if a user id is taken.
func (u *UsersStore) UserExists(ctx context.Context, id string) (bool, error) {
	// CountDocuments is cheaper than FindOne when only existence matters
	count, err := u.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateUser applies a partial update to an existing user and returns
// the updated document. The existence condition is the filter itself:
// when no document matches, FindOneAndUpdate reports ErrNoDocuments and
// UpdateUser returns ErrNotFound — the record-changed-or-vanished case
// folded into one round trip.
func (u *UsersStore) UpdateUser(ctx context.Context, id string, patch UserPatch) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.DisplayName != nil {
		set["display_name"] = *patch.DisplayName
	}
	if patch.FCMToken != nil {
		set["fcm_token"] = *patch.FCMToken
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user User
	err := u.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("users: %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &user, nil
}

// DeleteUser removes a user document. Deleting an absent user is not an
// error; the operation is an unconditional "make it gone".
func (u *UsersStore) DeleteUser(ctx context.Context, id string) error {
	_, err := u.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
