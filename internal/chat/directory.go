package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/normalize"
)

// Directory manages user records: registration under a unique identity
// key, lookups, partial profile updates and deletion.
type Directory struct {
	users UserStore
	tasks Dispatcher
	log   *slog.Logger
}

// NewDirectory returns a Directory backed by the given store. A nil
// logger falls back to slog.Default().
func NewDirectory(users UserStore, tasks Dispatcher, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{users: users, tasks: tasks, log: log}
}

// RegisterWithEmail creates a user keyed by a unique email address.
// The lookup before the insert exists only to produce a friendly
// duplicate error without burning a write; the insert against the
// unique indexes is what actually guarantees uniqueness, so a racing
// registration still loses cleanly with ErrAlreadyExists.
func (d *Directory) RegisterWithEmail(ctx context.Context, userID, email, displayName, fcmToken string) (*data.User, error) {
	userID = strings.TrimSpace(userID)
	displayName = strings.TrimSpace(displayName)
	email = normalize.Email(email)
	if userID == "" || displayName == "" || email == "" {
		return nil, fmt.Errorf("%w: userId, email and displayName are required", ErrInvalidArgument)
	}
	if !normalize.ValidEmail(email) {
		return nil, fmt.Errorf("%w: malformed email %q", ErrInvalidArgument, email)
	}

	if _, err := d.users.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: email %s is already registered", ErrAlreadyExists, email)
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	user := &data.User{
		ID:          userID,
		DisplayName: displayName,
		Email:       email,
		FCMToken:    fcmToken,
	}
	if err := d.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, data.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: user %s", ErrAlreadyExists, userID)
		}
		return nil, err
	}

	d.log.Info("user registered", "user_id", userID, "identity", "email")
	return user, nil
}

// RegisterWithPhone creates a user keyed by a unique phone number.
// Same two-step shape as RegisterWithEmail.
func (d *Directory) RegisterWithPhone(ctx context.Context, userID, phoneNumber, displayName, fcmToken string) (*data.User, error) {
	userID = strings.TrimSpace(userID)
	displayName = strings.TrimSpace(displayName)
	phoneNumber = normalize.Phone(phoneNumber)
	if userID == "" || displayName == "" || phoneNumber == "" {
		return nil, fmt.Errorf("%w: userId, phoneNumber and displayName are required", ErrInvalidArgument)
	}
	if !normalize.ValidPhone(phoneNumber) {
		return nil, fmt.Errorf("%w: malformed phone number %q", ErrInvalidArgument, phoneNumber)
	}

	if _, err := d.users.GetUserByPhone(ctx, phoneNumber); err == nil {
		return nil, fmt.Errorf("%w: phone number %s is already registered", ErrAlreadyExists, phoneNumber)
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	user := &data.User{
		ID:          userID,
		DisplayName: displayName,
		PhoneNumber: phoneNumber,
		FCMToken:    fcmToken,
	}
	if err := d.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, data.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: user %s", ErrAlreadyExists, userID)
		}
		return nil, err
	}

	d.log.Info("user registered", "user_id", userID, "identity", "phone")
	return user, nil
}

// LookupByEmail returns the user holding an email address, or nil when
// nobody does. Absence is an answer here, not a failure.
func (d *Directory) LookupByEmail(ctx context.Context, email string) (*data.User, error) {
	email = normalize.Email(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidArgument)
	}
	user, err := d.users.GetUserByEmail(ctx, email)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// LookupByPhone returns the user holding a phone number, or nil.
func (d *Directory) LookupByPhone(ctx context.Context, phoneNumber string) (*data.User, error) {
	phoneNumber = normalize.Phone(phoneNumber)
	if phoneNumber == "" {
		return nil, fmt.Errorf("%w: phoneNumber is required", ErrInvalidArgument)
	}
	user, err := d.users.GetUserByPhone(ctx, phoneNumber)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get returns a user by id, or nil when no such user exists. Several
// other operations use that nil to detect invalid identities.
func (d *Directory) Get(ctx context.Context, userID string) (*data.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	user, err := d.users.GetUserByID(ctx, userID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies a partial profile change and schedules snapshot repair
// for the user's historical messages. The update itself commits
// synchronously; repair propagates out-of-band and may lag, so reads of
// old messages can briefly show the previous profile.
func (d *Directory) Update(ctx context.Context, userID string, patch data.UserPatch) (*data.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if patch.IsZero() {
		return nil, fmt.Errorf("%w: at least one of displayName or fcmToken must be set", ErrInvalidArgument)
	}
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return nil, fmt.Errorf("%w: displayName must not be empty", ErrInvalidArgument)
	}

	user, err := d.users.UpdateUser(ctx, userID, patch)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}

	// The update has already committed; a dispatch failure only delays
	// snapshot convergence, it cannot fail the call.
	if err := d.tasks.Dispatch(ctx, OpRepairSenderSnapshots, RepairTask{UserID: userID}); err != nil {
		d.log.Warn("failed to schedule snapshot repair", "user_id", userID, "error", err)
	}

	d.log.Info("user updated", "user_id", userID)
	return user, nil
}

// Delete removes the user record. Memberships and past messages are
// left alone; a deleted user's snapshots simply stop being repaired.
func (d *Directory) Delete(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if err := d.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	d.log.Info("user deleted", "user_id", userID)
	return nil
}
