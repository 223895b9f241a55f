package chat

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
)

// Domain failure kinds. Operations wrap these with call-site detail via
// fmt.Errorf("%w: ..."), so callers classify with errors.Is and users
// still see what went wrong.
var (
	// ErrInvalidArgument marks malformed or missing input.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks a hard absence: the operation needed an entity
	// that does not exist. Lookup-style operations return nil instead —
	// absence there is a value, not a failure.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists marks a duplicate registration: the userId or the
	// alternate identity key is already taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrAlreadyMember rejects joining a conversation twice.
	ErrAlreadyMember = errors.New("already a member")

	// ErrNotMember rejects leaving a conversation the user is not in.
	ErrNotMember = errors.New("not a member")

	// ErrInvalidSender rejects a post whose sender is not a known user.
	ErrInvalidSender = errors.New("invalid sender")

	// ErrMembershipRequired rejects reading or posting to a conversation
	// the caller is not a member of. The caller is a known user, just
	// not permitted here.
	ErrMembershipRequired = errors.New("membership required")

	// ErrMissingToken reports a notification fan-out where no recipient
	// had a registered device token.
	ErrMissingToken = errors.New("no recipient device token")
)

// Code classifies an error into a canonical status code. Anything not
// in the domain taxonomy is a backend failure and maps to Unavailable.
func Code(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrAlreadyMember):
		return codes.AlreadyExists
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrMissingToken):
		return codes.FailedPrecondition
	case errors.Is(err, ErrInvalidSender), errors.Is(err, ErrMembershipRequired):
		return codes.PermissionDenied
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Unavailable
	}
}
