package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error into the closed set surfaced to callers.
type Kind string

// Error kinds.
const (
	// KindStorageUnavailable reports an I/O failure of the backing store. The
	// operation had no effect and may be retried by the caller.
	KindStorageUnavailable Kind = "storage_unavailable"
	// KindNotFound reports an id absent from the anchor collection.
	KindNotFound Kind = "not_found"
	// KindConflict reports a uniqueness violation such as a duplicate email.
	KindConflict Kind = "conflict"
	// KindInvalidArgument reports caller supplied data failing a precondition.
	KindInvalidArgument Kind = "invalid_argument"
	// KindCorruptFragment reports an anchor row missing a required fragment.
	// It is logged by reads and never aborts them.
	KindCorruptFragment Kind = "corrupt_fragment"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrCorruptFragment    = errors.New("corrupt fragment")
)

// ErrInvalidCredentials is wrapped by authentication failures. Unknown email
// and wrong password are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("invalid credentials")

var kindSentinels = map[Kind]error{
	KindStorageUnavailable: ErrStorageUnavailable,
	KindNotFound:           ErrNotFound,
	KindConflict:           ErrConflict,
	KindInvalidArgument:    ErrInvalidArgument,
	KindCorruptFragment:    ErrCorruptFragment,
}

// Error is the typed error returned by stores, the serializer, and the repository.
type Error struct {
	Kind   Kind
	Op     string
	Entity EntityType
	ID     string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Entity != "" {
		msg += " " + string(e.Entity)
		if e.ID != "" {
			msg += " " + e.ID
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel so callers can test errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf extracts the kind of err, or "" when err carries no *Error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// StorageError wraps an I/O failure of a backing store.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Kind == KindStorageUnavailable {
		return err
	}
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

// NotFound reports an entity id absent from its anchor collection.
func NotFound(entity EntityType, id string) error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id}
}

// Conflict reports a uniqueness violation.
func Conflict(entity EntityType, format string, args ...any) error {
	return &Error{Kind: KindConflict, Entity: entity, Err: fmt.Errorf(format, args...)}
}

// InvalidArgument reports a failed caller precondition.
func InvalidArgument(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// CorruptFragment describes an anchor row lacking a required fragment.
func CorruptFragment(entity EntityType, id, collection string) error {
	return &Error{Kind: KindCorruptFragment, Entity: entity, ID: id, Err: fmt.Errorf("missing %s row", collection)}
}
