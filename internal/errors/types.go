package errors

import "errors"

var (
	ErrProfileNotFound    = errors.New("profile file not found")
	ErrProfileParseFailed = errors.New("profile parsing failed")
	ErrConfigInvalid      = errors.New("configuration invalid")
	ErrRuntimeFailed      = errors.New("runtime operation failed")
	ErrNotReady           = errors.New("container not ready")
	ErrStateFailed        = errors.New("session state operation failed")
)

// MongoKitError decorates an error with what the user was doing, why it failed and what to try next.
type MongoKitError struct {
	Type        error
	Context     string
	Cause       string
	Suggestion  string
	OriginalErr error
}

func (e *MongoKitError) Error() string {
	return e.OriginalErr.Error()
}

func (e *MongoKitError) Unwrap() error {
	return e.OriginalErr
}

// Is matches the error kind as well as anything in the wrapped chain.
func (e *MongoKitError) Is(target error) bool {
	return target == e.Type
}

func NewMongoKitError(errorType error, context, cause, suggestion string, originalErr error) *MongoKitError {
	return &MongoKitError{
		Type:        errorType,
		Context:     context,
		Cause:       cause,
		Suggestion:  suggestion,
		OriginalErr: originalErr,
	}
}

func NewProfileError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrProfileNotFound, context, cause, suggestion, originalErr)
}

func NewParseError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrProfileParseFailed, context, cause, suggestion, originalErr)
}

func NewConfigError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrConfigInvalid, context, cause, suggestion, originalErr)
}

func NewRuntimeError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrRuntimeFailed, context, cause, suggestion, originalErr)
}

func NewNotReadyError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrNotReady, context, cause, suggestion, originalErr)
}

func NewStateError(context, cause, suggestion string, originalErr error) *MongoKitError {
	return NewMongoKitError(ErrStateFailed, context, cause, suggestion, originalErr)
}
