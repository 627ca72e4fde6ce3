package errors

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalid             = errors.New("invalid")
	ErrConflict            = errors.New("conflict")
	ErrInternal            = errors.New("internal")
	ErrInvalidScore        = errors.New("relevance score out of range")
	ErrInvalidUsage        = errors.New("invalid token usage")
	ErrInvalidChunkType    = errors.New("invalid chunk type")
	ErrPersistenceConflict = errors.New("persistence conflict: retries exhausted")
	ErrGenerationFailed    = errors.New("generation service failed")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrPersistenceConflict)
}
