package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrInternal
	ErrInvalidScore
	ErrInvalidUsage
	ErrInvalidChunkType
	ErrPersistenceConflict
	ErrGenerationFailed
)
