package wordmill

import "errors"

// Sentinel errors for common error conditions
var (
	// Argument errors
	ErrInvalidMapperCount  = errors.New("number of mappers must be positive")
	ErrInvalidReducerCount = errors.New("number of reducers must be positive")

	// Directory errors
	ErrNotADirectory     = errors.New("path is not a directory")
	ErrDirectoryNotFound = errors.New("directory not found")
	ErrDirectoryUnusable = errors.New("directory cannot be created")

	// Pool errors
	ErrPoolShutdown = errors.New("pool is shut down")

	// Control-plane errors
	ErrWorkerLost        = errors.New("worker connection lost")
	ErrMalformedCommand  = errors.New("malformed command")
	ErrMalformedStatus   = errors.New("malformed status message")
	ErrNoWorkersAttached = errors.New("no workers attached")

	// Run errors
	ErrRunFailed = errors.New("run failed")
)
