package jobs

import "errors"

var (
	// ErrJobNotFound is returned for ids the registry does not hold, either
	// because they were never created or because they have been evicted.
	ErrJobNotFound = errors.New("job not found")

	// ErrRegistryRequired is returned when a registry is not provided.
	ErrRegistryRequired = errors.New("registry required")

	// ErrPipelineRequired is returned when a pipeline is not provided.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrUploadStoreRequired is returned when an upload store is not provided.
	ErrUploadStoreRequired = errors.New("upload store required")

	// ErrRunnerClosed is returned by Submit after Shutdown has started.
	ErrRunnerClosed = errors.New("runner is shut down")

	// ErrJobPanic wraps a panic recovered from a running job.
	ErrJobPanic = errors.New("job panicked")
)
