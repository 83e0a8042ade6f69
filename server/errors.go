package server

import "errors"

var (
	// ErrRegistryRequired is returned when a job registry is not provided.
	ErrRegistryRequired = errors.New("job registry required")

	// ErrRunnerRequired is returned when a job runner is not provided.
	ErrRunnerRequired = errors.New("job runner required")

	// ErrUploadStoreRequired is returned when an upload store is not provided.
	ErrUploadStoreRequired = errors.New("upload store required")

	// ErrAnswererRequired is returned when a chat answerer is not provided.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrMissingFile is returned when an ingest request has no "file" part.
	ErrMissingFile = errors.New(`multipart field "file" is required`)
)
