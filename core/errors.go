// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunkRecord indicates a ChunkRecord failed validation.
	ErrInvalidChunkRecord = errors.New("invalid chunk record")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyChunkID indicates the chunk has no identifier.
	ErrEmptyChunkID = errors.New("chunk id cannot be empty")

	// ErrMissingVector indicates a chunk was handed to storage without an embedding.
	ErrMissingVector = errors.New("chunk has no embedding")

	// ErrInvalidPage indicates a page number below 1.
	ErrInvalidPage = errors.New("page number must be positive")

	// ErrInvalidJobStatus indicates a status outside the job lifecycle.
	ErrInvalidJobStatus = errors.New("invalid job status")

	// ErrIllegalTransition indicates a job status change that would move backwards.
	ErrIllegalTransition = errors.New("illegal job status transition")
)
