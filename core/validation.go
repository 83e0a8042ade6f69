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

import "fmt"

// ValidateChunkRecord validates a ChunkRecord that is about to be stored.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be empty
//   - Page must be >= 1
//   - Vector must be present
func ValidateChunkRecord(record *ChunkRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidChunkRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyChunkID)
	}

	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrEmptyContent)
	}

	if record.Page < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrInvalidPage)
	}

	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunkRecord, ErrMissingVector)
	}

	return nil
}

// ValidateJobStatus validates that a JobStatus is one of the lifecycle states.
func ValidateJobStatus(status JobStatus) error {
	switch status {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidJobStatus, status)
}

// ValidateTransition checks that moving a job from one status to another keeps
// the lifecycle monotone: queued -> processing -> completed|failed. A queued job
// may fail directly when it never got to run.
func ValidateTransition(from, to JobStatus) error {
	if err := ValidateJobStatus(from); err != nil {
		return err
	}
	if err := ValidateJobStatus(to); err != nil {
		return err
	}

	switch {
	case from == JobQueued && (to == JobProcessing || to == JobFailed):
		return nil
	case from == JobProcessing && to.Terminal():
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
