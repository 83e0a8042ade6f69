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


package search

import "errors"

var (
	// ErrCollectionRequired is returned when a chunk collection is not provided.
	ErrCollectionRequired = errors.New("collection required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuestion is returned when the question is blank.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrInvalidTopK is returned when fewer than one passage is requested.
	ErrInvalidTopK = errors.New("topK must be greater than 0")
)
