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


// Package storage defines the vector collection that embedded chunks are
// written to and retrieved from.
//
// Two backends implement Collection:
//
//   - storage/badger: embedded BadgerDB, brute-force dot product over
//     unit-length vectors. The default, and what tests use.
//   - storage/pgvector: PostgreSQL with the pgvector extension, cosine
//     distance computed by the database.
//
// Records written to BadgerDB are encoded with mus-go; see
// MarshalChunkRecord.
//
// # Usage
//
//	coll, err := badger.NewCollection(backend)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer coll.Close()
//
// Use in tests with in-memory storage:
//
//	coll, backend, err := badger.NewMemoryCollection()
//
// # Thread Safety
//
// All Collection implementations must be safe for concurrent use: jobs
// index while chat requests query.
package storage
