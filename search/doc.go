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


// Package search answers questions from indexed document chunks.
//
// A question is embedded, the nearest chunks are retrieved from the
// collection, and their text becomes the context of a single grounded
// prompt. The generator is told to answer only from that context and to
// say so when the answer is not there.
//
// Retrieval over-fetches and collapses passages with identical text, which
// appear when the same document is ingested more than once.
package search
