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


// Package ingestion runs documents through the extract, chunk, and index
// stages.
//
// # Architecture
//
// The stages form a pull chain built from iter.Seq2 iterators:
//
//	Indexer <- observe(Chunker) <- observe(Source)
//
// Nothing happens until the Indexer starts ranging over its input, and
// each stage asks its upstream for exactly one item at a time. At most one
// page of text and one batch of chunks are resident, whatever the size of
// the document.
//
// # Progress
//
// The observe decorator counts items as they pass between stages and calls
// Observer.OnProgress every N items (default 10). CHUNKING counts pages
// entering the chunker; INDEXING counts chunks entering the indexer.
//
// # Failure Handling
//
// A chunk whose embedding still fails after retries is logged and dropped;
// the job continues. Source errors, storage errors, and panics end the run
// and are reported once through Observer.OnError.
//
// # Usage
//
//	proc, err := ingestion.NewProcessor(provider.Embedder(), collection)
//	if err != nil {
//	    return err
//	}
//	stats, err := proc.Run(ctx, ingestion.Request{JobID: id, Path: path}, ingestion.NewLogObserver(nil))
package ingestion
