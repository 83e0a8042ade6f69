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


// Package ragline ingests documents into a vector store and answers
// questions from them.
//
// Ingestion is a lazy pull chain: an extract.Source yields pages, the
// chunking.Chunker cuts them into overlapping chunks, and the
// ingestion.Indexer embeds and stores them in batches. Only one page and
// one batch are resident at a time. An ingestion.Observer hears about
// start, progress, finish and failure.
//
// For HTTP use, jobs.Runner runs each upload on a worker pool and records
// its progress in a bounded jobs.Registry that the server reads.
//
// Engine ties the pieces to a config.Config:
//
//	cfg, err := config.Load()
//	engine, err := ragline.Open(ctx, cfg)
//	defer engine.Close()
//
//	proc, _ := engine.NewProcessor()
//	stats, err := proc.Run(ctx, ingestion.Request{Path: "report.pdf"}, ingestion.NewConsoleObserver(os.Stdout))
//
//	searcher, _ := engine.NewSearcher()
//	answer, err := searcher.Answer(ctx, "What was Q3 revenue?")
package ragline
