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


package storage

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ragline/core"
)

// Field order: ID, JobID, Page, Text, Source, len(Vector), Vector...
// Append new fields at the end only.

func chunkRecordSize(record *core.ChunkRecord) int {
	size := ord.String.Size(record.ID) +
		ord.String.Size(record.JobID) +
		varint.Int.Size(record.Page) +
		ord.String.Size(record.Text) +
		ord.String.Size(record.Source) +
		varint.Int.Size(len(record.Vector))
	for _, v := range record.Vector {
		size += raw.Float32.Size(v)
	}
	return size
}

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(record *core.ChunkRecord) []byte {
	buf := make([]byte, chunkRecordSize(record))
	n := ord.String.Marshal(record.ID, buf)
	n += ord.String.Marshal(record.JobID, buf[n:])
	n += varint.Int.Marshal(record.Page, buf[n:])
	n += ord.String.Marshal(record.Text, buf[n:])
	n += ord.String.Marshal(record.Source, buf[n:])
	n += varint.Int.Marshal(len(record.Vector), buf[n:])
	for _, v := range record.Vector {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	return buf
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	d := &decoder{data: data}

	var record core.ChunkRecord
	record.ID = d.string()
	record.JobID = d.string()
	record.Page = d.int()
	record.Text = d.string()
	record.Source = d.string()
	dims := d.int()
	if d.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
	}
	if dims < 0 || dims > len(data)-d.off {
		return nil, fmt.Errorf("%w: bad vector length %d", ErrSerializationFailed, dims)
	}

	if dims > 0 {
		record.Vector = make([]float32, dims)
		for i := range record.Vector {
			record.Vector[i] = d.float32()
		}
		if d.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, d.err)
		}
	}
	return &record, nil
}

// decoder walks a buffer and keeps the first error.
type decoder struct {
	data []byte
	off  int
	err  error
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}

func (d *decoder) float32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.data[d.off:])
	d.off += n
	d.err = err
	return v
}
