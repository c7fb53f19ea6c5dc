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
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/vantage/core"
)

// Record layout (MUS encoding):
//
//	id string | len varint | len x float32 |
//	video string | owner string | timestamp float64 | path string |
//	len varint | len x class string |
//	len varint | len x (class string, confidence float64), sorted by class
//
// The nested confidence map is typed in memory and only flattened here.

// MarshalRecord serializes an EmbeddingRecord to bytes.
func MarshalRecord(record *core.EmbeddingRecord) []byte {
	buf := make([]byte, recordSize(record))
	marshalRecord(record, buf)
	return buf
}

// UnmarshalRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalRecord(data []byte) (*core.EmbeddingRecord, error) {
	record, _, err := unmarshalRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return record, nil
}

func recordSize(r *core.EmbeddingRecord) int {
	size := ord.String.Size(r.Id)
	size += varint.Int.Size(len(r.Vector))
	for _, f := range r.Vector {
		size += raw.Float32.Size(f)
	}
	m := &r.Metadata
	size += ord.String.Size(m.VideoID)
	size += ord.String.Size(m.OwnerID)
	size += raw.Float64.Size(m.Timestamp)
	size += ord.String.Size(m.VideoPath)
	size += varint.Int.Size(len(m.DetectedClasses))
	for _, c := range m.DetectedClasses {
		size += ord.String.Size(c)
	}
	size += varint.Int.Size(len(m.ClassConfidences))
	for class, conf := range m.ClassConfidences {
		size += ord.String.Size(class)
		size += raw.Float64.Size(conf)
	}
	return size
}

func marshalRecord(r *core.EmbeddingRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.Id, bs)
	n += varint.Int.Marshal(len(r.Vector), bs[n:])
	for _, f := range r.Vector {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	m := &r.Metadata
	n += ord.String.Marshal(m.VideoID, bs[n:])
	n += ord.String.Marshal(m.OwnerID, bs[n:])
	n += raw.Float64.Marshal(m.Timestamp, bs[n:])
	n += ord.String.Marshal(m.VideoPath, bs[n:])
	n += varint.Int.Marshal(len(m.DetectedClasses), bs[n:])
	for _, c := range m.DetectedClasses {
		n += ord.String.Marshal(c, bs[n:])
	}
	classes := make([]string, 0, len(m.ClassConfidences))
	for class := range m.ClassConfidences {
		classes = append(classes, class)
	}
	slices.Sort(classes)
	n += varint.Int.Marshal(len(classes), bs[n:])
	for _, class := range classes {
		n += ord.String.Marshal(class, bs[n:])
		n += raw.Float64.Marshal(m.ClassConfidences[class], bs[n:])
	}
	return n
}

func unmarshalRecord(bs []byte) (r *core.EmbeddingRecord, n int, err error) {
	r = &core.EmbeddingRecord{}
	var k int

	if r.Id, k, err = ord.String.Unmarshal(bs); err != nil {
		return nil, n, err
	}
	n += k

	length, k, err := unmarshalLength(bs[n:], raw.Float32.Size(0))
	if err != nil {
		return nil, n, err
	}
	n += k
	r.Vector = make([]float32, length)
	for i := range r.Vector {
		if r.Vector[i], k, err = raw.Float32.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += k
	}

	m := &r.Metadata
	for _, dst := range []*string{&m.VideoID, &m.OwnerID} {
		if *dst, k, err = ord.String.Unmarshal(bs[n:]); err != nil {
			return nil, n, err
		}
		n += k
	}
	if m.Timestamp, k, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += k
	if m.VideoPath, k, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return nil, n, err
	}
	n += k

	if length, k, err = unmarshalLength(bs[n:], 1); err != nil {
		return nil, n, err
	}
	n += k
	if length > 0 {
		m.DetectedClasses = make([]string, length)
		for i := range m.DetectedClasses {
			if m.DetectedClasses[i], k, err = ord.String.Unmarshal(bs[n:]); err != nil {
				return nil, n, err
			}
			n += k
		}
	}

	if length, k, err = unmarshalLength(bs[n:], 1+raw.Float64.Size(0)); err != nil {
		return nil, n, err
	}
	n += k
	if length > 0 {
		m.ClassConfidences = make(map[string]float64, length)
		for i := 0; i < length; i++ {
			class, k, err := ord.String.Unmarshal(bs[n:])
			if err != nil {
				return nil, n, err
			}
			n += k
			conf, k, err := raw.Float64.Unmarshal(bs[n:])
			if err != nil {
				return nil, n, err
			}
			n += k
			m.ClassConfidences[class] = conf
		}
	}
	return r, n, nil
}

// unmarshalLength reads a collection length and rejects values that cannot
// fit in the remaining bytes given the minimum encoded size of one element.
func unmarshalLength(bs []byte, minElemSize int) (length, n int, err error) {
	length, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return 0, n, err
	}
	if length < 0 || length*minElemSize > len(bs)-n {
		return 0, n, ErrTruncatedData
	}
	return length, n, nil
}
