// Package types defines shared types used across the application
package types

import "time"

// Header is a single broker record header
type Header struct {
	Key   string
	Value []byte
}

// Record is the wire unit exchanged with the broker.
// Key and Value are kept as the exact bytes received so that a record can be
// re-published unchanged.
type Record struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers []Header
	Meta    *RecordMeta
}

// RecordMeta holds broker metadata for a consumed record
type RecordMeta struct {
	Topic     string
	Partition int
	Offset    int64
	Time      time.Time
}

// Header returns the value of the first header with the given key
func (r *Record) Header(key string) ([]byte, bool) {
	for _, h := range r.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return nil, false
}

// Partition returns the partition the record was consumed from, or -1
func (r *Record) Partition() int {
	if r == nil || r.Meta == nil {
		return -1
	}
	return r.Meta.Partition
}

// Offset returns the offset the record was consumed at, or -1
func (r *Record) Offset() int64 {
	if r == nil || r.Meta == nil {
		return -1
	}
	return r.Meta.Offset
}

// SourceTopic returns the topic the record was consumed from, falling back to
// the topic it is addressed to.
func (r *Record) SourceTopic() string {
	if r.Meta != nil && r.Meta.Topic != "" {
		return r.Meta.Topic
	}
	return r.Topic
}
