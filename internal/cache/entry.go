package cache

import (
	"encoding/json"
	"time"
)

// Entry is the envelope persisted for every cached value.
//
// Timestamp is the write time in epoch milliseconds. A nil Expiration
// means the entry never expires; otherwise it is the TTL in milliseconds.
type Entry struct {
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
	Expiration *int64          `json:"expiration"`
}

func newEntry(data json.RawMessage, now time.Time, ttl time.Duration) Entry {
	e := Entry{
		Data:      data,
		Timestamp: now.UnixMilli(),
	}
	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms == 0 {
			ms = 1
		}
		e.Expiration = &ms
	}
	return e
}

// IsExpired checks whether the entry is expired at the given time.
// The boundary is exclusive: an entry aged exactly its TTL is still live.
func (e Entry) IsExpired(now time.Time) bool {
	if e.Expiration == nil || *e.Expiration <= 0 {
		return false
	}
	return now.UnixMilli()-e.Timestamp > *e.Expiration
}

// isNull reports whether the entry carries no usable value.
func (e Entry) isNull() bool {
	return len(e.Data) == 0 || string(e.Data) == "null"
}

func decodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
