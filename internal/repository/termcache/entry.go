package termcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tag distinguishes cached result kinds.
type Tag string

// Cache tags.
const (
	TagExtraction Tag = "extraction"
	TagEnrichment Tag = "enrichment"
)

// IsValid checks if the tag is one of the supported values.
func (t Tag) IsValid() bool { return t == TagExtraction || t == TagEnrichment }

// ParseTag maps a user value onto a Tag. Empty means all tags.
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.ToLower(strings.TrimSpace(s)))
	if t == "" || t.IsValid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown cache type %q (want %q or %q)", s, TagExtraction, TagEnrichment)
}

// Key derives the cache key for text under a tag. Text is lowercased and
// whitespace runs are collapsed before hashing.
func Key(text string, tag Tag) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:]) + "_" + string(tag)
}

// Entry is a single persisted cache record.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Key       string          `json:"key"`
	CacheType Tag             `json:"cache_type"`
	Result    json.RawMessage `json:"result"`
}

// timestamps written without a zone are read as local time
var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"}

// UnmarshalJSON accepts RFC 3339 timestamps and zone-less ISO 8601 ones.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw struct {
		Timestamp string          `json:"timestamp"`
		Key       string          `json:"key"`
		CacheType Tag             `json:"cache_type"`
		Result    json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := parseTimestamp(raw.Timestamp)
	if err != nil {
		return err
	}
	*e = Entry{Timestamp: ts, Key: raw.Key, CacheType: raw.CacheType, Result: raw.Result}
	return nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if layout == time.RFC3339Nano {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid cache timestamp %q", s)
}

func (e *Entry) expired(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(e.Timestamp) > maxAge
}

func (e *Entry) tag() Tag {
	if e.CacheType != "" {
		return e.CacheType
	}
	if i := strings.LastIndexByte(e.Key, '_'); i >= 0 {
		return Tag(e.Key[i+1:])
	}
	return ""
}
