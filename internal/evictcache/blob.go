package evictcache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

const blobVersion = 2

type blobEntry struct {
	Key       string          `json:"k"`
	Value     json.RawMessage `json:"q"`
	Kind      string          `json:"t"`
	Timestamp int64           `json:"ts"`
}

type blobEnvelope struct {
	Version int         `json:"v"`
	Entries []blobEntry `json:"entries"`
}

// legacyEntry covers both the short and the long field spellings of the
// object form keyed by item id.
type legacyEntry struct {
	Q         json.RawMessage `json:"q"`
	T         string          `json:"t"`
	TS        int64           `json:"ts"`
	Quality   json.RawMessage `json:"quality"`
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"`
}

func (e legacyEntry) normalize(key string) blobEntry {
	out := blobEntry{Key: key, Value: e.Q, Kind: e.T, Timestamp: e.TS}
	if len(out.Value) == 0 {
		out.Value = e.Quality
	}
	if out.Kind == "" {
		out.Kind = e.Type
	}
	if out.Timestamp == 0 {
		out.Timestamp = e.Timestamp
	}
	return out
}

var errEmptyBlob = errors.New("empty cache blob")

// decodeBlob returns entries oldest first.
func decodeBlob(raw string) ([]blobEntry, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, errEmptyBlob
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode cache blob: %w", err)
	}

	if _, ok := probe["entries"]; ok {
		var envelope blobEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("decode cache envelope: %w", err)
		}
		if envelope.Version > blobVersion {
			return nil, fmt.Errorf("unsupported cache blob version %d", envelope.Version)
		}
		return envelope.Entries, nil
	}

	entries := make([]blobEntry, 0, len(probe))
	for key, rawEntry := range probe {
		var legacy legacyEntry
		if err := json.Unmarshal(rawEntry, &legacy); err != nil {
			continue
		}
		entries = append(entries, legacy.normalize(key))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp < entries[j].Timestamp
		}
		return entries[i].Key < entries[j].Key
	})

	return entries, nil
}

func encodeBlob[V any](entries []*Entry[V]) (string, error) {
	envelope := blobEnvelope{Version: blobVersion, Entries: make([]blobEntry, 0, len(entries))}
	for _, entry := range entries {
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return "", fmt.Errorf("encode cache entry %q: %w", entry.Key, err)
		}
		envelope.Entries = append(envelope.Entries, blobEntry{
			Key:       entry.Key,
			Value:     value,
			Kind:      string(entry.Kind),
			Timestamp: entry.InsertedAt.UnixMilli(),
		})
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode cache blob: %w", err)
	}
	return string(data), nil
}
