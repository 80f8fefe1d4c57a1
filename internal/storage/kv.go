// Package storage is the persistence collaborator: a small key-value store
// with get/set/clear semantics. A multi-key Set is atomic; a read followed
// by a write is not, which callers must tolerate.
package storage

import (
	"context"
	"encoding/json"
)

// Well-known storage keys. Archive keys are derived per closed day.
const (
	KeyVideos     = "videos"
	KeyTodayStats = "todayStats"
	KeyIsTracking = "isTracking"
)

// Store is the key-value contract the rest of the system depends on.
// Missing keys are simply absent from the Get result; callers fall back to
// documented defaults.
type Store interface {
	// Get returns the values for the requested keys; absent keys are
	// omitted from the result.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set writes all entries as a single atomic logical write.
	Set(ctx context.Context, entries map[string]json.RawMessage) error
	// Clear wipes the whole store.
	Clear(ctx context.Context) error
}

// Marshal encodes a value for storage. It never fails for the domain types
// stored here, so errors surface as a panic during development rather than
// extra error plumbing at every call site.
func Marshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("storage: marshal: " + err.Error())
	}
	return data
}

// SeedDefaults writes the documented defaults for any missing key:
// isTracking=true, empty stats, empty item list. Existing values are left
// untouched.
func SeedDefaults(ctx context.Context, store Store) error {
	existing, err := store.Get(ctx, KeyVideos, KeyTodayStats, KeyIsTracking)
	if err != nil {
		return err
	}

	defaults := map[string]json.RawMessage{
		KeyVideos:     json.RawMessage(`[]`),
		KeyTodayStats: json.RawMessage(`{"count":0,"positive":0,"negative":0,"topics":{}}`),
		KeyIsTracking: json.RawMessage(`true`),
	}

	missing := make(map[string]json.RawMessage)
	for key, value := range defaults {
		if _, ok := existing[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return store.Set(ctx, missing)
}
