// Package storage persists hydrated allowed-item lists in NATS KV so a later
// session can start from the last good result instead of fallback items.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semprofile/hydrate"
)

// BucketLists is the default bucket for hydrated lists.
const BucketLists = "SEMPROFILE_LISTS"

var invalidKeyChars = regexp.MustCompile(`[^-_=.a-zA-Z0-9]`)

// kv is the subset of a KV bucket the store uses.
type kv interface {
	get(ctx context.Context, key string) ([]byte, error)
	put(ctx context.Context, key string, value []byte) error
}

// jetstreamKV adapts a jetstream.KeyValue bucket.
type jetstreamKV struct {
	bucket jetstream.KeyValue
}

func (j jetstreamKV) get(ctx context.Context, key string) ([]byte, error) {
	entry, err := j.bucket.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (j jetstreamKV) put(ctx context.Context, key string, value []byte) error {
	_, err := j.bucket.Put(ctx, key, value)
	return err
}

// ListStore persists hydrate entries for one profile. It implements
// hydrate.Persister.
type ListStore struct {
	kv        kv
	profileID string
}

// NewListStore opens (or creates) bucket and returns a store scoped to profileID.
func NewListStore(ctx context.Context, js jetstream.JetStream, bucket, profileID string) (*ListStore, error) {
	if bucket == "" {
		bucket = BucketLists
	}
	b, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create lists bucket: %w", err)
	}
	return &ListStore{kv: jetstreamKV{bucket: b}, profileID: profileID}, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Semprofile hydrated allowed-item lists",
		History:     5,
	})
}

// Key returns the KV key for a list id.
func (s *ListStore) Key(listID string) string {
	return sanitize(s.profileID) + "." + sanitize(listID)
}

// Save stores e under its list id.
func (s *ListStore) Save(ctx context.Context, e hydrate.Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal list entry: %w", err)
	}
	if err := s.kv.put(ctx, s.Key(e.ListID), data); err != nil {
		return fmt.Errorf("store list entry: %w", err)
	}
	return nil
}

// Load returns the stored entry for listID, or ErrNotFound.
func (s *ListStore) Load(ctx context.Context, listID string) (hydrate.Entry, error) {
	data, err := s.kv.get(ctx, s.Key(listID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return hydrate.Entry{}, ErrNotFound
		}
		return hydrate.Entry{}, fmt.Errorf("get list entry: %w", err)
	}
	var e hydrate.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return hydrate.Entry{}, fmt.Errorf("unmarshal list entry: %w", err)
	}
	return e, nil
}

func sanitize(s string) string {
	return invalidKeyChars.ReplaceAllString(s, "_")
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) ||
		(err != nil && strings.Contains(err.Error(), "key not found"))
}
