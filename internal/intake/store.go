package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/phoenix-garage/garage/internal/shared"
)

// DefaultDraftTTL bounds how long an abandoned draft is kept.
const DefaultDraftTTL = 24 * time.Hour

// DraftStore keeps drafts in Redis as JSON under intake:draft:<id>.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftStore constructs a DraftStore.
func NewDraftStore(client *redis.Client, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore{client: client, ttl: ttl}
}

func (s *DraftStore) key(id string) string {
	return "intake:draft:" + id
}

// Load fetches a draft. A missing or expired draft is ErrNotFound.
func (s *DraftStore) Load(ctx context.Context, id string) (Draft, error) {
	if id == "" {
		return Draft{}, fmt.Errorf("load draft: %w: %w", errDraftKey, shared.ErrNotFound)
	}
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Draft{}, fmt.Errorf("draft %s: %w", id, shared.ErrNotFound)
		}
		return Draft{}, fmt.Errorf("load draft: %w: %v", shared.ErrStorage, err)
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return Draft{}, fmt.Errorf("decode draft: %w: %v", shared.ErrStorage, err)
	}
	return d, nil
}

// Save writes a draft and refreshes its TTL.
func (s *DraftStore) Save(ctx context.Context, d Draft) error {
	if d.ID == "" {
		return errDraftKey
	}
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(d.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save draft: %w: %v", shared.ErrStorage, err)
	}
	return nil
}

// Delete discards a draft.
func (s *DraftStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete draft: %w: %v", shared.ErrStorage, err)
	}
	return nil
}
