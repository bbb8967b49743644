// Package redisstore keeps blueprints in Redis: one JSON document per
// blueprint plus a set of names per author and a set of authors.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/redis/go-redis/v9"
)

// Store is a store.Repository backed by Redis. Safe for concurrent use.
type Store struct {
	rdb *redis.Client
}

var _ store.Repository = (*Store)(nil)

// New wraps an existing client. Close closes it.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Open connects to the Redis server at url (redis://host:port/db).
func Open(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL %q: %w", url, err)
	}
	return New(redis.NewClient(opts)), nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Create writes bp unless its key is already taken.
func (s *Store) Create(ctx context.Context, bp *blueprint.Blueprint) error {
	data, err := encode(bp)
	if err != nil {
		return err
	}

	key := bp.Key()
	created, err := s.rdb.SetNX(ctx, blueprint.BlueprintKey(key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write blueprint to Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", store.ErrExists, key)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, blueprint.AuthorIndexKey(key.Author), key.Name)
		pipe.SAdd(ctx, blueprint.AuthorsKey(), key.Author)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index blueprint %s: %w", key, err)
	}
	return nil
}

// Update replaces an existing blueprint.
func (s *Store) Update(ctx context.Context, bp *blueprint.Blueprint) error {
	data, err := encode(bp)
	if err != nil {
		return err
	}

	key := bp.Key()
	updated, err := s.rdb.SetXX(ctx, blueprint.BlueprintKey(key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to write blueprint to Redis: %w", err)
	}
	if !updated {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	return nil
}

// Get reads one blueprint.
func (s *Store) Get(ctx context.Context, key blueprint.Key) (*blueprint.Blueprint, error) {
	data, err := s.rdb.Get(ctx, blueprint.BlueprintKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprint from Redis: %w", err)
	}
	return decode(data)
}

// ListByAuthor reads every blueprint of author, sorted by name.
func (s *Store) ListByAuthor(ctx context.Context, author string) ([]*blueprint.Blueprint, error) {
	names, err := s.rdb.SMembers(ctx, blueprint.AuthorIndexKey(author)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read author index: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no blueprints for author %s", store.ErrNotFound, author)
	}

	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = blueprint.BlueprintKey(blueprint.Key{Author: author, Name: name})
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read blueprints from Redis: %w", err)
	}

	out := make([]*blueprint.Blueprint, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a document; deleted concurrently
			continue
		}
		bp, err := decode([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, bp)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no blueprints for author %s", store.ErrNotFound, author)
	}
	store.SortByKey(out)
	return out, nil
}

// List reads every blueprint, sorted by author and name.
func (s *Store) List(ctx context.Context) ([]*blueprint.Blueprint, error) {
	authors, err := s.rdb.SMembers(ctx, blueprint.AuthorsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read author set: %w", err)
	}

	out := []*blueprint.Blueprint{}
	for _, author := range authors {
		bps, err := s.ListByAuthor(ctx, author)
		if store.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, bps...)
	}
	store.SortByKey(out)
	return out, nil
}

// Delete removes a blueprint and drops the author from the author set once
// they have none left.
func (s *Store) Delete(ctx context.Context, key blueprint.Key) error {
	removed, err := s.rdb.Del(ctx, blueprint.BlueprintKey(key)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete blueprint from Redis: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}

	indexKey := blueprint.AuthorIndexKey(key.Author)
	var remaining *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, indexKey, key.Name)
		remaining = pipe.SCard(ctx, indexKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update author index: %w", err)
	}
	if remaining.Val() == 0 {
		if err := s.rdb.SRem(ctx, blueprint.AuthorsKey(), key.Author).Err(); err != nil {
			return fmt.Errorf("failed to update author set: %w", err)
		}
	}
	return nil
}

func encode(bp *blueprint.Blueprint) ([]byte, error) {
	if err := bp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blueprint: %w", err)
	}
	clone := bp.Clone()
	data, err := json.Marshal(clone)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal blueprint: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*blueprint.Blueprint, error) {
	var bp blueprint.Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
	}
	if bp.Points == nil {
		bp.Points = []blueprint.Point{}
	}
	return &bp, nil
}
