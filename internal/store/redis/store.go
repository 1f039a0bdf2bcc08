package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
)

// entry is one element of the persisted JSON array.
type entry struct {
	ID string `json:"id"`
	domain.Record
}

// Store persists server lists in Redis, one JSON array per tag.
// An array keeps the insertion order that a Redis hash would lose.
type Store struct {
	client redis.Cmdable
}

// NewStore creates a new Redis store
func NewStore(client redis.Cmdable) *Store {
	return &Store{
		client: client,
	}
}

// Load retrieves the server list saved under tag. A missing key is an empty list.
func (s *Store) Load(ctx context.Context, tag string) ([]domain.NamedServer, error) {
	data, err := s.client.Get(ctx, ListKey(tag)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.NamedServer{}, nil
		}
		return nil, fmt.Errorf("failed to get server list: %w", err)
	}
	return decode(data)
}

// Save replaces the server list saved under tag
func (s *Store) Save(ctx context.Context, tag string, servers []domain.NamedServer) error {
	data, err := encode(servers)
	if err != nil {
		return err
	}

	// No TTL: definitions live until removed.
	if err := s.client.Set(ctx, ListKey(tag), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save server list: %w", err)
	}
	return nil
}

func encode(servers []domain.NamedServer) ([]byte, error) {
	entries := make([]entry, 0, len(servers))
	for _, ns := range servers {
		entries = append(entries, entry{ID: ns.ID, Record: domain.ToRecord(ns.Server)})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server list: %w", err)
	}
	return data, nil
}

func decode(data []byte) ([]domain.NamedServer, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server list: %w", err)
	}

	servers := make([]domain.NamedServer, 0, len(entries))
	for _, e := range entries {
		if err := domain.ValidateID(e.ID); err != nil {
			// Skip entries that could never have been added.
			continue
		}
		servers = append(servers, domain.NamedServer{ID: e.ID, Server: e.Record.Server()})
	}
	return servers, nil
}
