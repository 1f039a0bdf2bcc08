// Package file persists server lists in a YAML document, one top-level
// section per tag:
//
//	serverlist:
//	  alpha:
//	    host: 10.0.0.5
//	    port: 19133
//	    rcon-port: 19134
//	    rcon-pw: secret
//	    "#": test box
//
// Sections are decoded node by node so the id order of the file survives a
// load/save round trip. Reads and writes hold an advisory lock on
// "<path>.lock", so a reader never sees a half-written section. The lock does
// not merge writers: Save replaces the whole section with the caller's list,
// so only one process should write a given tag at a time.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/serverlist/internal/domain"
)

const lockRetry = 20 * time.Millisecond

// Store reads and writes a single YAML file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by path. The file is created on first save.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load returns the servers saved under tag, in file order.
// A missing file or section is an empty list.
func (s *Store) Load(ctx context.Context, tag string) ([]domain.NamedServer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx, true)
	if err != nil {
		return nil, err
	}
	defer unlock()

	root, err := s.readRoot()
	if err != nil {
		return nil, err
	}

	section := lookup(root, tag)
	if section == nil {
		return []domain.NamedServer{}, nil
	}
	if section.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("section %q in %s is not a mapping", tag, s.path)
	}

	servers := make([]domain.NamedServer, 0, len(section.Content)/2)
	for i := 0; i+1 < len(section.Content); i += 2 {
		id := section.Content[i].Value
		var rec domain.Record
		if err := section.Content[i+1].Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse server %q: %w", id, err)
		}
		if err := domain.ValidateID(id); err != nil {
			return nil, fmt.Errorf("invalid server id %q in %s: %w", id, s.path, err)
		}
		servers = append(servers, domain.NamedServer{ID: id, Server: rec.Server()})
	}
	return servers, nil
}

// Save replaces the section for tag, keeping every other section as is.
// The file is replaced atomically.
func (s *Store) Save(ctx context.Context, tag string, servers []domain.NamedServer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx, false)
	if err != nil {
		return err
	}
	defer unlock()

	root, err := s.readRoot()
	if err != nil {
		return err
	}

	section := &yaml.Node{Kind: yaml.MappingNode}
	for _, ns := range servers {
		value := &yaml.Node{}
		if err := value.Encode(domain.ToRecord(ns.Server)); err != nil {
			return fmt.Errorf("failed to encode server %q: %w", ns.ID, err)
		}
		section.Content = append(section.Content, scalar(ns.ID), value)
	}
	set(root, tag, section)

	data, err := yaml.Marshal(root)
	if err != nil {
		return fmt.Errorf("failed to marshal server list: %w", err)
	}
	return writeAtomic(s.path, data)
}

// lock takes the cross-process file lock, shared for reads.
func (s *Store) lock(ctx context.Context, shared bool) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fl := flock.New(s.path + ".lock")
	var (
		ok  bool
		err error
	)
	if shared {
		ok, err = fl.TryRLockContext(ctx, lockRetry)
	} else {
		ok, err = fl.TryLockContext(ctx, lockRetry)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock server list file: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock server list file: %s is busy", s.path)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (s *Store) readRoot() (*yaml.Node, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &yaml.Node{Kind: yaml.MappingNode}, nil
		}
		return nil, fmt.Errorf("failed to read server list file: %w", err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse server list file: %w", err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: top level must be a mapping", s.path)
	}
	return root, nil
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func set(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalar(key), value)
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".serverlist-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name()) // no-op after a successful rename
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write server list: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write server list: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace server list file: %w", err)
	}
	return nil
}
