// Package store persists the gateway's pairing state as file-backed
// slots: one for the Owner record, one for the pending pairing request,
// plus the registered-groups mapping. Each slot holds at most one JSON
// document and is either empty or occupied.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openclaw/bot-gateway-go/internal/model"
)

const (
	ownerFile   = "owner.json"
	pendingFile = "pending_pairing.json"
	groupsFile  = "groups.json"
)

type Store interface {
	LoadOwner() (*model.Owner, error)
	SaveOwner(owner *model.Owner) error
	DeleteOwner() error
	LoadPending() (*model.PendingPairing, error)
	SavePending(pending *model.PendingPairing) error
	DeletePending() error
	LoadGroups() (map[string]model.RoomConfig, error)
	SaveGroup(roomID string, cfg model.RoomConfig) error
}

// FileStore keeps each slot in its own file under dir. The mutex
// serializes read-modify-write within this process; concurrent use from
// multiple processes is a documented single-operator assumption, not a
// guarded case.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) LoadOwner() (*model.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var owner model.Owner
	found, err := s.readSlot(ownerFile, &owner)
	if err != nil || !found {
		return nil, err
	}
	return &owner, nil
}

func (s *FileStore) SaveOwner(owner *model.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSlot(ownerFile, owner)
}

func (s *FileStore) DeleteOwner() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSlot(ownerFile)
}

func (s *FileStore) LoadPending() (*model.PendingPairing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending model.PendingPairing
	found, err := s.readSlot(pendingFile, &pending)
	if err != nil || !found {
		return nil, err
	}
	return &pending, nil
}

func (s *FileStore) SavePending(pending *model.PendingPairing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeSlot(pendingFile, pending)
}

func (s *FileStore) DeletePending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSlot(pendingFile)
}

func (s *FileStore) LoadGroups() (map[string]model.RoomConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadGroupsLocked()
}

func (s *FileStore) SaveGroup(roomID string, cfg model.RoomConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.loadGroupsLocked()
	if err != nil {
		return err
	}
	groups[roomID] = cfg
	return s.writeSlot(groupsFile, groups)
}

func (s *FileStore) loadGroupsLocked() (map[string]model.RoomConfig, error) {
	groups := make(map[string]model.RoomConfig)
	if _, err := s.readSlot(groupsFile, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// readSlot reports whether the slot file exists and, if so, decodes it
// into v.
func (s *FileStore) readSlot(name string, v any) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", name, err)
	}
	return true, nil
}

// writeSlot writes to a temp file in the same directory and renames it
// into place, so a crash mid-write never leaves a torn slot.
func (s *FileStore) writeSlot(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) deleteSlot(name string) error {
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
