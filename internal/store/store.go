// Package store holds the portal's entity collections in memory and hands
// every committed mutation to the persistence collaborator.
//
// All writes go through Update, which runs the caller's function against a
// private clone of the state. The clone replaces the live state only when
// the function returns nil, so a failing command leaves nothing behind.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"contaportal/internal/domain"
	"contaportal/internal/port"
)

// Collection names shared with the persistence collaborator.
const (
	CollectionUsers       = "users"
	CollectionClients     = "clients"
	CollectionDocuments   = "documents"
	CollectionObligations = "obligations"
	CollectionSession     = "session"
)

// AllCollections lists every persisted collection in load order.
var AllCollections = []string{
	CollectionUsers,
	CollectionClients,
	CollectionDocuments,
	CollectionObligations,
	CollectionSession,
}

// State is one consistent snapshot of every collection.
// Clients is keyed by the owning accountant's user id.
type State struct {
	Users       []domain.User
	Clients     map[uuid.UUID][]domain.ClientRecord
	Documents   []domain.Document
	Obligations []domain.TaxObligation
	Session     *domain.Session
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Clients: map[uuid.UUID][]domain.ClientRecord{}}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := &State{
		Users:       append([]domain.User(nil), s.Users...),
		Clients:     make(map[uuid.UUID][]domain.ClientRecord, len(s.Clients)),
		Documents:   make([]domain.Document, len(s.Documents)),
		Obligations: make([]domain.TaxObligation, len(s.Obligations)),
	}
	for owner, records := range s.Clients {
		cloned := make([]domain.ClientRecord, len(records))
		for i := range records {
			cloned[i] = cloneClientRecord(records[i])
		}
		c.Clients[owner] = cloned
	}
	for i := range s.Documents {
		c.Documents[i] = s.Documents[i]
		c.Documents[i].ReviewedAt = cloneTime(s.Documents[i].ReviewedAt)
	}
	for i := range s.Obligations {
		c.Obligations[i] = s.Obligations[i]
		c.Obligations[i].PaidAt = cloneTime(s.Obligations[i].PaidAt)
	}
	if s.Session != nil {
		session := *s.Session
		c.Session = &session
	}
	return c
}

func cloneClientRecord(r domain.ClientRecord) domain.ClientRecord {
	r.NextDeadline = cloneTime(r.NextDeadline)
	if r.LinkedUserID != nil {
		id := *r.LinkedUserID
		r.LinkedUserID = &id
	}
	return r
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Tx is the mutable view handed to an Update function.
type Tx struct {
	state *State
	dirty map[string]struct{}
}

// State returns the transaction's private copy of the collections.
func (tx *Tx) State() *State {
	return tx.state
}

// Touch marks collections as changed so they are saved on commit.
func (tx *Tx) Touch(names ...string) {
	for _, n := range names {
		tx.dirty[n] = struct{}{}
	}
}

// Options tunes how a Store is opened.
type Options struct {
	// SeedDemoObligations fills an absent obligations collection with a
	// demonstration dataset.
	SeedDemoObligations bool
	Now                 func() time.Time
}

// Store serializes all access to the collections. Only one Update runs at a
// time; View callers share a read lock.
type Store struct {
	mu        sync.RWMutex
	state     *State
	persister port.CollectionStore
}

// New creates a store over an existing state without loading anything.
func New(persister port.CollectionStore, state *State) *Store {
	if state == nil {
		state = NewState()
	}
	if state.Clients == nil {
		state.Clients = map[uuid.UUID][]domain.ClientRecord{}
	}
	return &Store{state: state, persister: persister}
}

// Open loads every collection from persister. Absent collections start
// empty, except obligations which may be seeded.
func Open(ctx context.Context, persister port.CollectionStore, opts Options) (*Store, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	state := NewState()
	var seeded bool
	for _, name := range AllCollections {
		data, err := persister.Load(ctx, name)
		if errors.Is(err, domain.ErrNotFound) {
			if name == CollectionObligations && opts.SeedDemoObligations {
				state.Obligations = DemoObligations(now().UTC())
				seeded = true
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store.Open: loading %s: %w", name, err)
		}
		if err := decodeCollection(state, name, data); err != nil {
			return nil, fmt.Errorf("store.Open: decoding %s: %w", name, err)
		}
	}
	refreshSession(state)

	s := &Store{state: state, persister: persister}
	if seeded {
		s.persist(ctx, state, map[string]struct{}{CollectionObligations: {}})
	}

	log.Info().
		Int("users", len(state.Users)).
		Int("accountants", len(state.Clients)).
		Int("documents", len(state.Documents)).
		Int("obligations", len(state.Obligations)).
		Msg("store.Open: collections loaded")
	return s, nil
}

// refreshSession re-reads the cached user of a restored session and drops
// the session when its user no longer exists.
func refreshSession(state *State) {
	if state.Session == nil {
		return
	}
	for i := range state.Users {
		if state.Users[i].ID == state.Session.UserID {
			state.Session.User = state.Users[i]
			return
		}
	}
	state.Session = nil
}

// View runs fn with read access to the live state. fn must not mutate it or
// retain references after returning.
func (s *Store) View(fn func(st *State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// Snapshot returns a deep copy of the live state.
func (s *Store) Snapshot() *State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Update runs fn against a clone of the state and commits the clone when fn
// returns nil. Collections touched by fn are saved after the commit.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: s.state.Clone(), dirty: map[string]struct{}{}}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	s.persist(ctx, tx.state, tx.dirty)
	return nil
}

// persist saves the dirty collections. The in-memory commit is authoritative,
// so failures are logged and not returned.
func (s *Store) persist(ctx context.Context, state *State, dirty map[string]struct{}) {
	if s.persister == nil || len(dirty) == 0 {
		return
	}
	names := make([]string, 0, len(dirty))
	for n := range dirty {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := encodeCollection(state, name)
		if err != nil {
			log.Error().Err(err).Str("collection", name).Msg("store.persist: encoding failed")
			continue
		}
		if err := s.persister.Save(ctx, name, data); err != nil {
			log.Error().Err(fmt.Errorf("%w: %w", domain.ErrPersistence, err)).
				Str("collection", name).
				Msg("store.persist: save failed")
		}
	}
}

func encodeCollection(state *State, name string) ([]byte, error) {
	switch name {
	case CollectionUsers:
		return json.Marshal(nonNil(state.Users))
	case CollectionClients:
		return json.Marshal(state.Clients)
	case CollectionDocuments:
		return json.Marshal(nonNil(state.Documents))
	case CollectionObligations:
		return json.Marshal(nonNil(state.Obligations))
	case CollectionSession:
		// Only a remembered session survives a restart.
		if state.Session == nil || !state.Session.RememberMe {
			return []byte("null"), nil
		}
		return json.Marshal(state.Session)
	default:
		return nil, fmt.Errorf("unknown collection %q", name)
	}
}

func decodeCollection(state *State, name string, data []byte) error {
	switch name {
	case CollectionUsers:
		return json.Unmarshal(data, &state.Users)
	case CollectionClients:
		clients := map[uuid.UUID][]domain.ClientRecord{}
		if err := json.Unmarshal(data, &clients); err != nil {
			return err
		}
		if clients != nil {
			state.Clients = clients
		}
		return nil
	case CollectionDocuments:
		return json.Unmarshal(data, &state.Documents)
	case CollectionObligations:
		return json.Unmarshal(data, &state.Obligations)
	case CollectionSession:
		return json.Unmarshal(data, &state.Session)
	default:
		return fmt.Errorf("unknown collection %q", name)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
