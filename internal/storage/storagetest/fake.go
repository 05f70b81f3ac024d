// Package storagetest provides in-memory fakes for internal/storage's
// three store interfaces, grounded on the teacher's
// pkg/agent/transport.MockTransport: a plain (non-_test.go) struct living
// next to the interface it substitutes for, mutex-protected so
// table-driven tests can exercise concurrent callers, with behavior
// overridable per test where needed rather than hand-rolled per call site.
package storagetest

import (
	"context"
	"sync"

	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/storage"
)

// EventStore is an in-memory storage.EventStore.
type EventStore struct {
	mu      sync.Mutex
	records map[string]storage.EventRecord
	keys    map[string][]byte
	owners  map[string]string
}

// NewEventStore returns an empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		records: make(map[string]storage.EventRecord),
		keys:    make(map[string][]byte),
		owners:  make(map[string]string),
	}
}

func (s *EventStore) Create(ctx context.Context, e storage.EventRecord, eventKey []byte, ownerPublicKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[e.ID] = e
	s.keys[e.ID] = eventKey
	s.owners[e.ID] = ownerPublicKey
	return nil
}

func (s *EventStore) Load(ctx context.Context, eventID string) (*storage.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[eventID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *EventStore) Search(ctx context.Context, text string, limit int) ([]storage.EventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.EventRecord
	for _, rec := range s.records {
		if len(out) >= limit {
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *EventStore) Delete(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[eventID]; !ok {
		return false, nil
	}
	delete(s.records, eventID)
	delete(s.keys, eventID)
	delete(s.owners, eventID)
	return true, nil
}

func (s *EventStore) LoadEventKey(ctx context.Context, eventID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[eventID], nil
}

func (s *EventStore) LoadOwnerPublicKey(ctx context.Context, eventID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[eventID], nil
}

func (s *EventStore) LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk, ok := s.owners[eventID]
	if !ok {
		return nil, nil
	}
	return cryptoutil.SHA256Bytes([]byte(pk)), nil
}

// Bump directly mutates the issued/tickets counters on an existing
// record, letting a test simulate a near-sold-out event without going
// through TicketStore.Issue.
func (s *EventStore) Bump(eventID string, issued, tickets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[eventID]
	rec.Issued = issued
	rec.Tickets = tickets
	s.records[eventID] = rec
}

// TicketStore is an in-memory storage.TicketStore backed by the same
// events map an EventStore fake holds, since Issue/Reissue/AdvanceState
// all condition on events.issued the way the real Postgres CAS queries
// join against the events table.
type TicketStore struct {
	mu    sync.Mutex
	state map[ticketKey]int
	flags map[ticketKey]int
	flagsEnabled map[string]bool
	events *EventStore
}

type ticketKey struct {
	eventID string
	number  int
}

// NewTicketStore wraps events, the EventStore fake it shares an issued
// counter with.
func NewTicketStore(events *EventStore) *TicketStore {
	return &TicketStore{
		state:        make(map[ticketKey]int),
		flags:        make(map[ticketKey]int),
		flagsEnabled: make(map[string]bool),
		events:       events,
	}
}

// EnableFlags marks eventID as flag-enabled, mirroring the real schema's
// event_data.flag_bytes being non-null only for such events.
func (s *TicketStore) EnableFlags(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagsEnabled[eventID] = true
}

func (s *TicketStore) Issue(ctx context.Context, eventID string) (int, bool, error) {
	s.events.mu.Lock()
	rec, ok := s.events.records[eventID]
	if !ok || rec.Issued >= rec.Tickets {
		s.events.mu.Unlock()
		return 0, false, nil
	}
	number := rec.Issued
	rec.Issued++
	s.events.records[eventID] = rec
	s.events.mu.Unlock()

	s.mu.Lock()
	s.state[ticketKey{eventID, number}] = 0
	if s.flagsOn(eventID) {
		s.flags[ticketKey{eventID, number}] = 0
	}
	s.mu.Unlock()
	return number, true, nil
}

// flagsOn reports whether eventID has flags, either marked via EnableFlags
// or created with EnableFlags set. Callers hold s.mu.
func (s *TicketStore) flagsOn(eventID string) bool {
	if s.flagsEnabled[eventID] {
		return true
	}
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	return s.events.records[eventID].EnableFlags
}

func (s *TicketStore) issuedLimit(eventID string) int {
	s.events.mu.Lock()
	defer s.events.mu.Unlock()
	return s.events.records[eventID].Issued
}

func (s *TicketStore) Reissue(ctx context.Context, eventID string, number, version int) (bool, error) {
	if number >= s.issuedLimit(eventID) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketKey{eventID, number}
	if s.state[key] != version {
		return false, nil
	}
	s.state[key] = version + 1
	return true, nil
}

func (s *TicketStore) AdvanceState(ctx context.Context, eventID string, number, data, threshold int) (bool, error) {
	if number >= s.issuedLimit(eventID) {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketKey{eventID, number}
	if s.state[key] >= threshold {
		return false, nil
	}
	s.state[key] = data
	return true, nil
}

func (s *TicketStore) LoadStateByte(ctx context.Context, eventID string, number int) (int, bool, error) {
	if number >= s.issuedLimit(eventID) {
		return 0, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state[ticketKey{eventID, number}]
	return b, ok, nil
}

func (s *TicketStore) LoadFlagByte(ctx context.Context, eventID string, number int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.flagsOn(eventID) {
		return 0, false, nil
	}
	b, ok := s.flags[ticketKey{eventID, number}]
	return b, ok, nil
}

func (s *TicketStore) UpdateFlagByte(ctx context.Context, eventID string, number int, mask, value byte) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.flagsOn(eventID) {
		return 0, false, nil
	}
	key := ticketKey{eventID, number}
	cur, ok := s.flags[key]
	if !ok {
		return 0, false, nil
	}
	next := (byte(cur) & mask) | value
	s.flags[key] = int(next)
	return int(next), true, nil
}

// PermissionsStore is an in-memory storage.PermissionsStore sharing an
// EventStore's owner map, since LoadOwnerPublicKeyHash is common to both
// real implementations (they're both views over the same events row).
type PermissionsStore struct {
	mu     sync.Mutex
	rows   map[ticketKey2]storage.PermissionFields
	events *EventStore
}

type ticketKey2 struct {
	eventID string
	hash    string
}

// NewPermissionsStore wraps events for owner-hash lookups.
func NewPermissionsStore(events *EventStore) *PermissionsStore {
	return &PermissionsStore{rows: make(map[ticketKey2]storage.PermissionFields), events: events}
}

func (s *PermissionsStore) LoadOwnerPublicKeyHash(ctx context.Context, eventID string) ([]byte, bool, error) {
	h, err := s.events.LoadOwnerPublicKeyHash(ctx, eventID)
	if err != nil || h == nil {
		return nil, false, err
	}
	return h, true, nil
}

func (s *PermissionsStore) LoadPermissions(ctx context.Context, eventID string, publicKeyHash []byte) (*storage.PermissionFields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fields, ok := s.rows[ticketKey2{eventID, string(publicKeyHash)}]
	if !ok {
		return nil, nil
	}
	return &fields, nil
}

func (s *PermissionsStore) UpdatePermissions(ctx context.Context, eventID string, publicKeyHash []byte, fields storage.PermissionFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ticketKey2{eventID, string(publicKeyHash)}] = fields
	return nil
}

func (s *PermissionsStore) RemovePermissions(ctx context.Context, eventID string, publicKeyHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, ticketKey2{eventID, string(publicKeyHash)})
	return nil
}
