// Package storetest provides an in-memory remote store and helpers shared by
// the store, reconcile and service tests.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/matchnote/matchnote/pkg/models"
	"github.com/matchnote/matchnote/pkg/store"
)

// MemoryRemote is a Remote that keeps JSON documents in memory.
//
// Documents are stored encoded, so callers never share a record value with
// the store. Failures can be injected per kind.
type MemoryRemote struct {
	mu         sync.Mutex
	docs       map[models.Kind]map[string][]byte
	failWrites map[models.Kind]error
	failFetch  map[models.Kind]error
	writes     int
}

var _ store.Remote = (*MemoryRemote)(nil)

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		docs:       make(map[models.Kind]map[string][]byte),
		failWrites: make(map[models.Kind]error),
		failFetch:  make(map[models.Kind]error),
	}
}

// FailWrites makes every Save and Update of kind return err. A nil err clears it.
func (m *MemoryRemote) FailWrites(kind models.Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failWrites, kind)
		return
	}
	m.failWrites[kind] = err
}

// FailFetch makes GetAll of kind return err. A nil err clears it.
func (m *MemoryRemote) FailFetch(kind models.Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failFetch, kind)
		return
	}
	m.failFetch[kind] = err
}

// Writes returns the number of successful Save and Update calls.
func (m *MemoryRemote) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Len returns the number of documents of kind across all owners.
func (m *MemoryRemote) Len(kind models.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs[kind])
}

// Get decodes the document of owner's record id, or returns nil.
func (m *MemoryRemote) Get(kind models.Kind, owner, id string) models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.docs[kind][owner+"_"+id]
	if !ok {
		return nil
	}
	r, err := decode(kind, raw)
	if err != nil {
		panic(err)
	}
	return r
}

func (m *MemoryRemote) Save(ctx context.Context, r models.Record) error {
	return m.put(ctx, r)
}

func (m *MemoryRemote) Update(ctx context.Context, r models.Record) error {
	return m.put(ctx, r)
}

func (m *MemoryRemote) put(ctx context.Context, r models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", r.Kind(), r.RecordID(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failWrites[r.Kind()]; err != nil {
		return err
	}
	docs, ok := m.docs[r.Kind()]
	if !ok {
		docs = make(map[string][]byte)
		m.docs[r.Kind()] = docs
	}
	docs[models.DocumentID(r)] = raw
	m.writes++
	return nil
}

func (m *MemoryRemote) GetAll(ctx context.Context, kind models.Kind, owner string) ([]models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := models.Describe(kind); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFetch[kind]; err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(m.docs[kind]))
	for id := range m.docs[kind] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []models.Record
	for _, id := range ids {
		r, err := decode(kind, m.docs[kind][id])
		if err != nil {
			return nil, err
		}
		if r.Owner() == owner {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryRemote) Close() error { return nil }

func decode(kind models.Kind, raw []byte) (models.Record, error) {
	r, err := models.New(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return r, nil
}
