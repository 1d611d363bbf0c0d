package persistence

import (
	"slices"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/storage"

	"github.com/google/uuid"
)

// EntryState is the pending operation of a tracked entity.
type EntryState int

const (
	Unchanged EntryState = iota
	Added
	Modified
	Deleted
)

func (s EntryState) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unchanged"
}

type entryKey struct {
	collection string
	id         uuid.UUID
}

type entry struct {
	schema *storage.Schema
	entity Entity
	state  EntryState
	seq    int
	// original holds the audit fields as last read from or written to the store.
	original domain.Entity
	actor    *string
}

type tracker struct {
	entries map[entryKey]*entry
	seq     int
}

func newTracker() *tracker {
	return &tracker{entries: make(map[entryKey]*entry)}
}

func (t *tracker) get(schema *storage.Schema, id uuid.UUID) *entry {
	return t.entries[entryKey{schema.Collection, id}]
}

func (t *tracker) attach(schema *storage.Schema, e Entity, state EntryState, original domain.Entity, actor *string) *entry {
	en := &entry{schema: schema, entity: e, original: original}
	t.entries[entryKey{schema.Collection, e.Key()}] = en
	t.mark(en, state, actor)
	return en
}

func (t *tracker) mark(en *entry, state EntryState, actor *string) {
	en.state = state
	if state != Unchanged {
		t.seq++
		en.seq = t.seq
		en.actor = actor
	}
}

func (t *tracker) detach(schema *storage.Schema, id uuid.UUID) {
	delete(t.entries, entryKey{schema.Collection, id})
}

// pending returns the entries with a staged operation in staging order.
func (t *tracker) pending() []*entry {
	var out []*entry
	for _, en := range t.entries {
		if en.state != Unchanged {
			out = append(out, en)
		}
	}
	slices.SortFunc(out, func(a, b *entry) int { return a.seq - b.seq })
	return out
}

func (t *tracker) clear() {
	t.entries = make(map[entryKey]*entry)
	t.seq = 0
}

// stamp applies the audit rules to en at now.
func stamp(en *entry, now time.Time) {
	base := en.entity.Base()
	switch en.state {
	case Added:
		base.CreatedAt = now
		at := now
		base.ModifiedAt = &at
		base.CreatedBy = cloneString(en.actor)
		base.ModifiedBy = cloneString(en.actor)
	case Modified:
		base.CreatedAt = en.original.CreatedAt
		base.CreatedBy = cloneString(en.original.CreatedBy)
		at := now
		if prev := en.original.ModifiedAt; prev != nil && !at.After(*prev) {
			at = prev.Add(time.Millisecond)
		}
		base.ModifiedAt = &at
		base.ModifiedBy = cloneString(en.actor)
	}
}

func snapshot(e Entity) domain.Entity {
	b := e.Base()
	s := *b
	if b.ModifiedAt != nil {
		at := *b.ModifiedAt
		s.ModifiedAt = &at
	}
	s.CreatedBy = cloneString(b.CreatedBy)
	s.ModifiedBy = cloneString(b.ModifiedBy)
	return s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
