package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity holds the identity and audit fields shared by every persisted type.
// CreatedAt is set once when the entity is first saved; ModifiedAt and the
// actor fields are maintained by the unit of work.
type Entity struct {
	ID         uuid.UUID  `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	CreatedBy  *string    `json:"created_by,omitempty"`
	ModifiedBy *string    `json:"modified_by,omitempty"`
}

func newEntity() Entity {
	return Entity{ID: uuid.New()}
}

// Base exposes the embedded audit fields to generic persistence code.
func (e *Entity) Base() *Entity {
	return e
}

// Key returns the entity identifier.
func (e *Entity) Key() uuid.UUID {
	return e.ID
}

// IsTransient reports whether the entity has never been saved.
func (e *Entity) IsTransient() bool {
	return e.CreatedAt.IsZero()
}

func (e *Entity) auditValue(field string) (any, bool) {
	switch field {
	case FieldID:
		return e.ID, true
	case FieldCreatedAt:
		return e.CreatedAt, true
	case FieldModifiedAt:
		return e.ModifiedAt, true
	case FieldCreatedBy:
		return e.CreatedBy, true
	case FieldModifiedBy:
		return e.ModifiedBy, true
	}
	return nil, false
}

func (e *Entity) auditTargets() []any {
	return []any{&e.ID, &e.CreatedAt, &e.ModifiedAt, &e.CreatedBy, &e.ModifiedBy}
}

func (e Entity) clone() Entity {
	return Entity{
		ID:         e.ID,
		CreatedAt:  e.CreatedAt,
		ModifiedAt: cloneTime(e.ModifiedAt),
		CreatedBy:  cloneString(e.CreatedBy),
		ModifiedBy: cloneString(e.ModifiedBy),
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
