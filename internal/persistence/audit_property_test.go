package persistence

import (
	"context"
	"testing"
	"time"

	"catalog-core/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Feature: catalog-core, Property: added entities are stamped with the save time and actor
func TestProperty_AuditStampingOnAdd(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("CreatedAt equals ModifiedAt and both actors are set", prop.ForAll(
		func(name string, actor string, offsetMs int64) bool {
			f, _, clock := newTestFactory()
			clock.Advance(time.Duration(offsetMs)*time.Millisecond + 123456*time.Nanosecond)
			ctx := WithActor(context.Background(), actor)
			u := f.New()

			c, err := domain.NewCategory(name, nil, 0)
			if err != nil {
				t.Logf("FAIL: NewCategory error: %v", err)
				return false
			}
			if err := u.Categories().Add(ctx, c); err != nil {
				t.Logf("FAIL: Add error: %v", err)
				return false
			}
			if _, err := u.SaveChanges(ctx); err != nil {
				t.Logf("FAIL: SaveChanges error: %v", err)
				return false
			}

			want := clock.Now().UTC().Truncate(time.Millisecond)
			if !c.CreatedAt.Equal(want) || c.ModifiedAt == nil || !c.ModifiedAt.Equal(want) {
				t.Logf("FAIL: stamps created=%v modified=%v want %v", c.CreatedAt, c.ModifiedAt, want)
				return false
			}
			if c.CreatedBy == nil || *c.CreatedBy != actor || c.ModifiedBy == nil || *c.ModifiedBy != actor {
				t.Logf("FAIL: actors created=%v modified=%v", c.CreatedBy, c.ModifiedBy)
				return false
			}

			stored, ok, err := f.New().Categories().GetByID(context.Background(), c.ID)
			if err != nil || !ok {
				t.Logf("FAIL: GetByID = %v, %v", ok, err)
				return false
			}
			return stored.CreatedAt.Equal(want) && *stored.CreatedBy == actor
		},
		gen.RegexMatch(`[A-Za-z][A-Za-z0-9 ]{0,40}`),
		gen.RegexMatch(`[a-z]{1,12}`),
		gen.Int64Range(0, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Feature: catalog-core, Property: updates never move CreatedAt and always move ModifiedAt forward
func TestProperty_CreatedAtImmutable(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("CreatedAt and CreatedBy survive any sequence of updates", prop.ForAll(
		func(steps []int64, tamperMs int64) bool {
			f, _, clock := newTestFactory()
			ctx := WithActor(context.Background(), "creator")
			u := f.New()

			c, _ := domain.NewCategory("Stable", nil, 0)
			_ = u.Categories().Add(ctx, c)
			if _, err := u.SaveChanges(ctx); err != nil {
				t.Logf("FAIL: SaveChanges error: %v", err)
				return false
			}
			created := c.CreatedAt
			previous := *c.ModifiedAt

			editor := WithActor(context.Background(), "editor")
			for i, step := range steps {
				// steps may be zero or negative: the clock can stand still or go back.
				clock.Advance(time.Duration(step) * time.Millisecond)
				c.CreatedAt = created.Add(time.Duration(tamperMs) * time.Hour)
				c.CreatedBy = nil
				_ = c.SetDisplayOrder(i)
				if err := u.Categories().Update(editor, c); err != nil {
					t.Logf("FAIL: Update error: %v", err)
					return false
				}
				if _, err := u.SaveChanges(editor); err != nil {
					t.Logf("FAIL: SaveChanges error: %v", err)
					return false
				}
				if !c.CreatedAt.Equal(created) || c.CreatedBy == nil || *c.CreatedBy != "creator" {
					t.Logf("FAIL: created fields changed to %v/%v", c.CreatedAt, c.CreatedBy)
					return false
				}
				if !c.ModifiedAt.After(previous) {
					t.Logf("FAIL: ModifiedAt %v not after %v", c.ModifiedAt, previous)
					return false
				}
				if *c.ModifiedBy != "editor" {
					t.Logf("FAIL: ModifiedBy = %v", *c.ModifiedBy)
					return false
				}
				previous = *c.ModifiedAt
			}

			stored, _, _ := f.New().Categories().GetByID(context.Background(), c.ID)
			return stored.CreatedAt.Equal(created) && *stored.CreatedBy == "creator"
		},
		gen.SliceOfN(5, gen.Int64Range(-2000, 2000)),
		gen.Int64Range(-48, 48),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
