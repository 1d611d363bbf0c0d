package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"catalog-core/internal/domain"
	"catalog-core/internal/persistence"
	"catalog-core/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func decode(t *testing.T, m kafka.Message) Event {
	t.Helper()
	var e Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	return e
}

func TestPublisher_OneMessagePerChange(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{Topic: "catalog.changes"}, nil)

	actor := "admin-1"
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	changes := []persistence.Change{
		{Collection: "categories", ID: uuid.New(), Op: persistence.Added, Actor: &actor, At: at},
		{Collection: "products", ID: uuid.New(), Op: persistence.Modified, At: at},
		{Collection: "tags", ID: uuid.New(), Op: persistence.Deleted, At: at},
	}
	if err := p.Publish(context.Background(), changes); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(w.msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(w.msgs))
	}

	wantOps := []string{"created", "updated", "deleted"}
	for i, m := range w.msgs {
		if string(m.Key) != changes[i].ID.String() {
			t.Errorf("message %d keyed %q, want entity id", i, m.Key)
		}
		e := decode(t, m)
		if e.Op != wantOps[i] {
			t.Errorf("message %d op = %q, want %q", i, e.Op, wantOps[i])
		}
		if e.Collection != changes[i].Collection || e.ID != changes[i].ID || !e.At.Equal(at) {
			t.Errorf("message %d does not describe its change: %+v", i, e)
		}
		if e.EventID == uuid.Nil {
			t.Errorf("message %d has no event id", i)
		}
	}
	if a := decode(t, w.msgs[0]).Actor; a == nil || *a != actor {
		t.Errorf("expected actor %q on first event", actor)
	}
}

func TestPublisher_HookPublishesCommittedChanges(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{}, nil)
	f := persistence.NewFactory(memory.New(zap.NewNop()), persistence.WithCommitHook(p.Hook()))
	ctx := persistence.WithActor(context.Background(), "editor")

	uow := f.New()
	c, err := domain.NewCategory("Beverages", nil, 0)
	if err != nil {
		t.Fatalf("NewCategory failed: %v", err)
	}
	if err := uow.Categories().Add(ctx, c); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(w.msgs) != 0 {
		t.Fatal("nothing should be published before commit")
	}
	if err := uow.Commit(ctx); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	e := decode(t, w.msgs[0])
	if e.ID != c.ID || e.Collection != "categories" || e.Op != "created" {
		t.Errorf("unexpected event %+v", e)
	}
	if e.Actor == nil || *e.Actor != "editor" {
		t.Errorf("expected actor editor, got %v", e.Actor)
	}
}

func TestPublisher_RolledBackChangesAreNotPublished(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{}, nil)
	f := persistence.NewFactory(memory.New(zap.NewNop()), persistence.WithCommitHook(p.Hook()))
	ctx := context.Background()

	uow := f.New()
	if err := uow.BeginTransaction(ctx); err != nil {
		t.Fatalf("BeginTransaction failed: %v", err)
	}
	tag, _ := domain.NewTag("seasonal", 0)
	_ = uow.Tags().Add(ctx, tag)
	if _, err := uow.SaveChanges(ctx); err != nil {
		t.Fatalf("SaveChanges failed: %v", err)
	}
	if err := uow.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if len(w.msgs) != 0 {
		t.Errorf("expected no messages after rollback, got %d", len(w.msgs))
	}
}

func TestPublisher_HookLogsWriteFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := newPublisher(w, Config{}, zap.New(core))

	p.Hook()(context.Background(), []persistence.Change{{Collection: "tags", ID: uuid.New(), Op: persistence.Added}})

	if logs.FilterMessage("Failed to publish change events").Len() != 1 {
		t.Error("expected the write failure to be logged")
	}
}

func TestPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{}, nil)
	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("expected writer closed, err=%v", err)
	}
}
