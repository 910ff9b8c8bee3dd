package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/event"
	"github.com/xerikgaming91-boop/boosting-bot-react-sub000/internal/store/postgres"
)

func TestEventStore_AppendAndLoad(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	aggID := "raid-001"
	events := []event.Event{
		{AggregateID: aggID, Type: event.RaidCreated, Data: json.RawMessage(`{"title":"Heroic Clear"}`), Version: 1},
		{AggregateID: aggID, Type: event.SignupPicked, Data: json.RawMessage(`{"signup_id":"s1","user_id":"u1"}`), Version: 2},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := es.Load(ctx, aggID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load returned %d events, want 2", len(loaded))
	}

	// Should be ordered by version.
	if loaded[0].Version != 1 || loaded[1].Version != 2 {
		t.Errorf("versions = [%d, %d], want [1, 2]", loaded[0].Version, loaded[1].Version)
	}
	if loaded[0].Type != event.RaidCreated {
		t.Errorf("event[0].Type = %q, want %q", loaded[0].Type, event.RaidCreated)
	}
}

func TestEventStore_LoadByType(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	events := []event.Event{
		{AggregateID: "r1", Type: event.SignupPicked, Data: json.RawMessage(`{}`), Version: 1},
		{AggregateID: "r1", Type: event.SignupEvicted, Data: json.RawMessage(`{}`), Version: 2},
		{AggregateID: "r2", Type: event.SignupPicked, Data: json.RawMessage(`{}`), Version: 1},
	}

	if err := es.Append(ctx, events...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	picks, err := es.LoadByType(ctx, event.SignupPicked)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(picks) != 2 {
		t.Fatalf("LoadByType(SignupPicked) returned %d, want 2", len(picks))
	}

	evictions, err := es.LoadByType(ctx, event.SignupEvicted)
	if err != nil {
		t.Fatalf("LoadByType: %v", err)
	}
	if len(evictions) != 1 {
		t.Fatalf("LoadByType(SignupEvicted) returned %d, want 1", len(evictions))
	}
}

func TestEventStore_UniqueAggregateVersion(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	e := event.Event{
		AggregateID: "dup-test",
		Type:        event.RaidUpdated,
		Data:        json.RawMessage(`{}`),
		Version:     1,
	}

	if err := es.Append(ctx, e); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	// Duplicate version for the same aggregate should fail.
	err := es.Append(ctx, e)
	if err == nil {
		t.Fatal("expected error for duplicate aggregate_id + version")
	}
}

func TestEventStore_LoadEmpty(t *testing.T) {
	db := newTestDB(t)
	es := postgres.NewEventStore(db)
	ctx := context.Background()

	loaded, err := es.Load(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("expected empty slice, got %d events", len(loaded))
	}
}
