package store

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestAuditLogRecordsHostChanges(t *testing.T) {
	s, database := newTestStore(t)
	ctx := WithActor(context.Background(), "admin")

	h, err := s.CreateHost(ctx, "web-01")
	if err != nil {
		t.Fatalf("CreateHost() error = %v", err)
	}
	if _, err := s.RotateAPIKey(ctx, h.ID); err != nil {
		t.Fatalf("RotateAPIKey() error = %v", err)
	}
	if err := s.DeleteHost(context.Background(), h.ID); err != nil {
		t.Fatalf("DeleteHost() error = %v", err)
	}

	entries, err := s.AuditLog(context.Background(), 0)
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	want := []struct{ action, actor string }{
		{AuditHostDeleted, defaultActor},
		{AuditHostKeyRotated, "admin"},
		{AuditHostCreated, "admin"},
	}
	for i, w := range want {
		e := entries[i]
		if e.Action != w.action || e.Actor != w.actor {
			t.Errorf("entry %d = %s by %s, want %s by %s", i, e.Action, e.Actor, w.action, w.actor)
		}
		if e.Obj != h.ID.String() {
			t.Errorf("entry %d obj = %q, want %s", i, e.Obj, h.ID)
		}
		if e.Details["hostname"] != "web-01" {
			t.Errorf("entry %d details = %v", i, e.Details)
		}
	}

	if got := countRows(t, database, "audit"); got != 3 {
		t.Errorf("audit rows = %d, want 3", got)
	}
}

func TestAuditLogSkipsFailedChanges(t *testing.T) {
	s, database := newTestStore(t)
	ctx := context.Background()

	mustCreateHost(t, s, "web-01")
	if _, err := s.CreateHost(ctx, "web-01"); !errors.Is(err, ErrHostnameTaken) {
		t.Fatalf("duplicate CreateHost() error = %v", err)
	}
	if _, err := s.RotateAPIKey(ctx, uuid.New()); !errors.Is(err, ErrHostNotFound) {
		t.Fatalf("RotateAPIKey(unknown) error = %v", err)
	}
	if err := s.DeleteHost(ctx, uuid.New()); !errors.Is(err, ErrHostNotFound) {
		t.Fatalf("DeleteHost(unknown) error = %v", err)
	}

	if got := countRows(t, database, "audit"); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}
}

func TestAuditLogLimit(t *testing.T) {
	s, _ := newTestStore(t)
	for _, name := range []string{"a-01", "b-01", "c-01"} {
		mustCreateHost(t, s, name)
	}

	entries, err := s.AuditLog(context.Background(), 2)
	if err != nil {
		t.Fatalf("AuditLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Details["hostname"] != "c-01" {
		t.Errorf("newest entry = %v, want c-01", entries[0].Details)
	}
}
