package bus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestNilBus(t *testing.T) {
	var b *Bus
	ctx := context.Background()

	if err := b.Publish(ctx, "pmgmt.test", map[string]string{"a": "b"}); err == nil {
		t.Error("Publish on nil bus succeeded")
	}
	if err := b.EnsureStream(ctx, "PMGMT", "pmgmt.>"); err == nil {
		t.Error("EnsureStream on nil bus succeeded")
	}
	if _, err := b.Subscribe(ctx, "pmgmt.>", "", func(context.Context, string, []byte) error { return nil }); err == nil {
		t.Error("Subscribe on nil bus succeeded")
	}
	b.Close()
}

func TestNewUnreachable(t *testing.T) {
	_, err := New("nats://127.0.0.1:1", nats.Timeout(500*time.Millisecond))
	if err == nil {
		t.Fatal("New() connected to a closed port")
	}
}

func TestCheckSubject(t *testing.T) {
	tests := []struct {
		subject string
		filter  bool
		wantErr bool
	}{
		{subject: SubjectUpdatesReceived},
		{subject: SubjectHostDeleted},
		{subject: StreamSubjects, filter: true},
		{subject: "pmgmt.hosts.*", filter: true},
		{subject: StreamSubjects, wantErr: true},
		{subject: "pmgmt.hosts.*", wantErr: true},
		{subject: "inventory.facts", wantErr: true},
		{subject: "pmgmt", filter: true, wantErr: true},
		{subject: "pmgmt..created", wantErr: true},
		{subject: "pmgmt.>.created", filter: true, wantErr: true},
		{subject: "pmgmt.hosts.cre*ted", filter: true, wantErr: true},
		{subject: "pmgmt.hosts created", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			err := CheckSubject(tt.subject, tt.filter)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSubject(%q, %v) error = %v, wantErr %v", tt.subject, tt.filter, err, tt.wantErr)
			}
		})
	}
}

func TestEventID(t *testing.T) {
	if got := eventID(map[string]any{"event_id": "run-1"}); got != "run-1" {
		t.Errorf("eventID() = %q, want run-1", got)
	}
	if got := eventID(map[string]any{"host_id": "h"}); got != "" {
		t.Errorf("eventID() without id = %q", got)
	}
	if got := eventID("plain"); got != "" {
		t.Errorf("eventID(string) = %q", got)
	}
}
