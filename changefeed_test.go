package procvar

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gocloud.dev/pubsub/mempubsub"
)

func TestPublishChanges(t *testing.T) {
	ctx := context.Background()

	topic := mempubsub.NewTopic()
	defer func() {
		if err := topic.Shutdown(ctx); err != nil {
			t.Error("Failed to shut down topic:", err)
		}
	}()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	defer func() {
		if err := sub.Shutdown(ctx); err != nil {
			t.Error("Failed to shut down subscription:", err)
		}
	}()

	// Flush two variables through a unit of work, then announce them.
	updater := &recordingUpdater{}
	uow := NewUnitOfWork(updater)
	registry := DefaultRegistry(&SerializableType{})
	for name, value := range map[string]any{"status": "pending", "attempts": int64(3)} {
		instance := NewVariableInstance("order-1", name)
		if err := registry.SetVariable(ctx, instance, value); err != nil {
			t.Fatalf("SetVariable(%v) failed: %v", name, err)
		}
		if err := uow.MarkUpdated(ctx, instance); err != nil {
			t.Fatalf("MarkUpdated(%v) failed: %v", name, err)
		}
	}
	if err := uow.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := PublishChanges(ctx, topic, uow); err != nil {
		t.Fatalf("PublishChanges failed: %v", err)
	}

	var got []VariableChanged
	for range 2 {
		msg, err := sub.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		msg.Ack()

		var changed VariableChanged
		if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&changed); err != nil {
			t.Fatalf("decode notification: %v", err)
		}
		if changed.Timestamp.IsZero() {
			t.Error("notification carries no timestamp")
		}
		got = append(got, changed)
	}

	// Notifications are published concurrently, so order is not guaranteed.
	sort.Slice(got, func(i, j int) bool { return got[i].Name < got[j].Name })
	want := []VariableChanged{
		{ScopeID: "order-1", Name: "attempts", TypeName: "int64"},
		{ScopeID: "order-1", Name: "status", TypeName: "string"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(VariableChanged{}, "Timestamp")); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%v", diff)
	}
}

func TestPublishChangesEmpty(t *testing.T) {
	ctx := context.Background()

	topic := mempubsub.NewTopic()
	defer func() { _ = topic.Shutdown(ctx) }()

	uow := NewUnitOfWork(&recordingUpdater{})
	if err := uow.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := PublishChanges(ctx, topic, uow); err != nil {
		t.Fatalf("PublishChanges of an empty unit of work failed: %v", err)
	}
}

func ExampleWatchChanges() {
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)

	proc := WatchChanges(sub, func(ctx context.Context, changed VariableChanged) error {
		// React to the change, e.g. invalidate a cache entry.
		return nil
	})
	_ = proc // Hand the proc to a component runner.
}
