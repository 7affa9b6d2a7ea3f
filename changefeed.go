package procvar

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
	"golang.org/x/sync/errgroup"
)

// VariableChanged notifies subscribers that a variable's persisted payload
// changed within some unit of work. It carries no payload of its own;
// interested parties read the variable back through a store.
type VariableChanged struct {
	ScopeID   string
	Name      string
	TypeName  string
	Timestamp time.Time
}

// PublishChanges announces every instance updated within the given unit of
// work on the topic, one VariableChanged message per instance. It is meant to
// run after the unit of work closed, so the announced set includes flushes
// performed by verification listeners.
//
// Messages are published concurrently; the first failure is reported after all
// sends settle.
func PublishChanges(ctx context.Context, topic *pubsub.Topic, uow *UnitOfWork) error {
	now := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for _, instance := range uow.Updated() {
		changed := VariableChanged{
			ScopeID:   instance.ScopeID(),
			Name:      instance.Name(),
			TypeName:  instance.TypeName(),
			Timestamp: now,
		}
		g.Go(func() error {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(changed); err != nil {
				return fmt.Errorf("encode notification for %q: %w", changed.Name, err)
			}
			if err := topic.Send(ctx, &pubsub.Message{Body: buf.Bytes()}); err != nil {
				return fmt.Errorf("publish notification for %q: %w", changed.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// WatchChanges returns a component.Proc that continuously receives
// VariableChanged messages from the subscription and passes them to the given
// handler.
func WatchChanges(sub *pubsub.Subscription, handle func(ctx context.Context, changed VariableChanged) error) component.Proc {
	return func(l *component.L) {
		for l.Continue() {
			msg, err := sub.Receive(l.Context())
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					// the surrounding component is winding down
					return
				}
				l.Fatal(fmt.Errorf("receive: %w", err))
			}
			// Acknowledge before decoding. An undecodable notification
			// would otherwise be redelivered and wedge the watcher on
			// the same message.
			msg.Ack()

			var changed VariableChanged
			if err := gob.NewDecoder(bytes.NewReader(msg.Body)).Decode(&changed); err != nil {
				l.Fatal(fmt.Errorf("decode: %w", err))
			}

			if err := handle(l.Context(), changed); err != nil {
				l.Fatal(fmt.Errorf("process: %w", err))
			}
		}
	}
}
