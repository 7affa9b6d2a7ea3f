package procvar

import (
	"context"
	"errors"
	"fmt"
)

// An Updater receives variable instances whose persisted payload changed and
// must be flushed. VariableStore implementations satisfy it; tests substitute
// recording fakes.
type Updater interface {
	MarkUpdated(ctx context.Context, instance *VariableInstance) error
}

// A CloseListener is notified exactly once when the unit of work it was
// registered on closes. Listeners perform end-of-work bookkeeping, most
// notably verifying decoded values against their persisted payloads.
type CloseListener interface {
	Closing(ctx context.Context, uow *UnitOfWork) error
}

// A UnitOfWork delimits one logical operation over variables. Work performed
// inside it may register close listeners; when the operation finishes, Close
// fires every listener in registration order and the registered updater
// receives every instance whose payload must be flushed.
//
// A UnitOfWork is not safe for concurrent use. It belongs to the goroutine
// running the operation and travels with it through the context (see Inject
// and FromContext).
type UnitOfWork struct {
	updater   Updater
	listeners []CloseListener
	updated   []*VariableInstance
	closed    bool
}

// NewUnitOfWork returns an open unit of work flushing updates to the given
// updater.
func NewUnitOfWork(updater Updater) *UnitOfWork {
	return &UnitOfWork{updater: updater}
}

// RegisterCloseListener arranges for the listener to be notified when this
// unit of work closes. Registration order is preserved; there is no
// deduplication, so registering the same listener twice notifies it twice.
func (u *UnitOfWork) RegisterCloseListener(l CloseListener) {
	u.listeners = append(u.listeners, l)
}

// MarkUpdated flushes the instance to the registered updater and records it as
// updated within this unit of work.
func (u *UnitOfWork) MarkUpdated(ctx context.Context, instance *VariableInstance) error {
	if err := u.updater.MarkUpdated(ctx, instance); err != nil {
		return err
	}
	u.updated = append(u.updated, instance)
	return nil
}

// Updated returns the instances flushed within this unit of work, in flush
// order. The returned slice is a copy.
func (u *UnitOfWork) Updated() []*VariableInstance {
	updated := make([]*VariableInstance, len(u.updated))
	copy(updated, u.updated)
	return updated
}

// Close fires every registered close listener in registration order and marks
// the unit of work closed. Listeners registered while earlier listeners fire
// are fired too, after everything registered before them.
//
// The first listener failure aborts the remaining listeners: a failed
// verification means the in-memory picture and the persisted picture have
// diverged in a way this package cannot reconcile, and continuing would flush
// on top of that divergence.
func (u *UnitOfWork) Close(ctx context.Context) error {
	if u.closed {
		return errors.New("unit of work already closed")
	}
	u.closed = true
	// Index loop on purpose: listeners may register further listeners.
	for i := 0; i < len(u.listeners); i++ {
		if err := u.listeners[i].Closing(ctx, u); err != nil {
			return fmt.Errorf("close listener %d: %w", i, err)
		}
	}
	return nil
}

type unitOfWorkKey struct{}

// Inject returns a context carrying the given unit of work. Variable types
// consult the context to decide whether reads and writes participate in
// mutation tracking.
func Inject(ctx context.Context, uow *UnitOfWork) context.Context {
	return context.WithValue(ctx, unitOfWorkKey{}, uow)
}

// FromContext returns the unit of work carried by the context, or nil when the
// context carries none.
func FromContext(ctx context.Context) *UnitOfWork {
	uow, _ := ctx.Value(unitOfWorkKey{}).(*UnitOfWork)
	return uow
}

// Run executes fn inside a fresh unit of work and closes it afterwards. The
// unit of work is closed even when fn fails, so verification listeners always
// get their chance to flush mutations performed before the failure; both
// errors are reported when both occur.
func Run(ctx context.Context, updater Updater, fn func(ctx context.Context) error) error {
	uow := NewUnitOfWork(updater)
	ctx = Inject(ctx, uow)
	return errors.Join(fn(ctx), uow.Close(ctx))
}
