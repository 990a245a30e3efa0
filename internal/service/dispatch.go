// Package service holds the portal's domain logic: credentials, the phase
// engine, payment reconciliation and project messages.  Every state change
// is committed through the project repository before any notification is
// dispatched, and a notification failure never undoes a committed change.
package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/project-portal/internal/queue"
)

// Notifier is the outbound side of the notification dispatcher.
type Notifier interface {
	Notify(ctx context.Context, ev queue.NotificationEvent) error
}

// Dispatcher sends notifications in the background with a bounded timeout.
// Failures are logged and dropped.
type Dispatcher struct {
	n       Notifier
	Timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier) *Dispatcher {
	return &Dispatcher{n: n, Timeout: 5 * time.Second}
}

// Dispatch returns immediately; the send runs on its own goroutine.
func (d *Dispatcher) Dispatch(ev queue.NotificationEvent) {
	if d == nil || d.n == nil {
		return
	}
	if ev.To == "" {
		log.Printf("notify: drop %s for %s: no recipient", ev.Type, ev.ProjectID)
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		if err := d.n.Notify(ctx, ev); err != nil {
			log.Printf("notify: %s for %s failed: %v", ev.Type, ev.ProjectID, err)
		}
	}()
}

// Wait blocks until every dispatched notification has finished.  It is
// called on shutdown.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
