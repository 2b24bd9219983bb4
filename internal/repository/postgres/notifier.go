package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/easygrocer/database"
	"github.com/dtroode/easygrocer/internal/logger"
)

// ErrNotifierStopped is returned by Listen once the notifier has stopped.
var ErrNotifierStopped = errors.New("change notifier stopped")

type changeListener struct {
	onChange func()
	onError  func(error)
}

// Notifier holds one LISTEN connection and fans collection change
// notifications out to registered listeners.
type Notifier struct {
	db     *Connection
	logger *logger.Logger

	mu        sync.Mutex
	listeners map[string]map[uint64]changeListener
	nextID    uint64
	err       error

	cancel context.CancelFunc
	done   chan struct{}
}

// NewNotifier creates a notifier; call Start before registering listeners.
func NewNotifier(db *Connection, logger *logger.Logger) *Notifier {
	return &Notifier{
		db:        db,
		logger:    logger,
		listeners: make(map[string]map[uint64]changeListener),
		done:      make(chan struct{}),
	}
}

// Start acquires a dedicated connection, issues LISTEN and runs the receive
// loop until ctx is done or Close is called.
func (n *Notifier) Start(ctx context.Context) error {
	conn, err := n.db.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{database.ChangeChannel}.Sanitize()); err != nil {
		conn.Release()
		return fmt.Errorf("failed to listen on %s: %w", database.ChangeChannel, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	go func() {
		defer close(n.done)
		defer conn.Release()

		for {
			notification, err := conn.Conn().WaitForNotification(loopCtx)
			if err != nil {
				if loopCtx.Err() != nil {
					n.fail(ErrNotifierStopped)
					return
				}
				n.logger.Error("change notifier failed", "error", err)
				n.fail(fmt.Errorf("failed to wait for notification: %w", err))
				return
			}
			n.dispatch(notification.Payload)
		}
	}()

	return nil
}

// Listen registers callbacks for changes to collection. onError is called at
// most once, when the notifier stops; the listener is dropped afterwards.
func (n *Notifier) Listen(collection string, onChange func(), onError func(error)) (stop func(), err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.err != nil {
		return nil, n.err
	}

	n.nextID++
	id := n.nextID
	if n.listeners[collection] == nil {
		n.listeners[collection] = make(map[uint64]changeListener)
	}
	n.listeners[collection][id] = changeListener{onChange: onChange, onError: onError}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners[collection], id)
	}, nil
}

// Close stops the receive loop and fails remaining listeners.
func (n *Notifier) Close() {
	if n.cancel == nil {
		n.fail(ErrNotifierStopped)
		return
	}
	n.cancel()
	<-n.done
}

func (n *Notifier) dispatch(collection string) {
	n.mu.Lock()
	listeners := make([]changeListener, 0, len(n.listeners[collection]))
	for _, l := range n.listeners[collection] {
		listeners = append(listeners, l)
	}
	n.mu.Unlock()

	for _, l := range listeners {
		l.onChange()
	}
}

func (n *Notifier) fail(err error) {
	n.mu.Lock()
	if n.err != nil {
		n.mu.Unlock()
		return
	}
	n.err = err
	var listeners []changeListener
	for _, byID := range n.listeners {
		for _, l := range byID {
			listeners = append(listeners, l)
		}
	}
	n.listeners = make(map[string]map[uint64]changeListener)
	n.mu.Unlock()

	for _, l := range listeners {
		l.onError(err)
	}
}
