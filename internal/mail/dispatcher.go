package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Dispatcher delivers queued messages on a fixed number of worker goroutines.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	workers int
	timeout time.Duration

	queue     chan Message
	mu        sync.RWMutex
	stopped   bool
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewDispatcher creates a dispatcher with room for queueSize pending messages.
// Each send gets its own timeout.
func NewDispatcher(sender Sender, logger *slog.Logger, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:  sender,
		logger:  logger,
		workers: workers,
		timeout: timeout,
		queue:   make(chan Message, queueSize),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting mail dispatcher", slog.Int("workers", d.workers), slog.Int("queue", cap(d.queue)))
		for range d.workers {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Stop refuses new messages, waits for the queue to drain and for in-flight
// sends to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down mail dispatcher", slog.Int("pending", len(d.queue)))
		d.mu.Lock()
		d.stopped = true
		close(d.queue)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

// Enqueue hands msg to the workers without blocking. It returns ErrQueueFull
// when the queue is at capacity or the dispatcher has stopped.
func (d *Dispatcher) Enqueue(msg Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrQueueFull
	}

	select {
	case d.queue <- msg:
		return nil
	default:
		d.logger.Warn("mail queue full, dropping message",
			slog.String("to", msg.To), slog.String("subject", msg.Subject))
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("failed to send email",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Debug("email sent",
		slog.String("to", msg.To),
		slog.Duration("duration", time.Since(start)),
	)
}
