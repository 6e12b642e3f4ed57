// Package mailqueue delivers email on background workers so that callers never
// wait on the mail server. Delivery failures are logged and dropped.
package mailqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-storefront-auth/internal/infrastructure/smtp"
	"github.com/rs/zerolog"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher is a bounded queue drained by a fixed pool of workers.
type Dispatcher struct {
	sender      smtp.Mailer
	log         zerolog.Logger
	jobs        chan smtp.Message
	sendTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func New(sender smtp.Mailer, queueSize int, log zerolog.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:      sender,
		log:         log.With().Str("component", "mailqueue").Logger(),
		jobs:        make(chan smtp.Message, queueSize),
		sendTimeout: defaultSendTimeout,
	}
}

// Start launches workers goroutines. Calling it more than once has no effect.
func (d *Dispatcher) Start(workers int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
}

// SendAsync enqueues msg and returns immediately. When the queue is full or
// the dispatcher is closed the message is dropped and logged.
func (d *Dispatcher) SendAsync(msg smtp.Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("subject", msg.Subject).Msg("mail dispatcher closed, dropping email")
		return
	}
	select {
	case d.jobs <- msg:
	default:
		d.log.Error().Str("subject", msg.Subject).Msg("mail queue full, dropping email")
	}
}

// Close stops accepting messages and waits for queued ones to drain or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail queue drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.jobs {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg smtp.Message) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("subject", msg.Subject).Msg("mail sender panicked")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.log.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("failed to send email")
		return
	}
	d.log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
}
