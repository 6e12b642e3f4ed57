package mailqueue

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-storefront-auth/internal/infrastructure/smtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu    sync.Mutex
	sent  []smtp.Message
	err   error
	block chan struct{}
}

func (s *recordingSender) Send(_ context.Context, msg smtp.Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) messages() []smtp.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]smtp.Message(nil), s.sent...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	d := New(sender, 8, zerolog.Nop())
	d.Start(2)

	for i := 0; i < 5; i++ {
		d.SendAsync(smtp.Message{To: "a@x.com", Subject: "OTP for Verification"})
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Len(t, sender.messages(), 5)
}

func TestDispatcher_SendAsyncDoesNotWaitForDelivery(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := New(sender, 4, zerolog.Nop())
	d.Start(1)

	returned := make(chan struct{})
	go func() {
		d.SendAsync(smtp.Message{To: "a@x.com"})
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("SendAsync blocked on a stalled mail server")
	}
	close(sender.block)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_FailuresAreLoggedNotSurfaced(t *testing.T) {
	var logs syncBuffer
	sender := &recordingSender{err: errors.New("smtp down")}
	d := New(sender, 4, zerolog.New(&logs))
	d.Start(1)

	d.SendAsync(smtp.Message{To: "a@x.com", Subject: "OTP for Verification"})
	require.NoError(t, d.Close(context.Background()))
	assert.Contains(t, logs.String(), "failed to send email")
	assert.Contains(t, logs.String(), "smtp down")
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	var logs syncBuffer
	sender := &recordingSender{}
	d := New(sender, 1, zerolog.New(&logs))

	d.SendAsync(smtp.Message{Subject: "first"})
	d.SendAsync(smtp.Message{Subject: "second"})
	assert.Contains(t, logs.String(), "mail queue full")

	d.Start(1)
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, "first", sender.messages()[0].Subject)
}

func TestDispatcher_SendAfterCloseIsDropped(t *testing.T) {
	d := New(&recordingSender{}, 1, zerolog.Nop())
	d.Start(1)
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.SendAsync(smtp.Message{To: "a@x.com"}) })
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_CloseHonoursContext(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := New(sender, 1, zerolog.Nop())
	d.Start(1)
	d.SendAsync(smtp.Message{To: "a@x.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	close(sender.block)
}

// ctxSender blocks until the delivery context ends.
type ctxSender struct{ recordingSender }

func (s *ctxSender) Send(ctx context.Context, msg smtp.Message) error {
	if msg.Subject == "stuck" {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.recordingSender.Send(ctx, msg)
}

func TestDispatcher_SendTimeoutFreesWorker(t *testing.T) {
	var logs syncBuffer
	sender := &ctxSender{}
	d := New(sender, 4, zerolog.New(&logs))
	d.sendTimeout = 20 * time.Millisecond
	d.Start(1)

	d.SendAsync(smtp.Message{To: "a@x.com", Subject: "stuck"})
	d.SendAsync(smtp.Message{To: "b@x.com", Subject: "next"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.Len(t, sender.messages(), 1)
	assert.Equal(t, "next", sender.messages()[0].Subject)
	assert.Contains(t, logs.String(), "deadline exceeded")
}
