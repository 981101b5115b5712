package mail_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/eduqa/internal/mail"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingSender stores every message and can be made to block or fail.
type recordingSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	release chan struct{}
	err     error
}

func (s *recordingSender) Send(ctx context.Context, msg mail.Message) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return s.err
}

func (s *recordingSender) messages() []mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mail.Message(nil), s.sent...)
}

func TestDispatcher_DeliversAndDrainsOnStop(t *testing.T) {
	sender := &recordingSender{}
	d := mail.NewDispatcher(sender, quietLogger(), 2, 8, time.Second)
	d.Start()

	for _, to := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		require.NoError(t, d.Enqueue(mail.Message{To: to, Subject: "hi"}))
	}
	d.Stop()

	got := sender.messages()
	assert.Len(t, got, 3)
	assert.ErrorIs(t, d.Enqueue(mail.Message{To: "late@x.com"}), mail.ErrQueueFull, "enqueue after stop must be refused")
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := mail.NewDispatcher(sender, quietLogger(), 1, 1, time.Second)
	d.Start()

	// The first message occupies the worker, the second fills the queue.
	require.NoError(t, d.Enqueue(mail.Message{To: "1@x.com"}))
	assert.Eventually(t, func() bool {
		return d.Enqueue(mail.Message{To: "2@x.com"}) == nil
	}, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- d.Enqueue(mail.Message{To: "3@x.com"}) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, mail.ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(sender.release)
	d.Stop()
	assert.Len(t, sender.messages(), 2)
}

func TestDispatcher_SendErrorIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("smtp down")}
	d := mail.NewDispatcher(sender, quietLogger(), 1, 4, time.Second)
	d.Start()

	require.NoError(t, d.Enqueue(mail.Message{To: "a@x.com"}))
	require.NoError(t, d.Enqueue(mail.Message{To: "b@x.com"}))
	d.Stop()

	assert.Len(t, sender.messages(), 2, "a failed send must not stop the worker")
}

func TestDispatcher_SendTimeout(t *testing.T) {
	sender := &recordingSender{release: make(chan struct{})}
	d := mail.NewDispatcher(sender, quietLogger(), 1, 1, 20*time.Millisecond)
	d.Start()

	require.NoError(t, d.Enqueue(mail.Message{To: "slow@x.com"}))

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return; send timeout not applied")
	}
	assert.Empty(t, sender.messages())
}

// queueFunc adapts a function to mail.Queue.
type queueFunc func(mail.Message) error

func (f queueFunc) Enqueue(msg mail.Message) error { return f(msg) }

func TestMailer_Links(t *testing.T) {
	var got []mail.Message
	q := queueFunc(func(m mail.Message) error {
		got = append(got, m)
		return nil
	})
	m := mail.NewMailer(q, "https://edu.example.com/", time.Hour)

	require.NoError(t, m.SendVerification("alice@x.com", "alice", "tok.en.sig"))
	require.NoError(t, m.SendPasswordReset("alice@x.com", "alice", "reset.tok.sig"))
	require.Len(t, got, 2)

	assert.Equal(t, "alice@x.com", got[0].To)
	assert.Contains(t, got[0].Text, "https://edu.example.com/verify-email/tok.en.sig")
	assert.Contains(t, got[0].HTML, `href="https://edu.example.com/verify-email/tok.en.sig"`)
	assert.Contains(t, got[0].HTML, "Hi alice")

	assert.Contains(t, got[1].Text, "https://edu.example.com/reset-password/reset.tok.sig")
	assert.Contains(t, got[1].Subject, "Reset")
}

func TestMailer_EscapesUsername(t *testing.T) {
	var got mail.Message
	m := mail.NewMailer(queueFunc(func(msg mail.Message) error { got = msg; return nil }), "http://localhost", time.Hour)

	require.NoError(t, m.SendVerification("x@x.com", "<b>eve</b>", "t"))
	assert.NotContains(t, got.HTML, "<b>eve</b>")
	assert.Contains(t, got.HTML, "&lt;b&gt;eve&lt;/b&gt;")
}

func TestMailer_QueueFullPropagates(t *testing.T) {
	m := mail.NewMailer(queueFunc(func(mail.Message) error { return mail.ErrQueueFull }), "http://localhost", time.Hour)
	assert.ErrorIs(t, m.SendVerification("x@x.com", "x", "t"), mail.ErrQueueFull)
}
