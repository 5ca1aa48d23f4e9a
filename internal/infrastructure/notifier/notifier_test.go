package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/config"
	"portal-api/internal/domain/notification"
	"portal-api/internal/utils/pii"
)

func sample() notification.Notification {
	return notification.Notification{
		Event:      notification.EventAppointmentBooked,
		Subject:    "New application appointment booked",
		Lines:      []string{"Name: Max", "Date: 2025-06-02"},
		Fields:     map[string]string{"date": "2025-06-02"},
		OccurredAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

type funcSender struct {
	name string
	send func(ctx context.Context, n notification.Notification) error
}

func (f funcSender) Name() string { return f.name }

func (f funcSender) Send(ctx context.Context, n notification.Notification) error {
	return f.send(ctx, n)
}

func TestWebhookSender(t *testing.T) {
	var (
		mu      sync.Mutex
		payload webhookPayload
		event   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		event = r.Header.Get("X-Portal-Event")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, time.Second, "portal-api").Send(context.Background(), sample())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "appointment.booked", event)
	assert.Equal(t, notification.EventAppointmentBooked, payload.Event)
	assert.Equal(t, "Name: Max\nDate: 2025-06-02", payload.Text)
	assert.Equal(t, "2025-06-01T08:00:00Z", payload.OccurredAt)
}

func TestWebhookSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookSender(srv.URL, time.Second, "portal-api").Send(context.Background(), sample())
	assert.ErrorContains(t, err, "502")
}

func TestSMTPSender(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: 587, Username: "bot@portal.dev", Password: "pw", To: "ops@portal.dev"})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	sender.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	require.NoError(t, sender.Send(context.Background(), sample()))
	assert.Equal(t, "mail.local:587", gotAddr)
	assert.Equal(t, "bot@portal.dev", gotFrom)
	assert.Equal(t, []string{"ops@portal.dev"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: New application appointment booked\r\n")
	assert.Contains(t, msg, "X-Portal-Event: appointment.booked\r\n")
	assert.True(t, strings.HasSuffix(msg, "Name: Max\r\nDate: 2025-06-02\r\n"))
}

func TestSMTPSender_Timeout(t *testing.T) {
	sender := NewSMTPSender(SMTPConfig{Host: "mail.local", Port: 25, To: "ops@portal.dev", From: "bot@portal.dev"})
	release := make(chan struct{})
	defer close(release)
	sender.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sender.Send(ctx, sample())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcher_NeverBlocksOrFails(t *testing.T) {
	var mu sync.Mutex
	delivered := map[string]int{}
	record := func(name string) {
		mu.Lock()
		delivered[name]++
		mu.Unlock()
	}

	slow := funcSender{name: "slow", send: func(ctx context.Context, n notification.Notification) error {
		<-ctx.Done()
		record("slow")
		return ctx.Err()
	}}
	failing := funcSender{name: "failing", send: func(context.Context, notification.Notification) error {
		record("failing")
		return errors.New("relay refused max@example.com")
	}}
	ok := funcSender{name: "ok", send: func(context.Context, notification.Notification) error {
		record("ok")
		return nil
	}}

	d := NewDispatcher([]Sender{slow, failing, ok}, 50*time.Millisecond, pii.NewSanitizer(pii.LevelHashed, "s"), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	d.Dispatch(ctx, sample())
	mu.Lock()
	assert.Zero(t, delivered["slow"], "dispatch must not wait for senders")
	mu.Unlock()
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, d.Shutdown(waitCtx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[string]int{"slow": 1, "failing": 1, "ok": 1}, delivered)
}

func TestDispatcher_DropsAfterShutdown(t *testing.T) {
	var mu sync.Mutex
	sent := 0
	counter := funcSender{name: "counter", send: func(context.Context, notification.Notification) error {
		mu.Lock()
		sent++
		mu.Unlock()
		return nil
	}}
	d := NewDispatcher([]Sender{counter}, time.Second, pii.NewSanitizer(pii.LevelHashed, "s"), zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(context.Background(), sample())
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
	wg.Wait()

	mu.Lock()
	settled := sent
	mu.Unlock()
	assert.LessOrEqual(t, settled, 20)

	d.Dispatch(context.Background(), sample())
	require.NoError(t, d.Shutdown(ctx))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, settled, sent, "nothing is sent once shut down")
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{ServiceName: "portal-api", NotifyTimeout: time.Second}
	assert.IsType(t, notification.Noop{}, FromConfig(cfg, pii.NewSanitizer(pii.LevelHashed, "s"), zerolog.Nop()))

	cfg.NotifyWebhookURL = "http://hooks.local/portal"
	d, ok := FromConfig(cfg, pii.NewSanitizer(pii.LevelHashed, "s"), zerolog.Nop()).(*Dispatcher)
	require.True(t, ok)
	require.Len(t, d.senders, 1)
	assert.Equal(t, "webhook", d.senders[0].Name())

	cfg.SMTPHost = "mail.local"
	cfg.NotifyEmail = "ops@portal.dev"
	d = FromConfig(cfg, pii.NewSanitizer(pii.LevelHashed, "s"), zerolog.Nop()).(*Dispatcher)
	assert.Len(t, d.senders, 2)
}
