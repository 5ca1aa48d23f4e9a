package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"portal-api/internal/config"
	"portal-api/internal/domain/notification"
	"portal-api/internal/infrastructure/metrics"
	"portal-api/internal/utils/pii"
)

// Sender delivers one notification over one transport.
type Sender interface {
	Name() string
	Send(ctx context.Context, n notification.Notification) error
}

// Dispatcher fans notifications out to every sender in the background.
// Failures are logged and counted, never retried.
type Dispatcher struct {
	senders   []Sender
	timeout   time.Duration
	sanitizer *pii.Sanitizer
	log       zerolog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher builds a dispatcher over the given senders.
func NewDispatcher(senders []Sender, timeout time.Duration, sanitizer *pii.Sanitizer, log zerolog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		senders:   senders,
		timeout:   timeout,
		sanitizer: sanitizer,
		log:       log.With().Str("component", "notifier").Logger(),
	}
}

// FromConfig returns a Dispatcher for the configured transports, or a no-op
// when none is configured.
func FromConfig(cfg *config.Config, sanitizer *pii.Sanitizer, log zerolog.Logger) notification.Dispatcher {
	var senders []Sender
	if cfg.SMTPEnabled() {
		senders = append(senders, NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			To:       cfg.NotifyEmail,
		}))
	}
	if cfg.NotifyWebhookURL != "" {
		senders = append(senders, NewWebhookSender(cfg.NotifyWebhookURL, cfg.NotifyTimeout, cfg.ServiceName))
	}
	if len(senders) == 0 {
		log.Info().Msg("no notification transport configured")
		return notification.Noop{}
	}
	return NewDispatcher(senders, cfg.NotifyTimeout, sanitizer, log)
}

// Dispatch returns immediately. The caller's context only contributes values.
// Notifications dispatched after Shutdown are dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, n notification.Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now().UTC()
	}
	base := context.WithoutCancel(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		for _, sender := range d.senders {
			metrics.RecordNotification(sender.Name(), string(n.Event), "dropped")
		}
		d.log.Warn().Str("event", string(n.Event)).Msg("notification dropped during shutdown")
		return
	}

	for _, sender := range d.senders {
		d.wg.Add(1)
		go func(sender Sender) {
			defer d.wg.Done()
			d.send(base, sender, n)
		}(sender)
	}
}

func (d *Dispatcher) send(ctx context.Context, sender Sender, n notification.Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordNotification(sender.Name(), string(n.Event), "panic")
			d.log.Error().Interface("panic", r).Str("transport", sender.Name()).Msg("notification sender panicked")
		}
	}()

	if err := sender.Send(ctx, n); err != nil {
		metrics.RecordNotification(sender.Name(), string(n.Event), "failed")
		d.log.Warn().
			Str("transport", sender.Name()).
			Str("event", string(n.Event)).
			Str("error", d.sanitizer.Text(err.Error())).
			Msg("notification delivery failed")
		return
	}
	metrics.RecordNotification(sender.Name(), string(n.Event), "sent")
	d.log.Debug().Str("transport", sender.Name()).Str("event", string(n.Event)).Msg("notification delivered")
}

// Shutdown stops accepting notifications and blocks until in-flight sends
// finish or ctx is done.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
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
		return ctx.Err()
	}
}
