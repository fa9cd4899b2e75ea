// Package links holds decorators shared by every LinkAdapter.
package links

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/domain"
	"github.com/thewriterben/ESP32WildlifeCAM-sub000/internal/ports"
)

// ErrQuotaExhausted is returned by a quota-limited link once its daily
// allowance is spent.
var ErrQuotaExhausted = fmt.Errorf("daily send quota exhausted: %w", domain.ErrLinkUnavailable)

// Classify maps a Send result onto a record outcome.
func Classify(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeSuccess
	case errors.Is(err, domain.ErrTransmissionTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.OutcomeTimeout
	default:
		return domain.OutcomeFailed
	}
}

// WithTimeout bounds every Send on a by d. Adapters are expected to honour
// the context; an adapter that does not can still overrun.
func WithTimeout(a ports.LinkAdapter, d time.Duration) ports.LinkAdapter {
	if d <= 0 {
		return a
	}
	return &timeoutLink{LinkAdapter: a, timeout: d}
}

type timeoutLink struct {
	ports.LinkAdapter
	timeout time.Duration
}

func (l *timeoutLink) Send(ctx context.Context, p domain.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	err := l.LinkAdapter.Send(ctx, p)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTransmissionTimeout) {
		return fmt.Errorf("%s after %s: %w", l.Kind(), l.timeout, errors.Join(domain.ErrTransmissionTimeout, err))
	}
	return err
}

// WithDailyQuota caps successful sends per UTC day. Satellite modems ship
// with a daily message allowance; once it is spent the link reports
// unavailable until the day rolls over.
func WithDailyQuota(a ports.LinkAdapter, limit int, now func() time.Time) ports.LinkAdapter {
	if limit <= 0 {
		return a
	}
	if now == nil {
		now = time.Now
	}
	return &quotaLink{LinkAdapter: a, limit: limit, now: now}
}

type quotaLink struct {
	ports.LinkAdapter
	limit int
	now   func() time.Time

	mu   sync.Mutex
	day  time.Time
	sent int
}

func (l *quotaLink) Available(ctx context.Context) bool {
	if l.remaining() <= 0 {
		return false
	}
	return l.LinkAdapter.Available(ctx)
}

func (l *quotaLink) Send(ctx context.Context, p domain.Payload) error {
	if l.remaining() <= 0 {
		return fmt.Errorf("%s: %w", l.Kind(), ErrQuotaExhausted)
	}
	if err := l.LinkAdapter.Send(ctx, p); err != nil {
		return err
	}
	l.mu.Lock()
	l.sent++
	l.mu.Unlock()
	return nil
}

func (l *quotaLink) remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	today := l.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(l.day) {
		l.day = today
		l.sent = 0
	}
	return l.limit - l.sent
}
