// Package service holds the Pinnity business rules: account signup, deal
// lifecycle and moderation, redemptions, favorites, notifications and data
// repair. Every multi-row change runs in one repository transaction; audit
// events and metrics are emitted after commit.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/pinnity/pinnity/internal/audit"
	"github.com/pinnity/pinnity/internal/repository"
)

// Option configures a service.
type Option func(*base)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithAudit sets the audit trail recorder.
func WithAudit(r audit.Recorder) Option {
	return func(b *base) {
		if r != nil {
			b.audit = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) {
		if now != nil {
			b.now = now
		}
	}
}

type base struct {
	store  repository.Store
	logger *slog.Logger
	audit  audit.Recorder
	now    func() time.Time
}

func newBase(store repository.Store, opts []Option) base {
	b := base{
		store:  store,
		logger: slog.Default(),
		audit:  audit.Nop,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) record(ctx context.Context, e audit.Event) {
	audit.Emit(ctx, b.audit, b.logger, e)
}

// Page bounds list queries.
type Page struct {
	Limit  int
	Offset int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
