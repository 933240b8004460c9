// Package audit records user actions into an append-only log. Recording is
// fire-and-forget: a failed write is logged and swallowed so audit problems
// never break the user-facing operation.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	auditmetrics "crowngate/internal/audit/metrics"
	"crowngate/internal/audit/models"
	"crowngate/internal/audit/store"
	id "crowngate/pkg/domain"
	"crowngate/pkg/requestcontext"
)

// Publisher builds entries from request context and hands them off for
// persistence. With an inbox configured, entries are queued for the
// background Worker; otherwise they are written synchronously.
type Publisher struct {
	store   store.Store
	logger  *slog.Logger
	inbox   chan<- models.Entry
	metrics *auditmetrics.Metrics
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithInbox makes Record asynchronous via the given channel. A full channel
// drops the entry (with a log line) rather than blocking the request.
func WithInbox(inbox chan<- models.Entry) Option {
	return func(p *Publisher) {
		p.inbox = inbox
	}
}

// WithMetrics counts recorded and dropped entries.
func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(st store.Store, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{store: st, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record captures an action for the given user. It never returns an error.
func (p *Publisher) Record(ctx context.Context, userID id.UserID, action models.Action, description string, metadata map[string]any) {
	entry := models.Entry{
		ID:          id.EntryID(uuid.New()),
		UserID:      userID,
		Action:      action,
		Description: description,
		Metadata:    enrichMetadata(metadata, requestcontext.UserAgent(ctx)),
		IPAddress:   requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		CreatedAt:   requestcontext.Now(ctx),
	}

	if err := entry.Validate(); err != nil {
		p.logger.WarnContext(ctx, "dropping invalid audit entry",
			"request_id", requestcontext.RequestID(ctx),
			"action", action.String(),
			"error", err.Error(),
		)
		p.incrementDropped()
		return
	}

	if p.inbox != nil {
		select {
		case p.inbox <- entry:
			p.incrementRecorded()
		default:
			p.logger.WarnContext(ctx, "audit inbox full, dropping entry",
				"request_id", requestcontext.RequestID(ctx),
				"action", action.String(),
			)
			p.incrementDropped()
		}
		return
	}

	if err := p.store.Append(ctx, entry); err != nil {
		p.logger.WarnContext(ctx, "failed to append audit entry",
			"request_id", requestcontext.RequestID(ctx),
			"action", action.String(),
			"error", err.Error(),
		)
		return
	}
	p.incrementRecorded()
}

func (p *Publisher) incrementRecorded() {
	if p.metrics != nil {
		p.metrics.IncrementRecorded()
	}
}

func (p *Publisher) incrementDropped() {
	if p.metrics != nil {
		p.metrics.IncrementDropped()
	}
}

// enrichMetadata adds parsed browser and OS details when a user agent is
// present. The raw string is kept on the entry itself.
func enrichMetadata(metadata map[string]any, rawUA string) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	if rawUA != "" && rawUA != "unknown" {
		ua := useragent.New(rawUA)
		name, version := ua.Browser()
		if name != "" {
			out["browser"] = name
			if version != "" {
				out["browser_version"] = version
			}
		}
		if os := ua.OS(); os != "" {
			out["os"] = os
		}
	}
	return out
}
