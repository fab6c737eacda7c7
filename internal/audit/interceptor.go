package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian/internal/shared"
)

// MetricsPort reports degraded-audit events.
type MetricsPort interface {
	AuditWriteFailed()
}

// Snapshot produces the current persisted state of an entity.
type Snapshot func(ctx context.Context) (any, error)

// Interceptor decorates mutating operations with before/after state capture.
// One record is written per logical operation regardless of how many storage
// writes the operation performs. Audit is observability, not a business
// invariant: a failed record write logs a warning and the mutation stands.
type Interceptor struct {
	recorder Recorder
	logger   *slog.Logger
	metrics  MetricsPort
	now      func() time.Time
}

// NewInterceptor builds an Interceptor. A nil Interceptor is usable: every
// wrapped operation simply executes unaudited.
func NewInterceptor(recorder Recorder, logger *slog.Logger, metrics MetricsPort) *Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interceptor{recorder: recorder, logger: logger, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (i *Interceptor) WithNow(now func() time.Time) {
	if now != nil {
		i.now = now
	}
}

type inAuditKey struct{}

// markInAudit flags the context so writes performed while persisting the
// audit record itself are never re-intercepted.
func markInAudit(ctx context.Context) context.Context {
	return context.WithValue(ctx, inAuditKey{}, true)
}

func inAudit(ctx context.Context) bool {
	flagged, _ := ctx.Value(inAuditKey{}).(bool)
	return flagged
}

// Create runs mutate and records the resulting state. mutate returns the
// created entity's id and its after-state.
func (i *Interceptor) Create(ctx context.Context, entityType string, mutate func(context.Context) (string, any, error)) error {
	if i == nil || inAudit(ctx) {
		_, _, err := mutate(ctx)
		return err
	}
	entityID, after, err := mutate(ctx)
	if err != nil {
		return err
	}
	i.write(ctx, Record{EntityType: entityType, EntityID: entityID, Action: ActionCreate}, nil, after)
	return nil
}

// Update snapshots current state, runs mutate, and records both states.
func (i *Interceptor) Update(ctx context.Context, entityType, entityID string, before Snapshot, mutate func(context.Context) (any, error)) error {
	if i == nil || inAudit(ctx) {
		_, err := mutate(ctx)
		return err
	}
	var beforeState any
	if before != nil {
		state, err := before(ctx)
		if err != nil {
			return err
		}
		beforeState = state
	}
	after, err := mutate(ctx)
	if err != nil {
		return err
	}
	i.write(ctx, Record{EntityType: entityType, EntityID: entityID, Action: ActionUpdate}, beforeState, after)
	return nil
}

// Delete snapshots current state, runs mutate, and records the before state.
func (i *Interceptor) Delete(ctx context.Context, entityType, entityID string, before Snapshot, mutate func(context.Context) error) error {
	if i == nil || inAudit(ctx) {
		return mutate(ctx)
	}
	var beforeState any
	if before != nil {
		state, err := before(ctx)
		if err != nil {
			return err
		}
		beforeState = state
	}
	if err := mutate(ctx); err != nil {
		return err
	}
	i.write(ctx, Record{EntityType: entityType, EntityID: entityID, Action: ActionDelete}, beforeState, nil)
	return nil
}

func (i *Interceptor) write(ctx context.Context, rec Record, before, after any) {
	if i.recorder == nil {
		return
	}
	actor := shared.ActorFromContext(ctx)
	rec.OpID = uuid.NewString()
	rec.UserID = actor.UserID
	rec.IP = actor.IP
	rec.UserAgent = actor.UserAgent
	rec.At = i.now()
	var err error
	if before != nil {
		if rec.Before, err = json.Marshal(before); err != nil {
			i.degraded(rec, err)
			return
		}
	}
	if after != nil {
		if rec.After, err = json.Marshal(after); err != nil {
			i.degraded(rec, err)
			return
		}
	}
	if err := i.recorder.Record(markInAudit(ctx), rec); err != nil {
		i.degraded(rec, err)
	}
}

func (i *Interceptor) degraded(rec Record, err error) {
	i.logger.Warn("audit record dropped",
		slog.String("entity_type", rec.EntityType),
		slog.String("entity_id", rec.EntityID),
		slog.String("action", string(rec.Action)),
		slog.Any("error", err))
	if i.metrics != nil {
		i.metrics.AuditWriteFailed()
	}
}
