package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian/internal/accounting/journals"
	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

// TaskDraftExpiry cancels journal drafts that outlived their TTL. The job
// is an ordinary external caller of the journal API; the core itself runs
// no background work.
const TaskDraftExpiry = "ledger:draft_expiry"

// DraftExpiryPayload parameterises one expiry run.
type DraftExpiryPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewDraftExpiryTask builds the asynq task.
func NewDraftExpiryTask(olderThan time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(DraftExpiryPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDraftExpiry, payload), nil
}

// JournalPort is the slice of the journal engine the job needs.
type JournalPort interface {
	List(ctx context.Context) ([]journals.JournalEntry, error)
	Cancel(ctx context.Context, entryID int64) (journals.JournalEntry, error)
}

// DraftExpiryJob cancels stale drafts.
type DraftExpiryJob struct {
	journal JournalPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewDraftExpiryJob builds the job.
func NewDraftExpiryJob(journal JournalPort, logger *slog.Logger) *DraftExpiryJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftExpiryJob{journal: journal, logger: logger, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (j *DraftExpiryJob) WithNow(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// Handle processes one expiry task.
func (j *DraftExpiryJob) Handle(ctx context.Context, task *asynq.Task) error {
	var payload DraftExpiryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = 30 * 24 * time.Hour
	}
	cutoff := j.now().UTC().Add(-payload.OlderThan)
	entries, err := j.journal.List(ctx)
	if err != nil {
		return err
	}
	var cancelled, failed int
	for _, entry := range entries {
		if entry.Status != journals.JournalStatusDraft || !entry.CreatedAt.Before(cutoff) {
			continue
		}
		if _, err := j.journal.Cancel(ctx, entry.ID); err != nil {
			// A draft posted between the list and the cancel is fine.
			if errors.Is(err, accshared.ErrCannotCancelPostedEntry) || errors.Is(err, accshared.ErrInvalidStatus) {
				continue
			}
			failed++
			j.logger.Warn("draft expiry cancel failed", slog.Int64("entry_id", entry.ID), slog.Any("error", err))
			continue
		}
		cancelled++
	}
	j.logger.Info("draft expiry run complete",
		slog.Int("cancelled", cancelled),
		slog.Int("failed", failed),
		slog.Time("cutoff", cutoff))
	return nil
}
