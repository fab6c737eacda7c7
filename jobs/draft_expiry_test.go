package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/accounting/journals"
	accshared "github.com/meridian-erp/meridian/internal/accounting/shared"
)

type fakeJournalPort struct {
	entries   []journals.JournalEntry
	cancelled []int64
	cancelErr map[int64]error
}

func (f *fakeJournalPort) List(_ context.Context) ([]journals.JournalEntry, error) {
	return f.entries, nil
}

func (f *fakeJournalPort) Cancel(_ context.Context, entryID int64) (journals.JournalEntry, error) {
	if err, ok := f.cancelErr[entryID]; ok {
		return journals.JournalEntry{}, err
	}
	f.cancelled = append(f.cancelled, entryID)
	return journals.JournalEntry{ID: entryID, Status: journals.JournalStatusCancelled}, nil
}

func TestDraftExpiryCancelsStaleDrafts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	port := &fakeJournalPort{entries: []journals.JournalEntry{
		{ID: 1, Status: journals.JournalStatusDraft, CreatedAt: now.Add(-40 * 24 * time.Hour)},
		{ID: 2, Status: journals.JournalStatusDraft, CreatedAt: now.Add(-10 * 24 * time.Hour)},
		{ID: 3, Status: journals.JournalStatusPosted, CreatedAt: now.Add(-40 * 24 * time.Hour)},
	}}
	job := NewDraftExpiryJob(port, nil)
	job.WithNow(func() time.Time { return now })

	task, err := NewDraftExpiryTask(30 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{1}, port.cancelled)
}

func TestDraftExpiryToleratesRaces(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := now.Add(-40 * 24 * time.Hour)
	port := &fakeJournalPort{
		entries: []journals.JournalEntry{
			{ID: 1, Status: journals.JournalStatusDraft, CreatedAt: stale},
			{ID: 2, Status: journals.JournalStatusDraft, CreatedAt: stale},
		},
		cancelErr: map[int64]error{
			// Posted between the list and the cancel.
			1: accshared.ErrCannotCancelPostedEntry,
		},
	}
	job := NewDraftExpiryJob(port, nil)
	job.WithNow(func() time.Time { return now })

	task, err := NewDraftExpiryTask(30 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{2}, port.cancelled)
}

func TestDraftExpiryOtherCancelErrorsDoNotAbortRun(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := now.Add(-40 * 24 * time.Hour)
	port := &fakeJournalPort{
		entries: []journals.JournalEntry{
			{ID: 1, Status: journals.JournalStatusDraft, CreatedAt: stale},
			{ID: 2, Status: journals.JournalStatusDraft, CreatedAt: stale},
		},
		cancelErr: map[int64]error{1: errors.New("store offline")},
	}
	job := NewDraftExpiryJob(port, nil)
	job.WithNow(func() time.Time { return now })

	task, err := NewDraftExpiryTask(30 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{2}, port.cancelled, "the run continues past a failed cancel")
}

func TestDraftExpiryDefaultsTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	port := &fakeJournalPort{entries: []journals.JournalEntry{
		{ID: 1, Status: journals.JournalStatusDraft, CreatedAt: now.Add(-31 * 24 * time.Hour)},
	}}
	job := NewDraftExpiryJob(port, nil)
	job.WithNow(func() time.Time { return now })

	task, err := NewDraftExpiryTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{1}, port.cancelled)
}
