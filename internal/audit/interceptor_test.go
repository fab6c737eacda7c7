package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian/internal/shared"
)

type memoryRecorder struct {
	records []Record
	err     error
}

func (r *memoryRecorder) Record(_ context.Context, rec Record) error {
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}

type failureMetrics struct {
	failures int
}

func (m *failureMetrics) AuditWriteFailed() { m.failures++ }

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestCreateRecordsAfterState(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	interceptor.WithNow(func() time.Time { return at })

	ctx := shared.ContextWithActor(context.Background(), shared.Actor{UserID: 7, IP: "10.0.0.1", UserAgent: "cli"})
	err := interceptor.Create(ctx, "widget", func(context.Context) (string, any, error) {
		return "42", widget{Name: "gear", Count: 3}, nil
	})
	require.NoError(t, err)

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	require.Equal(t, "widget", rec.EntityType)
	require.Equal(t, "42", rec.EntityID)
	require.NotEmpty(t, rec.OpID)
	require.Equal(t, ActionCreate, rec.Action)
	require.Nil(t, rec.Before)
	require.Equal(t, int64(7), rec.UserID)
	require.Equal(t, "10.0.0.1", rec.IP)
	require.Equal(t, at, rec.At)

	var after widget
	require.NoError(t, json.Unmarshal(rec.After, &after))
	require.Equal(t, widget{Name: "gear", Count: 3}, after)
}

func TestUpdateRecordsBothStates(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)

	state := widget{Name: "gear", Count: 3}
	err := interceptor.Update(context.Background(), "widget", "42",
		func(context.Context) (any, error) { return state, nil },
		func(context.Context) (any, error) {
			state.Count = 5
			return state, nil
		})
	require.NoError(t, err)

	rec := recorder.records[0]
	require.Equal(t, ActionUpdate, rec.Action)
	var before, after widget
	require.NoError(t, json.Unmarshal(rec.Before, &before))
	require.NoError(t, json.Unmarshal(rec.After, &after))
	require.Equal(t, 3, before.Count)
	require.Equal(t, 5, after.Count)
}

func TestDeleteRecordsBeforeState(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)

	err := interceptor.Delete(context.Background(), "widget", "42",
		func(context.Context) (any, error) { return widget{Name: "gear"}, nil },
		func(context.Context) error { return nil })
	require.NoError(t, err)

	rec := recorder.records[0]
	require.Equal(t, ActionDelete, rec.Action)
	require.NotNil(t, rec.Before)
	require.Nil(t, rec.After)
}

func TestFailedMutationIsNotRecorded(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)

	boom := errors.New("insert failed")
	err := interceptor.Create(context.Background(), "widget", func(context.Context) (string, any, error) {
		return "", nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, recorder.records)
}

func TestRecorderFailureDoesNotFailMutation(t *testing.T) {
	recorder := &memoryRecorder{err: errors.New("audit store down")}
	metrics := &failureMetrics{}
	interceptor := NewInterceptor(recorder, nil, metrics)

	mutated := false
	err := interceptor.Create(context.Background(), "widget", func(context.Context) (string, any, error) {
		mutated = true
		return "42", widget{}, nil
	})
	require.NoError(t, err, "audit is observability, not a business invariant")
	require.True(t, mutated)
	require.Equal(t, 1, metrics.failures)
}

func TestNestedMutationsAreNotReintercepted(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)

	err := interceptor.Create(markInAudit(context.Background()), "widget", func(context.Context) (string, any, error) {
		return "42", widget{}, nil
	})
	require.NoError(t, err)
	require.Empty(t, recorder.records, "writes performed while persisting audit state stay unaudited")
}

func TestNilInterceptorRunsMutation(t *testing.T) {
	var interceptor *Interceptor

	mutated := false
	err := interceptor.Create(context.Background(), "widget", func(context.Context) (string, any, error) {
		mutated = true
		return "42", widget{}, nil
	})
	require.NoError(t, err)
	require.True(t, mutated)

	err = interceptor.Delete(context.Background(), "widget", "42", nil, func(context.Context) error { return nil })
	require.NoError(t, err)
}

func TestUpdateSnapshotFailureStopsMutation(t *testing.T) {
	recorder := &memoryRecorder{}
	interceptor := NewInterceptor(recorder, nil, nil)

	boom := errors.New("entity missing")
	mutated := false
	err := interceptor.Update(context.Background(), "widget", "42",
		func(context.Context) (any, error) { return nil, boom },
		func(context.Context) (any, error) {
			mutated = true
			return nil, nil
		})
	require.ErrorIs(t, err, boom)
	require.False(t, mutated)
	require.Empty(t, recorder.records)
}
