package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNotificationPurger struct {
	remaining int64
	cutoffs   []time.Time
	limits    []int
	err       error
}

func (f *fakeNotificationPurger) DeleteReadBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return 0, f.err
	}
	n := min(f.remaining, int64(limit))
	f.remaining -= n
	return n, nil
}

func newCleanupJob(t *testing.T, repo *fakeNotificationPurger, params NotificationCleanupJobParams) *notificationCleanupJob {
	t.Helper()
	params.Logger = testLogger()
	params.Repository = repo
	job, err := NewNotificationCleanupJob(params)
	require.NoError(t, err)
	return job.(*notificationCleanupJob)
}

func TestNotificationCleanupJobUsesRetentionWindow(t *testing.T) {
	repo := &fakeNotificationPurger{remaining: 3}
	job := newCleanupJob(t, repo, NotificationCleanupJobParams{Retention: 10})
	job.now = func() time.Time { return time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.cutoffs, 1)
	assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), repo.cutoffs[0])
	assert.Equal(t, []int{notificationPurgeBatch}, repo.limits)
}

func TestNotificationCleanupJobDrainsInBatches(t *testing.T) {
	repo := &fakeNotificationPurger{remaining: 25}
	job := newCleanupJob(t, repo, NotificationCleanupJobParams{BatchSize: 10})

	require.NoError(t, job.Run(context.Background()))
	assert.Len(t, repo.limits, 3, "10 + 10 + 5")
	assert.Zero(t, repo.remaining)

	exact := &fakeNotificationPurger{remaining: 20}
	require.NoError(t, newCleanupJob(t, exact, NotificationCleanupJobParams{BatchSize: 10}).Run(context.Background()))
	assert.Len(t, exact.limits, 3, "a full last batch needs one empty probe")
}

func TestNotificationCleanupJobStopsOnCancel(t *testing.T) {
	repo := &fakeNotificationPurger{remaining: 1000}
	job := newCleanupJob(t, repo, NotificationCleanupJobParams{BatchSize: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Empty(t, repo.limits)
}

func TestNotificationCleanupJobDefaultsAndErrors(t *testing.T) {
	repo := &fakeNotificationPurger{err: errors.New("db down")}
	job := newCleanupJob(t, repo, NotificationCleanupJobParams{})
	assert.Equal(t, notificationRetentionDays, job.retention)
	assert.Equal(t, notificationPurgeBatch, job.batch)
	assert.ErrorContains(t, job.Run(context.Background()), "db down")

	_, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: testLogger()})
	assert.Error(t, err)
}
