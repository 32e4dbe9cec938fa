package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_ProcessEmailJob(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)

	var got EmailJobPayload
	q.SetSenders(func(ctx context.Context, to, subject, body string) error {
		got = EmailJobPayload{To: to, Subject: subject, Body: body}
		return nil
	}, nil)

	job, err := q.EnqueueJob(JobTypeSendEmail, EmailJobPayload{To: "a@example.com", Subject: "Hi", Body: "x"}.ToMap())
	require.NoError(t, err)

	ctx := context.Background()
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, dequeued.ID)

	q.processJob(ctx, dequeued)

	assert.Equal(t, "a@example.com", got.To)
	assert.Equal(t, "Hi", got.Subject)

	_, err = q.GetJob(ctx, job.ID)
	assert.Error(t, err, "completed jobs are removed")

	processing, err := client.LLen(ctx, JobProcessingKey).Result()
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueue_FailedSMSJobIsRetried(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)
	q.retryDelay = 10 * time.Millisecond
	q.SetSenders(nil, func(ctx context.Context, to, message string) error {
		return errors.New("gateway down")
	})

	job, err := q.EnqueueJob(JobTypeSendSMS, SMSJobPayload{To: "01012345678", Message: "m"}.ToMap())
	require.NoError(t, err)

	ctx := context.Background()
	dequeued, err := q.dequeueJob(ctx)
	require.NoError(t, err)
	q.processJob(ctx, dequeued)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(ctx, JobQueueKey).Result()
		return err == nil && n == 1
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_UnknownJobType(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)

	job := &Job{ID: "unknown", Type: JobType("resize_image"), Status: JobStatusPending, MaxRetries: 0}
	q.processJob(context.Background(), job)

	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMsg, "unknown job type")
}

func TestQueue_QueueStats(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := q.EnqueueJob(JobTypeSendSMS, SMSJobPayload{To: "01012345678", Message: "m"}.ToMap())
		require.NoError(t, err)
	}
	_, err := q.dequeueJob(ctx)
	require.NoError(t, err)

	st, err := q.QueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)
	assert.Equal(t, int64(1), st.Processing)
	assert.Equal(t, int64(2), st.ByStatus[string(JobStatusPending)])
}
