package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailJobPayload_FromMap(t *testing.T) {
	in := EmailJobPayload{To: "driver@example.com", Subject: "Welcome", Body: "<p>hi</p>"}

	out, err := EmailJobPayloadFromMap(in.ToMap())
	require.NoError(t, err)
	assert.Equal(t, in, *out)
}

func TestSMSJobPayload_FromMap(t *testing.T) {
	out, err := SMSJobPayloadFromMap(map[string]interface{}{"to": "01012345678", "message": "code 123456"})
	require.NoError(t, err)
	assert.Equal(t, "01012345678", out.To)
	assert.Equal(t, "code 123456", out.Message)
}

func TestJob_RetryLifecycle(t *testing.T) {
	job := &Job{ID: "j1", Type: JobTypeSendSMS, Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("gateway down")
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "gateway down", job.ErrorMsg)
	assert.True(t, job.IsRetryable())

	job.MarkAsFailed("gateway down")
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.NotNil(t, job.CompletedAt)
}
