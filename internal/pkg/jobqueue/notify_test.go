package jobqueue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEnqueuer struct {
	jobs []Job
	err  error
}

func (r *recordingEnqueuer) EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	job := Job{ID: "test", Type: jobType, Payload: payload}
	r.jobs = append(r.jobs, job)
	return &job, nil
}

func TestNotifier_SendSMSStripsFormatting(t *testing.T) {
	q := &recordingEnqueuer{}
	NewNotifier(q).SendSMS("010-1234-5678", "hello")

	require.Len(t, q.jobs, 1)
	assert.Equal(t, JobTypeSendSMS, q.jobs[0].Type)
	assert.Equal(t, "01012345678", q.jobs[0].Payload["to"])
	assert.Equal(t, "hello", q.jobs[0].Payload["message"])
}

func TestNotifier_SkipsEmptyRecipients(t *testing.T) {
	q := &recordingEnqueuer{}
	n := NewNotifier(q)
	n.SendSMS("---", "hello")
	n.SendEmail("  ", "subject", "body")
	assert.Empty(t, q.jobs)
}

func TestNotifier_EnqueueErrorIsSwallowed(t *testing.T) {
	q := &recordingEnqueuer{err: errors.New("redis down")}
	assert.NotPanics(t, func() {
		NewNotifier(q).SendEmail("a@example.com", "s", "b")
	})
}

func TestNotifier_NilIsSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.SendEmail("a@example.com", "s", "b")
		n.SendSMS("01012345678", "m")
	})
}
