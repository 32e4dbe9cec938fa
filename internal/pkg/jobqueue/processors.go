package jobqueue

import (
	"context"
	"errors"
	"fmt"
)

func (q *Queue) processEmailJob(ctx context.Context, job *Job) error {
	payload, err := EmailJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid email payload: %w", err)
	}
	if payload.To == "" {
		return errors.New("email payload without recipient")
	}
	return q.sendEmail(ctx, payload.To, payload.Subject, payload.Body)
}

func (q *Queue) processSMSJob(ctx context.Context, job *Job) error {
	payload, err := SMSJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid sms payload: %w", err)
	}
	if payload.To == "" {
		return errors.New("sms payload without recipient")
	}
	return q.sendSMS(ctx, payload.To, payload.Message)
}
