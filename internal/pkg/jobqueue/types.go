package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeSendEmail JobType = "send_email"
	JobTypeSendSMS   JobType = "send_sms"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// EmailJobPayload is a single html mail
type EmailJobPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (p EmailJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"to":      p.To,
		"subject": p.Subject,
		"body":    p.Body,
	}
}

func EmailJobPayloadFromMap(data map[string]interface{}) (*EmailJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload EmailJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// SMSJobPayload is a single text message. To holds digits only.
type SMSJobPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (p SMSJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"to":      p.To,
		"message": p.Message,
	}
}

func SMSJobPayloadFromMap(data map[string]interface{}) (*SMSJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload SMSJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
