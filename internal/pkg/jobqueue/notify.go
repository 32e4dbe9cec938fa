package jobqueue

import (
	"strings"

	"github.com/gofiber/fiber/v2/log"
)

// Enqueuer is the part of the queue the domain services depend on.
type Enqueuer interface {
	EnqueueJob(jobType JobType, payload map[string]interface{}) (*Job, error)
}

// Notifier turns domain notifications into queued jobs. Delivery is best
// effort: enqueue failures are logged and never returned to the caller.
type Notifier struct {
	queue Enqueuer
}

func NewNotifier(queue Enqueuer) *Notifier {
	return &Notifier{queue: queue}
}

func (n *Notifier) SendEmail(to, subject, body string) {
	if n == nil || n.queue == nil || strings.TrimSpace(to) == "" {
		return
	}
	payload := EmailJobPayload{To: to, Subject: subject, Body: body}
	if _, err := n.queue.EnqueueJob(JobTypeSendEmail, payload.ToMap()); err != nil {
		log.Warnf("[JobQueue] Failed to enqueue email to %s: %v", to, err)
	}
}

func (n *Notifier) SendSMS(to, message string) {
	digits := onlyDigits(to)
	if n == nil || n.queue == nil || digits == "" {
		return
	}
	payload := SMSJobPayload{To: digits, Message: message}
	if _, err := n.queue.EnqueueJob(JobTypeSendSMS, payload.ToMap()); err != nil {
		log.Warnf("[JobQueue] Failed to enqueue sms: %v", err)
	}
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
