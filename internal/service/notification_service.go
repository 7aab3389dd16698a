package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/notify"
	"github.com/trainsmart-io/trainsmart-api/pkg/jobs"
)

// NotificationConfig controls notification delivery behaviour.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// notificationJob is the queue payload for one outbound message.
type notificationJob struct {
	Message    notify.Message
	Resource   string
	ResourceID string
}

// NotificationService dispatches lifecycle emails through a background queue.
// Delivery is strictly best-effort: enqueueing failures and provider errors
// are audit-logged and never surface to the mutation that raised the event.
type NotificationService struct {
	sender  notify.Sender
	audit   auditWriter
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
	config  NotificationConfig
}

// NewNotificationService constructs the service and its internal queue.
func NewNotificationService(sender notify.Sender, audit auditWriter, logger *zap.Logger, config NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		sender: sender,
		audit:  audit,
		logger: logger,
		config: config,
	}
	s.queue = jobs.NewQueue("notifications", s.process, jobs.QueueConfig{
		Workers:    config.Workers,
		MaxRetries: config.MaxRetries,
		RetryDelay: config.RetryDelay,
		Logger:     logger,
	})
	return s
}

// WithMetrics attaches delivery outcome counters. A nil metrics service is a
// no-op.
func (s *NotificationService) WithMetrics(m *MetricsService) *NotificationService {
	s.metrics = m
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// AssignmentCreated notifies the trainee about a new assignment.
func (s *NotificationService) AssignmentCreated(ctx context.Context, trainee *models.User, moduleTitle string, dueDate *time.Time, assignmentID string) {
	body := fmt.Sprintf("You have been assigned the training module %q.", moduleTitle)
	if dueDate != nil {
		body += fmt.Sprintf(" It is due by %s.", dueDate.Format("2 Jan 2006"))
	}
	s.dispatch(ctx, notify.Message{
		Event:    notify.EventAssignmentCreated,
		ToName:   trainee.DisplayName(),
		ToEmail:  trainee.Email,
		Subject:  "New training assignment: " + moduleTitle,
		TextBody: body,
	}, "assignment", assignmentID)
}

// CompletionRecorded notifies the trainer that a sign-off is waiting. A nil
// trainer means the assignment has nobody to notify, which is recorded as a
// skip rather than a failure.
func (s *NotificationService) CompletionRecorded(ctx context.Context, trainer *models.User, traineeName, moduleTitle, assignmentID string) {
	if trainer == nil {
		s.writeAudit(ctx, models.AuditActionNotifySkipped, "assignment", assignmentID,
			map[string]string{"event": string(notify.EventCompletionRecorded), "reason": "no trainer on assignment"})
		return
	}
	s.dispatch(ctx, notify.Message{
		Event:    notify.EventCompletionRecorded,
		ToName:   trainer.DisplayName(),
		ToEmail:  trainer.Email,
		Subject:  fmt.Sprintf("%s completed %q and awaits your sign-off", traineeName, moduleTitle),
		TextBody: fmt.Sprintf("%s has marked the training module %q as complete. Please review and sign off.", traineeName, moduleTitle),
	}, "assignment", assignmentID)
}

// SignoffRecorded notifies the trainee that the training is approved.
func (s *NotificationService) SignoffRecorded(ctx context.Context, trainee *models.User, moduleTitle, assignmentID string) {
	s.dispatch(ctx, notify.Message{
		Event:    notify.EventSignoffRecorded,
		ToName:   trainee.DisplayName(),
		ToEmail:  trainee.Email,
		Subject:  "Training approved: " + moduleTitle,
		TextBody: fmt.Sprintf("Your completion of %q has been signed off. No further action is needed.", moduleTitle),
	}, "assignment", assignmentID)
}

// UserProvisioned sends the welcome email with the temporary password.
func (s *NotificationService) UserProvisioned(ctx context.Context, user *models.User, tempPassword string) {
	s.dispatch(ctx, notify.Message{
		Event:   notify.EventUserProvisioned,
		ToName:  user.DisplayName(),
		ToEmail: user.Email,
		Subject: "Your TrainSmart account",
		TextBody: fmt.Sprintf("An account has been created for you. Sign in with %s and the temporary password %s. You will be asked to choose a new password on first login.",
			user.Email, tempPassword),
	}, "user", user.ID)
}

func (s *NotificationService) dispatch(ctx context.Context, msg notify.Message, resource, resourceID string) {
	if !s.config.Enabled || s.sender == nil {
		s.metrics.RecordNotification("skipped")
		s.writeAudit(ctx, models.AuditActionNotifySkipped, resource, resourceID,
			map[string]string{"event": string(msg.Event), "reason": "notifications disabled"})
		return
	}
	if msg.ToEmail == "" {
		s.metrics.RecordNotification("skipped")
		s.writeAudit(ctx, models.AuditActionNotifySkipped, resource, resourceID,
			map[string]string{"event": string(msg.Event), "reason": "recipient has no email"})
		return
	}

	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(msg.Event),
		Payload: notificationJob{Message: msg, Resource: resource, ResourceID: resourceID},
	})
	if err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("event", string(msg.Event)), zap.Error(err))
		s.metrics.RecordNotification("failed")
		s.writeAudit(ctx, models.AuditActionNotifyFailed, resource, resourceID,
			map[string]string{"event": string(msg.Event), "error": err.Error()})
	}
}

func (s *NotificationService) process(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(notificationJob)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := s.sender.Send(sendCtx, payload.Message); err != nil {
		s.metrics.RecordNotification("failed")
		s.writeAudit(ctx, models.AuditActionNotifyFailed, payload.Resource, payload.ResourceID,
			map[string]string{"event": string(payload.Message.Event), "to": payload.Message.ToEmail, "error": err.Error()})
		return err
	}

	s.metrics.RecordNotification("sent")
	s.writeAudit(ctx, models.AuditActionNotifySent, payload.Resource, payload.ResourceID,
		map[string]string{"event": string(payload.Message.Event), "to": payload.Message.ToEmail})
	return nil
}

func (s *NotificationService) writeAudit(ctx context.Context, action, resource, resourceID string, values map[string]string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(values)
	log := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		NewValues: payload,
	}
	if resourceID != "" {
		log.ResourceID = &resourceID
	}
	if err := s.audit.Create(ctx, log); err != nil {
		s.logger.Warn("failed to record notification audit log", zap.String("action", action), zap.Error(err))
	}
}
