package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trainsmart-io/trainsmart-api/internal/models"
	"github.com/trainsmart-io/trainsmart-api/internal/notify"
)

type mockSender struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *mockSender) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type syncAudit struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (m *syncAudit) Create(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *syncAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.logs))
	for _, l := range m.logs {
		out = append(out, l.Action)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestNotificationDeliveredAndAudited(t *testing.T) {
	sender := &mockSender{}
	audit := &syncAudit{}
	svc := NewNotificationService(sender, audit, zap.NewNop(), NotificationConfig{Enabled: true, Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	trainee := &models.User{ID: "u1", Email: "trainee@example.com", FirstName: "Tess", LastName: "Lee"}
	svc.AssignmentCreated(context.Background(), trainee, "Forklift Safety", nil, "assignment-1")

	waitFor(t, func() bool { return sender.count() == 1 })
	assert.Equal(t, notify.EventAssignmentCreated, sender.sent[0].Event)
	waitFor(t, func() bool {
		for _, a := range audit.actions() {
			if a == models.AuditActionNotifySent {
				return true
			}
		}
		return false
	})
}

func TestNotificationSkippedWhenNoTrainer(t *testing.T) {
	sender := &mockSender{}
	audit := &syncAudit{}
	svc := NewNotificationService(sender, audit, zap.NewNop(), NotificationConfig{Enabled: true, Workers: 1})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.CompletionRecorded(context.Background(), nil, "Tess Lee", "Forklift Safety", "assignment-1")

	assert.Contains(t, audit.actions(), models.AuditActionNotifySkipped)
	assert.Equal(t, 0, sender.count())
}

func TestNotificationSkippedWhenDisabled(t *testing.T) {
	sender := &mockSender{}
	audit := &syncAudit{}
	svc := NewNotificationService(sender, audit, zap.NewNop(), NotificationConfig{Enabled: false})

	trainee := &models.User{ID: "u1", Email: "trainee@example.com"}
	svc.SignoffRecorded(context.Background(), trainee, "Forklift Safety", "assignment-1")

	assert.Contains(t, audit.actions(), models.AuditActionNotifySkipped)
	assert.Equal(t, 0, sender.count())
}

func TestNotificationFailureAuditedNotPropagated(t *testing.T) {
	sender := &mockSender{err: errors.New("provider down")}
	audit := &syncAudit{}
	svc := NewNotificationService(sender, audit, zap.NewNop(), NotificationConfig{Enabled: true, Workers: 1, MaxRetries: 1, RetryDelay: time.Millisecond})
	svc.Start(context.Background())
	defer svc.Stop()

	trainee := &models.User{ID: "u1", Email: "trainee@example.com"}
	// the call itself never returns an error to the mutation path
	svc.SignoffRecorded(context.Background(), trainee, "Forklift Safety", "assignment-1")

	waitFor(t, func() bool {
		for _, a := range audit.actions() {
			if a == models.AuditActionNotifyFailed {
				return true
			}
		}
		return false
	})
}

func TestNotificationEnqueueFailureAudited(t *testing.T) {
	sender := &mockSender{}
	audit := &syncAudit{}
	// queue never started, so enqueue fails immediately
	svc := NewNotificationService(sender, audit, zap.NewNop(), NotificationConfig{Enabled: true})

	trainee := &models.User{ID: "u1", Email: "trainee@example.com"}
	svc.AssignmentCreated(context.Background(), trainee, "Forklift Safety", nil, "assignment-1")

	require.Contains(t, audit.actions(), models.AuditActionNotifyFailed)
	assert.Equal(t, 0, sender.count())
}
