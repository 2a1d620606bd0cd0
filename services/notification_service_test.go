package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backend_cmms/models"
)

// fakeSender запоминает отправленные сообщения
type fakeSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (f *fakeSender) SendMessage(chatID string, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, chatID+":"+message)
	return "42", nil
}

func TestNotificationService_Dispatch(t *testing.T) {
	env := setupServiceTest(t)
	ctx := context.Background()
	sender := &fakeSender{}
	notifications := NewNotificationService(env.db, sender, "-100")

	require.NoError(t, notifications.Dispatch(ctx, Event{
		Type:        EventWorkOrderCompleted,
		CompanyID:   env.company.ID,
		RelatedID:   7,
		RelatedType: "work_order",
		Message:     "done",
	}))
	require.Len(t, sender.messages, 1)
	assert.Equal(t, "-100:done", sender.messages[0])

	var entry models.NotificationLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, models.NotificationStatusSent, entry.Status)
	assert.Equal(t, "42", entry.ExternalID)
	assert.NotNil(t, entry.SentAt)
	require.NotNil(t, entry.RelatedID)
	assert.Equal(t, uint(7), *entry.RelatedID)
}

func TestNotificationService_SendFailure(t *testing.T) {
	env := setupServiceTest(t)
	sendErr := errors.New("telegram unavailable")
	notifications := NewNotificationService(env.db, &fakeSender{err: sendErr}, "-100")

	err := notifications.Dispatch(context.Background(), Event{Type: EventLowStock, CompanyID: env.company.ID, Message: "low"})
	assert.ErrorIs(t, err, sendErr)

	var entry models.NotificationLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, models.NotificationStatusFailed, entry.Status)
	assert.Equal(t, "telegram unavailable", entry.ErrorMessage)
}

func TestNotificationService_WithoutSender(t *testing.T) {
	env := setupServiceTest(t)
	notifications := NewNotificationService(env.db, nil, "")

	require.NoError(t, notifications.SendStockAlert(context.Background(), models.StockAlert{
		ID: 3, Title: "Низкий остаток", Description: "fuse", CompanyID: env.company.ID,
	}))

	var entry models.NotificationLog
	require.NoError(t, env.db.First(&entry).Error)
	assert.Equal(t, models.NotificationStatusSkipped, entry.Status)
	assert.Equal(t, "log", entry.Channel)
	assert.Equal(t, EventLowStock, entry.Type)
}

func TestGetNotificationLogs(t *testing.T) {
	env := setupServiceTest(t)
	notifications := NewNotificationService(env.db, nil, "")
	for i := 0; i < 3; i++ {
		require.NoError(t, notifications.Dispatch(context.Background(), Event{Type: EventPreventiveDue, CompanyID: env.company.ID, Message: "due"}))
	}
	require.NoError(t, notifications.Dispatch(context.Background(), Event{Type: EventPreventiveDue, CompanyID: env.company.ID + 100, Message: "other"}))

	logs, total, err := notifications.GetNotificationLogs(env.company.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, logs, 2)
}

// recordingDispatcher сигнализирует о каждом событии
type recordingDispatcher struct {
	events chan Event
}

func (r *recordingDispatcher) Dispatch(ctx context.Context, event Event) error {
	r.events <- event
	return nil
}

func TestDispatchAsync(t *testing.T) {
	// nil диспетчер не паникует
	dispatchAsync(nil, Event{Type: EventSlotAssigned})

	d := &recordingDispatcher{events: make(chan Event, 1)}
	dispatchAsync(d, Event{Type: EventSlotAssigned, CompanyID: 5})
	event := <-d.events
	assert.Equal(t, EventSlotAssigned, event.Type)
	assert.Equal(t, uint(5), event.CompanyID)
}
