package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/internal/notification/infrastructure/sender"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/metrics"
)

func testEvent(toStage string) StageChangedEvent {
	return StageChangedEvent{
		AppID:          "APP1",
		SiloID:         "silo-a",
		FromStage:      "in_review",
		ToStage:        toStage,
		ApplicantName:  "Acme Pty Ltd",
		ApplicantEmail: "finance@acme.example",
		ActorID:        7,
		OccurredOn:     time.Now(),
	}
}

func TestStageEventCreatesNotification(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := &fakeSender{}
	handler := NewStageEventHandler(newTestManager(repo, email))

	require.NoError(t, handler.Handle(context.Background(), testEvent("offer")))

	require.Equal(t, 1, email.calls)
	assert.Equal(t, "finance@acme.example", email.target)
	assert.Equal(t, "Your loan offer is ready", email.subject)
	assert.Contains(t, email.content, "APP1")

	notifications, err := repo.ListByApplication(context.Background(), "APP1")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "silo-a", notifications[0].SiloID)
	assert.Equal(t, domain.ChannelEmail, notifications[0].Channel)
	assert.Equal(t, domain.StatusSent, notifications[0].Status)
}

func TestStageEventTerminalStages(t *testing.T) {
	for stage, subject := range map[string]string{
		"accepted": "Your loan application was accepted",
		"declined": "Update on your loan application",
	} {
		email := &fakeSender{}
		handler := NewStageEventHandler(newTestManager(newFakeNotificationRepo(), email))

		require.NoError(t, handler.Handle(context.Background(), testEvent(stage)))
		require.Equal(t, 1, email.calls, "stage %s", stage)
		assert.Equal(t, subject, email.subject)
	}
}

func TestStageEventRecordedByCaptureSender(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := sender.NewMockEmailSender()
	senders := map[domain.Channel]domain.Sender{domain.ChannelEmail: email}
	mgr := NewNotificationManager(repo, senders, authn.SiloPolicy{AdminBypass: true}, metrics.New("test_notification"))
	handler := NewStageEventHandler(mgr)

	require.NoError(t, handler.Handle(context.Background(), testEvent("offer")))

	deliveries := email.Deliveries()
	require.Len(t, deliveries, 1)
	assert.Equal(t, "finance@acme.example", deliveries[0].Target)
	assert.Equal(t, "Your loan offer is ready", deliveries[0].Subject)
	assert.Contains(t, deliveries[0].Content, "APP1")
}

func TestStageEventIgnoresOtherStages(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := &fakeSender{}
	handler := NewStageEventHandler(newTestManager(repo, email))

	require.NoError(t, handler.Handle(context.Background(), testEvent("in_review")))

	assert.Equal(t, 0, email.calls)
	assert.Empty(t, repo.byID)
}

func TestStageEventSkipsMissingEmail(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := &fakeSender{}
	handler := NewStageEventHandler(newTestManager(repo, email))

	event := testEvent("offer")
	event.ApplicantEmail = ""
	require.NoError(t, handler.Handle(context.Background(), event))

	assert.Equal(t, 0, email.calls)
	assert.Empty(t, repo.byID)
}
