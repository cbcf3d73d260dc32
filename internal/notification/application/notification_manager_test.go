package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/metrics"
)

type fakeNotificationRepo struct {
	byID    map[string]*domain.Notification
	saveErr error
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{byID: make(map[string]*domain.Notification)}
}

func (r *fakeNotificationRepo) Save(_ context.Context, n *domain.Notification) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *n
	r.byID[n.NotificationID] = &cp
	return nil
}

func (r *fakeNotificationRepo) Get(_ context.Context, notificationID string) (*domain.Notification, error) {
	n, ok := r.byID[notificationID]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNotificationRepo) ListBySilo(_ context.Context, siloID string, limit, offset int) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range r.byID {
		if n.SiloID == siloID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) ListByApplication(_ context.Context, appID string) ([]*domain.Notification, error) {
	var out []*domain.Notification
	for _, n := range r.byID {
		if n.AppID == appID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeSender struct {
	sendErr error
	calls   int
	target  string
	subject string
	content string
}

func (s *fakeSender) Send(_ context.Context, target, subject, content string) error {
	s.calls++
	s.target = target
	s.subject = subject
	s.content = content
	return s.sendErr
}

func newTestManager(repo *fakeNotificationRepo, email *fakeSender) *NotificationManager {
	senders := map[domain.Channel]domain.Sender{}
	if email != nil {
		senders[domain.ChannelEmail] = email
	}
	return NewNotificationManager(repo, senders, authn.SiloPolicy{AdminBypass: true}, metrics.New("test_notification"))
}

func TestSendMarksNotificationSent(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := &fakeSender{}
	mgr := newTestManager(repo, email)

	id, err := mgr.Send(context.Background(), SendCommand{
		SiloID:  "silo-a",
		AppID:   "APP1",
		Channel: domain.ChannelEmail,
		Target:  "finance@acme.example",
		Subject: "hello",
		Content: "body",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	assert.Equal(t, 1, email.calls)
	assert.Equal(t, "finance@acme.example", email.target)

	n := repo.byID[id]
	require.NotNil(t, n)
	assert.Equal(t, domain.StatusSent, n.Status)
	assert.NotNil(t, n.SentAt)
	assert.Empty(t, n.ErrorMessage)
}

func TestSendFailureRecordedButNotReturned(t *testing.T) {
	repo := newFakeNotificationRepo()
	email := &fakeSender{sendErr: errors.New("smtp unreachable")}
	mgr := newTestManager(repo, email)

	id, err := mgr.Send(context.Background(), SendCommand{
		SiloID:  "silo-a",
		AppID:   "APP1",
		Channel: domain.ChannelEmail,
		Target:  "finance@acme.example",
	})
	require.NoError(t, err)

	n := repo.byID[id]
	require.NotNil(t, n)
	assert.Equal(t, domain.StatusFailed, n.Status)
	assert.Equal(t, "smtp unreachable", n.ErrorMessage)
	assert.Nil(t, n.SentAt)
}

func TestSendUnsupportedChannel(t *testing.T) {
	repo := newFakeNotificationRepo()
	mgr := newTestManager(repo, nil)

	id, err := mgr.Send(context.Background(), SendCommand{
		SiloID:  "silo-a",
		AppID:   "APP1",
		Channel: domain.ChannelSMS,
		Target:  "+61400000000",
	})
	require.NoError(t, err)

	n := repo.byID[id]
	require.NotNil(t, n)
	assert.Equal(t, domain.StatusFailed, n.Status)
	assert.Contains(t, n.ErrorMessage, "unsupported channel")
}

func TestSendSaveErrorReturned(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.saveErr = errors.New("db down")
	mgr := newTestManager(repo, &fakeSender{})

	_, err := mgr.Send(context.Background(), SendCommand{
		SiloID:  "silo-a",
		Channel: domain.ChannelEmail,
		Target:  "finance@acme.example",
	})
	assert.Error(t, err)
}

func TestMarkReadIdempotent(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.byID["NTF1"] = &domain.Notification{
		NotificationID: "NTF1",
		SiloID:         "silo-a",
		Status:         domain.StatusSent,
	}
	mgr := newTestManager(repo, &fakeSender{})
	caller := authn.Identity{UserID: 7, Role: authn.RoleStaff, Silos: []string{"silo-a"}}

	n, err := mgr.MarkRead(context.Background(), caller, "NTF1")
	require.NoError(t, err)
	assert.True(t, n.Read)

	again, err := mgr.MarkRead(context.Background(), caller, "NTF1")
	require.NoError(t, err)
	assert.True(t, again.Read)
}

func TestMarkReadSiloDenied(t *testing.T) {
	repo := newFakeNotificationRepo()
	repo.byID["NTF1"] = &domain.Notification{
		NotificationID: "NTF1",
		SiloID:         "silo-b",
		Status:         domain.StatusSent,
	}
	mgr := newTestManager(repo, &fakeSender{})
	caller := authn.Identity{UserID: 7, Role: authn.RoleStaff, Silos: []string{"silo-a"}}

	_, err := mgr.MarkRead(context.Background(), caller, "NTF1")
	assert.ErrorIs(t, err, authn.ErrForbidden)
	assert.False(t, repo.byID["NTF1"].Read)
}

func TestMarkReadNotFound(t *testing.T) {
	mgr := newTestManager(newFakeNotificationRepo(), &fakeSender{})
	caller := authn.Identity{UserID: 7, Role: authn.RoleAdmin}

	_, err := mgr.MarkRead(context.Background(), caller, "NTF404")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}
