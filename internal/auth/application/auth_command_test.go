package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/auth/domain"
	"github.com/fundflow/backoffice/pkg/authn"
)

// fakeUserRepo 内存用户仓储
type fakeUserRepo struct {
	users  map[uint]*domain.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uint]*domain.User), nextID: 1}
}

func (r *fakeUserRepo) Save(ctx context.Context, user *domain.User) error {
	if user.ID == 0 {
		user.ID = r.nextID
		r.nextID++
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeSessionRepo 内存会话仓储
type fakeSessionRepo struct {
	sessions map[string]*domain.AuthSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.AuthSession)}
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *domain.AuthSession) error {
	r.sessions[session.Token] = session
	return nil
}

func (r *fakeSessionRepo) Get(ctx context.Context, token string) (*domain.AuthSession, error) {
	return r.sessions[token], nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, token string) error {
	delete(r.sessions, token)
	return nil
}

func newTestAuthService() (*AuthCommandService, *fakeUserRepo, *fakeSessionRepo) {
	repo := newFakeUserRepo()
	sessions := newFakeSessionRepo()
	tokens := authn.NewTokenManager(authn.TokenConfig{Secret: "test-secret", Issuer: "test", TTLHours: 1})
	return NewAuthCommandService(repo, sessions, tokens), repo, sessions
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, sessions := newTestAuthService()
	ctx := context.Background()

	userID, err := svc.Register(ctx, RegisterCommand{
		Email:    "ops@fundflow.io",
		Password: "correct-horse",
		Role:     "staff",
		Silos:    []string{"silo-a"},
	})
	require.NoError(t, err)
	assert.NotZero(t, userID)

	result, err := svc.Login(ctx, LoginCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, authn.RoleStaff, result.Role)
	assert.Equal(t, []string{"silo-a"}, result.Silos)
	assert.Contains(t, sessions.sessions, result.Token)

	// 签发的令牌应能解析回同一身份
	tokens := authn.NewTokenManager(authn.TokenConfig{Secret: "test-secret", Issuer: "test", TTLHours: 1})
	ident, err := tokens.Resolve(result.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, ident.UserID)
	assert.Equal(t, []string{"silo-a"}, ident.Silos)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterCommand{Email: "ops@fundflow.io", Password: "other-password"})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestRegisterUnknownRole(t *testing.T) {
	svc, _, _ := newTestAuthService()

	_, err := svc.Register(context.Background(), RegisterCommand{
		Email:    "ops@fundflow.io",
		Password: "correct-horse",
		Role:     "superuser",
	})
	assert.Error(t, err)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginCommand{Email: "ops@fundflow.io", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginCommand{Email: "nobody@fundflow.io", Password: "whatever"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAssignSiloRequiresAdmin(t *testing.T) {
	svc, repo, _ := newTestAuthService()
	ctx := context.Background()

	userID, err := svc.Register(ctx, RegisterCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)

	staff := authn.Identity{UserID: 99, Role: authn.RoleStaff}
	_, err = svc.AssignSilo(ctx, staff, userID, "silo-b")
	assert.ErrorIs(t, err, authn.ErrForbidden)

	admin := authn.Identity{UserID: 1, Role: authn.RoleAdmin}
	user, err := svc.AssignSilo(ctx, admin, userID, "silo-b")
	require.NoError(t, err)
	assert.Contains(t, user.Silos, "silo-b")

	// 重复分配是幂等空操作
	user, err = svc.AssignSilo(ctx, admin, userID, "silo-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"silo-b"}, user.Silos)

	// 收回后不再持有
	user, err = svc.RevokeSilo(ctx, admin, userID, "silo-b")
	require.NoError(t, err)
	assert.NotContains(t, user.Silos, "silo-b")

	stored, _ := repo.GetByID(ctx, userID)
	assert.NotContains(t, stored.Silos, "silo-b")
}

func TestLogoutDeletesSession(t *testing.T) {
	svc, _, sessions := newTestAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)
	result, err := svc.Login(ctx, LoginCommand{Email: "ops@fundflow.io", Password: "correct-horse"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.Token))
	assert.NotContains(t, sessions.sessions, result.Token)
}
