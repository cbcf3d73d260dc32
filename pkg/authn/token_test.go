package authn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *TokenManager {
	return NewTokenManager(TokenConfig{
		Secret:   "test-secret",
		Issuer:   "fundflow-backoffice",
		TTLHours: 1,
	})
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager()

	ident := Identity{UserID: 42, Role: RoleStaff, Silos: []string{"silo-a", "silo-b"}}
	token, exp, err := m.Issue(ident)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Greater(t, exp, time.Now().Unix())

	resolved, err := m.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, ident, resolved)
}

func TestResolveMissingCredential(t *testing.T) {
	m := newTestManager()

	_, err := m.Resolve("")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestResolveMalformedCredential(t *testing.T) {
	m := newTestManager()

	_, err := m.Resolve("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestResolveWrongSecret(t *testing.T) {
	other := NewTokenManager(TokenConfig{Secret: "other-secret", Issuer: "x", TTLHours: 1})
	token, _, err := other.Issue(Identity{UserID: 1, Role: RoleAdmin})
	require.NoError(t, err)

	_, err = newTestManager().Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestResolveExpiredCredential(t *testing.T) {
	m := newTestManager()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     "fundflow-backoffice",
		"user_id": float64(1),
		"role":    string(RoleStaff),
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestResolveMissingSilosDefaultsToEmpty(t *testing.T) {
	m := newTestManager()

	noSilos := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     "fundflow-backoffice",
		"user_id": float64(5),
		"role":    string(RoleMarketing),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := noSilos.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	ident, err := m.Resolve(token)
	require.NoError(t, err)
	// silos 声明缺失映射为空集合而不是报错
	assert.Empty(t, ident.Silos)
	assert.NotNil(t, ident.Silos)
}

func TestResolveUnknownRole(t *testing.T) {
	m := newTestManager()

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":     "fundflow-backoffice",
		"user_id": float64(5),
		"role":    "superuser",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	token, err := badRole.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.Resolve(token)
	assert.ErrorIs(t, err, ErrInvalidCredential)
}
