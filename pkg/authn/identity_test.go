package authn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSiloPolicyCheckAccess(t *testing.T) {
	policy := SiloPolicy{AdminBypass: true}

	staff := Identity{UserID: 2, Role: RoleStaff, Silos: []string{"silo-a"}}
	assert.NoError(t, policy.CheckAccess(staff, "silo-a"))
	assert.ErrorIs(t, policy.CheckAccess(staff, "silo-b"), ErrForbidden)

	// 管理员放行是显式开关
	admin := Identity{UserID: 1, Role: RoleAdmin}
	assert.NoError(t, policy.CheckAccess(admin, "silo-b"))

	strict := SiloPolicy{AdminBypass: false}
	assert.ErrorIs(t, strict.CheckAccess(admin, "silo-b"), ErrForbidden)
	// 关闭放行后管理员仍可访问自己被分配的 silo
	adminWithSilo := Identity{UserID: 1, Role: RoleAdmin, Silos: []string{"silo-a"}}
	assert.NoError(t, strict.CheckAccess(adminWithSilo, "silo-a"))
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("lender")
	assert.NoError(t, err)
	assert.Equal(t, RoleLender, role)

	_, err = ParseRole("root")
	assert.Error(t, err)
}
