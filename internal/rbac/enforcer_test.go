package rbac

import (
	"context"
	"testing"

	"plforum/internal/models"
	"plforum/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestEnforceSeededStaffRole(t *testing.T) {
	db := testutil.NewDB(t)
	e, err := NewEnforcer(db, nil)
	require.NoError(t, err)

	staff := testutil.CreateUser(t, db, "staff", testutil.Staff)
	super := testutil.CreateUser(t, db, "root", testutil.Superuser)
	regular := testutil.CreateUser(t, db, "regular")

	ok, err := e.Enforce(ctx, staff, "site", "admin.users", "ban")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Enforce(ctx, staff, "site", "rbac", "manage")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Enforce(ctx, super, "site", "rbac", "manage")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.Enforce(ctx, regular, "site", "admin.users", "read")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Enforce(ctx, nil, "site", "admin.users", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicyRoundTripIsVisibleImmediately(t *testing.T) {
	db := testutil.NewDB(t)
	e, err := NewEnforcer(db, nil)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "auditor")

	p := Policy{Sub: SubjectKey(user), Obj: "admin.audit", Act: "read"}
	ok, err := e.Enforce(ctx, user, "site", p.Obj, p.Act)
	require.NoError(t, err)
	require.False(t, ok)

	added, err := e.AddPolicy(ctx, p)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = e.AddPolicy(ctx, p)
	require.NoError(t, err)
	assert.False(t, added, "duplicate add")

	ok, err = e.Enforce(ctx, user, "site", p.Obj, p.Act)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := e.RemovePolicy(ctx, p)
	require.NoError(t, err)
	assert.True(t, removed)
	ok, err = e.Enforce(ctx, user, "site", p.Obj, p.Act)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err = e.RemovePolicy(ctx, p)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRoleAssignment(t *testing.T) {
	db := testutil.NewDB(t)
	e, err := NewEnforcer(db, nil)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "helper")

	_, err = e.AddPolicy(ctx, Policy{Sub: "role:auditor", Dom: "site", Obj: "admin.audit", Act: "read"})
	require.NoError(t, err)
	added, err := e.AddRoleForUser(ctx, Assignment{User: SubjectKey(user), Role: "role:auditor"})
	require.NoError(t, err)
	assert.True(t, added)

	ok, err := e.Enforce(ctx, user, "site", "admin.audit", "read")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = e.Enforce(ctx, user, "other", "admin.audit", "read")
	require.NoError(t, err)
	assert.False(t, ok, "policy bound to a single domain")

	assignments, err := e.Assignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, AnyDomain, assignments[0].Dom)

	require.NoError(t, e.DeleteSubject(ctx, SubjectKey(user)))
	ok, err = e.Enforce(ctx, user, "site", "admin.audit", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnforcersShareGeneration(t *testing.T) {
	db := testutil.NewDB(t)
	writer, err := NewEnforcer(db, nil)
	require.NoError(t, err)
	reader, err := NewEnforcer(db, nil)
	require.NoError(t, err)
	user := testutil.CreateUser(t, db, "shared")

	ok, err := reader.Enforce(ctx, user, "site", "admin.users", "read")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = writer.AddPolicy(ctx, Policy{Sub: SubjectKey(user), Obj: "admin.users", Act: "read"})
	require.NoError(t, err)

	ok, err = reader.Enforce(ctx, user, "site", "admin.users", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	var v models.PolicyVersion
	require.NoError(t, db.First(&v, 1).Error)
	assert.EqualValues(t, 1, v.Generation)
}

func TestPadRule(t *testing.T) {
	v := padRule([]string{" a ", "b", "c", "d", "e", "f", "g"})
	assert.Equal(t, [ruleArity]string{"a", "b", "c", "d", "e", "f"}, v)
	assert.Equal(t, []string{"a", "b"}, values(models.CasbinRule{V0: "a", V1: "b"}))
}
