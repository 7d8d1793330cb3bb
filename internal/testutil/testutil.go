// Package testutil provides an in-memory SQLite database with the full schema
// and seed data, plus small fixtures for users and boards.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"plforum/internal/db"
	"plforum/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// NewDB opens a private in-memory database, migrates and seeds it.
// A single connection keeps the memory database alive and serializes transactions.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, db.Seed(gdb))
	return gdb
}

// UserOption tweaks a fixture user before insert.
type UserOption func(*models.User)

func Staff(u *models.User)     { u.IsStaff = true }
func Superuser(u *models.User) { u.IsSuperuser = true }
func Scoped(u *models.User)    { u.IsStaff = true; u.StaffBoardScoped = true }

func WithScore(n int) UserOption {
	return func(u *models.User) { u.ActivityScore = n }
}

// CreateUser inserts a user with a unique handle derived from name.
func CreateUser(t testing.TB, gdb *gorm.DB, name string, opts ...UserOption) *models.User {
	t.Helper()
	u := &models.User{
		Username: fmt.Sprintf("@%s_%d", name, seq.Add(1)),
		Password: "x",
		Nickname: name,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// Board returns a seeded board by slug.
func Board(t testing.TB, gdb *gorm.DB, slug string) *models.Board {
	t.Helper()
	var b models.Board
	require.NoError(t, gdb.Where("slug = ?", slug).First(&b).Error)
	return &b
}

// Reload re-reads a user from the database.
func Reload(t testing.TB, gdb *gorm.DB, u *models.User) *models.User {
	t.Helper()
	var fresh models.User
	require.NoError(t, gdb.First(&fresh, u.ID).Error)
	return &fresh
}
