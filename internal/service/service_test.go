package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"traveltogether/internal/db"
	"traveltogether/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "app.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func createUser(t *testing.T, gdb *gorm.DB, email, role string) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Password: "x", Role: role}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// fakeClock is a settable Clock
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var ctx = context.Background()
