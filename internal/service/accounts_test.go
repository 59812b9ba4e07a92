package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"traveltogether/internal/domain"
)

func newAccountService(t *testing.T, editors ...string) (*AccountService, *gorm.DB) {
	t.Helper()
	gdb := newTestDB(t)
	path := filepath.Join(t.TempDir(), "editors.txt")
	content := "# trip editors\n"
	for _, e := range editors {
		content += e + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	svc := NewAccountService(gdb, path)
	svc.cost = bcrypt.MinCost
	return svc, gdb
}

func TestRegister_RoleFromAllowlist(t *testing.T) {
	svc, _ := newAccountService(t, "Boss@Example.com")

	editor, err := svc.Register(ctx, "boss@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, editor.Role)

	user, err := svc.Register(ctx, "  Guest@Example.com ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Equal(t, "guest@example.com", user.Email)
	assert.NotEqual(t, "secret1", user.Password)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newAccountService(t)

	_, err := svc.Register(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Register(ctx, "a@example.com", "short")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Password must be at least 6 characters long.", domain.ErrorMessage(err))

	_, err = svc.Register(ctx, "long@example.com", strings.Repeat("x", 73))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Password must be at most 72 characters long.", domain.ErrorMessage(err))

	_, err = svc.Register(ctx, "a@example.com", "secret1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "A@EXAMPLE.COM", "secret2")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, "Email already registered.", domain.ErrorMessage(err))
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newAccountService(t)
	registered, err := svc.Register(ctx, "a@example.com", "secret1")
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "A@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	_, err = svc.Authenticate(ctx, "a@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrAuth)
	_, err = svc.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.Equal(t, "Invalid email or password.", domain.ErrorMessage(err))
}

func TestUpdateProfile(t *testing.T) {
	svc, gdb := newAccountService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	got, err := svc.UpdateProfile(ctx, u.ID, " Alex ", "Likes hiking")
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.DisplayName())

	_, err = svc.UpdateProfile(ctx, u.ID, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProfile_SplitsProposals(t *testing.T) {
	svc, gdb := newAccountService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)
	proposals := NewProposalService(gdb, nil)

	active, err := proposals.Create(ctx, u.ID, ProposalInput{Title: "Active"})
	require.NoError(t, err)
	done, err := proposals.Create(ctx, u.ID, ProposalInput{Title: "Done"})
	require.NoError(t, err)
	_, err = proposals.Finalize(ctx, u.ID, done.ID)
	require.NoError(t, err)

	profile, err := svc.Profile(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, profile.Active, 1)
	require.Len(t, profile.Inactive, 1)
	assert.Equal(t, active.ID, profile.Active[0].ID)
	assert.Equal(t, done.ID, profile.Inactive[0].ID)

	_, err = svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetRFID(t *testing.T) {
	svc, gdb := newAccountService(t)
	a := createUser(t, gdb, "a@example.com", domain.RoleUser)
	b := createUser(t, gdb, "b@example.com", domain.RoleUser)
	editor := createUser(t, gdb, "e@example.com", domain.RoleEditor)

	got, err := svc.SetRFID(ctx, a.ID, a.ID, " 0004215 ")
	require.NoError(t, err)
	require.NotNil(t, got.RFID)
	assert.Equal(t, "0004215", *got.RFID)

	_, err = svc.SetRFID(ctx, a.ID, b.ID, "777")
	assert.ErrorIs(t, err, domain.ErrPermission)

	_, err = svc.SetRFID(ctx, editor.ID, b.ID, "0004215")
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err = svc.SetRFID(ctx, editor.ID, a.ID, "")
	require.NoError(t, err)
	assert.Nil(t, got.RFID)

	// The freed card can be bound elsewhere
	_, err = svc.SetRFID(ctx, editor.ID, b.ID, "0004215")
	assert.NoError(t, err)
}

func TestSetRFID_ConcurrentBindIsConflict(t *testing.T) {
	svc, gdb := newAccountService(t)
	a := createUser(t, gdb, "a@example.com", domain.RoleUser)
	b := createUser(t, gdb, "b@example.com", domain.RoleUser)

	// Bind the card to b after the availability check has passed for a
	stolen := false
	require.NoError(t, gdb.Callback().Update().Before("gorm:update").Register("test:bind_first", func(tx *gorm.DB) {
		if stolen {
			return
		}
		stolen = true
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE users SET rfid = ? WHERE id = ?", "0004215", b.ID)
		require.NoError(t, err)
	}))

	_, err := svc.SetRFID(ctx, a.ID, a.ID, "0004215")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "This RFID card is already bound to another user.", domain.ErrorMessage(err))
}

func TestSetRole(t *testing.T) {
	svc, gdb := newAccountService(t)
	user := createUser(t, gdb, "u@example.com", domain.RoleUser)
	editor := createUser(t, gdb, "e@example.com", domain.RoleEditor)
	admin := createUser(t, gdb, "admin@example.com", domain.RoleAdmin)

	_, err := svc.SetRole(ctx, user.ID, editor.ID, domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrPermission)

	_, err = svc.SetRole(ctx, editor.ID, user.ID, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.SetRole(ctx, editor.ID, admin.ID, domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrPermission)

	got, err := svc.SetRole(ctx, editor.ID, user.ID, "Editor")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, got.Role)

	reloaded, err := svc.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, reloaded.Role)

	_, err = svc.SetRole(ctx, editor.ID, 999, domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
