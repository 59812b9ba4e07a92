package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traveltogether/internal/db"
	"traveltogether/internal/domain"
	"traveltogether/internal/service"
)

func TestReport(t *testing.T) {
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "app.db"), false)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	u := domain.User{Email: "a@example.com", Password: "x", Role: domain.RoleUser}
	editor := domain.User{Email: "e@example.com", Password: "x", Role: domain.RoleEditor}
	require.NoError(t, gdb.Create(&u).Error)
	require.NoError(t, gdb.Create(&editor).Error)

	// Monday of the previous week: 1h01m05s
	start := time.Date(2024, 12, 30, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour + time.Minute + 5*time.Second)
	require.NoError(t, gdb.Create(&domain.TimeEntry{UserID: u.ID, StartTime: start, EndTime: &end}).Error)

	now := time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)
	times := service.NewTimeService(gdb, func() time.Time { return now }, time.UTC)
	ctx := context.Background()
	// Tuesday overridden to two hours
	_, err = times.SetAdjustment(ctx, editor.ID, u.ID, "2024-12-31", 120)
	require.NoError(t, err)

	monday := PreviousWeek(times, now)
	assert.Equal(t, "2024-12-30", monday.Format(domain.DateLayout))
	assert.Equal(t, "2025-W01", Label(monday))

	weeks, err := Collect(ctx, times, []domain.User{u, editor}, monday)
	require.NoError(t, err)
	require.Len(t, weeks, 2)
	assert.Equal(t, int64(3665+7200), weeks[0].TotalSeconds)

	var buf bytes.Buffer
	require.NoError(t, WriteUser(&buf, weeks[0]))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)
	assert.Equal(t, "date,weekday,hours,minutes,seconds,total_seconds", lines[0])
	assert.Equal(t, "2024-12-30,Monday,1,1,5,3665", lines[1])
	assert.Equal(t, "2024-12-31,Tuesday,2,0,0,7200", lines[2])
	assert.Equal(t, "", lines[8])
	assert.Equal(t, "TOTAL,,3,1,5,10865", lines[9])

	dir := t.TempDir()
	paths, err := WriteFiles(dir, Label(monday), weeks)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "weekly_report_all_2025-W01.csv"), paths[2])

	f, err := os.Open(paths[2])
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	// Header plus eight rows per user
	assert.Len(t, records, 1+2*8)
	assert.Equal(t, []string{"1", "a@example.com", "TOTAL", "", "3", "1", "5", "10865"}, records[8])
}
