package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"traveltogether/internal/domain"
)

// Wednesday of ISO week 2025-W02
var wednesday = time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC)

func newTimeService(t *testing.T) (*TimeService, *fakeClock, *gorm.DB) {
	t.Helper()
	gdb := newTestDB(t)
	clock := &fakeClock{t: wednesday}
	return NewTimeService(gdb, clock.Now, time.UTC), clock, gdb
}

func addEntry(t *testing.T, gdb *gorm.DB, userID uint, start time.Time, d time.Duration) {
	t.Helper()
	end := start.Add(d)
	secs := int64(d / time.Second)
	require.NoError(t, gdb.Create(&domain.TimeEntry{
		UserID:          userID,
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: &secs,
	}).Error)
}

func TestStartStop(t *testing.T) {
	svc, clock, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	entry, err := svc.Start(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, entry.Running())

	_, err = svc.Start(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, "Timer already running.", domain.ErrorMessage(err))

	clock.Advance(125*time.Second + 400*time.Millisecond)
	stopped, err := svc.Stop(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stopped.DurationSeconds)
	assert.Equal(t, int64(125), *stopped.DurationSeconds)

	_, err = svc.Stop(ctx, u.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	running, err := svc.Current(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, running)
}

func TestStartStopByTag(t *testing.T) {
	svc, clock, gdb := newTimeService(t)
	tag := "0004215"
	u := &domain.User{Email: "a@example.com", Password: "x", Role: domain.RoleUser, RFID: &tag}
	require.NoError(t, gdb.Create(u).Error)

	user, _, err := svc.StartByTag(ctx, tag)
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)

	clock.Advance(time.Minute)
	_, entry, err := svc.StopByTag(ctx, tag)
	require.NoError(t, err)
	assert.Equal(t, int64(60), *entry.DurationSeconds)

	_, _, err = svc.StartByTag(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = svc.StartByTag(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "Unknown RFID card.", domain.ErrorMessage(err))
}

func TestDays_ClipsAtMidnight(t *testing.T) {
	svc, _, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	// Monday 23:00 until Tuesday 01:30
	addEntry(t, gdb, u.ID, time.Date(2025, 1, 6, 23, 0, 0, 0, time.UTC), 150*time.Minute)

	days, err := svc.Days(ctx, u.ID, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2025-01-06", days[0].Date)
	assert.Equal(t, "Monday", days[0].Weekday)
	assert.Equal(t, int64(3600), days[0].Seconds)
	assert.Equal(t, int64(5400), days[1].Seconds)
	assert.Equal(t, int64(90), days[1].Minutes)
}

func TestAggregate_RunningEntryCountsUntilNow(t *testing.T) {
	svc, clock, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	_, err := svc.Start(ctx, u.ID)
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)

	day, err := svc.Aggregate(ctx, u.ID, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(45*60), day.Seconds)
	assert.False(t, day.Adjusted)
}

func TestAdjustment_OverridesComputedTotal(t *testing.T) {
	svc, _, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)
	editor := createUser(t, gdb, "e@example.com", domain.RoleEditor)
	addEntry(t, gdb, u.ID, time.Date(2025, 1, 7, 8, 0, 0, 0, time.UTC), 3*time.Hour)

	_, err := svc.SetAdjustment(ctx, u.ID, u.ID, "2025-01-07", 30)
	assert.ErrorIs(t, err, domain.ErrPermission)
	_, err = svc.SetAdjustment(ctx, editor.ID, u.ID, "2025-01-07", 2000)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SetAdjustment(ctx, editor.ID, u.ID, "07.01.2025", 30)
	assert.ErrorIs(t, err, domain.ErrValidation)

	adj, err := svc.SetAdjustment(ctx, editor.ID, u.ID, "2025-01-07", 240)
	require.NoError(t, err)
	assert.Equal(t, editor.ID, adj.EditedBy)

	// A second save replaces the first
	adj, err = svc.SetAdjustment(ctx, editor.ID, u.ID, "2025-01-07", 200)
	require.NoError(t, err)
	assert.Equal(t, 200, adj.TotalMinutes)
	var count int64
	require.NoError(t, gdb.Model(&domain.DailyAdjustment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	day, err := svc.Aggregate(ctx, u.ID, time.Date(2025, 1, 7, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, day.Adjusted)
	assert.Equal(t, int64(200), day.Minutes)

	require.NoError(t, svc.DeleteAdjustment(ctx, editor.ID, u.ID, "2025-01-07"))
	day, err = svc.Aggregate(ctx, u.ID, time.Date(2025, 1, 7, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, day.Adjusted)
	assert.Equal(t, int64(180), day.Minutes)

	err = svc.DeleteAdjustment(ctx, editor.ID, u.ID, "2025-01-07")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWeekStart(t *testing.T) {
	svc, _, _ := newTimeService(t)

	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), svc.WeekStart(wednesday))
	assert.Equal(t, time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC), svc.WeekStart(time.Date(2025, 1, 12, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), svc.WeekStart(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC)))
}

func TestWeekly(t *testing.T) {
	svc, _, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	// Previous week: 60 and 120 minutes on two days
	addEntry(t, gdb, u.ID, time.Date(2024, 12, 30, 9, 0, 0, 0, time.UTC), time.Hour)
	addEntry(t, gdb, u.ID, time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC), 2*time.Hour)
	// Current week
	addEntry(t, gdb, u.ID, time.Date(2025, 1, 7, 9, 0, 0, 0, time.UTC), 30*time.Minute)

	sheet, err := svc.Weekly(ctx, u.ID, 1)
	require.NoError(t, err)
	require.Len(t, sheet.Weeks, 2)

	prev := sheet.Weeks[0]
	assert.Equal(t, "2025-W01", prev.Label)
	assert.Equal(t, "2024-12-30", prev.Start)
	assert.Equal(t, "2025-01-05", prev.End)
	assert.False(t, prev.Current)
	assert.Equal(t, int64(180), prev.TotalMinutes)
	assert.InDelta(t, 90.0, prev.AverageMinutes, 0.001)

	cur := sheet.Weeks[1]
	assert.Equal(t, "2025-W02", cur.Label)
	assert.True(t, cur.Current)
	assert.Len(t, cur.Days, 7)
	assert.Equal(t, int64(30), cur.TotalMinutes)
	assert.Nil(t, sheet.Running)
}

func TestWeekly_ClampsWeeks(t *testing.T) {
	svc, _, gdb := newTimeService(t)
	u := createUser(t, gdb, "a@example.com", domain.RoleUser)

	sheet, err := svc.Weekly(ctx, u.ID, -3)
	require.NoError(t, err)
	assert.Len(t, sheet.Weeks, 1)

	sheet, err = svc.Weekly(ctx, u.ID, 50)
	require.NoError(t, err)
	assert.Len(t, sheet.Weeks, MaxWeeks+1)
	assert.Zero(t, sheet.Weeks[0].AverageMinutes)
}
