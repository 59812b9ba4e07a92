package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"traveltogether/internal/domain"
)

// MaxWeeks bounds the number of completed weeks in a timesheet
const MaxWeeks = 12

// DayTotal is the tracked time of one calendar day
type DayTotal struct {
	Date     string `json:"date"`
	Weekday  string `json:"weekday"`
	Seconds  int64  `json:"seconds"`
	Minutes  int64  `json:"minutes"`
	Adjusted bool   `json:"adjusted"` // Total comes from a daily adjustment
}

// WeekSummary groups seven days starting on a Monday
type WeekSummary struct {
	Label          string     `json:"label"` // ISO week, e.g. 2025-W07
	Start          string     `json:"start"`
	End            string     `json:"end"`
	Current        bool       `json:"current"`
	Days           []DayTotal `json:"days"`
	TotalSeconds   int64      `json:"total_seconds"`
	TotalMinutes   int64      `json:"total_minutes"`
	AverageMinutes float64    `json:"average_minutes"` // Over days with tracked time
}

// Timesheet is the weekly overview of one account
type Timesheet struct {
	UserID  uint              `json:"user_id"`
	Weeks   []WeekSummary     `json:"weeks"`
	Running *domain.TimeEntry `json:"running"`
}

// TimeService starts and stops timers and aggregates tracked time
type TimeService struct {
	db  *gorm.DB
	now Clock
	loc *time.Location // Calendar days are cut in this location
}

// NewTimeService creates a TimeService; loc defaults to UTC
func NewTimeService(db *gorm.DB, now Clock, loc *time.Location) *TimeService {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &TimeService{db: db, now: now, loc: loc}
}

func (s *TimeService) clock() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// Start opens a timer for the user. Only one timer may run at a time.
func (s *TimeService) Start(ctx context.Context, userID uint) (*domain.TimeEntry, error) {
	db := s.db.WithContext(ctx)
	var running int64
	if err := db.Model(&domain.TimeEntry{}).
		Where("user_id = ? AND end_time IS NULL", userID).
		Count(&running).Error; err != nil {
		return nil, err
	}
	if running > 0 {
		return nil, domain.Conflict("Timer already running.")
	}
	entry := domain.TimeEntry{UserID: userID, StartTime: s.clock()}
	if err := db.Create(&entry).Error; err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"entry_id": entry.ID,
	}).Info("Timer started")
	return &entry, nil
}

// Stop closes the running timer and records its duration in whole seconds
func (s *TimeService) Stop(ctx context.Context, userID uint) (*domain.TimeEntry, error) {
	entry, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.NotFound("No running timer.")
	}
	end := s.clock()
	duration := int64(end.Sub(entry.StartTime) / time.Second)
	if duration < 0 {
		duration = 0
	}
	err = s.db.WithContext(ctx).Model(entry).Updates(map[string]any{
		"end_time":         end,
		"duration_seconds": duration,
	}).Error
	if err != nil {
		return nil, err
	}
	entry.EndTime = &end
	entry.DurationSeconds = &duration
	logrus.WithFields(logrus.Fields{
		"user_id":          userID,
		"entry_id":         entry.ID,
		"duration_seconds": duration,
	}).Info("Timer stopped")
	return entry, nil
}

// Current returns the running entry of the user, or nil
func (s *TimeService) Current(ctx context.Context, userID uint) (*domain.TimeEntry, error) {
	var entries []domain.TimeEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time IS NULL", userID).
		Order("id DESC").Limit(1).Find(&entries).Error
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// StartByTag starts the timer of the account bound to tag
func (s *TimeService) StartByTag(ctx context.Context, tag string) (*domain.User, *domain.TimeEntry, error) {
	user, err := s.UserByTag(ctx, tag)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.Start(ctx, user.ID)
	return user, entry, err
}

// StopByTag stops the timer of the account bound to tag
func (s *TimeService) StopByTag(ctx context.Context, tag string) (*domain.User, *domain.TimeEntry, error) {
	user, err := s.UserByTag(ctx, tag)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.Stop(ctx, user.ID)
	return user, entry, err
}

// UserByTag resolves an RFID tag to its account
func (s *TimeService) UserByTag(ctx context.Context, tag string) (*domain.User, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, domain.Validation("Missing RFID.")
	}
	var user domain.User
	if err := s.db.WithContext(ctx).Where("rfid = ?", tag).First(&user).Error; err != nil {
		return nil, notFound(err, "Unknown RFID card.")
	}
	return &user, nil
}

// Aggregate returns the tracked time of one calendar day
func (s *TimeService) Aggregate(ctx context.Context, userID uint, day time.Time) (DayTotal, error) {
	days, err := s.Days(ctx, userID, day, 1)
	if err != nil {
		return DayTotal{}, err
	}
	return days[0], nil
}

// Today returns the tracked time of the current calendar day
func (s *TimeService) Today(ctx context.Context, userID uint) (DayTotal, error) {
	return s.Aggregate(ctx, userID, s.clock())
}

// Days aggregates n consecutive calendar days starting at from. A daily
// adjustment replaces the computed total of its day. Entries are clipped to
// day boundaries and running entries count up to now.
func (s *TimeService) Days(ctx context.Context, userID uint, from time.Time, n int) ([]DayTotal, error) {
	first := s.dayStart(from)
	last := first.AddDate(0, 0, n)
	db := s.db.WithContext(ctx)

	dates := make([]string, n)
	for i := range dates {
		dates[i] = first.AddDate(0, 0, i).Format(domain.DateLayout)
	}
	var adjustments []domain.DailyAdjustment
	if err := db.Where("user_id = ? AND date IN ?", userID, dates).Find(&adjustments).Error; err != nil {
		return nil, err
	}
	adjusted := make(map[string]int, len(adjustments))
	for _, a := range adjustments {
		adjusted[a.Date] = a.TotalMinutes
	}

	var entries []domain.TimeEntry
	if err := db.Where("user_id = ? AND start_time < ? AND (end_time IS NULL OR end_time >= ?)",
		userID, last.UTC(), first.UTC()).
		Order("start_time ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	now := s.clock()
	totals := make([]DayTotal, n)
	for i := range totals {
		start := first.AddDate(0, 0, i)
		end := start.AddDate(0, 0, 1)
		t := DayTotal{Date: dates[i], Weekday: start.Weekday().String()}
		if minutes, ok := adjusted[t.Date]; ok {
			t.Seconds = int64(minutes) * 60
			t.Adjusted = true
		} else {
			for _, e := range entries {
				t.Seconds += overlap(e, start, end, now)
			}
		}
		t.Minutes = t.Seconds / 60
		totals[i] = t
	}
	return totals, nil
}

// overlap returns the seconds of e that fall inside [start, end)
func overlap(e domain.TimeEntry, start, end, now time.Time) int64 {
	from := e.StartTime
	to := now
	if e.EndTime != nil {
		to = *e.EndTime
	}
	if from.Before(start) {
		from = start
	}
	if to.After(end) {
		to = end
	}
	if !to.After(from) {
		return 0
	}
	return int64(to.Sub(from) / time.Second)
}

func (s *TimeService) dayStart(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// WeekStart returns the Monday that starts the week containing t
func (s *TimeService) WeekStart(t time.Time) time.Time {
	d := s.dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7 // Days since Monday
	return d.AddDate(0, 0, -offset)
}

// Weekly returns the last weeks completed Monday-Sunday weeks followed by
// the current week, oldest first
func (s *TimeService) Weekly(ctx context.Context, userID uint, weeks int) (*Timesheet, error) {
	if weeks < 0 {
		weeks = 0
	}
	if weeks > MaxWeeks {
		weeks = MaxWeeks
	}
	current := s.WeekStart(s.clock())
	first := current.AddDate(0, 0, -7*weeks)
	days, err := s.Days(ctx, userID, first, 7*(weeks+1))
	if err != nil {
		return nil, err
	}
	running, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	sheet := &Timesheet{UserID: userID, Running: running}
	for w := 0; w <= weeks; w++ {
		monday := first.AddDate(0, 0, 7*w)
		sheet.Weeks = append(sheet.Weeks, summarize(monday, days[7*w:7*w+7], w == weeks))
	}
	return sheet, nil
}

func summarize(monday time.Time, days []DayTotal, current bool) WeekSummary {
	year, week := monday.ISOWeek()
	ws := WeekSummary{
		Label:   fmt.Sprintf("%d-W%02d", year, week),
		Start:   monday.Format(domain.DateLayout),
		End:     monday.AddDate(0, 0, 6).Format(domain.DateLayout),
		Current: current,
		Days:    days,
	}
	var workedMinutes, workedDays int64 // Days with a non-zero minute total
	for _, d := range days {
		ws.TotalSeconds += d.Seconds
		if d.Minutes > 0 {
			workedMinutes += d.Minutes
			workedDays++
		}
	}
	ws.TotalMinutes = ws.TotalSeconds / 60
	if workedDays > 0 {
		ws.AverageMinutes = float64(workedMinutes) / float64(workedDays)
	}
	return ws
}

// SetAdjustment stores the authoritative minute total of one account-day.
// Only editors may adjust.
func (s *TimeService) SetAdjustment(ctx context.Context, editorID, userID uint, date string, totalMinutes int) (*domain.DailyAdjustment, error) {
	if err := s.requireEditor(ctx, editorID); err != nil {
		return nil, err
	}
	day, err := parseDate(date, "Date")
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, domain.Validation("Date is required.")
	}
	if totalMinutes < 0 || totalMinutes > 24*60 {
		return nil, domain.Validation("Total minutes must be between 0 and 1440.")
	}
	adj := domain.DailyAdjustment{
		UserID:       userID,
		Date:         day.Format(domain.DateLayout),
		TotalMinutes: totalMinutes,
		EditedBy:     editorID,
		UpdatedAt:    s.clock(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target domain.User
		if err := tx.First(&target, userID).Error; err != nil {
			return notFound(err, "User not found.")
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_minutes", "edited_by", "updated_at"}),
		}).Create(&adj).Error; err != nil {
			return err
		}
		var saved domain.DailyAdjustment
		if err := tx.Where("user_id = ? AND date = ?", adj.UserID, adj.Date).First(&saved).Error; err != nil {
			return err
		}
		adj = saved
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"editor_id":     editorID,
		"user_id":       userID,
		"date":          adj.Date,
		"total_minutes": totalMinutes,
	}).Info("Daily adjustment saved")
	return &adj, nil
}

// DeleteAdjustment removes an override so the computed total applies again
func (s *TimeService) DeleteAdjustment(ctx context.Context, editorID, userID uint, date string) error {
	if err := s.requireEditor(ctx, editorID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, strings.TrimSpace(date)).
		Delete(&domain.DailyAdjustment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("No adjustment for that day.")
	}
	logrus.WithFields(logrus.Fields{
		"editor_id": editorID,
		"user_id":   userID,
		"date":      date,
	}).Info("Daily adjustment removed")
	return nil
}

func (s *TimeService) requireEditor(ctx context.Context, userID uint) error {
	var user domain.User
	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Auth("Please log in.")
	}
	if err != nil {
		return err
	}
	if !user.IsEditor() {
		return domain.Permission("Only editors can adjust tracked time.")
	}
	return nil
}
