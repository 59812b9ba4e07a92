// Package report exports last week's tracked time as CSV files, one per
// account plus a combined file.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"traveltogether/internal/domain"
	"traveltogether/internal/service"
)

var header = []string{"date", "weekday", "hours", "minutes", "seconds", "total_seconds"}

// UserWeek is one account's tracked time over a Monday-Sunday week
type UserWeek struct {
	User         domain.User
	Days         []service.DayTotal
	TotalSeconds int64
}

// Label returns the ISO week of monday, e.g. 2025-W07
func Label(monday time.Time) string {
	year, week := monday.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// PreviousWeek returns the Monday starting the last completed week before now
func PreviousWeek(times *service.TimeService, now time.Time) time.Time {
	return times.WeekStart(now).AddDate(0, 0, -7)
}

// Collect aggregates the week starting at monday for every user.
// Daily adjustments take precedence over the recorded entries.
func Collect(ctx context.Context, times *service.TimeService, users []domain.User, monday time.Time) ([]UserWeek, error) {
	weeks := make([]UserWeek, 0, len(users))
	for _, u := range users {
		days, err := times.Days(ctx, u.ID, monday, 7)
		if err != nil {
			return nil, fmt.Errorf("aggregate user %d: %w", u.ID, err)
		}
		uw := UserWeek{User: u, Days: days}
		for _, d := range days {
			uw.TotalSeconds += d.Seconds
		}
		weeks = append(weeks, uw)
	}
	return weeks, nil
}

func split(seconds int64) []string {
	return []string{
		strconv.FormatInt(seconds/3600, 10),
		strconv.FormatInt(seconds%3600/60, 10),
		strconv.FormatInt(seconds%60, 10),
		strconv.FormatInt(seconds, 10),
	}
}

// WriteUser writes the per-day rows of one account followed by a TOTAL row
func WriteUser(w io.Writer, uw UserWeek) error {
	cw := csv.NewWriter(w)
	rows := [][]string{header}
	for _, d := range uw.Days {
		rows = append(rows, append([]string{d.Date, d.Weekday}, split(d.Seconds)...))
	}
	rows = append(rows, []string{}, append([]string{"TOTAL", ""}, split(uw.TotalSeconds)...))
	return cw.WriteAll(rows)
}

// WriteCombined writes every account into one file, each block closed by its TOTAL row
func WriteCombined(w io.Writer, weeks []UserWeek) error {
	cw := csv.NewWriter(w)
	rows := [][]string{append([]string{"user_id", "user_email"}, header...)}
	for _, uw := range weeks {
		id := strconv.FormatUint(uint64(uw.User.ID), 10)
		for _, d := range uw.Days {
			rows = append(rows, append([]string{id, uw.User.Email, d.Date, d.Weekday}, split(d.Seconds)...))
		}
		rows = append(rows, append([]string{id, uw.User.Email, "TOTAL", ""}, split(uw.TotalSeconds)...))
	}
	return cw.WriteAll(rows)
}

// WriteFiles writes weekly_report_<id>_<label>.csv per account and
// weekly_report_all_<label>.csv into dir and returns the written paths
func WriteFiles(dir, label string, weeks []UserWeek) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, uw := range weeks {
		path := filepath.Join(dir, fmt.Sprintf("weekly_report_%d_%s.csv", uw.User.ID, label))
		if err := writeFile(path, func(w io.Writer) error { return WriteUser(w, uw) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	path := filepath.Join(dir, fmt.Sprintf("weekly_report_all_%s.csv", label))
	if err := writeFile(path, func(w io.Writer) error { return WriteCombined(w, weeks) }); err != nil {
		return paths, err
	}
	paths = append(paths, path)
	logrus.WithFields(logrus.Fields{
		"dir":   dir,
		"week":  label,
		"files": len(paths),
	}).Info("Weekly reports written")
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
