package domain

import "time"

// DateLayout is the calendar date format used for adjustments and form input
const DateLayout = "2006-01-02"

// TimeEntry Model
type TimeEntry struct {
	ID              uint       `gorm:"primaryKey" json:"id"`             // Primary key
	UserID          uint       `gorm:"not null;index" json:"user_id"`    // Owner
	StartTime       time.Time  `gorm:"not null;index" json:"start_time"` // UTC start
	EndTime         *time.Time `gorm:"index" json:"end_time"`            // UTC end, nil while running
	DurationSeconds *int64     `json:"duration_seconds"`                 // Set when stopped
}

// Running reports whether the timer is still open
func (e *TimeEntry) Running() bool {
	return e.EndTime == nil
}

// DailyAdjustment Model
type DailyAdjustment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                                   // Primary key
	UserID       uint      `gorm:"not null;uniqueIndex:idx_user_date" json:"user_id"`      // Adjusted account
	Date         string    `gorm:"size:10;not null;uniqueIndex:idx_user_date" json:"date"` // YYYY-MM-DD
	TotalMinutes int       `gorm:"not null" json:"total_minutes"`                          // Authoritative total
	EditedBy     uint      `gorm:"not null" json:"edited_by"`                              // Editor account
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`                             // Last change
}
