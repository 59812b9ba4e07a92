package db

import (
	"context"                        // Connect retries honour cancellation
	"fmt"                            // Error wrapping
	"time"                           // Retry backoff
	"traveltogether/internal/domain" // Importing domain models

	"github.com/glebarez/sqlite"    // Pure-Go SQLite driver for GORM
	"github.com/sethvargo/go-retry" // Exponential backoff
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/driver/mysql"          // MySQL driver for GORM
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/logger"           // GORM logger levels
)

// Column names a model field that older databases may lack
type Column struct {
	Model any    // Model owning the column
	Field string // Go field name on the model
}

// LegacyColumns are the columns added after the first schema revision
var LegacyColumns = []Column{
	{Model: &domain.User{}, Field: "Alias"},
	{Model: &domain.User{}, Field: "Role"},
	{Model: &domain.User{}, Field: "RFID"},
	{Model: &domain.TripProposal{}, Field: "DepartureLocation"},
	{Model: &domain.TripProposal{}, Field: "Activities"},
	{Model: &domain.TripProposal{}, Field: "StartDate"},
	{Model: &domain.TripProposal{}, Field: "EndDate"},
	{Model: &domain.TripProposal{}, Field: "DepartureLocationIsFinal"},
	{Model: &domain.TripProposal{}, Field: "DestinationIsFinal"},
	{Model: &domain.TripProposal{}, Field: "BudgetIsFinal"},
	{Model: &domain.TripProposal{}, Field: "DatesAreFinal"},
	{Model: &domain.TripProposal{}, Field: "ActivitiesAreFinal"},
	{Model: &domain.TimeEntry{}, Field: "DurationSeconds"},
}

// Open connects to the database with the given driver ("mysql" or "sqlite")
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector // Driver-specific dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	level := logger.Warn // Only slow queries and errors by default
	if debug {
		level = logger.Info
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level), // GORM query logging
		TranslateError: true,                          // Map driver errors to gorm.ErrDuplicatedKey etc.
	})
}

// Connect opens the database and pings it, retrying with exponential
// backoff while the server is still coming up. Unsupported drivers fail
// immediately.
func Connect(ctx context.Context, driver, dsn string, debug bool, attempts uint64) (*gorm.DB, error) {
	var gdb *gorm.DB
	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, err := Open(driver, dsn, debug)
		if err != nil {
			if driver != "mysql" && driver != "sqlite" {
				return err
			}
			logrus.WithError(err).Warn("Database not reachable, retrying")
			return retry.RetryableError(err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			logrus.WithError(err).Warn("Database ping failed, retrying")
			return retry.RetryableError(err)
		}
		gdb = conn
		return nil
	})
	return gdb, err
}

// Migrate creates missing tables, adds missing legacy columns and applies indexes
func Migrate(db *gorm.DB) error {
	for _, model := range domain.Models() {
		// Create tables that do not exist yet
		if !db.Migrator().HasTable(model) {
			if err := db.Migrator().CreateTable(model); err != nil {
				return fmt.Errorf("create table for %T: %w", model, err)
			}
			logrus.WithField("model", fmt.Sprintf("%T", model)).Info("Table created")
		}
	}
	if err := EnsureColumns(db, LegacyColumns); err != nil {
		return err
	}
	// Rows created before roles existed get the default role
	if err := db.Model(&domain.User{}).
		Where("role IS NULL OR role = ?", "").
		Update("role", domain.RoleUser).Error; err != nil {
		return fmt.Errorf("backfill roles: %w", err)
	}
	// AutoMigrate adds remaining constraints and indexes
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	logrus.Info("Migration completed.")
	return nil
}

// EnsureColumns adds every listed column that the database does not have yet.
// Columns already present are left untouched, so repeated runs are no-ops.
func EnsureColumns(db *gorm.DB, columns []Column) error {
	m := db.Migrator()
	for _, col := range columns {
		if m.HasColumn(col.Model, col.Field) {
			continue
		}
		if err := m.AddColumn(col.Model, col.Field); err != nil {
			return fmt.Errorf("add column %T.%s: %w", col.Model, col.Field, err)
		}
		logrus.WithFields(logrus.Fields{
			"model": fmt.Sprintf("%T", col.Model), // Model type
			"field": col.Field,                    // Added field
		}).Info("Column added")
	}
	return nil
}
