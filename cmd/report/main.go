package main

import (
	"context" // Report context
	"flag"    // Command-line flags
	"time"    // Current time

	"traveltogether/internal/config"  // Custom package for configuration
	"traveltogether/internal/db"      // Database connection
	"traveltogether/internal/report"  // CSV export
	"traveltogether/internal/service" // Aggregation rules

	"github.com/sirupsen/logrus" // Logging library
)

// Writes last week's time reports
func main() {
	dir := flag.String("dir", "data", "output directory")
	flag.Parse()

	cfg := config.LoadConfig() // Load configuration
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN(), false)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	ctx := context.Background()
	times := service.NewTimeService(gdb, time.Now, time.Local)
	users, err := service.NewAccountService(gdb, cfg.EditorAllowlist).List(ctx)
	if err != nil {
		logrus.Fatalf("failed to list users: %v", err)
	}

	monday := report.PreviousWeek(times, time.Now())
	weeks, err := report.Collect(ctx, times, users, monday)
	if err != nil {
		logrus.Fatalf("failed to aggregate: %v", err)
	}
	if _, err := report.WriteFiles(*dir, report.Label(monday), weeks); err != nil {
		logrus.Fatalf("failed to write reports: %v", err)
	}
}
