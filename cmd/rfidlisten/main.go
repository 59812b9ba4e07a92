package main

import (
	"context"   // Cancellation on signals
	"flag"      // Command-line flags
	"io"        // Input stream
	"os"        // Device file
	"os/signal" // Ctrl-C handling

	"traveltogether/internal/rfid" // Scanner client

	"github.com/joho/godotenv"   // For loading .env files
	"github.com/sirupsen/logrus" // Logging library
)

// Reads card scans from a serial device and starts or stops timers
func main() {
	_ = godotenv.Load() // RFID_API_KEY may live in .env
	device := flag.String("device", "/dev/ttyUSB0", "serial device to read tags from, - for stdin")
	server := flag.String("server", "http://localhost:8080", "base URL of the server")
	actionFlag := flag.String("action", "toggle", "start, stop or toggle")
	apiKey := flag.String("api-key", os.Getenv("RFID_API_KEY"), "value of the X-API-Key header")
	verbose := flag.Bool("v", false, "log debounced scans")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	action, err := rfid.ParseAction(*actionFlag)
	if err != nil {
		logrus.Fatal(err)
	}

	var in io.Reader = os.Stdin
	if *device != "-" {
		f, err := os.Open(*device)
		if err != nil {
			logrus.Fatalf("failed to open %s: %v", *device, err)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"device": *device,
		"server": *server,
		"action": action,
	}).Info("Listening for RFID codes")
	if err := rfid.NewListener(rfid.NewClient(*server, *apiKey), action).Run(ctx, in); err != nil && ctx.Err() == nil {
		logrus.Errorf("listener stopped: %v", err)
	}
	logrus.Info("Shutting down")
}
