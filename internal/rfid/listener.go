package rfid

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Action selects what a scan does
type Action string

// Supported actions
const (
	ActionStart  Action = "start"
	ActionStop   Action = "stop"
	ActionToggle Action = "toggle" // Stop a running timer, start otherwise
)

// ParseAction validates a command-line action
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(s)); a {
	case ActionStart, ActionStop, ActionToggle:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q (want start, stop or toggle)", s)
}

// DefaultDebounce drops repeated reads of the same card
const DefaultDebounce = time.Second

// Listener reads tag lines and forwards them to the server
type Listener struct {
	client   *Client
	action   Action
	debounce time.Duration
	now      func() time.Time
	lastTag  string
	lastAt   time.Time
}

// NewListener creates a Listener with a one second debounce
func NewListener(client *Client, action Action) *Listener {
	return &Listener{client: client, action: action, debounce: DefaultDebounce, now: time.Now}
}

// Run handles every line of r until r is exhausted or ctx is cancelled
func (l *Listener) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Handle(ctx, scanner.Text())
	}
	return scanner.Err()
}

// Handle processes one line. It returns the server's answer, or nil when
// the line was skipped or the server could not be reached.
func (l *Listener) Handle(ctx context.Context, line string) *Result {
	tag := strings.TrimSpace(line)
	if tag == "" || strings.HasPrefix(tag, "#") {
		return nil
	}
	now := l.now()
	if tag == l.lastTag && now.Sub(l.lastAt) < l.debounce {
		logrus.WithField("rfid", tag).Debug("Debounced duplicate scan")
		return nil
	}
	l.lastTag, l.lastAt = tag, now
	logrus.WithField("rfid", tag).Info("Scanned RFID")

	path := StartPath
	switch l.action {
	case ActionStop:
		path = StopPath
	case ActionToggle:
		res, err := l.client.Post(ctx, StopPath, tag)
		if err == nil && res.OK() {
			logrus.WithField("rfid", tag).Info(res.Message)
			return res
		}
		if err != nil {
			logrus.WithError(err).Debug("Stop failed")
		}
	}

	res, err := l.client.Post(ctx, path, tag)
	if err != nil {
		logrus.WithError(err).Error("Failed to reach server")
		return nil
	}
	if res.OK() {
		logrus.WithField("rfid", tag).Info(res.Message)
	} else {
		logrus.WithFields(logrus.Fields{
			"rfid":   tag,
			"status": res.StatusCode,
			"error":  res.Error,
		}).Warn("Server rejected scan")
	}
	return res
}
