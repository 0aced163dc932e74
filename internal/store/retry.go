package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	sqliteBusy     = 5
	sqliteLocked   = 6
	busyAttempts   = 5
	busyFirstDelay = 10 * time.Millisecond
	busyMaxDelay   = 200 * time.Millisecond
)

// isBusy matches the driver's error code when available and falls back to
// the message text.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		switch coded.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs op until it succeeds, fails with a non-busy error or runs
// out of attempts. The delay doubles up to busyMaxDelay.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyFirstDelay
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !isBusy(err) || attempt == busyAttempts {
			return err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, busyMaxDelay)
	}
}
