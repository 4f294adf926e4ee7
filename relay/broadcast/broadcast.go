// Package broadcast fans a message out to every registered user through a
// bounded worker pool. Individual delivery failures never abort the run.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/m3rciful/relaybot/core/logger"
)

const defaultWorkers = 4

// Sender delivers one message to one recipient.
type Sender interface {
	Send(userID int64, text string) error
}

// Report summarizes a broadcast run. Attempted counts recipients handed to
// workers; recipients skipped by cancellation appear in none of the counters.
type Report struct {
	Attempted int
	Sent      int
	Failed    int
}

// SendFailure reports a single recipient that could not be reached.
type SendFailure struct {
	UserID int64
	Err    error
}

func (e *SendFailure) Error() string {
	return fmt.Sprintf("broadcast: send to %d: %v", e.UserID, e.Err)
}

func (e *SendFailure) Unwrap() error { return e.Err }

// Code identifies delivery failures for handler summary logs.
func (e *SendFailure) Code() string { return "SEND_FAILURE" }

// Dispatcher runs broadcasts over a fixed-size worker pool.
type Dispatcher struct {
	sender  Sender
	workers int
}

// NewDispatcher builds a dispatcher; workers <= 0 selects the default pool size.
func NewDispatcher(sender Sender, workers int) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Dispatcher{sender: sender, workers: workers}
}

// Broadcast delivers text to every recipient. Cancelling ctx stops feeding
// new recipients to the pool; in-flight sends finish.
func (d *Dispatcher) Broadcast(ctx context.Context, text string, recipients []int64) Report {
	var attempted, sent, failed atomic.Int64

	jobs := make(chan int64)
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				attempted.Add(1)
				if err := d.sender.Send(userID, text); err != nil {
					failed.Add(1)
					fail := &SendFailure{UserID: userID, Err: err}
					logger.Warn(ctx, "broadcast", "broadcast.send_failed",
						slog.Int64("user_id", userID),
						slog.String("error", logger.RedactToken(fail.Error())),
					)
					continue
				}
				sent.Add(1)
			}
		}()
	}

feed:
	for _, userID := range recipients {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- userID:
		}
	}
	close(jobs)
	wg.Wait()

	report := Report{
		Attempted: int(attempted.Load()),
		Sent:      int(sent.Load()),
		Failed:    int(failed.Load()),
	}
	logger.Info(ctx, "broadcast", "broadcast.summary",
		slog.Int("recipients", len(recipients)),
		slog.Int("attempted", report.Attempted),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
	)
	return report
}
