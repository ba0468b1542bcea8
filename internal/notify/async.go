package notify

import (
	"context"
	"sync"
	"time"

	"matrix-quest-service/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notifier matches app.Notifier.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// Recorder observes delivery outcomes (metrics).
type Recorder interface {
	ObserveNotification(err error)
}

// Multi fans a notification out to every channel concurrently. Channels are
// independent: one failing does not cancel the others. The first error is returned.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var g errgroup.Group
	for _, next := range m {
		next := next
		g.Go(func() error { return next.Notify(ctx, n) })
	}
	return g.Wait()
}

// Async delivers in the background so Notify never blocks or fails the caller.
// Failures are logged and recorded, then dropped.
type Async struct {
	next     Notifier
	logger   *zap.Logger
	recorder Recorder
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewAsync(next Notifier, logger *zap.Logger, recorder Recorder, timeout time.Duration) *Async {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{next: next, logger: logger, recorder: recorder, timeout: timeout}
}

func (a *Async) Notify(_ context.Context, n domain.Notification) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		err := a.next.Notify(ctx, n)
		if a.recorder != nil {
			a.recorder.ObserveNotification(err)
		}
		if err != nil {
			a.logger.Warn("notification dropped",
				zap.String("username", n.Username),
				zap.Int("questionNumber", n.QuestionNumber),
				zap.Bool("finished", n.Finished),
				zap.Error(err),
			)
		}
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish (used on shutdown).
func (a *Async) Wait() {
	a.wg.Wait()
}
