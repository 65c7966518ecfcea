package refresher

import (
	"context"
	"time"
)

// alarmClock wakes the refresh loop: once immediately on start, then on
// every interval tick. A non-positive interval disables the ticks, so
// only the startup refresh fires.
type alarmClock struct {
	interval time.Duration
	cancel   context.CancelFunc
	C        chan time.Time
}

func newAlarmClock(interval time.Duration) *alarmClock {
	return &alarmClock{
		interval: interval,
		C:        make(chan time.Time),
	}
}

func (a *alarmClock) Start(ctx context.Context) <-chan time.Time {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go func() {
		defer close(a.C)

		select {
		case a.C <- time.Now():
		case <-ctx.Done():
			return
		}

		if a.interval <= 0 {
			return
		}

		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		for {
			select {
			case t := <-ticker.C:
				select {
				case a.C <- t:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return a.C
}

func (a *alarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}
