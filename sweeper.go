package sessiontable

import (
	"context"
	"time"
)

// sweeper periodically bulk-deletes logically expired rows. Sweep
// failures are logged and swallowed; a missing table or an engine outage
// must never take the host process down, it only costs that tick.
type sweeper struct {
	store    *Store
	interval time.Duration
	detached bool
	stopChan chan struct{}
	done     chan struct{}
}

func startSweeper(s *Store, interval time.Duration, detached bool) *sweeper {
	w := &sweeper{
		store:    s,
		interval: interval,
		detached: detached,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *sweeper) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := w.store.sweepExpired(ctx); err != nil {
				w.store.logger.Warn().Err(err).Msg("session sweep failed")
			}
			cancel()
		case <-w.stopChan:
			return
		}
	}
}

// stop tears the sweeper down. A detached sweeper does not hold Close up:
// stop signals the goroutine and returns without waiting for an in-flight
// sweep to finish.
func (w *sweeper) stop() {
	close(w.stopChan)
	if !w.detached {
		<-w.done
	}
}
