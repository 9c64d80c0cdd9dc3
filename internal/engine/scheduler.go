package engine

import (
	"time"
)

// runScheduler fires the room's sync tick on a fixed interval. A tick that
// would overlap one still queued or in flight is dropped, not queued:
// resynchronization is best-effort and self-heals on the next interval. The
// pending flag is cleared by the event loop after the tick completes.
func (e *Engine) runScheduler() {
	ticker := time.NewTicker(e.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			if !e.tickPending.CompareAndSwap(false, true) {
				continue
			}
			select {
			case e.events <- request{kind: reqTick}:
			case <-e.stop:
				return
			}
		}
	}
}
