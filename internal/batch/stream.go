package batch

import (
	"context"
	"errors"
	"time"
)

// Stream feeds events from sub to fn until the batch completes, the
// subscription is closed, ctx is done or fn fails. A subscription taken
// after the batch finished ends right after its init event. Idle periods
// produce ping events so transports can keep connections alive.
func Stream(ctx context.Context, sub *Subscription, idle time.Duration, fn func(Event) error) error {
	for {
		ev, err := sub.Next(ctx, idle)
		if err != nil {
			if errors.Is(err, ErrSubscriptionClosed) {
				return nil
			}
			return err
		}
		if err := fn(ev); err != nil {
			return err
		}
		if ev.Type == EventComplete {
			return nil
		}
		if ev.Type == EventInit && ev.Progress != nil && !ev.Progress.IsRunning {
			return nil
		}
	}
}
