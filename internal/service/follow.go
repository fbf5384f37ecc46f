package service

import (
	"context"
	"errors"
	"time"

	rm "rehab_monitor"
	"rehab_monitor/internal/repository"
)

// resubscribeDelay is how long a follower waits before reopening a failed
// subscription.
const resubscribeDelay = 2 * time.Second

var errSubscriptionClosed = errors.New("subscription closed")

// followDoc feeds every snapshot of path to apply until ctx ends. A failed
// or prematurely closed subscription is reported to apply as a snapshot
// error and reopened after delay.
func followDoc(ctx context.Context, store repository.DocumentStore, path rm.DocPath,
	delay time.Duration, apply func(repository.DocumentSnapshot)) {
	for {
		ch, err := store.Subscribe(ctx, path)
		if err == nil {
			for snap := range ch {
				apply(snap)
			}
			err = errSubscriptionClosed
		}
		if ctx.Err() != nil {
			return
		}
		apply(repository.DocumentSnapshot{Document: repository.Document{Path: path}, Err: err})

		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// followCollection is followDoc for a live collection query.
func followCollection(ctx context.Context, store repository.DocumentStore, collection string,
	q repository.Query, delay time.Duration, apply func(repository.QuerySnapshot)) {
	for {
		ch, err := store.SubscribeCollection(ctx, collection, q)
		if err == nil {
			for snap := range ch {
				apply(snap)
			}
			err = errSubscriptionClosed
		}
		if ctx.Err() != nil {
			return
		}
		apply(repository.QuerySnapshot{Err: err})

		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// sleepCtx waits d and reports whether ctx is still alive.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
