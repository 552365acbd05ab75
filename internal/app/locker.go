package app

import (
	"context"
	"strconv"
	"time"
)

// Locker gives exclusive ownership of a key for at most ttl.
// ok is false when another holder has it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

func generationLockKey(subscriptionID int64) string {
	return "payflow:generate:" + strconv.FormatInt(subscriptionID, 10)
}
