package counter

import (
	"context"
	"strconv"

	"github.com/StreamPassApp/StreamPass/internal/pkg/cache"
)

const paymentCountersKey = "payments:counters"

// Counter field names within the payments counter hash.
const (
	FieldCheckoutsCreated  = "checkouts_created"
	FieldPaymentsGranted   = "payments_granted"
	FieldWebhooksProcessed = "webhooks_processed"
	FieldWebhooksDuplicate = "webhooks_duplicate"
	FieldWebhooksRejected  = "webhooks_rejected"
)

// Add increments an operational payment counter in Redis. Counters are best
// effort; callers ignore the error on hot paths.
func Add(field string) error {
	ctx := context.Background()
	return cache.GetClient().HIncrBy(ctx, paymentCountersKey, field, 1).Err()
}

// Snapshot returns all payment counters as integers.
func Snapshot() (map[string]int64, error) {
	ctx := context.Background()
	raw, err := cache.GetClient().HGetAll(ctx, paymentCountersKey).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(raw))
	for field, value := range raw {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		out[field] = n
	}
	return out, nil
}

// Reset drops all payment counters. Used by tests and manual ops.
func Reset() error {
	ctx := context.Background()
	return cache.GetClient().Del(ctx, paymentCountersKey).Err()
}
