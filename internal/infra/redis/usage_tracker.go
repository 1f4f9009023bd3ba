package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"job-analysis-pipeline/internal/domain/model"
	"job-analysis-pipeline/internal/domain/ports/repository"

	goredis "github.com/go-redis/redis/v8"
)

var _ repository.TokenUsageTracker = (*UsageTracker)(nil)

// UsageTracker keeps the running daily token spend in Redis. Keys are
// date-scoped and expire shortly after the daily rollover, so the counter
// resets without a cleanup job.
type UsageTracker struct {
	client RedisClient
	now    func() time.Time
}

func NewUsageTracker(client RedisClient) *UsageTracker {
	return &UsageTracker{client: client, now: time.Now}
}

func (t *UsageTracker) Add(ctx context.Context, tier model.TierID, tokens int) error {
	if tokens <= 0 {
		return nil
	}
	day := t.now().Format("2006-01-02")
	total, err := t.client.IncrBy(ctx, dailyKey(day), int64(tokens))
	if err != nil {
		return err
	}
	if total == int64(tokens) {
		// First write today; keep the key a bit past rollover for late reads.
		_ = t.client.Expire(ctx, dailyKey(day), 26*time.Hour)
	}
	_, err = t.client.IncrBy(ctx, tierKey(day, tier), int64(tokens))
	return err
}

func (t *UsageTracker) UsedToday(ctx context.Context) (int64, error) {
	day := t.now().Format("2006-01-02")
	v, err := t.client.Get(ctx, dailyKey(day))
	if err != nil {
		if err == goredis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func dailyKey(day string) string { return fmt.Sprintf("token_usage:%s", day) }

func tierKey(day string, tier model.TierID) string {
	return fmt.Sprintf("token_usage:%s:tier%d", day, int(tier))
}
