package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/reunio/reunio/pkg/errorsx"
)

// Plan is a user's recording plan. MinutesQuota of zero or less means
// unlimited.
type Plan struct {
	PlanType     string `json:"plan_type"`
	MinutesQuota int    `json:"minutes_quota"`
	MinutesUsed  int    `json:"minutes_used"`
}

// Source fetches the current plan for a user.
type Source interface {
	Plan(ctx context.Context, userID string) (Plan, error)
}

// Recorder persists consumed recording minutes after finalization.
type Recorder interface {
	AddUsage(ctx context.Context, userID string, minutes int) error
}

// Checker evaluates the quota policy during a session: already-used
// minutes plus the minutes of the session in progress, against the
// plan's quota. A fetch failure is reported but never counted as
// exceeded; recording continues and the next poll retries.
type Checker struct {
	source Source
	logger *slog.Logger
}

func NewChecker(source Source) *Checker {
	return &Checker{
		source: source,
		logger: slog.Default().With(slog.String("component", "quota")),
	}
}

// Exceeded reports whether the user's quota is reached counting the
// elapsed session time. Elapsed time rounds up to whole minutes, so a
// session of 6m01s counts as 7 minutes.
func (c *Checker) Exceeded(ctx context.Context, userID string, elapsed time.Duration) (bool, error) {
	if c.source == nil {
		return false, nil
	}
	plan, err := c.source.Plan(ctx, userID)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonQuotaFetch)
		c.logger.Info("quota_fetch_failed",
			"user_id", userID,
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error())
		return false, err
	}
	if plan.MinutesQuota <= 0 {
		return false, nil
	}
	return plan.MinutesUsed+ceilMinutes(elapsed) >= plan.MinutesQuota, nil
}

func ceilMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d.Seconds())
	return (secs + 59) / 60
}
